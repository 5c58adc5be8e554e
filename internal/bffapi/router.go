// Grounded on internal/api/routes.go's router-group + middleware-chain
// shape (public group, bearer-auth + rate-limited group).
package bffapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rawblock/bff-engine/pkg/models"
)

func marshalTickResult(r models.TickResult) ([]byte, error) {
	return json.Marshal(r)
}

// TickSink optionally persists each advanced tick; cmd/bffctl wires
// internal/snapshot.Store in when DATABASE_URL is set, leaving it nil
// otherwise (persistence is an external collaborator's concern, §1).
type TickSink interface {
	Save(ctx context.Context, result models.TickResult) error
}

// SetupRouter builds the demo gin.Engine: public GET /health and GET
// /stream, and a protected group exposing POST /ticks, GET /population,
// GET /cache/stats.
// sink may be nil.
func SetupRouter(sim *Simulation, hub *Hub, sink TickSink) *gin.Engine {
	r := gin.Default()
	runID := uuid.New().String()

	r.Use(func(c *gin.Context) {
		c.Header("X-Run-Id", runID)
		c.Next()
	})

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "run_id": runID})
		})
		pub.GET("/stream", hub.Subscribe)
	}

	limiter := NewRateLimiter(60, 10)

	protected := r.Group("/api/v1")
	protected.Use(AuthMiddleware())
	{
		protected.POST("/ticks", limiter.MiddlewareWeighted(ticksRequestCost), handleTicks(sim, hub, sink))
		protected.GET("/population", limiter.Middleware(), handlePopulation(sim))
		protected.GET("/cache/stats", limiter.Middleware(), handleCacheStats(sim))
	}

	return r
}

// parseTickCount parses the "n" query param shared by the cost function
// and the handler itself, so both agree on how much work one /ticks call
// asks for.
func parseTickCount(c *gin.Context) (int, error) {
	n, err := strconv.Atoi(c.DefaultQuery("n", "1"))
	if err != nil || n <= 0 {
		return 0, errInvalidTickCount
	}
	return n, nil
}

var errInvalidTickCount = errors.New("n must be a positive integer")

// ticksRequestCost charges one rate-limit token per tick requested,
// rather than a flat 1 regardless of n; an unparsable n still costs 1
// token here and is rejected with 400 by handleTicks before any work runs.
func ticksRequestCost(c *gin.Context) float64 {
	n, err := parseTickCount(c)
	if err != nil {
		return 1
	}
	return float64(n)
}

func handleTicks(sim *Simulation, hub *Hub, sink TickSink) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := parseTickCount(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		results, err := sim.AdvanceTicks(n)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		for _, result := range results {
			if payload, err := marshalTickResult(result); err == nil {
				hub.Broadcast(payload)
			}
			if sink != nil {
				if err := sink.Save(c.Request.Context(), result); err != nil {
					log.Printf("Warning: tick-snapshot persist failed for tick %d: %v", result.TickNum, err)
				}
			}
		}

		c.JSON(http.StatusOK, gin.H{"ticks": results})
	}
}

func handlePopulation(sim *Simulation) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"population": sim.PopulationHex()})
	}
}

func handleCacheStats(sim *Simulation) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, sim.CacheStats())
	}
}
