// Package snapshot is cmd/bffctl's optional tick-persistence sink: it
// stores each full TickResult (events, metrics, agents) as a JSONB row, entirely
// outside internal/'s core packages, per §1's non-goal that file I/O and
// snapshot formats are an external collaborator's concern.
//
// Grounded on internal/db/postgres.go's pgxpool connection-pool idiom.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/bff-engine/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS tick_snapshots (
	id BIGSERIAL PRIMARY KEY,
	tick_num INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	payload JSONB NOT NULL
);
`

// Store persists TickResults to PostgreSQL via pgx.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against connStr and ensures the snapshot table
// exists.
func Connect(connStr string) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("snapshot: connect: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("snapshot: ping: %w", err)
	}

	store := &Store{pool: pool}
	if err := store.initSchema(); err != nil {
		return nil, err
	}
	log.Println("[snapshot] connected to PostgreSQL tick-snapshot sink")
	return store, nil
}

func (s *Store) initSchema() error {
	_, err := s.pool.Exec(context.Background(), schema)
	if err != nil {
		return fmt.Errorf("snapshot: init schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Save persists one TickResult as a row: tick_num plus the full result,
// JSON-encoded.
func (s *Store) Save(ctx context.Context, result models.TickResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("snapshot: marshal tick %d: %w", result.TickNum, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO tick_snapshots (tick_num, payload) VALUES ($1, $2)`,
		result.TickNum, payload,
	)
	if err != nil {
		return fmt.Errorf("snapshot: insert tick %d: %w", result.TickNum, err)
	}
	return nil
}
