// Package signal implements SignalProcessor: channel routing with per-
// channel refractory cool-downs, queuing, and coalescing (§4.8). It is
// advisory -- the engine's direct event generation proceeds regardless;
// consumers that want to suppress oscillatory event storms route through
// here.
//
// Grounded on internal/heuristics/alert_system.go's channel/webhook
// dispatch shape (category-based routing with rate limiting) and
// internal/heuristics/address_watchlist.go's category-whitelist style.
package signal

import (
	"sort"

	"github.com/rawblock/bff-engine/internal/config"
	"github.com/rawblock/bff-engine/pkg/models"
)

// Channel is one of the six routing buckets events map to (§4.8).
type Channel int

const (
	ChannelRaid Channel = iota
	ChannelDefend
	ChannelBribe
	ChannelTrade
	ChannelRetainer
	ChannelTraitDrip
)

func (c Channel) String() string {
	switch c {
	case ChannelRaid:
		return "raid"
	case ChannelDefend:
		return "defend"
	case ChannelBribe:
		return "bribe"
	case ChannelTrade:
		return "trade"
	case ChannelRetainer:
		return "retainer"
	case ChannelTraitDrip:
		return "trait_drip"
	default:
		return "unknown"
	}
}

var channelPriority = map[Channel]int{
	ChannelRaid: 100, ChannelDefend: 100, ChannelBribe: 90,
	ChannelTrade: 50, ChannelRetainer: 60, ChannelTraitDrip: 10,
}

// Signal is one routed, prioritized event ready for a downstream
// consumer.
type Signal struct {
	Channel   Channel
	Priority  int
	Payload   models.Event
	Timestamp int
}

// Processor routes events to channels, enforcing refractory cool-downs,
// queuing suppressed events, and coalescing them on re-arm.
type Processor struct {
	refractory  config.RefractoryConfig
	enableQueue bool
	enableCoalesce bool

	refractoryUntil map[Channel]int
	queue           map[Channel][]models.Event
	currentTick     int
}

// New creates a Processor over the given refractory configuration.
// Queuing and coalescing are both enabled by default, matching §4.8.
func New(refractory config.RefractoryConfig) *Processor {
	return &Processor{
		refractory:      refractory,
		enableQueue:     true,
		enableCoalesce:  true,
		refractoryUntil: make(map[Channel]int),
		queue:           make(map[Channel][]models.Event),
	}
}

func eventToChannel(e models.Event) Channel {
	switch e.Type {
	case models.EventTraitDrip:
		return ChannelTraitDrip
	case models.EventTrade:
		return ChannelTrade
	case models.EventRetainer:
		return ChannelRetainer
	case models.EventBribeAccept, models.EventBribeInsufficientFunds:
		return ChannelBribe
	case models.EventDefendWin, models.EventDefendLoss:
		return ChannelDefend
	case models.EventUnopposedRaid:
		return ChannelRaid
	default:
		return ChannelRaid
	}
}

func (p *Processor) refractoryPeriod(ch Channel) int {
	switch ch {
	case ChannelRaid:
		return p.refractory.Raid
	case ChannelDefend:
		return p.refractory.Defend
	case ChannelBribe:
		return p.refractory.Bribe
	case ChannelTrade:
		return p.refractory.Trade
	default:
		// Retainer and trait_drip carry no cool-down regardless of
		// configuration, matching the original's hardcoded zero.
		return 0
	}
}

// IsChannelActive reports whether ch may emit right now: true if it has
// no refractory entry, or the current tick has reached its expiry.
func (p *Processor) IsChannelActive(ch Channel) bool {
	expiry, ok := p.refractoryUntil[ch]
	if !ok {
		return true
	}
	return p.currentTick >= expiry
}

// ProcessEvents routes each event to its channel. Active channels emit a
// Signal and re-arm their refractory window (if it has a nonzero period);
// inactive channels queue the event if queuing is enabled, else drop it.
// Returns the emitted signals sorted by priority descending (§4.8).
func (p *Processor) ProcessEvents(events []models.Event) []Signal {
	var emitted []Signal

	for _, e := range events {
		if p.currentTick == 0 && e.Tick != 0 {
			p.currentTick = e.Tick
		}
		ch := eventToChannel(e)

		if p.IsChannelActive(ch) {
			emitted = append(emitted, p.createSignal(ch, e))
			if period := p.refractoryPeriod(ch); period > 0 {
				base := e.Tick
				if p.currentTick != 0 {
					base = p.currentTick
				}
				p.refractoryUntil[ch] = base + period
			}
		} else if p.enableQueue {
			p.queue[ch] = append(p.queue[ch], e)
		}
	}

	sortByPriorityDesc(emitted)
	return emitted
}

func (p *Processor) createSignal(ch Channel, e models.Event) Signal {
	priority, ok := channelPriority[ch]
	if !ok {
		priority = 50
	}
	return Signal{Channel: ch, Priority: priority, Payload: e, Timestamp: e.Tick}
}

// UpdateRefractory clears any channel whose refractory window has
// expired by tick, then emits (optionally coalesced) any events that
// accumulated in that channel's queue, re-arming its refractory window
// from tick.
func (p *Processor) UpdateRefractory(tick int) []Signal {
	p.currentTick = tick

	var emitted []Signal
	for ch, expiry := range p.refractoryUntil {
		if expiry > tick {
			continue
		}
		delete(p.refractoryUntil, ch)

		queued := p.queue[ch]
		if len(queued) == 0 {
			continue
		}
		delete(p.queue, ch)

		if p.enableCoalesce {
			queued = coalesce(queued)
		}
		for _, e := range queued {
			emitted = append(emitted, p.createSignal(ch, e))
		}
		if period := p.refractoryPeriod(ch); period > 0 {
			p.refractoryUntil[ch] = tick + period
		}
	}

	sortByPriorityDesc(emitted)
	return emitted
}

// coalesce keeps only the most recent queued event per
// (type, king, knight, merc) key.
func coalesce(events []models.Event) []models.Event {
	type key struct {
		typ                  models.EventType
		king, knight, merc   string
	}
	latest := make(map[key]models.Event)
	order := make([]key, 0, len(events))
	for _, e := range events {
		k := key{e.Type, e.King, e.Knight, e.Merc}
		if _, seen := latest[k]; !seen {
			order = append(order, k)
		}
		latest[k] = e
	}
	out := make([]models.Event, 0, len(order))
	for _, k := range order {
		out = append(out, latest[k])
	}
	return out
}

func sortByPriorityDesc(signals []Signal) {
	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Priority > signals[j].Priority
	})
}

// QueueStatus reports the number of currently-queued events per channel.
func (p *Processor) QueueStatus() map[Channel]int {
	out := make(map[Channel]int, len(p.queue))
	for ch, q := range p.queue {
		out[ch] = len(q)
	}
	return out
}

// RefractoryStatus reports the expiry tick for every channel currently in
// refractory.
func (p *Processor) RefractoryStatus() map[Channel]int {
	out := make(map[Channel]int, len(p.refractoryUntil))
	for ch, expiry := range p.refractoryUntil {
		out[ch] = expiry
	}
	return out
}

// ClearQueues discards every pending queued event without emitting.
func (p *Processor) ClearQueues() {
	p.queue = make(map[Channel][]models.Event)
}
