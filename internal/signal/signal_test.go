package signal

import (
	"testing"

	"github.com/rawblock/bff-engine/internal/config"
	"github.com/rawblock/bff-engine/pkg/models"
)

func TestProcessEvents_ActiveChannelEmitsAndArmsRefractory(t *testing.T) {
	cfg := config.Default().Refractory
	p := New(cfg)

	events := []models.Event{{Tick: 5, Type: models.EventUnopposedRaid, King: "K-00", Merc: "M-00"}}
	out := p.ProcessEvents(events)

	if len(out) != 1 {
		t.Fatalf("expected 1 emitted signal, got %d", len(out))
	}
	if out[0].Channel != ChannelRaid {
		t.Errorf("channel = %v, want raid", out[0].Channel)
	}
	if p.IsChannelActive(ChannelRaid) {
		t.Errorf("raid channel should be in refractory immediately after emitting")
	}
}

func TestProcessEvents_InactiveChannelQueues(t *testing.T) {
	cfg := config.Default().Refractory
	p := New(cfg)

	first := []models.Event{{Tick: 0, Type: models.EventUnopposedRaid, King: "K-00", Merc: "M-00"}}
	p.ProcessEvents(first)

	second := []models.Event{{Tick: 1, Type: models.EventUnopposedRaid, King: "K-00", Merc: "M-01"}}
	out := p.ProcessEvents(second)

	if len(out) != 0 {
		t.Fatalf("expected the second raid to be queued, not emitted, got %d signals", len(out))
	}
	status := p.QueueStatus()
	if status[ChannelRaid] != 1 {
		t.Errorf("queued raid count = %d, want 1", status[ChannelRaid])
	}
}

func TestUpdateRefractory_ReleasesQueueOnExpiry(t *testing.T) {
	cfg := config.Default().Refractory // raid period = 2
	p := New(cfg)

	p.ProcessEvents([]models.Event{{Tick: 0, Type: models.EventUnopposedRaid, King: "K-00", Merc: "M-00"}})
	p.ProcessEvents([]models.Event{{Tick: 1, Type: models.EventUnopposedRaid, King: "K-00", Merc: "M-01"}})

	out := p.UpdateRefractory(2)
	if len(out) != 1 {
		t.Fatalf("expected the queued raid to release at tick 2, got %d signals", len(out))
	}
	if out[0].Payload.Merc != "M-01" {
		t.Errorf("released event merc = %q, want M-01", out[0].Payload.Merc)
	}
}

func TestUpdateRefractory_CoalescesQueuedEventsBySameParticipants(t *testing.T) {
	cfg := config.Default().Refractory
	p := New(cfg)

	p.ProcessEvents([]models.Event{{Tick: 0, Type: models.EventUnopposedRaid, King: "K-00", Merc: "M-00"}})
	p.ProcessEvents([]models.Event{{Tick: 1, Type: models.EventUnopposedRaid, King: "K-00", Merc: "M-00", Amount: 1}})
	p.ProcessEvents([]models.Event{{Tick: 1, Type: models.EventUnopposedRaid, King: "K-00", Merc: "M-00", Amount: 2}})

	out := p.UpdateRefractory(2)
	if len(out) != 1 {
		t.Fatalf("expected coalescing to collapse repeated same-pair events, got %d", len(out))
	}
	if out[0].Payload.Amount != 2 {
		t.Errorf("coalesced event amount = %v, want the most recent (2)", out[0].Payload.Amount)
	}
}

func TestProcessEvents_SortsByPriorityDescending(t *testing.T) {
	cfg := config.Default().Refractory
	p := New(cfg)

	events := []models.Event{
		{Tick: 0, Type: models.EventTraitDrip, Agent: "K-00"},
		{Tick: 0, Type: models.EventUnopposedRaid, King: "K-00", Merc: "M-00"},
		{Tick: 0, Type: models.EventTrade, King: "K-00"},
	}
	out := p.ProcessEvents(events)

	if len(out) != 3 {
		t.Fatalf("expected all 3 channels active on first emission, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i-1].Priority < out[i].Priority {
			t.Fatalf("signals not sorted by descending priority: %+v", out)
		}
	}
	if out[0].Channel != ChannelRaid {
		t.Errorf("highest priority channel = %v, want raid", out[0].Channel)
	}
}

func TestRetainerAndTraitDrip_NeverEnterRefractory(t *testing.T) {
	cfg := config.Default().Refractory
	p := New(cfg)

	p.ProcessEvents([]models.Event{{Tick: 0, Type: models.EventRetainer, King: "K-00", Knight: "N-00"}})
	p.ProcessEvents([]models.Event{{Tick: 0, Type: models.EventTraitDrip, Agent: "K-00"}})

	if !p.IsChannelActive(ChannelRetainer) {
		t.Errorf("retainer channel should never enter refractory")
	}
	if !p.IsChannelActive(ChannelTraitDrip) {
		t.Errorf("trait_drip channel should never enter refractory")
	}
}
