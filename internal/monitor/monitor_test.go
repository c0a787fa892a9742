package monitor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/kartparty/racehost/internal/bus"
	"github.com/kartparty/racehost/internal/engine"
	"github.com/kartparty/racehost/pkg/core"
)

type fakeStats struct {
	calls atomic.Int64
}

func (f *fakeStats) Stats() engine.Stats {
	f.calls.Add(1)
	return engine.Stats{
		Phase:            engine.PhaseLobby,
		VehicleCount:     2,
		LastTickDuration: 3 * time.Millisecond,
		LastTickSteps:    1,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestServiceSamplesEngineStats(t *testing.T) {
	stats := &fakeStats{}
	s := NewService(Dependencies{
		Engine:   stats,
		Interval: 10 * time.Millisecond,
	})

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !s.IsRunning() {
		t.Fatal("IsRunning() = false after Start")
	}

	waitFor(t, time.Second, func() bool { return stats.calls.Load() >= 2 })

	s.Stop()
	waitFor(t, time.Second, func() bool { return !s.IsRunning() })
}

func TestServiceStartIdempotent(t *testing.T) {
	stats := &fakeStats{}
	s := NewService(Dependencies{Engine: stats, Interval: 10 * time.Millisecond})

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	s.Stop()
	waitFor(t, time.Second, func() bool { return !s.IsRunning() })
}

func TestServiceForwardsRaceEvents(t *testing.T) {
	b, err := bus.New(nil)
	if err != nil {
		t.Fatalf("bus.New() error = %v", err)
	}

	// No influx manager wired; the handlers must still consume the events
	// without panicking.
	NewService(Dependencies{Engine: &fakeStats{}, Bus: b})

	if got := b.SubscriberCount(core.EventRaceStarted); got != 1 {
		t.Fatalf("SubscriberCount(race:started) = %d, want 1", got)
	}
	if got := b.SubscriberCount(core.EventRaceFinished); got != 1 {
		t.Fatalf("SubscriberCount(race:finished) = %d, want 1", got)
	}

	b.Publish(core.EventRaceStarted, core.RaceStarted{LapTarget: 3, TrackID: "figure-eight"})
	b.Publish(core.EventRaceFinished, core.RaceFinished{})
	b.Publish(core.EventVehicleDestroyed, core.VehicleDestroyed{ID: 1})
	b.Publish(core.EventVehicleRespawned, core.VehicleRespawned{ID: 1})
}
