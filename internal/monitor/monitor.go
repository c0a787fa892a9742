// Package monitor periodically samples engine health (tick duration, step
// counts, vehicle and queue numbers) and ships it to InfluxDB and the log.
// It also forwards race lifecycle events from the bus as telemetry points.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kartparty/racehost/internal/bus"
	"github.com/kartparty/racehost/internal/engine"
	"github.com/kartparty/racehost/internal/influx"
	"github.com/kartparty/racehost/internal/session"
	"github.com/kartparty/racehost/pkg/core"
)

// StatsProvider exposes engine statistics. *engine.Engine satisfies this.
type StatsProvider interface {
	Stats() engine.Stats
}

// Dependencies holds all dependencies for the monitor service.
type Dependencies struct {
	Engine   StatsProvider
	Session  *session.Context
	Influx   *influx.Manager
	Bus      *bus.Bus
	Log      *slog.Logger
	Interval time.Duration
}

// Service samples host performance on a fixed interval.
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service and subscribes to the race
// lifecycle events it reports on.
func NewService(deps Dependencies) *Service {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}

	s := &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
	if deps.Bus != nil {
		s.subscribeRaceEvents()
	}
	return s
}

// IsRunning reports whether the sampler goroutine is running.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Start launches the sampler goroutine.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.sample(time.Now())
			}
		}
	}()

	return nil
}

// Stop stops the sampler.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}

func (s *Service) sample(now time.Time) {
	if s.deps.Engine == nil {
		return
	}
	stats := s.deps.Engine.Stats()

	s.deps.Log.Debug("Host tick sample",
		"phase", string(stats.Phase),
		"vehicles", stats.VehicleCount,
		"tickDuration", stats.LastTickDuration,
		"steps", stats.LastTickSteps)

	s.writePoint(influx.BucketHostPerformance, influx.HostTickPoint(
		s.roomName(),
		string(stats.Phase),
		stats.VehicleCount,
		stats.LastTickDuration,
		stats.LastTickSteps,
		now,
	))
}

func (s *Service) subscribeRaceEvents() {
	s.deps.Bus.Subscribe(core.EventRaceStarted, func(e bus.Event) {
		p, ok := e.Payload.(core.RaceStarted)
		if !ok {
			return
		}
		s.writePoint(influx.BucketRaceEvents, influx.RaceEventPoint(
			s.roomName(), "race_started",
			map[string]any{"lapTarget": p.LapTarget, "trackId": p.TrackID},
			e.Timestamp,
		))
	})
	s.deps.Bus.Subscribe(core.EventRaceFinished, func(e bus.Event) {
		p, ok := e.Payload.(core.RaceFinished)
		if !ok {
			return
		}
		s.writePoint(influx.BucketRaceEvents, influx.RaceEventPoint(
			s.roomName(), "race_finished",
			map[string]any{"entries": len(p.Result.Entries)},
			e.Timestamp,
		))
	})
	s.deps.Bus.Subscribe(core.EventVehicleDestroyed, func(e bus.Event) {
		p, ok := e.Payload.(core.VehicleDestroyed)
		if !ok {
			return
		}
		s.writePoint(influx.BucketRaceEvents, influx.RaceEventPoint(
			s.roomName(), "vehicle_destroyed",
			map[string]any{"vehicle": int(p.ID)},
			e.Timestamp,
		))
	})
	s.deps.Bus.Subscribe(core.EventVehicleRespawned, func(e bus.Event) {
		p, ok := e.Payload.(core.VehicleRespawned)
		if !ok {
			return
		}
		s.writePoint(influx.BucketRaceEvents, influx.RaceEventPoint(
			s.roomName(), "vehicle_respawned",
			map[string]any{"vehicle": int(p.ID)},
			e.Timestamp,
		))
	})
}

func (s *Service) roomName() string {
	if s.deps.Session == nil {
		return ""
	}
	return s.deps.Session.RoomName()
}

func (s *Service) writePoint(bucket string, point *write.Point) {
	if s.deps.Influx == nil {
		return
	}
	if err := s.deps.Influx.WritePoint(context.Background(), bucket, point); err != nil {
		s.deps.Log.Debug("Failed to write telemetry point", "bucket", bucket, "error", err)
	}
}
