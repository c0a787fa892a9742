// Package race adjudicates lap progress. Each vehicle walks an ordered
// checkpoint sequence with a rising-edge trigger per volume; laps count only
// on a start/finish crossing preceded by every prior checkpoint in order, so
// progress can never skip regardless of vehicle speed or sampling rate.
package race

import (
	"log/slog"
	"sort"
	"time"

	"github.com/kartparty/racehost/internal/bus"
	"github.com/kartparty/racehost/internal/physics"
	"github.com/kartparty/racehost/internal/track"
	"github.com/kartparty/racehost/pkg/core"
)

type vehicleState struct {
	id       core.VehicleID
	lap      int
	expected int
	inside   bool

	crossings int
	lastCross time.Time
	lapStart  time.Time
	lapTimes  []time.Duration

	finished   bool
	finishedAt time.Time
	rank       int
}

// System tracks every vehicle's progress through the loaded track.
// It is not safe for concurrent use; the engine goroutine owns it.
type System struct {
	track *track.Track
	bus   *bus.Bus
	log   *slog.Logger

	lapTarget     int
	finishTimeout time.Duration

	states map[core.VehicleID]*vehicleState
	order  []core.VehicleID

	running       bool
	startedAt     time.Time
	firstFinishAt time.Time
	finishEmitted bool
}

// NewSystem creates a race adjudicator over a validated track.
func NewSystem(t *track.Track, b *bus.Bus, log *slog.Logger) *System {
	if log == nil {
		log = slog.Default()
	}
	return &System{
		track:  t,
		bus:    b,
		log:    log,
		states: make(map[core.VehicleID]*vehicleState),
	}
}

// AddVehicle registers a vehicle. Joining mid-race starts it at lap zero.
func (s *System) AddVehicle(id core.VehicleID) {
	if _, ok := s.states[id]; ok {
		return
	}
	s.states[id] = &vehicleState{id: id, expected: s.firstExpected()}
	s.order = append(s.order, id)
}

// RemoveVehicle forgets a vehicle's progress.
func (s *System) RemoveVehicle(id core.VehicleID) {
	if _, ok := s.states[id]; !ok {
		return
	}
	delete(s.states, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Reset clears all progress for a fresh race. The countdown phase calls
// this after snapping vehicles back to their spawns.
func (s *System) Reset() {
	for _, st := range s.states {
		*st = vehicleState{id: st.id, expected: s.firstExpected()}
	}
	s.running = false
	s.firstFinishAt = time.Time{}
	s.finishEmitted = false
}

// Start arms the race clock and announces racing going live.
func (s *System) Start(lapTarget int, finishTimeout time.Duration, now time.Time) {
	s.lapTarget = lapTarget
	s.finishTimeout = finishTimeout
	s.startedAt = now
	s.running = true
	s.firstFinishAt = time.Time{}
	s.finishEmitted = false
	for _, st := range s.states {
		st.lapStart = now
	}
	s.bus.Publish(core.EventRaceStarted, core.RaceStarted{
		LapTarget: lapTarget,
		TrackID:   s.track.ID,
	})
}

// Running reports whether a race is live and not yet finished.
func (s *System) Running() bool {
	return s.running && !s.finishEmitted
}

// Sample advances the checkpoint state machine for every body. Call once
// per physics step while racing.
func (s *System) Sample(bodies []physics.BodyState, now time.Time) {
	if !s.Running() {
		return
	}

	for _, b := range bodies {
		st, ok := s.states[b.ID]
		if !ok || st.finished {
			continue
		}
		// Mid-race joiners open their first lap at the first sample after
		// joining; Start only stamps vehicles present at the green light.
		if st.lapStart.IsZero() {
			st.lapStart = now
		}
		s.sampleVehicle(st, b, now)
	}

	s.rankAll()

	if s.allFinished() || s.timeoutElapsed(now) {
		s.finish()
	}
}

func (s *System) sampleVehicle(st *vehicleState, b physics.BodyState, now time.Time) {
	inside := s.track.Checkpoints[st.expected].Contains(b.Position)

	// Rising edge only: sitting inside a volume across ticks triggers at
	// most once, and the index advances by exactly one per crossing.
	if !inside || st.inside {
		st.inside = inside
		return
	}

	crossed := st.expected
	st.expected = (st.expected + 1) % s.track.CheckpointCount()
	st.crossings++
	st.lastCross = now

	if crossed == s.track.StartFinishIndex {
		st.lap++
		st.lapTimes = append(st.lapTimes, now.Sub(st.lapStart))
		st.lapStart = now
		s.log.Debug("Lap completed", "vehicle", st.id, "lap", st.lap)

		if st.lap >= s.lapTarget {
			st.finished = true
			st.finishedAt = now
			if s.firstFinishAt.IsZero() {
				s.firstFinishAt = now
			}
			st.inside = false
			return
		}
	}

	// If the next volume already contains the vehicle it must exit and
	// re-enter before the next crossing registers.
	st.inside = s.track.Checkpoints[st.expected].Contains(b.Position)
}

// Progress returns a vehicle's current race bookkeeping for the render feed.
func (s *System) Progress(id core.VehicleID) (core.RaceProgress, bool) {
	st, ok := s.states[id]
	if !ok {
		return core.RaceProgress{}, false
	}
	stamps := make([]time.Time, 0, len(st.lapTimes))
	cursor := s.startedAt
	for _, lt := range st.lapTimes {
		cursor = cursor.Add(lt)
		stamps = append(stamps, cursor)
	}
	return core.RaceProgress{
		Lap:            st.lap,
		NextCheckpoint: st.expected,
		LapStamps:      stamps,
		Finished:       st.finished,
		Rank:           st.rank,
	}, true
}

// Result returns the standings ordered by rank. Before the finish event it
// reflects the live running order.
func (s *System) Result() core.RaceResult {
	standings := s.standings()
	res := core.RaceResult{Entries: make([]core.ResultEntry, 0, len(standings))}
	for _, st := range standings {
		res.Entries = append(res.Entries, core.ResultEntry{
			VehicleID: st.id,
			Rank:      st.rank,
			LapTimes:  append([]time.Duration(nil), st.lapTimes...),
			Finished:  st.finished,
		})
	}
	return res
}

func (s *System) firstExpected() int {
	// Vehicles spawn behind the line; the first volume they must cross is
	// the one after start/finish, and a full circuit back over the line
	// counts the lap.
	if s.track.CheckpointCount() == 0 {
		return 0
	}
	return (s.track.StartFinishIndex + 1) % s.track.CheckpointCount()
}

// standings orders vehicles: finishers by finish time, then the rest by
// checkpoints crossed, ties broken by who crossed their last checkpoint
// earlier.
func (s *System) standings() []*vehicleState {
	out := make([]*vehicleState, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.states[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.finished != b.finished {
			return a.finished
		}
		if a.finished {
			return a.finishedAt.Before(b.finishedAt)
		}
		if a.crossings != b.crossings {
			return a.crossings > b.crossings
		}
		return a.lastCross.Before(b.lastCross)
	})
	return out
}

func (s *System) rankAll() {
	for i, st := range s.standings() {
		st.rank = i + 1
	}
}

func (s *System) allFinished() bool {
	if len(s.states) == 0 {
		return false
	}
	for _, st := range s.states {
		if !st.finished {
			return false
		}
	}
	return true
}

func (s *System) timeoutElapsed(now time.Time) bool {
	return !s.firstFinishAt.IsZero() &&
		s.finishTimeout > 0 &&
		now.Sub(s.firstFinishAt) >= s.finishTimeout
}

func (s *System) finish() {
	if s.finishEmitted {
		return
	}
	s.finishEmitted = true
	s.running = false
	result := s.Result()
	s.log.Info("Race finished", "entries", len(result.Entries))
	s.bus.Publish(core.EventRaceFinished, core.RaceFinished{Result: result})
}
