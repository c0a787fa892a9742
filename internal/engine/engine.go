// Package engine orchestrates the simulation: a fixed-rate update tick and a
// variable-rate render tick run concurrently within a single goroutine, and
// a phase state machine (Loading, Lobby, Countdown, Racing, Results) decides
// what each tick does. All simulation state is mutated here and nowhere else.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kartparty/racehost/internal/bus"
	"github.com/kartparty/racehost/internal/cache"
	"github.com/kartparty/racehost/internal/config"
	"github.com/kartparty/racehost/internal/damage"
	"github.com/kartparty/racehost/internal/physics"
	"github.com/kartparty/racehost/internal/queue"
	"github.com/kartparty/racehost/internal/race"
	"github.com/kartparty/racehost/internal/render"
	"github.com/kartparty/racehost/internal/session"
	"github.com/kartparty/racehost/internal/track"
	"github.com/kartparty/racehost/pkg/core"
)

// Dependencies holds everything the engine drives. All systems are owned by
// the engine goroutine once Run starts.
type Dependencies struct {
	Bus     *bus.Bus
	Physics *physics.System
	Race    *race.System
	Damage  *damage.System
	Intents *cache.IntentBuffer
	Session *session.Context
	Track   *track.Track
	Render  render.Feed
	Log     *slog.Logger
}

// Stats is a point-in-time snapshot of engine health for monitoring.
type Stats struct {
	Phase            Phase
	VehicleCount     int
	PendingJoins     int
	PendingLeaves    int
	LastTickDuration time.Duration
	LastTickSteps    int
}

// Engine drives the whole simulation.
type Engine struct {
	deps    Dependencies
	log     *slog.Logger
	machine *Machine

	countdown     time.Duration
	finishTimeout time.Duration
	resultsHold   time.Duration
	renderRate    int

	vehicles map[core.VehicleID]*core.Vehicle
	joins    *queue.Queue[core.VehicleJoined]
	leaves   *queue.Queue[core.VehicleID]

	startMu      sync.Mutex
	startRequest *core.RaceConfig
	pendingRace  core.RaceConfig

	spawnSeq int

	statsMu sync.Mutex
	stats   Stats
}

// Timings are the engine's phase durations, read from the host config.
type Timings struct {
	Countdown     time.Duration
	FinishTimeout time.Duration
	ResultsHold   time.Duration
	RenderRate    int
}

// TimingsFromConfig reads the race section of the host config.
func TimingsFromConfig() Timings {
	return Timings{
		Countdown:     config.GetDuration("race.countdown"),
		FinishTimeout: config.GetDuration("race.finishTimeout"),
		ResultsHold:   config.GetDuration("race.resultsHold"),
		RenderRate:    config.GetInt("race.renderRate"),
	}
}

// New assembles the engine and its phase machine, starting in Loading.
func New(deps Dependencies, timings Timings) *Engine {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	if timings.RenderRate <= 0 {
		timings.RenderRate = 30
	}

	e := &Engine{
		deps:          deps,
		log:           log,
		countdown:     timings.Countdown,
		finishTimeout: timings.FinishTimeout,
		resultsHold:   timings.ResultsHold,
		renderRate:    timings.RenderRate,
		vehicles:      make(map[core.VehicleID]*core.Vehicle),
		joins:         queue.New[core.VehicleJoined](),
		leaves:        queue.New[core.VehicleID](),
	}

	m := NewMachine(deps.Bus, log)
	m.Register(&loadingState{e: e})
	m.Register(&lobbyState{e: e})
	m.Register(&countdownState{e: e})
	m.Register(&racingState{e: e})
	m.Register(&resultsState{e: e})
	m.AddGuard(e.guard)
	e.machine = m

	if err := m.Transition(PhaseLoading, time.Now()); err != nil {
		log.Error("Failed to enter loading phase", "error", err)
	}
	return e
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase {
	return e.machine.Current()
}

// Assemble moves from Loading to Lobby once the caller has the track and
// transport wired.
func (e *Engine) Assemble(now time.Time) error {
	return e.machine.Transition(PhaseLobby, now)
}

// QueueJoin schedules a vehicle join for the next tick boundary. Safe to
// call from any goroutine.
func (e *Engine) QueueJoin(v core.VehicleJoined) {
	e.joins.Push(v)
}

// QueueLeave schedules a vehicle leave for the next tick boundary. Safe to
// call from any goroutine.
func (e *Engine) QueueLeave(id core.VehicleID) {
	e.leaves.Push(id)
}

// RequestStart asks the lobby to begin a race with the given configuration.
// Safe to call from any goroutine; the lobby state consumes it.
func (e *Engine) RequestStart(cfg core.RaceConfig) {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	e.startRequest = &cfg
}

func (e *Engine) takeStartRequest() (core.RaceConfig, bool) {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	if e.startRequest == nil {
		return core.RaceConfig{}, false
	}
	cfg := *e.startRequest
	e.startRequest = nil
	if cfg.Laps <= 0 {
		cfg.Laps = config.GetInt("race.defaultLaps")
	}
	return cfg, true
}

// Stats returns the latest engine statistics.
func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

// Run drives both cadences until the context is cancelled. The update tick
// and the render tick interleave within this single goroutine, so no
// simulation state needs locking.
func (e *Engine) Run(ctx context.Context) {
	update := time.NewTicker(e.deps.Physics.StepDuration())
	defer update.Stop()
	renderTick := time.NewTicker(time.Second / time.Duration(e.renderRate))
	defer renderTick.Stop()

	e.log.Info("Engine running",
		"updateInterval", e.deps.Physics.StepDuration(),
		"renderRate", e.renderRate)

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			e.log.Info("Engine stopped")
			return
		case now := <-update.C:
			e.UpdateTick(now, now.Sub(last))
			last = now
		case now := <-renderTick.C:
			e.RenderTick(now)
		}
	}
}

// UpdateTick performs one fixed update: lifecycle, input, physics, damage,
// race, phase logic, in dependency order.
func (e *Engine) UpdateTick(now time.Time, frameDelta time.Duration) {
	started := time.Now()

	e.drainLeaves()
	e.drainJoins()
	e.applyIntents()

	// Contacts and race sampling run after every individual step, not once
	// per tick: a catch-up burst covers several steps, and sampling only the
	// final state would let a fast vehicle pass clean through a checkpoint
	// volume between two samples.
	steps := e.deps.Physics.Accumulate(frameDelta)
	for i := 0; i < steps; i++ {
		e.deps.Physics.Step()
		for _, c := range e.deps.Physics.DrainContacts() {
			e.deps.Damage.OnCollision(c, now)
		}
		e.deps.Race.Sample(e.deps.Physics.States(), now)
	}
	if steps > 0 {
		e.deps.Damage.Update(now)
	}

	e.machine.Update(now)
	e.syncVehicleRecords()

	e.statsMu.Lock()
	e.stats = Stats{
		Phase:            e.machine.Current(),
		VehicleCount:     len(e.vehicles),
		PendingJoins:     e.joins.Len(),
		PendingLeaves:    e.leaves.Len(),
		LastTickDuration: time.Since(started),
		LastTickSteps:    steps,
	}
	e.statsMu.Unlock()
}

// RenderTick publishes a scene snapshot on the render feed. The send never
// blocks; a full feed drops the frame.
func (e *Engine) RenderTick(now time.Time) {
	if e.deps.Render == nil {
		return
	}

	frame := render.Frame{
		Phase:    string(e.machine.Current()),
		Time:     now,
		Vehicles: make([]render.VehicleView, 0, len(e.vehicles)),
	}
	for _, st := range e.deps.Physics.States() {
		v, ok := e.vehicles[st.ID]
		if !ok {
			continue
		}
		frame.Vehicles = append(frame.Vehicles, render.VehicleView{
			ID:        st.ID,
			Transform: core.Transform{Position: st.Position, Heading: st.Heading},
			Velocity:  st.LinVel,
			Health:    v.Health,
			Alive:     v.Alive,
			Lap:       v.Progress.Lap,
			Rank:      v.Progress.Rank,
		})
	}
	e.deps.Render.TrySend(frame)
}

// Vehicle returns a copy of a vehicle's record.
func (e *Engine) Vehicle(id core.VehicleID) (core.Vehicle, bool) {
	v, ok := e.vehicles[id]
	if !ok {
		return core.Vehicle{}, false
	}
	return *v, true
}

// VehicleCount returns the number of joined vehicles.
func (e *Engine) VehicleCount() int {
	return len(e.vehicles)
}

// guard vetoes transitions that would break the phase cycle.
func (e *Engine) guard(from, to Phase) error {
	switch to {
	case PhaseCountdown:
		if len(e.vehicles) == 0 && e.joins.Empty() {
			return errNoVehicles
		}
		if from != PhaseLobby {
			return errWrongOrigin(from)
		}
	case PhaseRacing:
		if from != PhaseCountdown {
			return errWrongOrigin(from)
		}
	case PhaseResults:
		if from != PhaseRacing {
			return errWrongOrigin(from)
		}
	}
	return nil
}

func (e *Engine) drainLeaves() {
	for _, id := range e.leaves.GetAndEmpty() {
		if _, ok := e.vehicles[id]; !ok {
			continue
		}
		delete(e.vehicles, id)
		e.deps.Physics.RemoveVehicle(id)
		e.deps.Race.RemoveVehicle(id)
		e.deps.Damage.RemoveVehicle(id)
		e.deps.Intents.Remove(id)
		e.log.Info("Vehicle left", "vehicle", id)
		e.deps.Bus.Publish(core.EventVehicleLeft, core.VehicleLeft{ID: id})
	}
}

func (e *Engine) drainJoins() {
	for _, j := range e.joins.GetAndEmpty() {
		if _, ok := e.vehicles[j.ID]; ok {
			continue
		}
		spawn := e.deps.Track.SpawnTransform(e.spawnSeq)
		e.spawnSeq++
		if err := e.deps.Physics.CreateVehicleBody(j.ID, spawn); err != nil {
			e.log.Error("Failed to create vehicle body", "vehicle", j.ID, "error", err)
			continue
		}
		e.deps.Race.AddVehicle(j.ID)
		e.deps.Damage.AddVehicle(j.ID, 0)

		e.vehicles[j.ID] = &core.Vehicle{
			ID:        j.ID,
			Name:      j.Name,
			Color:     j.Color,
			JoinTime:  time.Now(),
			Transform: spawn,
			Alive:     true,
		}
		e.log.Info("Vehicle joined", "vehicle", j.ID, "name", j.Name)
		e.deps.Bus.Publish(core.EventVehicleJoined, j)
	}
}

// applyIntents forwards buffered control input to physics, but only while
// racing. In every other phase physics keeps stepping (vehicles never freeze
// mid-motion) with zeroed intents.
func (e *Engine) applyIntents() {
	if e.machine.Current() != PhaseRacing {
		e.deps.Physics.ClearControls()
		return
	}
	for id, intent := range e.deps.Intents.Snapshot() {
		if v, ok := e.vehicles[id]; ok {
			v.Intent = intent
			e.deps.Physics.ApplyControl(id, intent)
		}
	}
}

// resetGrid snaps every vehicle to its spawn slot and clears race and
// damage state. The countdown phase calls this on entry.
func (e *Engine) resetGrid() {
	slot := 0
	for _, st := range e.deps.Physics.States() {
		if err := e.deps.Physics.ResetVehicle(st.ID, e.deps.Track.SpawnTransform(slot)); err != nil {
			e.log.Error("Failed to reset vehicle to grid", "vehicle", st.ID, "error", err)
		}
		slot++
	}
	e.spawnSeq = slot
	e.deps.Race.Reset()
	e.deps.Damage.ResetAll()
	e.deps.Intents.Reset()
}

func (e *Engine) syncVehicleRecords() {
	for _, st := range e.deps.Physics.States() {
		v, ok := e.vehicles[st.ID]
		if !ok {
			continue
		}
		v.Transform = core.Transform{Position: st.Position, Heading: st.Heading}
		v.LinVel = st.LinVel
		v.AngVel = st.AngVel
		if h, ok := e.deps.Damage.Health(st.ID); ok {
			v.Health = h
		}
		v.Alive = e.deps.Damage.Alive(st.ID)
		if p, ok := e.deps.Race.Progress(st.ID); ok {
			v.Progress = p
		}
	}
}
