// Package physics owns the rigid-body simulation. Vehicles are planar disc
// bodies driven by control intents; barriers are static polylines. The system
// advances by a fixed timestep fed from a wall-clock accumulator so the
// simulation rate stays constant regardless of how fast the host renders.
package physics

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/kartparty/racehost/internal/config"
	"github.com/kartparty/racehost/internal/geo"
	"github.com/kartparty/racehost/internal/queue"
	"github.com/kartparty/racehost/internal/util"
	"github.com/kartparty/racehost/pkg/core"
)

const (
	// restitution of vehicle-vehicle and vehicle-barrier impacts.
	vehicleRestitution = 0.3
	barrierRestitution = 0.2

	// angularDamping bleeds off spin so released steering settles.
	angularDamping = 4.0

	// contactSkin is the proximity margin within which a resolved contact
	// is still considered touching. Re-entering the overlap from inside
	// the skin reports a ground (surface) contact, not a fresh impact.
	contactSkin = 0.05

	// speedEpsilon below which a body counts as stationary.
	speedEpsilon = 1e-3
)

// Tuning is the full set of simulation constants. Values come from the host
// config so venues can tune handling without a rebuild.
type Tuning struct {
	TickRate          int
	MaxFrameDelta     time.Duration
	DriveForce        float64
	BrakeForce        float64
	SteerTorque       float64
	SteerSpeedFalloff float64
	DragCoeff         float64
	RollingResistance float64
	LateralGrip       float64
	VehicleMass       float64
	VehicleRadius     float64
}

// TuningFromConfig reads the physics section of the host config.
func TuningFromConfig() Tuning {
	return Tuning{
		TickRate:          config.GetInt("physics.tickRate"),
		MaxFrameDelta:     config.GetDuration("physics.maxFrameDelta"),
		DriveForce:        config.GetFloat("physics.driveForce"),
		BrakeForce:        config.GetFloat("physics.brakeForce"),
		SteerTorque:       config.GetFloat("physics.steerTorque"),
		SteerSpeedFalloff: config.GetFloat("physics.steerSpeedFalloff"),
		DragCoeff:         config.GetFloat("physics.dragCoeff"),
		RollingResistance: config.GetFloat("physics.rollingResistance"),
		LateralGrip:       config.GetFloat("physics.lateralGrip"),
		VehicleMass:       config.GetFloat("physics.vehicleMass"),
		VehicleRadius:     config.GetFloat("physics.vehicleRadius"),
	}
}

// BodyState is the read-only per-body output of a step.
type BodyState struct {
	ID       core.VehicleID
	Position mgl64.Vec2
	Heading  float64
	LinVel   mgl64.Vec2
	AngVel   float64
}

type body struct {
	id       core.VehicleID
	position mgl64.Vec2
	heading  float64
	linVel   mgl64.Vec2
	angVel   float64
	intent   core.ControlIntent

	// touching tracks overlap pairs so damage-relevant contacts fire on
	// the rising edge only; sustained overlap is reported as a ground
	// (surface) contact.
	touching map[contactKey]bool

	invalidLogged bool
}

type contactKey struct {
	other   core.VehicleID
	barrier int // -1 for vehicle-vehicle
	segment int
}

// System simulates all vehicle bodies against the loaded track's barriers.
// It is not safe for concurrent use; the engine goroutine owns it.
type System struct {
	tuning   Tuning
	dt       float64
	moment   float64
	barriers []geo.Polyline

	bodies map[core.VehicleID]*body
	order  []core.VehicleID

	removals *queue.Queue[core.VehicleID]

	accumulator float64
	contacts    []core.CollisionContact

	log *slog.Logger
}

// NewSystem creates a simulation over the given barrier geometry.
func NewSystem(tuning Tuning, barriers []geo.Polyline, log *slog.Logger) *System {
	if tuning.TickRate <= 0 {
		tuning.TickRate = 60
	}
	if log == nil {
		log = slog.Default()
	}
	return &System{
		tuning:   tuning,
		dt:       1.0 / float64(tuning.TickRate),
		moment:   0.5 * tuning.VehicleMass * tuning.VehicleRadius * tuning.VehicleRadius,
		barriers: barriers,
		bodies:   make(map[core.VehicleID]*body),
		removals: queue.New[core.VehicleID](),
		log:      log,
	}
}

// StepDuration returns the fixed timestep as a duration.
func (s *System) StepDuration() time.Duration {
	return time.Duration(float64(time.Second) * s.dt)
}

// CreateVehicleBody adds a body for a vehicle at the given pose. Exactly one
// body may exist per vehicle.
func (s *System) CreateVehicleBody(id core.VehicleID, t core.Transform) error {
	if _, ok := s.bodies[id]; ok {
		return fmt.Errorf("vehicle %d already has a body", id)
	}
	s.bodies[id] = &body{
		id:       id,
		position: t.Position,
		heading:  t.Heading,
		touching: make(map[contactKey]bool),
	}
	s.order = append(s.order, id)
	return nil
}

// RemoveVehicle schedules a body for removal at the next step boundary.
// Removing mid-step would leave dangling references during integration.
func (s *System) RemoveVehicle(id core.VehicleID) {
	s.removals.Push(id)
}

// ResetVehicle snaps a body to the given pose and zeros its velocities.
// The move is atomic, never interpolated.
func (s *System) ResetVehicle(id core.VehicleID, t core.Transform) error {
	b, ok := s.bodies[id]
	if !ok {
		return fmt.Errorf("no body for vehicle %d", id)
	}
	b.position = t.Position
	b.heading = t.Heading
	b.linVel = mgl64.Vec2{}
	b.angVel = 0
	b.intent = core.ControlIntent{}
	clear(b.touching)
	return nil
}

// ApplyControl stores a vehicle's control intent for subsequent steps.
// Components are clamped into range, never rejected. Unknown vehicles are
// ignored; the message may simply have outrun the join.
func (s *System) ApplyControl(id core.VehicleID, intent core.ControlIntent) {
	if b, ok := s.bodies[id]; ok {
		b.intent = intent.Clamped()
	}
}

// ClearControls zeros every body's intent. Non-racing phases call this so
// physics keeps stepping while input is not honored.
func (s *System) ClearControls() {
	for _, b := range s.bodies {
		b.intent = core.ControlIntent{}
	}
}

// Accumulate feeds frameDelta into the accumulator and consumes as many
// whole fixed steps as it covers, carrying the remainder forward. An
// oversized delta is clamped first so a stalled host cannot trigger an
// unbounded catch-up burst. Returns the step count without stepping; the
// caller runs Step once per returned step so it can interleave sampling.
func (s *System) Accumulate(frameDelta time.Duration) int {
	if frameDelta < 0 {
		frameDelta = 0
	}
	if s.tuning.MaxFrameDelta > 0 && frameDelta > s.tuning.MaxFrameDelta {
		frameDelta = s.tuning.MaxFrameDelta
	}

	s.accumulator += frameDelta.Seconds()
	steps := 0
	for s.accumulator >= s.dt {
		s.accumulator -= s.dt
		steps++
	}
	return steps
}

// Advance is Accumulate plus the steps it covers, performed back to back.
func (s *System) Advance(frameDelta time.Duration) int {
	s.drainRemovals()
	steps := s.Accumulate(frameDelta)
	for i := 0; i < steps; i++ {
		s.step()
	}
	return steps
}

// Step performs exactly one fixed step, bypassing the accumulator. Tests
// and the countdown reset path use this.
func (s *System) Step() {
	s.drainRemovals()
	s.step()
}

// DrainContacts returns the contacts produced since the last drain and
// clears the buffer. Each contact is consumed exactly once.
func (s *System) DrainContacts() []core.CollisionContact {
	out := s.contacts
	s.contacts = nil
	return out
}

// State returns the current state of one body.
func (s *System) State(id core.VehicleID) (BodyState, bool) {
	b, ok := s.bodies[id]
	if !ok {
		return BodyState{}, false
	}
	return b.state(), true
}

// States returns every body's state in creation order.
func (s *System) States() []BodyState {
	out := make([]BodyState, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.bodies[id].state())
	}
	return out
}

// BodyCount returns the number of live bodies.
func (s *System) BodyCount() int {
	return len(s.bodies)
}

func (b *body) state() BodyState {
	return BodyState{
		ID:       b.id,
		Position: b.position,
		Heading:  b.heading,
		LinVel:   b.linVel,
		AngVel:   b.angVel,
	}
}

func (s *System) drainRemovals() {
	for !s.removals.Empty() {
		id := s.removals.Pop()
		if _, ok := s.bodies[id]; !ok {
			continue
		}
		delete(s.bodies, id)
		for i, oid := range s.order {
			if oid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// step integrates every body by one fixed dt, then resolves collisions.
// Bodies iterate in creation order so identical input sequences yield
// identical results.
func (s *System) step() {
	for _, id := range s.order {
		s.integrate(s.bodies[id])
	}
	s.resolveVehicleCollisions()
	s.resolveBarrierCollisions()
}

func (s *System) integrate(b *body) {
	dt := s.dt
	speed := b.linVel.Len()
	forward := mgl64.Vec2{math.Cos(b.heading), math.Sin(b.heading)}

	force := forward.Mul(b.intent.Throttle * s.tuning.DriveForce)

	if speed > speedEpsilon {
		dir := b.linVel.Mul(1 / speed)

		// Brake, quadratic drag, and rolling resistance all oppose
		// current motion. The combined force is capped so it can stop
		// the body within one step but never reverse it.
		opposing := b.intent.Brake*s.tuning.BrakeForce +
			s.tuning.DragCoeff*speed*speed +
			s.tuning.RollingResistance
		maxStop := s.tuning.VehicleMass * speed / dt
		if opposing > maxStop {
			opposing = maxStop
		}
		force = force.Sub(dir.Mul(opposing))
	}

	// Steering torque falls off with speed: sharp at walking pace,
	// stable at top speed.
	torque := b.intent.Steering * s.tuning.SteerTorque / (1 + s.tuning.SteerSpeedFalloff*speed)

	newAngVel := b.angVel + torque/s.moment*dt
	newAngVel /= 1 + angularDamping*dt

	newVel := b.linVel.Add(force.Mul(dt / s.tuning.VehicleMass))

	// Lateral grip bleeds off sideways velocity so the body tracks its
	// heading instead of drifting freely.
	fwdSpeed := newVel.Dot(forward)
	lateral := newVel.Sub(forward.Mul(fwdSpeed))
	gripFactor := util.Clamp01(s.tuning.LateralGrip * dt)
	newVel = newVel.Sub(lateral.Mul(gripFactor))

	newHeading := util.WrapAngle(b.heading + newAngVel*dt)
	newPos := b.position.Add(newVel.Mul(dt))

	if !finiteVec(newPos) || !finiteVec(newVel) || !util.Finite(newHeading) || !util.Finite(newAngVel) {
		if !b.invalidLogged {
			s.log.Warn("Discarding non-finite physics result, keeping last valid state",
				"vehicle", b.id)
			b.invalidLogged = true
		}
		return
	}

	b.position = newPos
	b.heading = newHeading
	b.linVel = newVel
	b.angVel = newAngVel
}

func (s *System) resolveVehicleCollisions() {
	r := s.tuning.VehicleRadius
	minDist := 2 * r

	for i := 0; i < len(s.order); i++ {
		for j := i + 1; j < len(s.order); j++ {
			a := s.bodies[s.order[i]]
			b := s.bodies[s.order[j]]

			delta := b.position.Sub(a.position)
			dist := delta.Len()
			key := contactKey{other: b.id, barrier: -1}

			if dist >= minDist || dist == 0 {
				if dist >= minDist+contactSkin || dist == 0 {
					delete(a.touching, key)
				}
				continue
			}

			normal := delta.Mul(1 / dist) // a -> b
			closing := a.linVel.Sub(b.linVel).Dot(normal)

			// Symmetric positional correction.
			push := normal.Mul((minDist - dist) / 2)
			a.position = a.position.Sub(push)
			b.position = b.position.Add(push)

			if closing > 0 {
				// Equal-mass impulse along the contact normal.
				impulse := normal.Mul((1 + vehicleRestitution) * closing / 2)
				a.linVel = a.linVel.Sub(impulse)
				b.linVel = b.linVel.Add(impulse)
			}

			category := core.ContactVehicleVehicle
			if a.touching[key] {
				category = core.ContactGround
			}
			a.touching[key] = true

			s.contacts = append(s.contacts, core.CollisionContact{
				BodyA:        a.id,
				BodyB:        b.id,
				ClosingSpeed: math.Max(0, closing),
				Category:     category,
			})
		}
	}
}

func (s *System) resolveBarrierCollisions() {
	r := s.tuning.VehicleRadius

	for _, id := range s.order {
		b := s.bodies[id]
		for bi, barrier := range s.barriers {
			for si := 0; si < barrier.Segments(); si++ {
				p0, p1 := barrier.Segment(si)
				closest := closestOnSegment(b.position, p0, p1)
				delta := b.position.Sub(closest)
				dist := delta.Len()
				key := contactKey{barrier: bi, segment: si}

				if dist >= r || dist == 0 {
					if dist >= r+contactSkin || dist == 0 {
						delete(b.touching, key)
					}
					continue
				}

				normal := delta.Mul(1 / dist) // wall -> body
				closing := -b.linVel.Dot(normal)

				b.position = b.position.Add(normal.Mul(r - dist))

				if closing > 0 {
					// Remove the into-wall velocity component.
					b.linVel = b.linVel.Add(normal.Mul((1 + barrierRestitution) * closing))
				}

				category := core.ContactVehicleBarrier
				if b.touching[key] {
					category = core.ContactGround
				}
				b.touching[key] = true

				s.contacts = append(s.contacts, core.CollisionContact{
					BodyA:        b.id,
					ClosingSpeed: math.Max(0, closing),
					Category:     category,
				})
			}
		}
	}
}

func closestOnSegment(p, a, b mgl64.Vec2) mgl64.Vec2 {
	ab := b.Sub(a)
	lenSq := ab.Dot(ab)
	if lenSq == 0 {
		return a
	}
	t := util.Clamp01(p.Sub(a).Dot(ab) / lenSq)
	return a.Add(ab.Mul(t))
}

func finiteVec(v mgl64.Vec2) bool {
	return util.Finite(v.X()) && util.Finite(v.Y())
}
