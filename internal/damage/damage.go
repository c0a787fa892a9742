// Package damage turns collision contacts into health changes and runs the
// death/respawn lifecycle. Damage is gated strictly on the contact category
// tag: ground and surface contacts are never damage sources.
package damage

import (
	"log/slog"
	"time"

	"github.com/kartparty/racehost/internal/bus"
	"github.com/kartparty/racehost/internal/config"
	"github.com/kartparty/racehost/pkg/core"
)

// Params are the damage-model constants from the host config.
type Params struct {
	Enabled        bool
	MinImpactSpeed float64
	ImpactScale    float64
	MaxHealth      float64
	DefaultArmor   float64
	RespawnDelay   time.Duration
}

// ParamsFromConfig reads the damage section of the host config.
func ParamsFromConfig() Params {
	return Params{
		Enabled:        config.GetBool("damage.enabled"),
		MinImpactSpeed: config.GetFloat("damage.minImpactSpeed"),
		ImpactScale:    config.GetFloat("damage.impactScale"),
		MaxHealth:      config.GetFloat("damage.maxHealth"),
		DefaultArmor:   config.GetFloat("damage.defaultArmor"),
		RespawnDelay:   config.GetDuration("damage.respawnDelay"),
	}
}

// BodyResetter snaps a dead vehicle's body back to a spawn pose.
// *physics.System satisfies this.
type BodyResetter interface {
	ResetVehicle(id core.VehicleID, t core.Transform) error
}

// SpawnFunc picks the respawn pose for a vehicle.
type SpawnFunc func(id core.VehicleID) core.Transform

type vehicleHealth struct {
	health    float64
	armor     float64
	alive     bool
	respawnAt time.Time
}

// System owns per-vehicle health. It is not safe for concurrent use; the
// engine goroutine owns it.
type System struct {
	params Params
	bus    *bus.Bus
	bodies BodyResetter
	spawn  SpawnFunc
	log    *slog.Logger

	vehicles map[core.VehicleID]*vehicleHealth
}

// NewSystem creates a damage system. spawn decides where destroyed vehicles
// come back.
func NewSystem(params Params, b *bus.Bus, bodies BodyResetter, spawn SpawnFunc, log *slog.Logger) *System {
	if params.DefaultArmor <= 0 {
		params.DefaultArmor = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &System{
		params:   params,
		bus:      b,
		bodies:   bodies,
		spawn:    spawn,
		log:      log,
		vehicles: make(map[core.VehicleID]*vehicleHealth),
	}
}

// SetEnabled toggles damage application; the race config decides per race.
func (s *System) SetEnabled(enabled bool) {
	s.params.Enabled = enabled
}

// AddVehicle registers a vehicle at full health. armor <= 0 uses the
// configured default.
func (s *System) AddVehicle(id core.VehicleID, armor float64) {
	if armor <= 0 {
		armor = s.params.DefaultArmor
	}
	s.vehicles[id] = &vehicleHealth{
		health: s.params.MaxHealth,
		armor:  armor,
		alive:  true,
	}
}

// RemoveVehicle forgets a vehicle.
func (s *System) RemoveVehicle(id core.VehicleID) {
	delete(s.vehicles, id)
}

// ResetAll restores every vehicle to full health and cancels pending
// respawns. The countdown phase calls this.
func (s *System) ResetAll() {
	for _, v := range s.vehicles {
		v.health = s.params.MaxHealth
		v.alive = true
		v.respawnAt = time.Time{}
	}
}

// OnCollision applies one contact. Vehicle-vehicle impacts damage both
// bodies from their shared closing speed; barrier impacts damage only the
// vehicle. Ground contacts and sub-threshold impacts are free.
func (s *System) OnCollision(c core.CollisionContact, now time.Time) {
	if !s.params.Enabled {
		return
	}

	switch c.Category {
	case core.ContactVehicleVehicle:
		s.apply(c.BodyA, c.ClosingSpeed, now)
		s.apply(c.BodyB, c.ClosingSpeed, now)
	case core.ContactVehicleBarrier:
		s.apply(c.BodyA, c.ClosingSpeed, now)
	default:
		// Grounding/surface contacts are reported for physics queries
		// only.
	}
}

// Update releases due respawns. Call once per fixed tick.
func (s *System) Update(now time.Time) {
	for id, v := range s.vehicles {
		if v.alive || now.Before(v.respawnAt) {
			continue
		}
		v.alive = true
		v.health = s.params.MaxHealth
		v.respawnAt = time.Time{}

		if s.bodies != nil && s.spawn != nil {
			if err := s.bodies.ResetVehicle(id, s.spawn(id)); err != nil {
				s.log.Error("Failed to reset respawning vehicle body", "vehicle", id, "error", err)
			}
		}

		s.log.Info("Vehicle respawned", "vehicle", id)
		s.bus.Publish(core.EventVehicleRespawned, core.VehicleRespawned{ID: id})
	}
}

// Health returns a vehicle's current health.
func (s *System) Health(id core.VehicleID) (float64, bool) {
	v, ok := s.vehicles[id]
	if !ok {
		return 0, false
	}
	return v.health, true
}

// Alive reports whether a vehicle is currently alive.
func (s *System) Alive(id core.VehicleID) bool {
	v, ok := s.vehicles[id]
	return ok && v.alive
}

func (s *System) apply(id core.VehicleID, closingSpeed float64, now time.Time) {
	v, ok := s.vehicles[id]
	if !ok || !v.alive {
		// A dead vehicle ignores further damage.
		return
	}

	excess := closingSpeed - s.params.MinImpactSpeed
	if excess <= 0 {
		return
	}

	dmg := excess * s.params.ImpactScale / v.armor
	v.health -= dmg
	if v.health > 0 {
		return
	}

	v.health = 0
	v.alive = false
	v.respawnAt = now.Add(s.params.RespawnDelay)
	s.log.Info("Vehicle destroyed", "vehicle", id, "impactSpeed", closingSpeed)
	s.bus.Publish(core.EventVehicleDestroyed, core.VehicleDestroyed{ID: id})
}
