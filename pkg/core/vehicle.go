// pkg/core/vehicle.go
package core

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// VehicleID identifies a connected controller's vehicle for the lifetime of
// its session. IDs are assigned by the relay on join and never reused within
// a session.
type VehicleID uint16

// Transform is a planar pose: position in meters and heading in radians
// (0 = +X, counter-clockwise positive).
type Transform struct {
	Position mgl64.Vec2
	Heading  float64
}

// ControlIntent is the latest control sample received for a vehicle.
// Steering is in [-1, 1], throttle and brake in [0, 1].
type ControlIntent struct {
	Steering float64
	Throttle float64
	Brake    float64
}

// Clamped returns the intent with every component forced into its valid
// range. Out-of-range input is clamped, never rejected.
func (c ControlIntent) Clamped() ControlIntent {
	return ControlIntent{
		Steering: clamp(c.Steering, -1, 1),
		Throttle: clamp(c.Throttle, 0, 1),
		Brake:    clamp(c.Brake, 0, 1),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RaceProgress tracks a vehicle's position in the checkpoint sequence.
type RaceProgress struct {
	Lap            int
	NextCheckpoint int
	LapStamps      []time.Time
	Finished       bool
	Rank           int
}

// Vehicle is the fixed-shape record for one connected controller. It is
// owned by the engine goroutine; other goroutines only ever see copies.
type Vehicle struct {
	ID       VehicleID
	Name     string
	Color    string
	JoinTime time.Time

	Transform Transform
	LinVel    mgl64.Vec2
	AngVel    float64

	Intent ControlIntent

	Health float64
	Alive  bool

	Progress RaceProgress
}
