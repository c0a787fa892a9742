// Package render defines the read-only per-tick snapshot the engine hands
// to the rendering side. The engine publishes frames on a non-blocking feed;
// a slow consumer drops frames, never stalls the update tick.
package render

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/kartparty/racehost/internal/channel"
	"github.com/kartparty/racehost/pkg/core"
)

// VehicleView is one vehicle's renderable state.
type VehicleView struct {
	ID        core.VehicleID
	Transform core.Transform
	Velocity  mgl64.Vec2
	Health    float64
	Alive     bool
	Lap       int
	Rank      int
}

// Frame is a full scene snapshot for one render tick.
type Frame struct {
	Phase    string
	Time     time.Time
	Vehicles []VehicleView
}

// Feed is the engine-to-renderer channel.
type Feed = channel.Sender[Frame]

// NewFeed creates a frame feed. size bounds how many frames a slow consumer
// can fall behind before drops start.
func NewFeed(size int) channel.Channel[Frame] {
	return channel.New[Frame](size)
}
