// Package cache buffers asynchronously arriving control input so the fixed
// update tick always observes a consistent, fully-written intent per vehicle.
// Network messages are written here by the intake goroutine; physics never
// reads them directly.
package cache

import (
	"sync"

	"github.com/kartparty/racehost/pkg/core"
)

// IntentBuffer is a last-write-wins store of per-vehicle control intents.
// Duplicate and out-of-order messages simply overwrite; a missing message
// leaves the previous intent in place until the vehicle leaves.
type IntentBuffer struct {
	m       sync.Mutex
	intents map[core.VehicleID]core.ControlIntent
}

func NewIntentBuffer() *IntentBuffer {
	return &IntentBuffer{
		intents: make(map[core.VehicleID]core.ControlIntent),
	}
}

// Set stores a vehicle's latest intent, clamping components into range.
func (b *IntentBuffer) Set(id core.VehicleID, intent core.ControlIntent) {
	b.m.Lock()
	defer b.m.Unlock()
	b.intents[id] = intent.Clamped()
}

// Get returns the latest intent for a vehicle.
func (b *IntentBuffer) Get(id core.VehicleID) (core.ControlIntent, bool) {
	b.m.Lock()
	defer b.m.Unlock()
	i, ok := b.intents[id]
	return i, ok
}

// Snapshot copies every stored intent. The update tick calls this once per
// tick and applies the copy, so message arrival timing never races the
// integration.
func (b *IntentBuffer) Snapshot() map[core.VehicleID]core.ControlIntent {
	b.m.Lock()
	defer b.m.Unlock()
	out := make(map[core.VehicleID]core.ControlIntent, len(b.intents))
	for id, i := range b.intents {
		out[id] = i
	}
	return out
}

// Remove clears a vehicle's intent when it leaves.
func (b *IntentBuffer) Remove(id core.VehicleID) {
	b.m.Lock()
	defer b.m.Unlock()
	delete(b.intents, id)
}

// Reset drops every stored intent.
func (b *IntentBuffer) Reset() {
	b.m.Lock()
	defer b.m.Unlock()
	b.intents = make(map[core.VehicleID]core.ControlIntent)
}

// Len returns the number of vehicles with a stored intent.
func (b *IntentBuffer) Len() int {
	b.m.Lock()
	defer b.m.Unlock()
	return len(b.intents)
}
