// Package session holds the current room and race selection shared between
// the intake goroutine and the engine.
package session

import (
	"sync"
	"time"

	"github.com/kartparty/racehost/internal/track"
	"github.com/kartparty/racehost/pkg/core"
)

// Context holds the current room, track, and race configuration.
type Context struct {
	mu         sync.RWMutex
	roomName   string
	startedAt  time.Time
	track      *track.Track
	raceConfig core.RaceConfig
}

// NewContext creates a Context with default values.
func NewContext(roomName string) *Context {
	return &Context{
		roomName:  roomName,
		startedAt: time.Now(),
	}
}

// RoomName returns the relay room this host serves.
func (c *Context) RoomName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomName
}

// StartedAt returns when the session opened.
func (c *Context) StartedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startedAt
}

// Track returns the currently selected track, nil before selection.
func (c *Context) Track() *track.Track {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.track
}

// RaceConfig returns the pending race configuration.
func (c *Context) RaceConfig() core.RaceConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.raceConfig
}

// SetRace stores the track and configuration for the next race.
func (c *Context) SetRace(t *track.Track, cfg core.RaceConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.track = t
	c.raceConfig = cfg
}
