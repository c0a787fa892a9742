// Package track loads and validates the static geometry a race runs on:
// ordered checkpoint volumes (one flagged start/finish), barrier polylines,
// and spawn points. A track is immutable once loaded; a malformed track is a
// load-time configuration error and never surfaces at runtime.
package track

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/kartparty/racehost/internal/geo"
	"github.com/kartparty/racehost/pkg/core"
)

// Validation errors surfaced at load time.
var (
	ErrNoCheckpoints = errors.New("track has no checkpoints")
	ErrNoStartFinish = errors.New("track has no start/finish checkpoint")
	ErrManyStarts    = errors.New("track has more than one start/finish checkpoint")
	ErrNoSpawns      = errors.New("track has no spawn points")
)

// Checkpoint is one ordered trigger volume.
type Checkpoint struct {
	Index       int
	Volume      geom.Polygon
	StartFinish bool
}

// Contains reports whether a position lies inside the checkpoint volume.
func (c *Checkpoint) Contains(pos mgl64.Vec2) bool {
	return geo.Contains(c.Volume, pos.X(), pos.Y())
}

// Spawn is one starting slot.
type Spawn struct {
	Position mgl64.Vec2
	Heading  float64
}

// Track is the static race course.
type Track struct {
	ID          string
	Name        string
	Checkpoints []Checkpoint
	Barriers    []geo.Polyline
	Spawns      []Spawn

	// StartFinishIndex is the index into Checkpoints of the start/finish
	// volume.
	StartFinishIndex int
}

// Validate checks the structural invariants. The loader calls this; it is
// exported so the catalog can re-check records coming out of the database.
func (t *Track) Validate() error {
	if len(t.Checkpoints) == 0 {
		return fmt.Errorf("track %q: %w", t.ID, ErrNoCheckpoints)
	}

	starts := 0
	for _, cp := range t.Checkpoints {
		if cp.StartFinish {
			starts++
		}
	}
	switch {
	case starts == 0:
		return fmt.Errorf("track %q: %w", t.ID, ErrNoStartFinish)
	case starts > 1:
		return fmt.Errorf("track %q: %w", t.ID, ErrManyStarts)
	}

	if len(t.Spawns) == 0 {
		return fmt.Errorf("track %q: %w", t.ID, ErrNoSpawns)
	}

	return nil
}

// SpawnFor returns the spawn slot for the n-th vehicle, cycling when there
// are more vehicles than slots.
func (t *Track) SpawnFor(n int) Spawn {
	return t.Spawns[n%len(t.Spawns)]
}

// SpawnTransform returns the spawn slot as a core transform.
func (t *Track) SpawnTransform(n int) core.Transform {
	s := t.SpawnFor(n)
	return core.Transform{Position: s.Position, Heading: s.Heading}
}

// CheckpointCount returns the number of checkpoint volumes.
func (t *Track) CheckpointCount() int {
	return len(t.Checkpoints)
}
