// Package catalog persists track definitions so hosts can list and pick
// tracks without rescanning the tracks directory. Definitions are stored as
// JSON alongside a WKB copy of the start/finish volume for quick map
// previews. Backed by Postgres when one is configured, SQLite otherwise.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kartparty/racehost/internal/database"
	"github.com/kartparty/racehost/internal/geo"
	"github.com/kartparty/racehost/internal/track"
)

// ErrNotFound is returned when a track ID is not in the catalog.
var ErrNotFound = errors.New("track not found in catalog")

// TrackRecord is the persisted form of a track definition.
type TrackRecord struct {
	ID              string         `json:"id" gorm:"primarykey;size:64"`
	Name            string         `json:"name" gorm:"size:127"`
	CheckpointCount int            `json:"checkpointCount"`
	SpawnCount      int            `json:"spawnCount"`
	Definition      datatypes.JSON `json:"definition"`
	StartFinishWKB  []byte         `json:"-"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Catalog reads and writes track records through a database manager.
type Catalog struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New migrates the track table and returns a catalog over the manager's
// active connection.
func New(m *database.Manager, log zerolog.Logger) (*Catalog, error) {
	if m == nil || m.DB == nil {
		return nil, errors.New("catalog requires a connected database manager")
	}
	if err := m.DB.AutoMigrate(&TrackRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate track catalog: %w", err)
	}
	return &Catalog{db: m.DB, logger: log}, nil
}

// Put upserts a track definition. The definition is re-validated before it
// is written so the catalog never serves a track the loader would reject.
func (c *Catalog) Put(def *track.Definition) error {
	t, err := track.FromDefinition(def)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to encode track definition: %w", err)
	}

	start := t.Checkpoints[t.StartFinishIndex].Volume
	rec := TrackRecord{
		ID:              t.ID,
		Name:            t.Name,
		CheckpointCount: t.CheckpointCount(),
		SpawnCount:      len(t.Spawns),
		Definition:      datatypes.JSON(raw),
		StartFinishWKB:  geo.MarshalWKB(start.AsGeometry()),
	}

	if err := c.db.Save(&rec).Error; err != nil {
		return fmt.Errorf("failed to save track %s: %w", t.ID, err)
	}
	c.logger.Debug().Str("track", t.ID).Msg("Saved track to catalog")
	return nil
}

// Get loads and rebuilds a track by ID.
func (c *Catalog) Get(id string) (*track.Track, error) {
	var rec TrackRecord
	err := c.db.First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load track %s: %w", id, err)
	}
	return track.Parse(rec.Definition)
}

// List returns all catalog records ordered by name.
func (c *Catalog) List() ([]TrackRecord, error) {
	var recs []TrackRecord
	if err := c.db.Order("name").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	return recs, nil
}

// SeedFromDir loads every track file in dir into the catalog. Files that
// fail to parse or validate are logged and skipped so one bad file cannot
// block the host from starting.
func (c *Catalog) SeedFromDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read tracks dir: %w", err)
	}

	seeded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			c.logger.Warn().Err(err).Str("file", e.Name()).Msg("Skipping unreadable track file")
			continue
		}
		def, err := track.DecodeDefinition(data)
		if err != nil {
			c.logger.Warn().Err(err).Str("file", e.Name()).Msg("Skipping malformed track file")
			continue
		}
		if err := c.Put(def); err != nil {
			c.logger.Warn().Err(err).Str("file", e.Name()).Msg("Skipping invalid track file")
			continue
		}
		seeded++
	}
	return seeded, nil
}
