package track

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/kartparty/racehost/internal/geo"
)

// Definition is the on-disk JSON shape of a track file.
type Definition struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	CRS         string           `json:"crs,omitempty"` // "" or "local", or "wgs84"
	Checkpoints []CheckpointDef  `json:"checkpoints"`
	Barriers    [][][]float64    `json:"barriers,omitempty"`
	Spawns      []SpawnDef       `json:"spawns"`
}

// CheckpointDef is one checkpoint volume in a track file.
type CheckpointDef struct {
	Ring        [][]float64 `json:"ring"`
	StartFinish bool        `json:"startFinish,omitempty"`
}

// SpawnDef is one spawn slot in a track file.
type SpawnDef struct {
	Position []float64 `json:"position"`
	Heading  float64   `json:"heading"`
}

// DecodeDefinition unmarshals raw track-file JSON without validating it.
func DecodeDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse track definition: %w", err)
	}
	return &def, nil
}

// Parse builds and validates a Track from raw track-file JSON.
func Parse(data []byte) (*Track, error) {
	def, err := DecodeDefinition(data)
	if err != nil {
		return nil, err
	}
	return FromDefinition(def)
}

// FromDefinition builds and validates a Track from a parsed definition.
func FromDefinition(def *Definition) (*Track, error) {
	if def.ID == "" {
		return nil, fmt.Errorf("track definition missing id")
	}

	project := def.CRS == "wgs84"

	t := &Track{
		ID:   def.ID,
		Name: def.Name,
	}

	for i, cd := range def.Checkpoints {
		ring := cd.Ring
		if project {
			ring = projectRing(ring)
		}
		poly, err := geo.PolygonFromRing(ring)
		if err != nil {
			return nil, fmt.Errorf("track %q checkpoint %d: %w", def.ID, i, err)
		}
		t.Checkpoints = append(t.Checkpoints, Checkpoint{
			Index:       i,
			Volume:      poly,
			StartFinish: cd.StartFinish,
		})
		if cd.StartFinish {
			t.StartFinishIndex = i
		}
	}

	for i, pairs := range def.Barriers {
		if project {
			pairs = projectRing(pairs)
		}
		pl, err := geo.PolylineFromPairs(pairs)
		if err != nil {
			return nil, fmt.Errorf("track %q barrier %d: %w", def.ID, i, err)
		}
		t.Barriers = append(t.Barriers, pl)
	}

	for i, sd := range def.Spawns {
		if len(sd.Position) < 2 {
			return nil, fmt.Errorf("track %q spawn %d: position needs x and y", def.ID, i)
		}
		pos := mgl64.Vec2{sd.Position[0], sd.Position[1]}
		if project {
			pos = geo.PlanarFromLatLon(sd.Position[0], sd.Position[1])
		}
		t.Spawns = append(t.Spawns, Spawn{Position: pos, Heading: sd.Heading})
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

// LoadFile reads and parses a single track file.
func LoadFile(path string) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read track file: %w", err)
	}
	return Parse(data)
}

// LoadDir parses every *.json file in dir, keyed by track ID.
func LoadDir(dir string) (map[string]*Track, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read tracks dir: %w", err)
	}

	tracks := make(map[string]*Track)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		t, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("file %s: %w", e.Name(), err)
		}
		tracks[t.ID] = t
	}
	return tracks, nil
}

func projectRing(pairs [][]float64) [][]float64 {
	out := make([][]float64, len(pairs))
	for i, p := range pairs {
		if len(p) < 2 {
			out[i] = p
			continue
		}
		v := geo.PlanarFromLatLon(p[0], p[1])
		out[i] = []float64{v.X(), v.Y()}
	}
	return out
}
