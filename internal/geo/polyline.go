package geo

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Polyline is an ordered vertex list in track meters. Barriers are stored
// this way so physics can walk segments directly.
type Polyline []mgl64.Vec2

// ParsePolyline parses a JSON array of coordinates into a geom.LineString.
// Input format: "[[x1,y1],[x2,y2],...]"
func ParsePolyline(input string) (geom.LineString, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return geom.LineString{}, fmt.Errorf("failed to parse polyline JSON: %w", err)
	}

	if len(coords) < 2 {
		return geom.LineString{}, fmt.Errorf("polyline must have at least 2 points, got %d", len(coords))
	}

	flatCoords := make([]float64, 0, len(coords)*2)
	for i, coord := range coords {
		if len(coord) < 2 {
			return geom.LineString{}, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		flatCoords = append(flatCoords, coord[0], coord[1])
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	ls := geom.NewLineString(seq)

	return ls, nil
}

// PolylineFromPairs converts [[x,y],...] into a Polyline.
func PolylineFromPairs(coords [][]float64) (Polyline, error) {
	if len(coords) < 2 {
		return nil, fmt.Errorf("polyline must have at least 2 points, got %d", len(coords))
	}

	polyline := make(Polyline, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		polyline[i] = mgl64.Vec2{coord[0], coord[1]}
	}

	return polyline, nil
}

// Segments returns the number of line segments in the polyline.
func (p Polyline) Segments() int {
	if len(p) < 2 {
		return 0
	}
	return len(p) - 1
}

// Segment returns the endpoints of segment i.
func (p Polyline) Segment(i int) (a, b mgl64.Vec2) {
	return p[i], p[i+1]
}
