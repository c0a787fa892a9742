// Package geo parses and queries the planar geometry of a track: checkpoint
// polygons, barrier polylines, and spawn points. Coordinates are local track
// meters. Geometry is stored in the catalog as WKB, a binary representation
// that round-trips through SQLite without spatial awareness.
package geo

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// ErrInvalidCoordinates is returned when coordinates cannot be parsed.
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Point builds a DimXY point at (x, y).
func Point(x, y float64) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: x, Y: y},
		Type: geom.DimXY,
	})
}

// Contains reports whether the point (x, y) lies inside or on the boundary
// of the polygon. Checkpoint containment tests go through here.
func Contains(poly geom.Polygon, x, y float64) bool {
	return geom.Intersects(poly.AsGeometry(), Point(x, y).AsGeometry())
}

// PolygonFromRing builds a polygon from an outer ring given as [[x,y],...].
// The ring is closed automatically if the last vertex differs from the first.
func PolygonFromRing(ring [][]float64) (geom.Polygon, error) {
	if len(ring) < 3 {
		return geom.Polygon{}, fmt.Errorf("polygon ring must have at least 3 vertices, got %d", len(ring))
	}

	closed := ring
	first := ring[0]
	last := ring[len(ring)-1]
	if len(first) < 2 || len(last) < 2 {
		return geom.Polygon{}, ErrInvalidCoordinates
	}
	if first[0] != last[0] || first[1] != last[1] {
		closed = append(append([][]float64{}, ring...), first)
	}

	flat := make([]float64, 0, len(closed)*2)
	for i, v := range closed {
		if len(v) < 2 {
			return geom.Polygon{}, fmt.Errorf("ring vertex %d has insufficient values", i)
		}
		flat = append(flat, v[0], v[1])
	}

	seq := geom.NewSequence(flat, geom.DimXY)
	outer := geom.NewLineString(seq)
	poly := geom.NewPolygon([]geom.LineString{outer})
	if err := poly.Validate(); err != nil {
		return geom.Polygon{}, fmt.Errorf("invalid polygon ring: %w", err)
	}
	return poly, nil
}

// MarshalWKB encodes a geometry for catalog storage.
func MarshalWKB(g geom.Geometry) []byte {
	return g.AsBinary()
}

// UnmarshalWKB decodes a geometry from catalog storage.
func UnmarshalWKB(data []byte) (geom.Geometry, error) {
	g, err := geom.UnmarshalWKB(data)
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("failed to decode WKB geometry: %w", err)
	}
	return g, nil
}

// PlanarFromLatLon projects a WGS84 longitude/latitude pair onto the planar
// web-mercator grid. Track files authored from GPS traces declare
// "crs": "wgs84" and are projected on load; everything downstream works in
// planar meters only.
func PlanarFromLatLon(longitude, latitude float64) mgl64.Vec2 {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(longitude, latitude, 0)
	return mgl64.Vec2{x, y}
}
