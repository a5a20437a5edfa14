package zones

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// requiredProperties are the feature properties every ingestible feature must
// carry. Their absence makes the whole file malformed.
var requiredProperties = []string{
	"CPD_Zone",
	"CAPT", "CAPT_EMAIL", "CAPT_PHONE",
	"LT", "LT_EMAIL", "LT_PHONE",
}

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   Geometry       `json:"geometry"`
}

// Geometry keeps coordinates raw; Polygon and MultiPolygon nest differently,
// so they are decoded on demand according to Type.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// StringProperty returns the named property, or an error when it is missing
// or not a string. Source files carry extra numeric properties (shape areas
// etc.) which are ignored.
func (f *Feature) StringProperty(key string) (string, error) {
	v, ok := f.Properties[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMalformedFeature, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is not a string", ErrMalformedFeature, key)
	}
	return s, nil
}

// PolygonRings decodes a Polygon geometry into its rings of (lon, lat)
// positions; the first ring is the outer boundary, the rest are holes.
// Extra per-position elements (altitude) are discarded.
func (g *Geometry) PolygonRings() ([][][2]float64, error) {
	var rings [][][2]float64
	if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
		return nil, fmt.Errorf("decode polygon coordinates: %w", err)
	}
	return rings, nil
}

// MultiPolygonParts decodes a MultiPolygon geometry into its constituent
// polygons, each a ring list as returned by PolygonRings.
func (g *Geometry) MultiPolygonParts() ([][][][2]float64, error) {
	var parts [][][][2]float64
	if err := json.Unmarshal(g.Coordinates, &parts); err != nil {
		return nil, fmt.Errorf("decode multipolygon coordinates: %w", err)
	}
	return parts, nil
}

// ParseFeatureCollection decodes a GeoJSON FeatureCollection document.
func ParseFeatureCollection(data []byte) (*FeatureCollection, error) {
	var fc FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("expected a FeatureCollection, got %q", fc.Type)
	}
	return &fc, nil
}

// LoadFeatureCollection reads and decodes a GeoJSON file.
func LoadFeatureCollection(path string) (*FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseFeatureCollection(data)
}

// polygonWKT renders one polygon's rings as WKT in (lon lat) order, closing
// any ring whose last position does not repeat its first.
func polygonWKT(rings [][][2]float64) string {
	var b strings.Builder
	b.WriteString("POLYGON(")
	for i, ring := range rings {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		pts := ring
		if len(pts) > 0 && pts[0] != pts[len(pts)-1] {
			pts = append(append([][2]float64(nil), pts...), pts[0])
		}
		for j, p := range pts {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatFloat(p[0], 'f', -1, 64))
			b.WriteByte(' ')
			b.WriteString(strconv.FormatFloat(p[1], 'f', -1, 64))
		}
		b.WriteByte(')')
	}
	b.WriteByte(')')
	return b.String()
}
