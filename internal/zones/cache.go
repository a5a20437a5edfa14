package zones

import (
	"math"
	"sync"
)

// regionCache is an optional read-through snapshot of every region polygon,
// so FindZone can answer without a database round trip. It is rebuilt after
// a successful reload and invalidated before the destructive phase begins.
//
// Containment here is a planar even-odd ray cast over (lon, lat) pairs, not
// the geodesic covers the database computes. For city-scale zones the
// curvature error is far below coordinate precision, which is the only
// regime this cache is meant for; the PostGIS query path stays the
// authority whenever the cache is cold.
type regionCache struct {
	mu     sync.RWMutex
	shapes []regionShape
	loaded bool
}

type regionShape struct {
	zoneID uint
	rings  [][][2]float64
	bbox   [4]float64 // minLon, minLat, maxLon, maxLat
}

func (c *regionCache) replace(shapes []regionShape) {
	c.mu.Lock()
	c.shapes = shapes
	c.loaded = true
	c.mu.Unlock()
}

func (c *regionCache) invalidate() {
	c.mu.Lock()
	c.shapes = nil
	c.loaded = false
	c.mu.Unlock()
}

// find reports the first region (in store id order) covering the point.
// ok is false when the cache is cold and the caller must fall back to the
// database.
func (c *regionCache) find(lat, lon float64) (zoneID uint, found, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return 0, false, false
	}
	for _, s := range c.shapes {
		if !inBBox(lon, lat, s.bbox) {
			continue
		}
		if covers(lon, lat, s.rings) {
			return s.zoneID, true, true
		}
	}
	return 0, false, true
}

func newRegionShape(zoneID uint, rings [][][2]float64) regionShape {
	s := regionShape{
		zoneID: zoneID,
		rings:  rings,
		bbox:   [4]float64{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)},
	}
	for _, ring := range rings {
		for _, p := range ring {
			s.bbox[0] = math.Min(s.bbox[0], p[0])
			s.bbox[1] = math.Min(s.bbox[1], p[1])
			s.bbox[2] = math.Max(s.bbox[2], p[0])
			s.bbox[3] = math.Max(s.bbox[3], p[1])
		}
	}
	return s
}

func inBBox(lon, lat float64, b [4]float64) bool {
	return lon >= b[0] && lon <= b[2] && lat >= b[1] && lat <= b[3]
}

// covers reports boundary-inclusive containment of the point in a polygon's
// rings (first outer, rest holes). A point exactly on any ring segment
// counts as covered; the edge of a hole still belongs to the polygon.
func covers(lon, lat float64, rings [][][2]float64) bool {
	if len(rings) == 0 {
		return false
	}
	for _, ring := range rings {
		if onRing(lon, lat, ring) {
			return true
		}
	}
	if !inRing(lon, lat, rings[0]) {
		return false
	}
	for _, hole := range rings[1:] {
		if inRing(lon, lat, hole) {
			return false
		}
	}
	return true
}

// inRing is an even-odd ray cast; boundary behavior is unspecified, which is
// why covers checks onRing first.
func inRing(x, y float64, ring [][2]float64) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if ((yi > y) != (yj > y)) && x < (xj-xi)*(y-yi)/(yj-yi+1e-12)+xi {
			inside = !inside
		}
	}
	return inside
}

func onRing(x, y float64, ring [][2]float64) bool {
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if onSegment(x, y, ring[j][0], ring[j][1], ring[i][0], ring[i][1]) {
			return true
		}
	}
	return false
}

func onSegment(x, y, x1, y1, x2, y2 float64) bool {
	const eps = 1e-9
	cross := (x2-x1)*(y-y1) - (y2-y1)*(x-x1)
	if math.Abs(cross) > eps {
		return false
	}
	return x >= math.Min(x1, x2)-eps && x <= math.Max(x1, x2)+eps &&
		y >= math.Min(y1, y2)-eps && y <= math.Max(y1, y2)+eps
}
