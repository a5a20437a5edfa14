package zones

import "context"

// Resolver answers "which zone contains this point, and who covers it". It
// is read-only; the ingestion pipeline is the only writer.
type Resolver struct {
	store *Store
	cache *regionCache // nil when caching is disabled
}

// NewResolver builds a resolver over the store. With withCache set, region
// polygons are served from an in-memory snapshot once WarmCache has run;
// until then (and whenever the cache is invalidated) lookups go to PostGIS.
func NewResolver(store *Store, withCache bool) *Resolver {
	r := &Resolver{store: store}
	if withCache {
		r.cache = &regionCache{}
	}
	return r
}

// WarmCache loads every region polygon into memory. Call after Init and
// after a successful Reload. No-op when caching is disabled.
func (r *Resolver) WarmCache(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	geoms, err := r.store.ListRegions(ctx)
	if err != nil {
		return err
	}
	shapes := make([]regionShape, 0, len(geoms))
	for _, g := range geoms {
		shapes = append(shapes, newRegionShape(g.ZoneID, g.Rings))
	}
	r.cache.replace(shapes)
	return nil
}

// InvalidateCache drops the snapshot; implements CacheInvalidator for the
// ingestion pipeline.
func (r *Resolver) InvalidateCache() {
	if r.cache != nil {
		r.cache.invalidate()
	}
}

// FindZone returns the id of the zone whose region covers (lat, lon),
// boundary included. Absence is (0, false, nil), never an error.
func (r *Resolver) FindZone(ctx context.Context, lat, lon float64) (uint, bool, error) {
	if r.cache != nil {
		if zoneID, found, ok := r.cache.find(lat, lon); ok {
			return zoneID, found, nil
		}
	}
	return r.store.FindZoneByPoint(ctx, lat, lon)
}

// FindOfficers returns the officers assigned to the zone; empty when the
// zone has no assignments or does not exist.
func (r *Resolver) FindOfficers(ctx context.Context, zoneID uint) ([]Officer, error) {
	return r.store.FindOfficersByZone(ctx, zoneID)
}

// GetZone fetches the zone row itself, for presentation.
func (r *Resolver) GetZone(ctx context.Context, id uint) (*Zone, error) {
	return r.store.GetZone(ctx, id)
}
