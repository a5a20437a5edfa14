package zones

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// ErrMalformedFeature marks a feature missing one of the required properties.
// It aborts the whole run before any row is touched.
var ErrMalformedFeature = errors.New("feature missing required property")

// ZoneStore is the slice of the store the ingestion pipeline writes through.
type ZoneStore interface {
	ResetAll(ctx context.Context) error
	CreateZone(ctx context.Context, z *Zone) error
	FindOfficerByName(ctx context.Context, name string) (*Officer, error)
	CreateOfficer(ctx context.Context, o *Officer) error
	CreateAssignment(ctx context.Context, a *ZoneAssignment) error
	CreateRegions(ctx context.Context, regions []Region) error
}

// CacheInvalidator is notified before the destructive phase of a reload so
// any in-memory geometry snapshot is dropped rather than serving rows that
// are about to be deleted.
type CacheInvalidator interface {
	InvalidateCache()
}

// Stats reports what one Reload run wrote, and what it skipped.
type Stats struct {
	Zones             int `json:"zones"`
	OfficersCreated   int `json:"officers_created"`
	OfficersReused    int `json:"officers_reused"`
	Regions           int `json:"regions"`
	SkippedGeometries int `json:"skipped_geometries"`
}

// Pipeline ingests a GeoJSON feature collection into the zone tables.
// Concurrent Reload calls are not supported; serialize them externally
// (cmd/reset-data takes a Postgres advisory lock for this).
type Pipeline struct {
	store ZoneStore
	cache CacheInvalidator // optional
}

func NewPipeline(store ZoneStore, cache CacheInvalidator) *Pipeline {
	return &Pipeline{store: store, cache: cache}
}

// Reload wipes all four tables and loads the collection from scratch, one
// feature at a time in input order. Writes commit per statement, zone first,
// so a mid-run failure leaves a prefix of features fully applied and
// internally consistent: never an assignment or region without its zone.
// Cancellation is honored between features only, bounding abandonment to one
// partially ingested feature.
func (p *Pipeline) Reload(ctx context.Context, fc *FeatureCollection) (Stats, error) {
	var stats Stats

	// Validate the whole file up front; a malformed feature aborts the run
	// before anything is deleted.
	for i := range fc.Features {
		if err := validateFeature(&fc.Features[i]); err != nil {
			return stats, fmt.Errorf("feature %d: %w", i, err)
		}
	}

	if p.cache != nil {
		p.cache.InvalidateCache()
	}

	if err := p.store.ResetAll(ctx); err != nil {
		return stats, err
	}

	for i := range fc.Features {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}
		if err := p.ingestFeature(ctx, &fc.Features[i], &stats); err != nil {
			return stats, fmt.Errorf("feature %d: %w", i, err)
		}
	}

	return stats, nil
}

func validateFeature(f *Feature) error {
	for _, key := range requiredProperties {
		if _, err := f.StringProperty(key); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) ingestFeature(ctx context.Context, f *Feature, stats *Stats) error {
	props := make(map[string]string, len(requiredProperties))
	for _, key := range requiredProperties {
		v, err := f.StringProperty(key)
		if err != nil {
			return err
		}
		props[key] = v
	}

	zone := &Zone{Name: props["CPD_Zone"]}
	if err := p.store.CreateZone(ctx, zone); err != nil {
		return fmt.Errorf("create zone %q: %w", zone.Name, err)
	}
	stats.Zones++

	captain, err := p.ensureOfficer(ctx, stats,
		props["CAPT"], props["CAPT_EMAIL"], props["CAPT_PHONE"], "Captain")
	if err != nil {
		return err
	}
	lieutenant, err := p.ensureOfficer(ctx, stats,
		props["LT"], props["LT_EMAIL"], props["LT_PHONE"], "Lieutenant")
	if err != nil {
		return err
	}

	for _, o := range []*Officer{captain, lieutenant} {
		a := &ZoneAssignment{ZoneID: zone.ID, OfficerID: o.ID}
		if err := p.store.CreateAssignment(ctx, a); err != nil {
			return fmt.Errorf("assign %q to zone %q: %w", o.Name, zone.Name, err)
		}
	}

	regions, err := featureRegions(&f.Geometry, zone.ID)
	if err != nil {
		return err
	}
	if regions == nil {
		// Unsupported geometry is a policy skip, not a failure: the zone and
		// its officers stay, the zone just never resolves spatially.
		log.Printf("skipping unsupported geometry %q for zone %q", f.Geometry.Type, zone.Name)
		stats.SkippedGeometries++
		return nil
	}

	if err := p.store.CreateRegions(ctx, regions); err != nil {
		return fmt.Errorf("create regions for zone %q: %w", zone.Name, err)
	}
	stats.Regions += len(regions)
	return nil
}

// ensureOfficer reuses a previously committed officer with the same exact
// name, creating one otherwise. Lookups must see officers written by earlier
// features in the same run, since features routinely share a captain or
// lieutenant.
func (p *Pipeline) ensureOfficer(ctx context.Context, stats *Stats, name, email, phone, title string) (*Officer, error) {
	existing, err := p.store.FindOfficerByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		stats.OfficersReused++
		return existing, nil
	}

	o := &Officer{Name: name, Email: email, Phone: phone, Title: title}
	if err := p.store.CreateOfficer(ctx, o); err != nil {
		return nil, fmt.Errorf("create officer %q: %w", name, err)
	}
	stats.OfficersCreated++
	return o, nil
}

// featureRegions decomposes a feature's geometry into region rows: one for a
// Polygon, one per part for a MultiPolygon, nil for anything else.
func featureRegions(g *Geometry, zoneID uint) ([]Region, error) {
	switch g.Type {
	case "Polygon":
		rings, err := g.PolygonRings()
		if err != nil {
			return nil, err
		}
		return []Region{{Geog: polygonWKT(rings), ZoneID: zoneID}}, nil
	case "MultiPolygon":
		parts, err := g.MultiPolygonParts()
		if err != nil {
			return nil, err
		}
		regions := make([]Region, 0, len(parts))
		for _, part := range parts {
			regions = append(regions, Region{Geog: polygonWKT(part), ZoneID: zoneID})
		}
		return regions, nil
	default:
		return nil, nil
	}
}
