package zones

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Store is the persistence layer for zones, regions, officers and
// assignments. Every cross-entity fetch is an explicit query; there is no
// relation navigation and no lazy loading.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ResetAll deletes every row of all four tables in referential dependency
// order, leaves first, so no delete ever strands a foreign key.
func (s *Store) ResetAll(ctx context.Context) error {
	for _, q := range []string{
		`DELETE FROM zone_assignments`,
		`DELETE FROM officers`,
		`DELETE FROM regions`,
		`DELETE FROM zones`,
	} {
		if err := s.db.WithContext(ctx).Exec(q).Error; err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	return nil
}

func (s *Store) CreateZone(ctx context.Context, z *Zone) error {
	return s.db.WithContext(ctx).Create(z).Error
}

func (s *Store) GetZone(ctx context.Context, id uint) (*Zone, error) {
	var z Zone
	err := s.db.WithContext(ctx).First(&z, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get zone %d: %w", id, err)
	}
	return &z, nil
}

// FindOfficerByName looks up an officer by exact name match against
// committed rows. Returns nil without error when no officer has that name.
func (s *Store) FindOfficerByName(ctx context.Context, name string) (*Officer, error) {
	var o Officer
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find officer %q: %w", name, err)
	}
	return &o, nil
}

func (s *Store) CreateOfficer(ctx context.Context, o *Officer) error {
	return s.db.WithContext(ctx).Create(o).Error
}

func (s *Store) CreateAssignment(ctx context.Context, a *ZoneAssignment) error {
	return s.db.WithContext(ctx).Create(a).Error
}

// CreateRegions inserts one feature's polygon parts in a single batch.
func (s *Store) CreateRegions(ctx context.Context, regions []Region) error {
	if len(regions) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&regions).Error
}

// FindZoneByPoint performs a PostGIS covers query: which region's polygon
// contains the point, boundary included. The geography column makes the
// predicate geodesic, not planar. When regions overlap (a data-quality
// anomaly; zones are expected to partition the map) the lowest region id
// wins, which is the store's natural retrieval order.
func (s *Store) FindZoneByPoint(ctx context.Context, lat, lon float64) (uint, bool, error) {
	query := `
		SELECT zone_id
		FROM regions
		WHERE ST_Covers(
			geog,
			ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography
		)
		ORDER BY id
		LIMIT 1
	`

	var zoneID uint
	// note the (lon, lat) argument order: PostGIS points are (x, y)
	row := s.db.WithContext(ctx).Raw(query, lon, lat).Row()
	if err := row.Scan(&zoneID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("zone lookup query failed: %w", err)
	}
	return zoneID, true, nil
}

// FindOfficersByZone returns every officer assigned to the zone via
// zone_assignments, in no guaranteed order. The slice is empty (not nil)
// when the zone has no assignments or does not exist.
func (s *Store) FindOfficersByZone(ctx context.Context, zoneID uint) ([]Officer, error) {
	query := `
		SELECT o.id, o.name, o.email, o.phone, o.title
		FROM officers o
		JOIN zone_assignments za ON za.officer_id = o.id
		WHERE za.zone_id = $1
	`

	rows, err := s.db.WithContext(ctx).Raw(query, zoneID).Rows()
	if err != nil {
		return nil, fmt.Errorf("officers lookup failed: %w", err)
	}
	defer rows.Close()

	officers := []Officer{}
	for rows.Next() {
		var o Officer
		if err := rows.Scan(&o.ID, &o.Name, &o.Email, &o.Phone, &o.Title); err != nil {
			return nil, fmt.Errorf("scan officer: %w", err)
		}
		officers = append(officers, o)
	}
	return officers, rows.Err()
}

// RegionGeometry is a region's polygon exported back out of PostGIS as
// GeoJSON rings, for the in-memory cache.
type RegionGeometry struct {
	ID     uint
	ZoneID uint
	Rings  [][][2]float64
}

// ListRegions returns every region with its rings, in id order (the same
// order FindZoneByPoint breaks ties in).
func (s *Store) ListRegions(ctx context.Context) ([]RegionGeometry, error) {
	query := `
		SELECT id, zone_id, ST_AsGeoJSON(geog::geometry)
		FROM regions
		ORDER BY id
	`

	rows, err := s.db.WithContext(ctx).Raw(query).Rows()
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	defer rows.Close()

	var out []RegionGeometry
	for rows.Next() {
		var (
			rg  RegionGeometry
			doc string
		)
		if err := rows.Scan(&rg.ID, &rg.ZoneID, &doc); err != nil {
			return nil, fmt.Errorf("scan region: %w", err)
		}
		var g Geometry
		if err := json.Unmarshal([]byte(doc), &g); err != nil {
			return nil, fmt.Errorf("decode region %d geometry: %w", rg.ID, err)
		}
		rings, err := g.PolygonRings()
		if err != nil {
			return nil, fmt.Errorf("region %d: %w", rg.ID, err)
		}
		rg.Rings = rings
		out = append(out, rg)
	}
	return out, rows.Err()
}

// Counts reports per-table row totals, for the reload CLI's before/after
// report.
type Counts struct {
	Zones       int64
	Regions     int64
	Officers    int64
	Assignments int64
}

func (s *Store) CountAll(ctx context.Context) (Counts, error) {
	var c Counts
	for _, t := range []struct {
		model any
		dst   *int64
	}{
		{&Zone{}, &c.Zones},
		{&Region{}, &c.Regions},
		{&Officer{}, &c.Officers},
		{&ZoneAssignment{}, &c.Assignments},
	} {
		if err := s.db.WithContext(ctx).Model(t.model).Count(t.dst).Error; err != nil {
			return c, fmt.Errorf("count: %w", err)
		}
	}
	return c, nil
}
