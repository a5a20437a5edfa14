package zones_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/kylegordy/cpd-zones/internal/db"
	"github.com/kylegordy/cpd-zones/internal/zones"
)

// These tests exercise the PostGIS covers predicate and the full reload
// against a real database. They own (and wipe) the zone tables, exactly like
// the reset-data CLI does; point DATABASE_URL at a scratch database.

var (
	dbAvailable bool
	testDB      *gorm.DB
	testStore   *zones.Store

	// runID keeps this run's fixture names distinguishable in logs and in
	// any shared scratch database.
	runID = uuid.New().String()[:8]
)

func fixtureName(base string) string { return base + "-" + runID }

func polygonFeature(zone, capt, lt string, ring string) zones.Feature {
	return zones.Feature{
		Type: "Feature",
		Properties: map[string]any{
			"CPD_Zone":   zone,
			"CAPT":       capt,
			"CAPT_EMAIL": "capt@cpd.example",
			"CAPT_PHONE": "555-0100",
			"LT":         lt,
			"LT_EMAIL":   "lt@cpd.example",
			"LT_PHONE":   "555-0101",
		},
		Geometry: zones.Geometry{Type: "Polygon", Coordinates: json.RawMessage("[" + ring + "]")},
	}
}

// fixtureCollection builds four features:
//
//	5A: square lon [-87.80,-87.75], lat [41.80,41.85], captain A. Rivera, lt B. Chen
//	5B: adjacent square sharing the lon=-87.75 edge and captain A. Rivera
//	5C: MultiPolygon of 3 parts
//	5D: unsupported Point geometry
func fixtureCollection() *zones.FeatureCollection {
	fc := &zones.FeatureCollection{
		Type: "FeatureCollection",
		Features: []zones.Feature{
			polygonFeature(fixtureName("5A"), fixtureName("A. Rivera"), fixtureName("B. Chen"),
				`[[-87.80,41.80],[-87.75,41.80],[-87.75,41.85],[-87.80,41.85],[-87.80,41.80]]`),
			polygonFeature(fixtureName("5B"), fixtureName("A. Rivera"), fixtureName("C. Doyle"),
				`[[-87.75,41.80],[-87.70,41.80],[-87.70,41.85],[-87.75,41.85],[-87.75,41.80]]`),
			{
				Type: "Feature",
				Properties: map[string]any{
					"CPD_Zone":   fixtureName("5C"),
					"CAPT":       fixtureName("D. Ellis"),
					"CAPT_EMAIL": "ellis@cpd.example",
					"CAPT_PHONE": "555-0102",
					"LT":         fixtureName("E. Flores"),
					"LT_EMAIL":   "flores@cpd.example",
					"LT_PHONE":   "555-0103",
				},
				Geometry: zones.Geometry{Type: "MultiPolygon", Coordinates: json.RawMessage(`[
					[[[-87.60,41.90],[-87.59,41.90],[-87.59,41.91],[-87.60,41.91],[-87.60,41.90]]],
					[[[-87.58,41.90],[-87.57,41.90],[-87.57,41.91],[-87.58,41.91],[-87.58,41.90]]],
					[[[-87.56,41.90],[-87.55,41.90],[-87.55,41.91],[-87.56,41.91],[-87.56,41.90]]]
				]`)},
			},
			{
				Type: "Feature",
				Properties: map[string]any{
					"CPD_Zone":   fixtureName("5D"),
					"CAPT":       fixtureName("F. Green"),
					"CAPT_EMAIL": "green@cpd.example",
					"CAPT_PHONE": "555-0104",
					"LT":         fixtureName("G. Harper"),
					"LT_EMAIL":   "harper@cpd.example",
					"LT_PHONE":   "555-0105",
				},
				Geometry: zones.Geometry{Type: "Point", Coordinates: json.RawMessage(`[-87.5,41.8]`)},
			},
		},
	}
	return fc
}

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env.local")

	if os.Getenv("DATABASE_URL") == "" {
		// No database available — skip all integration tests gracefully.
		os.Exit(m.Run())
	}
	if strings.Contains(os.Getenv("DATABASE_URL"), "production") {
		fmt.Fprintln(os.Stderr, "refusing to run destructive tests against something named production")
		os.Exit(1)
	}

	gdb, err := db.Open(os.Getenv("DATABASE_URL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "db open: %v\n", err)
		os.Exit(1)
	}
	if err := zones.Init(gdb); err != nil {
		fmt.Fprintf(os.Stderr, "schema init: %v\n", err)
		os.Exit(1)
	}

	testDB = gdb
	testStore = zones.NewStore(gdb)
	dbAvailable = true

	os.Exit(m.Run())
}

func reloadFixtures(t *testing.T) *zones.FeatureCollection {
	t.Helper()
	if !dbAvailable {
		t.Skip("skipping integration test (requires DATABASE_URL)")
	}
	fc := fixtureCollection()
	if _, err := zones.NewPipeline(testStore, nil).Reload(context.Background(), fc); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	return fc
}

func zoneIDByName(t *testing.T, name string) uint {
	t.Helper()
	var id uint
	if err := testDB.Model(&zones.Zone{}).Select("id").Where("name = ?", name).Scan(&id).Error; err != nil {
		t.Fatalf("zone id for %q: %v", name, err)
	}
	if id == 0 {
		t.Fatalf("zone %q not found", name)
	}
	return id
}

func TestFindZone_InsideBoundaryOutside(t *testing.T) {
	reloadFixtures(t)
	ctx := context.Background()

	idA := zoneIDByName(t, fixtureName("5A"))
	idB := zoneIDByName(t, fixtureName("5B"))

	// Strictly inside 5A.
	zoneID, found, err := testStore.FindZoneByPoint(ctx, 41.825, -87.775)
	if err != nil || !found || zoneID != idA {
		t.Errorf("inside 5A: got (%d, %v, %v), want (%d, true, nil)", zoneID, found, err, idA)
	}

	// Strictly inside 5B.
	zoneID, found, err = testStore.FindZoneByPoint(ctx, 41.825, -87.725)
	if err != nil || !found || zoneID != idB {
		t.Errorf("inside 5B: got (%d, %v, %v), want (%d, true, nil)", zoneID, found, err, idB)
	}

	// Exactly on 5A's outer edge: covers is boundary-inclusive. The point
	// also lies on 5B's edge; the lowest region id (5A, inserted first) wins.
	zoneID, found, err = testStore.FindZoneByPoint(ctx, 41.82, -87.75)
	if err != nil || !found {
		t.Fatalf("boundary point: got (%v, %v), want a hit", found, err)
	}
	if zoneID != idA {
		t.Errorf("boundary tie resolved to zone %d, want first-inserted %d", zoneID, idA)
	}

	// Outside every region.
	_, found, err = testStore.FindZoneByPoint(ctx, 0, 0)
	if err != nil {
		t.Fatalf("outside: %v", err)
	}
	if found {
		t.Error("a point outside every region must not resolve")
	}
}

func TestScenario_ZoneWithOfficers(t *testing.T) {
	reloadFixtures(t)
	ctx := context.Background()

	idA := zoneIDByName(t, fixtureName("5A"))

	zoneID, found, err := testStore.FindZoneByPoint(ctx, 41.83, -87.78)
	if err != nil || !found || zoneID != idA {
		t.Fatalf("FindZoneByPoint: got (%d, %v, %v), want (%d, true, nil)", zoneID, found, err, idA)
	}

	officers, err := testStore.FindOfficersByZone(ctx, idA)
	if err != nil {
		t.Fatalf("FindOfficersByZone: %v", err)
	}
	names := map[string]bool{}
	for _, o := range officers {
		names[o.Name] = true
	}
	if len(officers) != 2 || !names[fixtureName("A. Rivera")] || !names[fixtureName("B. Chen")] {
		t.Errorf("unexpected officers for 5A: %+v", officers)
	}
}

func TestOfficerDedup_SharedCaptain(t *testing.T) {
	reloadFixtures(t)

	var count int64
	if err := testDB.Model(&zones.Officer{}).
		Where("name = ANY(?)", pq.Array([]string{fixtureName("A. Rivera")})).
		Count(&count).Error; err != nil {
		t.Fatalf("count officers: %v", err)
	}
	if count != 1 {
		t.Errorf("expected one row for the shared captain, got %d", count)
	}

	// One assignment per zone for the shared captain.
	var assignments int64
	if err := testDB.Raw(`
		SELECT count(*)
		FROM zone_assignments za
		JOIN officers o ON o.id = za.officer_id
		WHERE o.name = $1
	`, fixtureName("A. Rivera")).Scan(&assignments).Error; err != nil {
		t.Fatalf("count assignments: %v", err)
	}
	if assignments != 2 {
		t.Errorf("shared captain has %d assignments, want 2", assignments)
	}
}

func TestMultiPolygon_ThreeRegionRows(t *testing.T) {
	reloadFixtures(t)

	idC := zoneIDByName(t, fixtureName("5C"))
	var count int64
	if err := testDB.Model(&zones.Region{}).Where("zone_id = ?", idC).Count(&count).Error; err != nil {
		t.Fatalf("count regions: %v", err)
	}
	if count != 3 {
		t.Errorf("MultiPolygon of 3 parts produced %d region rows, want 3", count)
	}
}

func TestUnsupportedGeometry_ZoneWithoutRegions(t *testing.T) {
	reloadFixtures(t)
	ctx := context.Background()

	idD := zoneIDByName(t, fixtureName("5D"))

	officers, err := testStore.FindOfficersByZone(ctx, idD)
	if err != nil {
		t.Fatalf("FindOfficersByZone: %v", err)
	}
	if len(officers) != 2 {
		t.Errorf("Point-geometry zone should still have officers, got %d", len(officers))
	}

	var count int64
	if err := testDB.Model(&zones.Region{}).Where("zone_id = ?", idD).Count(&count).Error; err != nil {
		t.Fatalf("count regions: %v", err)
	}
	if count != 0 {
		t.Errorf("Point-geometry zone has %d regions, want 0", count)
	}

	// And the feature's own coordinate resolves to nothing.
	_, found, err := testStore.FindZoneByPoint(ctx, 41.8, -87.5)
	if err != nil {
		t.Fatalf("FindZoneByPoint: %v", err)
	}
	if found {
		t.Error("a zone without regions must never resolve spatially")
	}
}

func TestReloadTwice_SameCounts(t *testing.T) {
	reloadFixtures(t)
	first, err := testStore.CountAll(context.Background())
	if err != nil {
		t.Fatalf("CountAll: %v", err)
	}

	reloadFixtures(t)
	second, err := testStore.CountAll(context.Background())
	if err != nil {
		t.Fatalf("CountAll: %v", err)
	}

	if first != second {
		t.Errorf("reload is not idempotent: %+v then %+v", first, second)
	}
}

func TestResolver_CacheAgreesWithStore(t *testing.T) {
	reloadFixtures(t)
	ctx := context.Background()

	resolver := zones.NewResolver(testStore, true)
	if err := resolver.WarmCache(ctx); err != nil {
		t.Fatalf("WarmCache: %v", err)
	}

	points := []struct{ lat, lon float64 }{
		{41.825, -87.775}, // inside 5A
		{41.825, -87.725}, // inside 5B
		{41.905, -87.595}, // inside 5C part 1
		{41.905, -87.555}, // inside 5C part 3
		{0, 0},            // nowhere
	}
	for _, p := range points {
		wantID, wantFound, err := testStore.FindZoneByPoint(ctx, p.lat, p.lon)
		if err != nil {
			t.Fatalf("store lookup (%f, %f): %v", p.lat, p.lon, err)
		}
		gotID, gotFound, err := resolver.FindZone(ctx, p.lat, p.lon)
		if err != nil {
			t.Fatalf("cache lookup (%f, %f): %v", p.lat, p.lon, err)
		}
		if gotID != wantID || gotFound != wantFound {
			t.Errorf("cache disagrees with store at (%f, %f): cache (%d, %v) store (%d, %v)",
				p.lat, p.lon, gotID, gotFound, wantID, wantFound)
		}
	}
}

func TestReload_StoredGeometryRoundTrips(t *testing.T) {
	reloadFixtures(t)

	regions, err := testStore.ListRegions(context.Background())
	if err != nil {
		t.Fatalf("ListRegions: %v", err)
	}
	if len(regions) != 5 { // 1 (5A) + 1 (5B) + 3 (5C)
		t.Fatalf("expected 5 regions, got %d", len(regions))
	}
	for _, r := range regions {
		if len(r.Rings) == 0 || len(r.Rings[0]) < 4 {
			t.Errorf("region %d came back with a degenerate ring", r.ID)
		}
		for _, p := range r.Rings[0] {
			if p[0] > -80 || p[0] < -90 {
				t.Errorf("region %d: longitude %f outside fixture range; lon/lat order lost?", r.ID, p[0])
			}
		}
	}
}
