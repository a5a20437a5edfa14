package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/kylegordy/cpd-zones/internal/db"
	"github.com/kylegordy/cpd-zones/internal/zones"
)

// CLI flags
var (
	geojsonPath = flag.String("geojson", "CPDZones.geojson", "Path to the source GeoJSON FeatureCollection")
	dsn         = flag.String("dsn", os.Getenv("DATABASE_URL"), "Postgres DSN (default: env DATABASE_URL)")
	dryRun      = flag.Bool("dry-run", false, "Parse + validate only; no DB writes")
	confirm     = flag.Bool("confirm", false, "Required to perform the destructive reload")
	advisoryKey = flag.Int64("advisory-lock", 0, "Optional Postgres advisory lock key (e.g., 424242). 0 = disabled")
)

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *dsn == "" {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}

	fc, err := zones.LoadFeatureCollection(*geojsonPath)
	if err != nil {
		fatalf("GeoJSON error: %v", err)
	}

	fmt.Printf("Loaded %d features from %s\n", len(fc.Features), *geojsonPath)

	if *dryRun {
		printPlan(fc)
		fmt.Println("Dry run complete. No changes made.")
		return
	}

	if !*confirm {
		fatalf("Refusing to run without --confirm. Add --dry-run to preview.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Session-level advisory lock on a dedicated connection; it must outlive
	// the per-statement commits of the reload, so a transaction-scoped lock
	// would not do. Two concurrent reloads interleaving delete/insert phases
	// would corrupt referential integrity.
	if *advisoryKey != 0 {
		lockDB, err := sql.Open("pgx", *dsn)
		if err != nil {
			fatalf("connect for advisory lock: %v", err)
		}
		defer lockDB.Close()

		conn, err := lockDB.Conn(ctx)
		if err != nil {
			fatalf("acquire lock connection: %v", err)
		}
		defer conn.Close()

		if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, *advisoryKey); err != nil {
			fatalf("advisory lock: %v", err)
		}
		defer func() {
			_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, *advisoryKey)
		}()
	}

	gdb, err := db.Open(*dsn)
	if err != nil {
		fatalf("connect: %v", err)
	}

	if err := zones.Init(gdb); err != nil {
		fatalf("schema setup: %v", err)
	}

	store := zones.NewStore(gdb)

	before, err := store.CountAll(ctx)
	if err != nil {
		fatalf("pre-count: %v", err)
	}
	fmt.Printf("Before: zones=%d regions=%d officers=%d assignments=%d\n",
		before.Zones, before.Regions, before.Officers, before.Assignments)

	stats, err := zones.NewPipeline(store, nil).Reload(ctx, fc)
	if err != nil {
		fatalf("reload: %v", err)
	}

	after, err := store.CountAll(ctx)
	if err != nil {
		fatalf("post-count: %v", err)
	}
	fmt.Printf("After:  zones=%d regions=%d officers=%d assignments=%d\n",
		after.Zones, after.Regions, after.Officers, after.Assignments)
	fmt.Printf("Stats:  zones=%d officers created=%d reused=%d regions=%d skipped geometries=%d\n",
		stats.Zones, stats.OfficersCreated, stats.OfficersReused, stats.Regions, stats.SkippedGeometries)

	// sanity: every zone gets exactly two assignments
	if after.Assignments != after.Zones*2 {
		fatalf("sanity check failed: assignments=%d zones=%d (expected assignments = zones*2)", after.Assignments, after.Zones)
	}

	fmt.Println("Reload complete")
}

func printPlan(fc *zones.FeatureCollection) {
	var polygons, multipolygons, parts, other int
	for i := range fc.Features {
		g := &fc.Features[i].Geometry
		switch g.Type {
		case "Polygon":
			polygons++
			parts++
		case "MultiPolygon":
			multipolygons++
			if p, err := g.MultiPolygonParts(); err == nil {
				parts += len(p)
			}
		default:
			other++
		}
	}
	fmt.Println("Plan preview:")
	fmt.Printf("  Zones to insert: %d (one per feature)\n", len(fc.Features))
	fmt.Printf("  Polygon features: %d, MultiPolygon features: %d, unsupported (skipped): %d\n",
		polygons, multipolygons, other)
	fmt.Printf("  Region rows to insert: %d\n", parts)
	fmt.Println("  Tables affected (destructive): zone_assignments, officers, regions, zones")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
