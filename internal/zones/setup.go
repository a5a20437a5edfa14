package zones

import (
	"fmt"

	"gorm.io/gorm"
)

// Init prepares the schema: the postgis extension, the four tables, a GiST
// index for the covers query, and the unique officer-name index. Idempotent;
// run at every process start.
func Init(gdb *gorm.DB) error {
	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS postgis`).Error; err != nil {
		return fmt.Errorf("enable postgis extension: %w", err)
	}

	if err := gdb.AutoMigrate(
		&Zone{},
		&Region{},
		&Officer{},
		&ZoneAssignment{},
	); err != nil {
		return fmt.Errorf("migrate zone tables: %w", err)
	}

	if err := gdb.Exec(`
        CREATE INDEX IF NOT EXISTS regions_geog_gist
        ON regions USING GIST (geog);
    `).Error; err != nil {
		return fmt.Errorf("create regions_geog_gist: %w", err)
	}

	// Officer dedup is keyed by exact name. The check-then-insert in the
	// pipeline is not atomic, so the store enforces the key too: a racing
	// second loader fails instead of double-inserting.
	if err := gdb.Exec(`
        CREATE UNIQUE INDEX IF NOT EXISTS officers_name_unique
        ON officers (name);
    `).Error; err != nil {
		return fmt.Errorf("create officers_name_unique: %w", err)
	}

	return nil
}
