package zones

// Zone is an administrative policing area identified by name. A zone owns its
// regions and assignments; deletion order is handled by the ingestion
// pipeline, not by cascades.
type Zone struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:200;not null" json:"name"`
}

func (Zone) TableName() string { return "zones" }

// Region is one simple polygon of a zone's possibly multi-part shape. Geog
// holds WKT for a geography(POLYGON,4326) column. A MultiPolygon source
// feature becomes one Region row per part, all pointing at the same zone, so
// "point in zone" reduces to "point in any one region of that zone".
type Region struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Geog   string `gorm:"type:geography(POLYGON,4326)" json:"-"`
	ZoneID uint   `gorm:"index;not null" json:"zone_id"`
}

func (Region) TableName() string { return "regions" }

// Officer identity is keyed by exact name for deduplication: two features
// naming the same captain share one row, even if email/phone/title differ.
type Officer struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"size:200;not null" json:"name"`
	Email string `gorm:"size:200;not null" json:"email"`
	Phone string `gorm:"size:200;not null" json:"phone"`
	Title string `gorm:"size:200;not null" json:"title"`
}

func (Officer) TableName() string { return "officers" }

// ZoneAssignment links one officer to one zone. The (zone, officer) pair is
// not deduplicated on insert; reload idempotence comes from the full reset
// that precedes every ingestion run.
type ZoneAssignment struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	ZoneID    uint `gorm:"index;not null" json:"zone_id"`
	OfficerID uint `gorm:"index;not null" json:"officer_id"`
}

func (ZoneAssignment) TableName() string { return "zone_assignments" }
