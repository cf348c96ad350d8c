package entities

import "time"

// CatalogSnapshot stores the backend's format catalog as fetched at FetchedAt.
type CatalogSnapshot struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Backend   string    `gorm:"uniqueIndex;size:50" json:"backend"`
	Payload   string    `gorm:"type:text" json:"payload"` // JSON encoded formats.Catalog
	FetchedAt time.Time `gorm:"index" json:"fetched_at"`
}

func (CatalogSnapshot) TableName() string {
	return "catalog_snapshots"
}
