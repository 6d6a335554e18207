// Package store is the relational metadata store (C5 in spec §4.5):
// one row per track plus the content-dedup digest used to short-circuit
// re-ingestion. Grounded on the teacher's sibling repo's GORM usage
// (tphakala/birdnet-go's internal/datastore), since the teacher itself
// persists to MongoDB rather than a relational store.
package store

import (
	"time"

	"github.com/google/uuid"
)

// Track is the persisted row for one library track.
type Track struct {
	ID            uuid.UUID `gorm:"primaryKey;type:uuid"`
	Title         string    `gorm:"size:300;index:idx_tracks_title"`
	Artist        string    `gorm:"size:300;index:idx_tracks_artist"`
	Album         string    `gorm:"size:300"`
	Genre         string    `gorm:"size:100;index:idx_tracks_genre"`
	DurationMs    int64     `gorm:"index:idx_tracks_duration"`
	SampleRate    int
	Channels      int
	BitrateBps    int
	Format        string `gorm:"size:20"`
	ContentDigest string `gorm:"size:64;uniqueIndex:idx_tracks_content_digest"`
	DedupKey      string `gorm:"size:200;index:idx_tracks_dedup_key"`
	SourcePath    string `gorm:"size:1000"`
	IngestedAt    time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
