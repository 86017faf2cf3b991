package models

import "time"

// ImportedContentItem records one piece of remote content pulled into the
// local store. (user_id, platform, platform_content_id) is the dedup key;
// rows are written once and never mutated.
type ImportedContentItem struct {
	ID                int64     `db:"id" json:"id"`
	UserID            int64     `db:"user_id" json:"user_id"`
	Platform          Platform  `db:"platform" json:"platform"`
	PlatformContentID string    `db:"platform_content_id" json:"platform_content_id"`
	RecipeID          int64     `db:"recipe_id" json:"recipe_id"`
	SourceURL         string    `db:"source_url" json:"source_url"`
	ImportedAt        time.Time `db:"imported_at" json:"imported_at"`
}
