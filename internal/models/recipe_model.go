package models

import "time"

type RecipeSource string

const (
	RecipeSourceLocal     RecipeSource = "local"
	RecipeSourceTiktok    RecipeSource = "tiktok"
	RecipeSourceInstagram RecipeSource = "instagram"
)

type Recipe struct {
	ID           int64        `db:"id" json:"id"`
	UserID       int64        `db:"user_id" json:"user_id"`
	Title        string       `db:"title" json:"title"`
	Description  string       `db:"description" json:"description"`
	Source       RecipeSource `db:"source" json:"source"`
	VideoURL     string       `db:"video_url" json:"video_url"`
	ThumbnailURL string       `db:"thumbnail_url" json:"thumbnail_url"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}
