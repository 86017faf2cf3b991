package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/platebook/platebook/internal/models"
)

type ImportedContentRepository interface {
	Exists(ctx context.Context, userID int64, platform models.Platform, platformContentID string) (bool, error)
	Create(ctx context.Context, tx *sql.Tx, item *models.ImportedContentItem) (int64, error)
	ListByUser(ctx context.Context, userID int64, platform models.Platform) ([]*models.ImportedContentItem, error)
	CountByUser(ctx context.Context, userID int64, platform models.Platform) (int, error)
}

type importedContentRepository struct {
	db *sql.DB
}

func NewImportedContentRepository(db *sql.DB) ImportedContentRepository {
	return &importedContentRepository{db: db}
}

func (r *importedContentRepository) Exists(ctx context.Context, userID int64, platform models.Platform, platformContentID string) (bool, error) {
	query := `SELECT 1 FROM imported_content WHERE user_id = $1 AND platform = $2 AND platform_content_id = $3`

	var result int
	err := r.db.QueryRowContext(ctx, query, userID, platform, platformContentID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return true, nil
}

// Create inserts one imported row within the caller's page transaction.
// ON CONFLICT DO NOTHING makes the unique dedup key, not this pre-checked
// insert, the real duplicate guard when two imports race. Returns 0 when the
// row already existed.
func (r *importedContentRepository) Create(ctx context.Context, tx *sql.Tx, item *models.ImportedContentItem) (int64, error) {
	query := `
		INSERT INTO imported_content (user_id, platform, platform_content_id, recipe_id, source_url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, platform, platform_content_id) DO NOTHING
		RETURNING id
	`

	var err error
	var id int64

	if tx != nil {
		err = tx.QueryRowContext(ctx, query,
			item.UserID, item.Platform, item.PlatformContentID, item.RecipeID, item.SourceURL).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query,
			item.UserID, item.Platform, item.PlatformContentID, item.RecipeID, item.SourceURL).Scan(&id)
	}
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *importedContentRepository) ListByUser(ctx context.Context, userID int64, platform models.Platform) ([]*models.ImportedContentItem, error) {
	query := `SELECT id, user_id, platform, platform_content_id, recipe_id, source_url, imported_at
		FROM imported_content WHERE user_id = $1`
	args := []interface{}{userID}

	if platform != "" {
		query += ` AND platform = $2`
		args = append(args, platform)
	}
	query += ` ORDER BY imported_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var items []*models.ImportedContentItem
	for rows.Next() {
		var item models.ImportedContentItem
		err := rows.Scan(&item.ID, &item.UserID, &item.Platform, &item.PlatformContentID,
			&item.RecipeID, &item.SourceURL, &item.ImportedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return items, nil
}

func (r *importedContentRepository) CountByUser(ctx context.Context, userID int64, platform models.Platform) (int, error) {
	query := `SELECT COUNT(*) FROM imported_content WHERE user_id = $1 AND platform = $2`

	var count int
	err := r.db.QueryRowContext(ctx, query, userID, platform).Scan(&count)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return count, nil
}
