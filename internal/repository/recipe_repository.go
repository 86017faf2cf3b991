package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/platebook/platebook/internal/models"
)

type RecipeRepository interface {
	Create(ctx context.Context, tx *sql.Tx, recipe *models.Recipe) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Recipe, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Recipe, error)
	Remove(ctx context.Context, tx *sql.Tx, id int64) error
}

type recipeRepository struct {
	db *sql.DB
}

func NewRecipeRepository(db *sql.DB) RecipeRepository {
	return &recipeRepository{db: db}
}

func (r *recipeRepository) Create(ctx context.Context, tx *sql.Tx, recipe *models.Recipe) (int64, error) {
	query := `
		INSERT INTO recipes (user_id, title, description, source, video_url, thumbnail_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var err error
	var id int64

	if tx != nil {
		err = tx.QueryRowContext(ctx, query,
			recipe.UserID, recipe.Title, recipe.Description, recipe.Source,
			recipe.VideoURL, recipe.ThumbnailURL).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query,
			recipe.UserID, recipe.Title, recipe.Description, recipe.Source,
			recipe.VideoURL, recipe.ThumbnailURL).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *recipeRepository) Remove(ctx context.Context, tx *sql.Tx, id int64) error {
	query := `DELETE FROM recipes WHERE id = $1`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, id)
	} else {
		_, err = r.db.ExecContext(ctx, query, id)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *recipeRepository) GetByID(ctx context.Context, id int64) (*models.Recipe, error) {
	query := `SELECT id, user_id, title, description, source, video_url, thumbnail_url, created_at, updated_at
		FROM recipes WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var recipe models.Recipe
	err := row.Scan(&recipe.ID, &recipe.UserID, &recipe.Title, &recipe.Description,
		&recipe.Source, &recipe.VideoURL, &recipe.ThumbnailURL, &recipe.CreatedAt, &recipe.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &recipe, nil
}

func (r *recipeRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Recipe, error) {
	query := `SELECT id, user_id, title, description, source, video_url, thumbnail_url, created_at, updated_at
		FROM recipes WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var recipes []*models.Recipe
	for rows.Next() {
		var recipe models.Recipe
		err := rows.Scan(&recipe.ID, &recipe.UserID, &recipe.Title, &recipe.Description,
			&recipe.Source, &recipe.VideoURL, &recipe.ThumbnailURL, &recipe.CreatedAt, &recipe.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		recipes = append(recipes, &recipe)
	}
	return recipes, nil
}
