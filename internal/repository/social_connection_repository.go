package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/platebook/platebook/internal/models"
)

type SocialConnectionRepository interface {
	Get(ctx context.Context, userID int64, platform models.Platform) (*models.SocialConnection, error)
	Upsert(ctx context.Context, sc *models.SocialConnection) error
	UpdateTokens(ctx context.Context, sc *models.SocialConnection) error
	Delete(ctx context.Context, userID int64, platform models.Platform) error
	ListByUser(ctx context.Context, userID int64) ([]*models.SocialConnection, error)
	ListExpiring(ctx context.Context, within time.Duration) ([]*models.SocialConnection, error)
	UpdateStatus(ctx context.Context, userID int64, platform models.Platform, status models.ConnectionStatus) error
}

type socialConnectionRepository struct {
	db *sql.DB
}

func NewSocialConnectionRepository(db *sql.DB) SocialConnectionRepository {
	return &socialConnectionRepository{db: db}
}

const connectionColumns = `id, user_id, platform, platform_user_id, display_name,
		access_token, refresh_token, expires_at, status, connected_at, updated_at`

func (r *socialConnectionRepository) Get(ctx context.Context, userID int64, platform models.Platform) (*models.SocialConnection, error) {
	query := `SELECT ` + connectionColumns + ` FROM social_connections WHERE user_id = $1 AND platform = $2`
	row := r.db.QueryRowContext(ctx, query, userID, platform)

	var sc models.SocialConnection
	err := row.Scan(&sc.ID, &sc.UserID, &sc.Platform, &sc.PlatformUserID, &sc.DisplayName,
		&sc.AccessToken, &sc.RefreshToken, &sc.ExpiresAt, &sc.Status, &sc.ConnectedAt, &sc.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &sc, nil
}

// Upsert replaces-or-inserts the row for (user_id, platform) in a single
// statement, so a concurrent refresh and disconnect can never interleave
// into a half-written row.
func (r *socialConnectionRepository) Upsert(ctx context.Context, sc *models.SocialConnection) error {
	query := `
		INSERT INTO social_connections (
			user_id,
			platform,
			platform_user_id,
			display_name,
			access_token,
			refresh_token,
			expires_at,
			status,
			connected_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id, platform) DO UPDATE
		SET platform_user_id = EXCLUDED.platform_user_id,
			display_name = EXCLUDED.display_name,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			status = EXCLUDED.status,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		sc.UserID,
		sc.Platform,
		sc.PlatformUserID,
		sc.DisplayName,
		sc.AccessToken,
		sc.RefreshToken,
		sc.ExpiresAt,
		sc.Status,
	).Scan(&sc.ID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

// UpdateTokens writes a refreshed token set onto the existing row. Unlike
// Upsert it never inserts: the connection may have been deleted while the
// refresh round trip was in flight. Returns sql.ErrNoRows for a missing row.
func (r *socialConnectionRepository) UpdateTokens(ctx context.Context, sc *models.SocialConnection) error {
	query := `
		UPDATE social_connections
		SET access_token = $3,
			refresh_token = $4,
			expires_at = $5,
			status = $6,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1 AND platform = $2
	`
	res, err := r.db.ExecContext(ctx, query,
		sc.UserID, sc.Platform, sc.AccessToken, sc.RefreshToken, sc.ExpiresAt, sc.Status)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *socialConnectionRepository) Delete(ctx context.Context, userID int64, platform models.Platform) error {
	query := `DELETE FROM social_connections WHERE user_id = $1 AND platform = $2`
	_, err := r.db.ExecContext(ctx, query, userID, platform)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *socialConnectionRepository) ListByUser(ctx context.Context, userID int64) ([]*models.SocialConnection, error) {
	query := `SELECT ` + connectionColumns + ` FROM social_connections WHERE user_id = $1 ORDER BY connected_at`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var connections []*models.SocialConnection
	for rows.Next() {
		var sc models.SocialConnection
		err := rows.Scan(&sc.ID, &sc.UserID, &sc.Platform, &sc.PlatformUserID, &sc.DisplayName,
			&sc.AccessToken, &sc.RefreshToken, &sc.ExpiresAt, &sc.Status, &sc.ConnectedAt, &sc.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		connections = append(connections, &sc)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return connections, nil
}

// ListExpiring returns active connections whose token expires within the
// given window, including ones already past expiry. Feeds the refresh sweep.
func (r *socialConnectionRepository) ListExpiring(ctx context.Context, within time.Duration) ([]*models.SocialConnection, error) {
	query := `SELECT ` + connectionColumns + `
		FROM social_connections
		WHERE status = $1 AND expires_at IS NOT NULL AND expires_at < $2`

	deadline := time.Now().Add(within)
	rows, err := r.db.QueryContext(ctx, query, models.ConnectionActive, deadline)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var connections []*models.SocialConnection
	for rows.Next() {
		var sc models.SocialConnection
		err := rows.Scan(&sc.ID, &sc.UserID, &sc.Platform, &sc.PlatformUserID, &sc.DisplayName,
			&sc.AccessToken, &sc.RefreshToken, &sc.ExpiresAt, &sc.Status, &sc.ConnectedAt, &sc.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		connections = append(connections, &sc)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return connections, nil
}

func (r *socialConnectionRepository) UpdateStatus(ctx context.Context, userID int64, platform models.Platform, status models.ConnectionStatus) error {
	query := `
		UPDATE social_connections
		SET status = $3, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1 AND platform = $2
	`
	_, err := r.db.ExecContext(ctx, query, userID, platform, status)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
