package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	config "github.com/platebook/platebook/configs"
	"github.com/platebook/platebook/internal/models"
	"github.com/platebook/platebook/internal/platform"
	"github.com/platebook/platebook/internal/repository"
	"github.com/platebook/platebook/pkg/utils"
)

const (
	// refreshMargin is how close to expiry a token may get before it is
	// refreshed instead of handed out.
	refreshMargin = 60 * time.Second

	refreshRetries     = 2
	refreshBackoffBase = 500 * time.Millisecond
)

// TokenService is the single choke point through which access tokens reach
// platform call sites. Nothing else reads access_token from storage, which is
// what keeps a known-stale token from ever being used.
type TokenService interface {
	GetValidAccessToken(ctx context.Context, userID int64, p models.Platform) (string, error)
}

type tokenService struct {
	cfg       config.Config
	sc        repository.SocialConnectionRepository
	platforms platform.Registry
	backoff   time.Duration
}

func NewTokenService(cfg config.Config, sc repository.SocialConnectionRepository, platforms platform.Registry) TokenService {
	return &tokenService{
		cfg:       cfg,
		sc:        sc,
		platforms: platforms,
		backoff:   refreshBackoffBase,
	}
}

func (s *tokenService) GetValidAccessToken(ctx context.Context, userID int64, p models.Platform) (string, error) {
	conn, err := s.sc.Get(ctx, userID, p)
	if err != nil {
		return "", err
	}
	if conn == nil || conn.Status != models.ConnectionActive {
		return "", ErrNotConnected
	}

	// No known expiry, or comfortably far from it: hand out the stored token.
	if !conn.ExpiresAt.Valid || time.Until(conn.ExpiresAt.Time) > refreshMargin {
		return utils.Decrypt(conn.AccessToken, []byte(s.cfg.SecretKey))
	}

	return s.refresh(ctx, conn)
}

func (s *tokenService) refresh(ctx context.Context, conn *models.SocialConnection) (string, error) {
	client, ok := s.platforms.Get(conn.Platform)
	if !ok {
		return "", ErrUnsupportedPlatform
	}

	if !conn.RefreshToken.Valid || conn.RefreshToken.String == "" {
		// Platform issued no refresh token; expiry forces a full re-auth.
		if err := s.sc.UpdateStatus(ctx, conn.UserID, conn.Platform, models.ConnectionExpired); err != nil {
			slog.Info(err.Error())
		}
		return "", ErrReauthRequired
	}

	refreshToken, err := utils.Decrypt(conn.RefreshToken.String, []byte(s.cfg.SecretKey))
	if err != nil {
		return "", err
	}

	var tokens *platform.TokenSet
	for attempt := 0; ; attempt++ {
		tokens, err = client.RefreshToken(ctx, refreshToken)
		if err == nil {
			break
		}

		if platform.IsRateLimited(err) {
			// Throttled by the platform; sub-second backoff won't outlive
			// the throttle window, so surface it for a later attempt.
			return "", fmt.Errorf("%w: %v", ErrTemporarilyUnavailable, err)
		}

		if errors.Is(err, platform.ErrRefreshRejected) {
			slog.Info("refresh token rejected, marking connection revoked",
				"user_id", conn.UserID, "platform", conn.Platform)
			if updateErr := s.sc.UpdateStatus(ctx, conn.UserID, conn.Platform, models.ConnectionRevoked); updateErr != nil {
				slog.Info(updateErr.Error())
			}
			return "", ErrReauthRequired
		}

		if attempt >= refreshRetries {
			return "", fmt.Errorf("%w: %v", ErrTemporarilyUnavailable, err)
		}

		backoff := s.backoff * (1 << attempt)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if err := s.storeTokenSet(ctx, conn, tokens); err != nil {
		return "", err
	}

	return tokens.AccessToken, nil
}

// storeTokenSet writes the refreshed token set onto the existing row. The
// write is update-only: a disconnect that lands while the refresh round trip
// is in flight deletes the row, and the late refresh must not bring it back.
func (s *tokenService) storeTokenSet(ctx context.Context, conn *models.SocialConnection, tokens *platform.TokenSet) error {
	key := []byte(s.cfg.SecretKey)

	encryptedAccess, err := utils.Encrypt([]byte(tokens.AccessToken), key)
	if err != nil {
		return err
	}
	conn.AccessToken = encryptedAccess

	conn.RefreshToken = sql.NullString{}
	if tokens.RefreshToken != "" {
		encryptedRefresh, err := utils.Encrypt([]byte(tokens.RefreshToken), key)
		if err != nil {
			return err
		}
		conn.RefreshToken = sql.NullString{String: encryptedRefresh, Valid: true}
	}

	conn.ExpiresAt = sql.NullTime{}
	if !tokens.ExpiresAt.IsZero() {
		conn.ExpiresAt = sql.NullTime{Time: tokens.ExpiresAt, Valid: true}
	}

	conn.Status = models.ConnectionActive

	if err := s.sc.UpdateTokens(ctx, conn); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotConnected
		}
		return err
	}
	return nil
}
