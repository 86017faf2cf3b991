package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	config "github.com/platebook/platebook/configs"
	"github.com/platebook/platebook/internal/models"
	"github.com/platebook/platebook/internal/platform"
	"github.com/platebook/platebook/internal/repository"
	"github.com/platebook/platebook/pkg/utils"
)

// SocialService is the entry point for account linking: connect, disconnect
// and listing. Import runs through ImportService.
type SocialService interface {
	GetAuthURL(ctx context.Context, p models.Platform, state string) (string, error)
	Connect(ctx context.Context, userID int64, p models.Platform, code string) (*models.SocialConnection, error)
	Disconnect(ctx context.Context, userID int64, p models.Platform) error
	ListConnections(ctx context.Context, userID int64) ([]*models.SocialConnection, error)
}

type socialService struct {
	cfg       config.Config
	sc        repository.SocialConnectionRepository
	platforms platform.Registry
}

func NewSocialService(cfg config.Config, sc repository.SocialConnectionRepository, platforms platform.Registry) SocialService {
	return &socialService{
		cfg:       cfg,
		sc:        sc,
		platforms: platforms,
	}
}

func (s *socialService) GetAuthURL(ctx context.Context, p models.Platform, state string) (string, error) {
	client, ok := s.platforms.Get(p)
	if !ok {
		return "", ErrUnsupportedPlatform
	}
	return client.AuthCodeURL(state), nil
}

// Connect exchanges the callback code for tokens, resolves the platform-side
// identity and stores the connection as active. The upsert replaces any
// previous row for (user, platform), so reconnecting never duplicates.
func (s *socialService) Connect(ctx context.Context, userID int64, p models.Platform, code string) (*models.SocialConnection, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty authorization code", ErrConnectionFailed)
	}
	client, ok := s.platforms.Get(p)
	if !ok {
		return nil, ErrUnsupportedPlatform
	}

	tokens, err := client.ExchangeCode(ctx, code)
	if err != nil {
		slog.Info("code exchange failed", "platform", p, "err", err.Error())
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	userInfo, err := client.GetUserInfo(ctx, tokens.AccessToken)
	if err != nil {
		slog.Info("fetching platform user info failed", "platform", p, "err", err.Error())
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	key := []byte(s.cfg.SecretKey)
	encryptedAccess, err := utils.Encrypt([]byte(tokens.AccessToken), key)
	if err != nil {
		return nil, err
	}

	conn := &models.SocialConnection{
		UserID:         userID,
		Platform:       p,
		PlatformUserID: userInfo.PlatformUserID,
		DisplayName:    userInfo.DisplayName,
		AccessToken:    encryptedAccess,
		Status:         models.ConnectionActive,
		ConnectedAt:    time.Now(),
	}
	if tokens.RefreshToken != "" {
		encryptedRefresh, err := utils.Encrypt([]byte(tokens.RefreshToken), key)
		if err != nil {
			return nil, err
		}
		conn.RefreshToken = sql.NullString{String: encryptedRefresh, Valid: true}
	}
	if !tokens.ExpiresAt.IsZero() {
		conn.ExpiresAt = sql.NullTime{Time: tokens.ExpiresAt, Valid: true}
	}

	if err := s.sc.Upsert(ctx, conn); err != nil {
		return nil, err
	}

	return conn, nil
}

// Disconnect deletes the stored connection. The platform-side revoke is best
// effort: a remote failure is logged and the local delete still happens,
// because local disconnection is the authoritative outcome.
func (s *socialService) Disconnect(ctx context.Context, userID int64, p models.Platform) error {
	conn, err := s.sc.Get(ctx, userID, p)
	if err != nil {
		return err
	}
	if conn == nil {
		return ErrNotConnected
	}

	if client, ok := s.platforms.Get(p); ok {
		accessToken, err := utils.Decrypt(conn.AccessToken, []byte(s.cfg.SecretKey))
		if err != nil {
			slog.Info("could not decrypt token for revoke", "platform", p, "err", err.Error())
		} else if err := client.RevokeAccess(ctx, conn.PlatformUserID, accessToken); err != nil {
			slog.Info("platform-side revoke failed", "platform", p, "err", err.Error())
		}
	}

	return s.sc.Delete(ctx, userID, p)
}

func (s *socialService) ListConnections(ctx context.Context, userID int64) ([]*models.SocialConnection, error) {
	connections, err := s.sc.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// A connection is never reported active once its token is known-stale.
	for _, conn := range connections {
		if conn.Status == models.ConnectionActive && conn.ExpiresAt.Valid && conn.ExpiresAt.Time.Before(time.Now()) {
			conn.Status = models.ConnectionExpired
		}
	}

	return connections, nil
}
