// Package platform holds the per-platform API clients. Each client satisfies
// the same Client contract; everything above this package is platform-agnostic.
package platform

import (
	"context"
	"time"

	"github.com/platebook/platebook/internal/models"
)

// TokenSet is the result of a code exchange or a token refresh.
// RefreshToken is empty for platforms that issue none; ExpiresAt is the zero
// time for tokens without a known expiry.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type UserInfo struct {
	PlatformUserID string
	DisplayName    string
	Username       string
	AvatarURL      string
}

// ContentItem is one piece of remote content, normalized across platforms.
type ContentItem struct {
	PlatformContentID string
	Title             string
	Description       string
	SourceURL         string
	ThumbnailURL      string
	PublishedAt       time.Time
}

// ContentPage is one page of a user's remote content. NextCursor is empty
// when the remote collection is exhausted.
type ContentPage struct {
	Items      []ContentItem
	NextCursor string
}

type Client interface {
	Platform() models.Platform
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*TokenSet, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error)
	FetchContentPage(ctx context.Context, accessToken, cursor string, pageSize int) (*ContentPage, error)
	GetUserInfo(ctx context.Context, accessToken string) (*UserInfo, error)
	RevokeAccess(ctx context.Context, platformUserID, accessToken string) error
}

// Registry resolves a platform enum to its client.
type Registry map[models.Platform]Client

func NewRegistry(clients ...Client) Registry {
	r := make(Registry, len(clients))
	for _, c := range clients {
		r[c.Platform()] = c
	}
	return r
}

func (r Registry) Get(p models.Platform) (Client, bool) {
	c, ok := r[p]
	return c, ok
}
