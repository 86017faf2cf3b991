package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/platebook/platebook/configs"
	"github.com/platebook/platebook/internal/models"
	"github.com/platebook/platebook/internal/transfer"
)

const (
	instagramAuthURL  = "https://www.instagram.com/oauth/authorize"
	instagramAPIBase  = "https://api.instagram.com"
	instagramGraphURL = "https://graph.instagram.com"
	instagramScopes   = "instagram_business_basic"
)

// InstagramClient implements the platform contract for Instagram. Instagram
// issues no separate refresh token: a long-lived token refreshes itself, so
// TokenSet.RefreshToken carries the long-lived token and RefreshToken sends
// it through the ig_refresh_token grant.
type InstagramClient struct {
	cfg       config.Config
	http      *http.Client
	apiBase   string
	graphBase string
}

func NewInstagramClient(cfg config.Config) *InstagramClient {
	return &InstagramClient{
		cfg:       cfg,
		http:      &http.Client{Timeout: 30 * time.Second},
		apiBase:   instagramAPIBase,
		graphBase: instagramGraphURL,
	}
}

func (c *InstagramClient) Platform() models.Platform {
	return models.PlatformInstagram
}

func (c *InstagramClient) AuthCodeURL(state string) string {
	params := url.Values{}
	params.Add("client_id", c.cfg.InstagramClientID)
	params.Add("scope", instagramScopes)
	params.Add("response_type", "code")
	params.Add("redirect_uri", c.cfg.InstagramRedirectURI)
	params.Add("state", state)

	return fmt.Sprintf("%s?%s", instagramAuthURL, params.Encode())
}

func (c *InstagramClient) ExchangeCode(ctx context.Context, code string) (*TokenSet, error) {
	shortLived, err := c.getShortLivedToken(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("%w: %v", ErrAuthExchange, err)
	}

	longLived, err := c.getLongLivedToken(ctx, shortLived.AccessToken)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("%w: %v", ErrAuthExchange, err)
	}

	return &TokenSet{
		AccessToken:  longLived.AccessToken,
		RefreshToken: longLived.AccessToken,
		ExpiresAt:    time.Now().Add(time.Duration(longLived.ExpiresIn) * time.Second),
	}, nil
}

func (c *InstagramClient) getShortLivedToken(ctx context.Context, code string) (*transfer.InstagramShortLivedToken, error) {
	data := url.Values{}
	data.Set("client_id", c.cfg.InstagramClientID)
	data.Set("client_secret", c.cfg.InstagramClientSecret)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", c.cfg.InstagramRedirectURI)
	data.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/oauth/access_token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get short-lived token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("instagram token endpoint returned status %d", resp.StatusCode)
	}

	var result transfer.InstagramShortLivedToken
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("instagram returned no access token")
	}

	return &result, nil
}

func (c *InstagramClient) getLongLivedToken(ctx context.Context, shortLivedToken string) (*transfer.InstagramLongLivedToken, error) {
	reqURL := fmt.Sprintf(
		"%s/access_token?grant_type=ig_exchange_token&client_secret=%s&access_token=%s",
		c.graphBase, c.cfg.InstagramClientSecret, shortLivedToken,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get long-lived token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("long-lived token exchange returned status %d", resp.StatusCode)
	}

	var result transfer.InstagramLongLivedToken
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode long-lived token response: %w", err)
	}

	return &result, nil
}

func (c *InstagramClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	reqURL := fmt.Sprintf(
		"%s/refresh_access_token?grant_type=ig_refresh_token&access_token=%s",
		c.graphBase, refreshToken,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitedError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: instagram refresh returned %d", ErrTransient, resp.StatusCode)
	}

	// A throttled or failing endpoint says nothing about the token itself;
	// only the remaining 4xx responses mean it is no longer refreshable.
	if resp.StatusCode != http.StatusOK {
		var igErr transfer.InstagramErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&igErr)
		slog.Info("Instagram refused to refresh token", "status", resp.StatusCode, "message", igErr.Error.Message)
		return nil, fmt.Errorf("%w: %s", ErrRefreshRejected, igErr.Error.Message)
	}

	var result transfer.InstagramLongLivedToken
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	return &TokenSet{
		AccessToken:  result.AccessToken,
		RefreshToken: result.AccessToken,
		ExpiresAt:    time.Now().Add(time.Duration(result.ExpiresIn) * time.Second),
	}, nil
}

func (c *InstagramClient) FetchContentPage(ctx context.Context, accessToken, cursor string, pageSize int) (*ContentPage, error) {
	params := url.Values{}
	params.Set("fields", "id,caption,media_type,media_url,thumbnail_url,permalink,timestamp")
	params.Set("limit", fmt.Sprintf("%d", pageSize))
	params.Set("access_token", accessToken)
	if cursor != "" {
		params.Set("after", cursor)
	}

	reqURL := fmt.Sprintf("%s/me/media?%s", c.graphBase, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := mapAPIStatus(resp); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		var igErr transfer.InstagramErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&igErr)
		if igErr.Error.Type == "OAuthException" {
			return nil, fmt.Errorf("%w: %s", ErrAuthRequired, igErr.Error.Message)
		}
		return nil, fmt.Errorf("%w: %s", ErrTransient, igErr.Error.Message)
	}

	var result transfer.InstagramMediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	page := &ContentPage{Items: make([]ContentItem, 0, len(result.Data))}
	for _, m := range result.Data {
		thumbnail := m.ThumbnailURL
		if thumbnail == "" {
			thumbnail = m.MediaURL
		}
		item := ContentItem{
			PlatformContentID: m.ID,
			Title:             firstLine(m.Caption),
			Description:       m.Caption,
			SourceURL:         m.Permalink,
			ThumbnailURL:      thumbnail,
		}
		if ts, err := time.Parse("2006-01-02T15:04:05-0700", m.Timestamp); err == nil {
			item.PublishedAt = ts
		}
		page.Items = append(page.Items, item)
	}
	if result.Paging.Next != "" {
		page.NextCursor = result.Paging.Cursors.After
	}

	return page, nil
}

func (c *InstagramClient) GetUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	reqURL := fmt.Sprintf(
		"%s/me?fields=id,username,name,profile_picture_url&access_token=%s",
		c.graphBase, accessToken,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := mapAPIStatus(resp); err != nil {
		return nil, err
	}

	var userInfo transfer.InstagramUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	return &UserInfo{
		PlatformUserID: userInfo.UserID,
		DisplayName:    userInfo.Name,
		Username:       userInfo.Username,
		AvatarURL:      userInfo.ProfilePicture,
	}, nil
}

// RevokeAccess is a no-op: Instagram exposes no token revocation endpoint,
// the user removes access from their account settings instead.
func (c *InstagramClient) RevokeAccess(ctx context.Context, platformUserID, accessToken string) error {
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
