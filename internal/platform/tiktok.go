package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	config "github.com/platebook/platebook/configs"
	"github.com/platebook/platebook/internal/models"
	"github.com/platebook/platebook/internal/transfer"
)

const (
	tiktokAuthURL   = "https://www.tiktok.com/v2/auth/authorize"
	tiktokAPIBase   = "https://open.tiktokapis.com"
	tiktokRevokeURL = "https://open-api.tiktok.com/oauth/revoke/"
	tiktokScopes    = "user.info.basic,user.info.profile,video.list"
)

type TiktokClient struct {
	cfg       config.Config
	http      *http.Client
	apiBase   string
	revokeURL string
}

func NewTiktokClient(cfg config.Config) *TiktokClient {
	return &TiktokClient{
		cfg:       cfg,
		http:      &http.Client{Timeout: 30 * time.Second},
		apiBase:   tiktokAPIBase,
		revokeURL: tiktokRevokeURL,
	}
}

func (c *TiktokClient) Platform() models.Platform {
	return models.PlatformTiktok
}

func (c *TiktokClient) AuthCodeURL(state string) string {
	params := url.Values{}
	params.Add("client_key", c.cfg.TiktokClientKey)
	params.Add("scope", tiktokScopes)
	params.Add("response_type", "code")
	params.Add("redirect_uri", c.cfg.TiktokRedirectURI)
	params.Add("state", state)

	return fmt.Sprintf("%s?%s", tiktokAuthURL, params.Encode())
}

func (c *TiktokClient) ExchangeCode(ctx context.Context, code string) (*TokenSet, error) {
	data := url.Values{}
	data.Set("client_key", c.cfg.TiktokClientKey)
	data.Set("client_secret", c.cfg.TiktokClientSecret)
	data.Set("code", code)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", c.cfg.TiktokRedirectURI)

	tokenResponse, err := c.postTokenForm(ctx, data)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("%w: %v", ErrAuthExchange, err)
	}

	if tokenResponse.Error != "" || tokenResponse.AccessToken == "" {
		slog.Info("TikTok token endpoint rejected the authorization code", "error", tokenResponse.Error)
		return nil, fmt.Errorf("%w: %s", ErrAuthExchange, tokenResponse.ErrorDescription)
	}

	return tokenSetFromTiktok(tokenResponse), nil
}

func (c *TiktokClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	data := url.Values{}
	data.Set("client_key", c.cfg.TiktokClientKey)
	data.Set("client_secret", c.cfg.TiktokClientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/v2/oauth/token/", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

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
		return nil, fmt.Errorf("%w: tiktok token endpoint returned %d", ErrTransient, resp.StatusCode)
	}

	var tokenResponse transfer.TiktokTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	// TikTok reports a dead refresh token as invalid_grant with a 4xx status.
	if resp.StatusCode != http.StatusOK || tokenResponse.AccessToken == "" {
		slog.Info("TikTok refused to refresh token", "status", resp.StatusCode, "error", tokenResponse.Error)
		return nil, fmt.Errorf("%w: %s", ErrRefreshRejected, tokenResponse.ErrorDescription)
	}

	return tokenSetFromTiktok(&tokenResponse), nil
}

func (c *TiktokClient) FetchContentPage(ctx context.Context, accessToken, cursor string, pageSize int) (*ContentPage, error) {
	body := transfer.TiktokVideoListRequest{MaxCount: pageSize}
	if cursor != "" {
		parsed, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tiktok cursor %q: %w", cursor, err)
		}
		body.Cursor = parsed
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	listURL := c.apiBase + "/v2/video/list/?fields=id,title,video_description,cover_image_url,share_url,duration,create_time"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, listURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := mapAPIStatus(resp); err != nil {
		return nil, err
	}

	var result transfer.TiktokVideoListResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	if result.Error.Code != "" && result.Error.Code != "ok" {
		if result.Error.Code == "access_token_invalid" {
			return nil, fmt.Errorf("%w: %s", ErrAuthRequired, result.Error.Message)
		}
		return nil, fmt.Errorf("%w: %s", ErrTransient, result.Error.Message)
	}

	page := &ContentPage{Items: make([]ContentItem, 0, len(result.Data.Videos))}
	for _, v := range result.Data.Videos {
		page.Items = append(page.Items, ContentItem{
			PlatformContentID: v.ID,
			Title:             v.Title,
			Description:       v.Description,
			SourceURL:         v.ShareURL,
			ThumbnailURL:      v.CoverURL,
			PublishedAt:       time.Unix(v.CreateTime, 0),
		})
	}
	if result.Data.HasMore {
		page.NextCursor = strconv.FormatInt(result.Data.Cursor, 10)
	}

	return page, nil
}

func (c *TiktokClient) GetUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	infoURL := c.apiBase + "/v2/user/info/?fields=open_id,avatar_url,display_name,username"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, infoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := mapAPIStatus(resp); err != nil {
		return nil, err
	}

	var result transfer.TiktokUserInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	return &UserInfo{
		PlatformUserID: result.Data.User.OpenID,
		DisplayName:    result.Data.User.DisplayName,
		Username:       result.Data.User.Username,
		AvatarURL:      result.Data.User.AvatarURL,
	}, nil
}

func (c *TiktokClient) RevokeAccess(ctx context.Context, platformUserID, accessToken string) error {
	params := url.Values{}
	params.Add("open_id", platformUserID)
	params.Add("access_token", accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revokeURL, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result transfer.TiktokRevokeData
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to revoke tiktok token: %s", result.Description)
	}
	return nil
}

func (c *TiktokClient) postTokenForm(ctx context.Context, data url.Values) (*transfer.TiktokTokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/v2/oauth/token/", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("TikTok token endpoint returned status %d", resp.StatusCode)
	}

	var tokenResponse transfer.TiktokTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return &tokenResponse, nil
}

func tokenSetFromTiktok(t *transfer.TiktokTokenResponse) *TokenSet {
	ts := &TokenSet{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
	}
	if t.ExpiresIn > 0 {
		ts.ExpiresAt = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return ts
}

// mapAPIStatus translates HTTP-level failures on content/user calls into the
// shared error taxonomy. 2xx responses pass through untouched.
func mapAPIStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrAuthRequired, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitedError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode)
	}
	return nil
}

// parseRetryAfter accepts both forms of the Retry-After header: a delta in
// seconds or an HTTP-date.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
