package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/platebook/platebook/configs"
)

func tiktokTestConfig() config.Config {
	return config.Config{
		TiktokClientKey:    "test-client-key",
		TiktokClientSecret: "test-client-secret",
		TiktokRedirectURI:  "https://platebook.test/auth/tiktok/callback",
	}
}

func newTiktokTestClient(server *httptest.Server) *TiktokClient {
	c := NewTiktokClient(tiktokTestConfig())
	c.apiBase = server.URL
	c.revokeURL = server.URL + "/oauth/revoke/"
	return c
}

func TestTiktokAuthCodeURL(t *testing.T) {
	c := NewTiktokClient(tiktokTestConfig())

	u := c.AuthCodeURL("state-token")
	assert.Contains(t, u, "client_key=test-client-key")
	assert.Contains(t, u, "state=state-token")
	assert.Contains(t, u, "response_type=code")
}

func TestTiktokExchangeCode(t *testing.T) {
	var gotCode, gotGrant string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/oauth/token/", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotCode = r.FormValue("code")
		gotGrant = r.FormValue("grant_type")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "tiktok-access",
			"refresh_token": "tiktok-refresh",
			"expires_in":    86400,
			"open_id":       "open-id-1",
		})
	}))
	defer server.Close()

	tokens, err := newTiktokTestClient(server).ExchangeCode(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "auth-code", gotCode)
	assert.Equal(t, "authorization_code", gotGrant)
	assert.Equal(t, "tiktok-access", tokens.AccessToken)
	assert.Equal(t, "tiktok-refresh", tokens.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), tokens.ExpiresAt, time.Minute)
}

func TestTiktokExchangeCodeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error":             "invalid_grant",
			"error_description": "Authorization code is expired.",
		})
	}))
	defer server.Close()

	_, err := newTiktokTestClient(server).ExchangeCode(context.Background(), "stale-code")
	assert.ErrorIs(t, err, ErrAuthExchange)
}

func TestTiktokRefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.FormValue("grant_type"))
		require.Equal(t, "old-refresh", r.FormValue("refresh_token"))
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"expires_in":    86400,
		})
	}))
	defer server.Close()

	tokens, err := newTiktokTestClient(server).RefreshToken(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "new-access", tokens.AccessToken)
	assert.Equal(t, "new-refresh", tokens.RefreshToken)
}

func TestTiktokRefreshTokenRevoked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error":             "invalid_grant",
			"error_description": "Refresh token is invalid or expired.",
		})
	}))
	defer server.Close()

	_, err := newTiktokTestClient(server).RefreshToken(context.Background(), "revoked-refresh")
	assert.ErrorIs(t, err, ErrRefreshRejected)
}

func TestTiktokRefreshTokenRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error":             "rate_limit_exceeded",
			"error_description": "The request limit has been exceeded.",
		})
	}))
	defer server.Close()

	_, err := newTiktokTestClient(server).RefreshToken(context.Background(), "any-refresh")

	// Throttling must never look like a dead refresh token.
	assert.NotErrorIs(t, err, ErrRefreshRejected)
	require.True(t, IsRateLimited(err))

	var rl *RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 30*time.Second, rl.RetryAfter)
}

func TestTiktokRefreshTokenServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTiktokTestClient(server).RefreshToken(context.Background(), "any-refresh")
	assert.ErrorIs(t, err, ErrTransient)
}

func TestTiktokFetchContentPage(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/video/list/", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"videos": []map[string]any{
					{
						"id":                "7421",
						"title":             "Weeknight ramen",
						"video_description": "Weeknight ramen\n#recipe",
						"cover_image_url":   "https://cdn.tiktok.test/cover/7421.jpg",
						"share_url":         "https://www.tiktok.com/@cook/video/7421",
						"create_time":       1700000000,
					},
					{
						"id":        "7422",
						"title":     "Focaccia",
						"share_url": "https://www.tiktok.com/@cook/video/7422",
					},
				},
				"cursor":   1699990000,
				"has_more": true,
			},
			"error": map[string]any{"code": "ok"},
		})
	}))
	defer server.Close()

	page, err := newTiktokTestClient(server).FetchContentPage(context.Background(), "the-token", "1700000001", 20)
	require.NoError(t, err)
	assert.Equal(t, "Bearer the-token", gotAuth)
	assert.Equal(t, float64(1700000001), gotBody["cursor"])
	assert.Equal(t, float64(20), gotBody["max_count"])

	require.Len(t, page.Items, 2)
	assert.Equal(t, "7421", page.Items[0].PlatformContentID)
	assert.Equal(t, "Weeknight ramen", page.Items[0].Title)
	assert.Equal(t, "https://www.tiktok.com/@cook/video/7421", page.Items[0].SourceURL)
	assert.Equal(t, "https://cdn.tiktok.test/cover/7421.jpg", page.Items[0].ThumbnailURL)
	assert.Equal(t, time.Unix(1700000000, 0), page.Items[0].PublishedAt)
	assert.Equal(t, "1699990000", page.NextCursor)
}

func TestTiktokFetchContentPageLastPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data":  map[string]any{"videos": []map[string]any{}, "has_more": false},
			"error": map[string]any{"code": "ok"},
		})
	}))
	defer server.Close()

	page, err := newTiktokTestClient(server).FetchContentPage(context.Background(), "the-token", "", 20)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Empty(t, page.NextCursor)
}

func TestTiktokFetchContentPageBadCursor(t *testing.T) {
	c := NewTiktokClient(tiktokTestConfig())

	_, err := c.FetchContentPage(context.Background(), "the-token", "not-a-number", 20)
	assert.Error(t, err)
}

func TestTiktokFetchContentPageStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrAuthRequired},
		{"forbidden", http.StatusForbidden, ErrAuthRequired},
		{"server error", http.StatusInternalServerError, ErrTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := newTiktokTestClient(server).FetchContentPage(context.Background(), "the-token", "", 20)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTiktokFetchContentPageRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTiktokTestClient(server).FetchContentPage(context.Background(), "the-token", "", 20)
	require.True(t, IsRateLimited(err))

	var rl *RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 30*time.Second, rl.RetryAfter)
}

func TestTiktokFetchContentPageInvalidTokenBody(t *testing.T) {
	// TikTok also reports token problems inside a 200 body.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{},
			"error": map[string]any{
				"code":    "access_token_invalid",
				"message": "The access token is invalid or not found in the request.",
			},
		})
	}))
	defer server.Close()

	_, err := newTiktokTestClient(server).FetchContentPage(context.Background(), "dead-token", "", 20)
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestTiktokGetUserInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/user/info/", r.URL.Path)
		require.Equal(t, "Bearer the-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"user": map[string]any{
					"open_id":      "open-id-1",
					"display_name": "Test Cook",
					"username":     "testcook",
					"avatar_url":   "https://cdn.tiktok.test/avatar.jpg",
				},
			},
		})
	}))
	defer server.Close()

	info, err := newTiktokTestClient(server).GetUserInfo(context.Background(), "the-token")
	require.NoError(t, err)
	assert.Equal(t, "open-id-1", info.PlatformUserID)
	assert.Equal(t, "Test Cook", info.DisplayName)
	assert.Equal(t, "testcook", info.Username)
	assert.Equal(t, "https://cdn.tiktok.test/avatar.jpg", info.AvatarURL)
}

func TestTiktokRevokeAccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/revoke/", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "open-id-1", r.FormValue("open_id"))
		require.Equal(t, "the-token", r.FormValue("access_token"))
		json.NewEncoder(w).Encode(map[string]any{"error_code": 0})
	}))
	defer server.Close()

	err := newTiktokTestClient(server).RevokeAccess(context.Background(), "open-id-1", "the-token")
	assert.NoError(t, err)
}

func TestTiktokRevokeAccessFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"error_code": 2, "description": "token already revoked"})
	}))
	defer server.Close()

	err := newTiktokTestClient(server).RevokeAccess(context.Background(), "open-id-1", "the-token")
	assert.Error(t, err)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-5"))
	assert.Equal(t, 45*time.Second, parseRetryAfter("45"))

	// HTTP-date form.
	future := parseRetryAfter(time.Now().Add(90 * time.Second).UTC().Format(http.TimeFormat))
	assert.Greater(t, future, 80*time.Second)
	assert.LessOrEqual(t, future, 90*time.Second)

	past := parseRetryAfter(time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat))
	assert.Equal(t, time.Duration(0), past)
}
