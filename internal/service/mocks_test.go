package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/platebook/platebook/internal/models"
	"github.com/platebook/platebook/internal/platform"
)

/* ==================== fakes shared by the service tests ==================== */

/* -------- SocialConnectionRepository -------- */

type fakeConnectionRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*models.SocialConnection
}

func newFakeConnectionRepo() *fakeConnectionRepo {
	return &fakeConnectionRepo{rows: make(map[string]*models.SocialConnection)}
}

func connKey(userID int64, p models.Platform) string {
	return fmt.Sprintf("%d/%s", userID, p)
}

func (f *fakeConnectionRepo) Get(ctx context.Context, userID int64, p models.Platform) (*models.SocialConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[connKey(userID, p)]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (f *fakeConnectionRepo) Upsert(ctx context.Context, sc *models.SocialConnection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := connKey(sc.UserID, sc.Platform)
	if existing, ok := f.rows[key]; ok {
		sc.ID = existing.ID
	} else {
		f.nextID++
		sc.ID = f.nextID
	}
	copied := *sc
	f.rows[key] = &copied
	return nil
}

func (f *fakeConnectionRepo) UpdateTokens(ctx context.Context, sc *models.SocialConnection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[connKey(sc.UserID, sc.Platform)]
	if !ok {
		return sql.ErrNoRows
	}
	row.AccessToken = sc.AccessToken
	row.RefreshToken = sc.RefreshToken
	row.ExpiresAt = sc.ExpiresAt
	row.Status = sc.Status
	return nil
}

func (f *fakeConnectionRepo) Delete(ctx context.Context, userID int64, p models.Platform) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, connKey(userID, p))
	return nil
}

func (f *fakeConnectionRepo) ListByUser(ctx context.Context, userID int64) ([]*models.SocialConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SocialConnection
	for _, row := range f.rows {
		if row.UserID == userID {
			copied := *row
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeConnectionRepo) ListExpiring(ctx context.Context, within time.Duration) ([]*models.SocialConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	deadline := time.Now().Add(within)
	var out []*models.SocialConnection
	for _, row := range f.rows {
		if row.Status == models.ConnectionActive && row.ExpiresAt.Valid && row.ExpiresAt.Time.Before(deadline) {
			copied := *row
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeConnectionRepo) UpdateStatus(ctx context.Context, userID int64, p models.Platform, status models.ConnectionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[connKey(userID, p)]; ok {
		row.Status = status
	}
	return nil
}

func (f *fakeConnectionRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

/* -------- platform.Client -------- */

type fakePlatformClient struct {
	name models.Platform

	exchangeFn func(code string) (*platform.TokenSet, error)
	refreshFn  func(refreshToken string) (*platform.TokenSet, error)
	fetchFn    func(accessToken, cursor string, pageSize int) (*platform.ContentPage, error)
	userInfoFn func(accessToken string) (*platform.UserInfo, error)
	revokeErr  error

	mu           sync.Mutex
	refreshCalls int
	fetchCalls   int
	revokeCalls  int
}

func (f *fakePlatformClient) Platform() models.Platform {
	if f.name == "" {
		return models.PlatformTiktok
	}
	return f.name
}

func (f *fakePlatformClient) AuthCodeURL(state string) string {
	return "https://example.com/authorize?state=" + state
}

func (f *fakePlatformClient) ExchangeCode(ctx context.Context, code string) (*platform.TokenSet, error) {
	if f.exchangeFn != nil {
		return f.exchangeFn(code)
	}
	return &platform.TokenSet{AccessToken: "access-" + code, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakePlatformClient) RefreshToken(ctx context.Context, refreshToken string) (*platform.TokenSet, error) {
	f.mu.Lock()
	f.refreshCalls++
	f.mu.Unlock()
	if f.refreshFn != nil {
		return f.refreshFn(refreshToken)
	}
	return &platform.TokenSet{
		AccessToken:  "refreshed-access",
		RefreshToken: "refreshed-refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil
}

func (f *fakePlatformClient) FetchContentPage(ctx context.Context, accessToken, cursor string, pageSize int) (*platform.ContentPage, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.mu.Unlock()
	if f.fetchFn != nil {
		return f.fetchFn(accessToken, cursor, pageSize)
	}
	return &platform.ContentPage{}, nil
}

func (f *fakePlatformClient) GetUserInfo(ctx context.Context, accessToken string) (*platform.UserInfo, error) {
	if f.userInfoFn != nil {
		return f.userInfoFn(accessToken)
	}
	return &platform.UserInfo{PlatformUserID: "platform-user-1", DisplayName: "Test Cook"}, nil
}

func (f *fakePlatformClient) RevokeAccess(ctx context.Context, platformUserID, accessToken string) error {
	f.mu.Lock()
	f.revokeCalls++
	f.mu.Unlock()
	return f.revokeErr
}

/* -------- ImportedContentRepository -------- */

type fakeImportedRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*models.ImportedContentItem
}

func newFakeImportedRepo() *fakeImportedRepo {
	return &fakeImportedRepo{rows: make(map[string]*models.ImportedContentItem)}
}

func importKey(userID int64, p models.Platform, contentID string) string {
	return fmt.Sprintf("%d/%s/%s", userID, p, contentID)
}

func (f *fakeImportedRepo) Exists(ctx context.Context, userID int64, p models.Platform, contentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[importKey(userID, p, contentID)]
	return ok, nil
}

func (f *fakeImportedRepo) Create(ctx context.Context, tx *sql.Tx, item *models.ImportedContentItem) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := importKey(item.UserID, item.Platform, item.PlatformContentID)
	if _, ok := f.rows[key]; ok {
		return 0, nil
	}
	f.nextID++
	copied := *item
	copied.ID = f.nextID
	copied.ImportedAt = time.Now()
	f.rows[key] = &copied
	return copied.ID, nil
}

func (f *fakeImportedRepo) ListByUser(ctx context.Context, userID int64, p models.Platform) ([]*models.ImportedContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ImportedContentItem
	for _, row := range f.rows {
		if row.UserID == userID && (p == "" || row.Platform == p) {
			copied := *row
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeImportedRepo) CountByUser(ctx context.Context, userID int64, p models.Platform) (int, error) {
	items, _ := f.ListByUser(ctx, userID, p)
	return len(items), nil
}

/* -------- RecipeRepository -------- */

type fakeRecipeRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*models.Recipe
}

func newFakeRecipeRepo() *fakeRecipeRepo {
	return &fakeRecipeRepo{rows: make(map[int64]*models.Recipe)}
}

func (f *fakeRecipeRepo) Create(ctx context.Context, tx *sql.Tx, recipe *models.Recipe) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	copied := *recipe
	copied.ID = f.nextID
	f.rows[copied.ID] = &copied
	return copied.ID, nil
}

func (f *fakeRecipeRepo) Remove(ctx context.Context, tx *sql.Tx, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeRecipeRepo) GetByID(ctx context.Context, id int64) (*models.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		copied := *row
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeRecipeRepo) ListByUser(ctx context.Context, userID int64) ([]*models.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Recipe
	for _, row := range f.rows {
		if row.UserID == userID {
			copied := *row
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeRecipeRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

/* -------- TokenService -------- */

type fakeTokenService struct {
	mu     sync.Mutex
	tokens []string
	errs   []error
	calls  int
}

func (f *fakeTokenService) GetValidAccessToken(ctx context.Context, userID int64, p models.Platform) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.tokens) {
		return f.tokens[i], nil
	}
	if len(f.tokens) > 0 {
		return f.tokens[len(f.tokens)-1], nil
	}
	return "token", nil
}
