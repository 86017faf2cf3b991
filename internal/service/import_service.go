package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/platebook/platebook/internal/models"
	"github.com/platebook/platebook/internal/platform"
	"github.com/platebook/platebook/internal/repository"
)

const (
	defaultMaxItems = 50
	importPageSize  = 20

	// maxImportPages bounds the pagination loop in case a platform keeps
	// returning pages forever (or repeats a cursor).
	maxImportPages = 50
)

// ThumbnailMirror copies a remote thumbnail into our own storage and returns
// the stored object key. Failures are non-fatal to an import.
type ThumbnailMirror interface {
	MirrorThumbnail(ctx context.Context, sourceURL string) (string, error)
}

type ImportService interface {
	ImportContent(ctx context.Context, userID int64, p models.Platform, maxItems int) ([]*models.ImportedContentItem, error)
	ListImported(ctx context.Context, userID int64, p models.Platform) ([]*models.ImportedContentItem, error)
}

type importService struct {
	db        *sql.DB
	tokens    TokenService
	platforms platform.Registry
	ic        repository.ImportedContentRepository
	rr        repository.RecipeRepository
	media     ThumbnailMirror
}

func NewImportService(
	db *sql.DB,
	tokens TokenService,
	platforms platform.Registry,
	ic repository.ImportedContentRepository,
	rr repository.RecipeRepository,
	media ThumbnailMirror) ImportService {
	return &importService{
		db:        db,
		tokens:    tokens,
		platforms: platforms,
		ic:        ic,
		rr:        rr,
		media:     media,
	}
}

// ImportContent pulls the user's remote content page by page, skipping items
// already imported, and persists each page as one transaction. Hitting the
// platform's rate limit ends the import early with whatever was imported so
// far; that is a partial success, not an error.
func (s *importService) ImportContent(ctx context.Context, userID int64, p models.Platform, maxItems int) ([]*models.ImportedContentItem, error) {
	if !p.Valid() {
		return nil, ErrUnsupportedPlatform
	}
	client, ok := s.platforms.Get(p)
	if !ok {
		return nil, ErrUnsupportedPlatform
	}
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}

	token, err := s.tokens.GetValidAccessToken(ctx, userID, p)
	if err != nil {
		return nil, err
	}

	imported := make([]*models.ImportedContentItem, 0, maxItems)
	cursor := ""
	pages := 0
	authRetried := false

	for pages < maxImportPages && len(imported) < maxItems {
		if err := ctx.Err(); err != nil {
			// Cancelled between pages; committed pages stay intact.
			return imported, err
		}

		pageSize := importPageSize
		if remaining := maxItems - len(imported); remaining < pageSize {
			pageSize = remaining
		}

		page, err := client.FetchContentPage(ctx, token, cursor, pageSize)
		if err != nil {
			if errors.Is(err, platform.ErrAuthRequired) {
				// Token invalidated between acquisition and use. Re-acquire
				// once and retry this page; a second rejection is fatal.
				if authRetried {
					return imported, ErrReauthRequired
				}
				authRetried = true
				token, err = s.tokens.GetValidAccessToken(ctx, userID, p)
				if err != nil {
					return imported, err
				}
				continue
			}
			if platform.IsRateLimited(err) {
				slog.Info("import rate limited, returning partial result",
					"user_id", userID, "platform", p, "imported", len(imported))
				return imported, nil
			}
			return imported, fmt.Errorf("fetching content page: %w", err)
		}
		pages++

		saved, err := s.persistPage(ctx, userID, p, page.Items, maxItems-len(imported))
		if err != nil {
			return imported, err
		}
		imported = append(imported, saved...)

		if page.NextCursor == "" {
			break
		}
		if page.NextCursor == cursor {
			slog.Info("platform repeated a pagination cursor, stopping import",
				"platform", p, "cursor", cursor)
			break
		}
		cursor = page.NextCursor
	}

	return imported, nil
}

// persistPage writes all new items of one page in a single transaction:
// the recipe hand-off and the imported-content row commit together, so a
// crash mid-import never leaves a half-imported page.
func (s *importService) persistPage(ctx context.Context, userID int64, p models.Platform, items []platform.ContentItem, limit int) ([]*models.ImportedContentItem, error) {
	fresh := make([]platform.ContentItem, 0, len(items))
	for _, item := range items {
		if len(fresh) >= limit {
			break
		}
		exists, err := s.ic.Exists(ctx, userID, p, item.PlatformContentID)
		if err != nil {
			return nil, err
		}
		if !exists {
			fresh = append(fresh, item)
		}
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	// Mirror thumbnails before opening the transaction; network I/O must not
	// happen while the page transaction is open.
	thumbnails := make([]string, len(fresh))
	for i, item := range fresh {
		thumbnails[i] = item.ThumbnailURL
		if s.media == nil {
			continue
		}
		key, err := s.media.MirrorThumbnail(ctx, item.ThumbnailURL)
		if err != nil {
			slog.Info("thumbnail mirror failed, keeping source URL", "url", item.ThumbnailURL, "err", err.Error())
			continue
		}
		if key != "" {
			thumbnails[i] = key
		}
	}

	var tx *sql.Tx
	if s.db != nil {
		var err error
		tx, err = s.db.BeginTx(ctx, nil)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		defer tx.Rollback()
	}

	saved := make([]*models.ImportedContentItem, 0, len(fresh))
	for i, item := range fresh {
		title := item.Title
		if title == "" {
			title = fmt.Sprintf("Imported from %s", p)
		}

		recipeID, err := s.rr.Create(ctx, tx, &models.Recipe{
			UserID:       userID,
			Title:        title,
			Description:  item.Description,
			Source:       models.RecipeSource(p),
			VideoURL:     item.SourceURL,
			ThumbnailURL: thumbnails[i],
		})
		if err != nil {
			return nil, err
		}

		row := &models.ImportedContentItem{
			UserID:            userID,
			Platform:          p,
			PlatformContentID: item.PlatformContentID,
			RecipeID:          recipeID,
			SourceURL:         item.SourceURL,
		}
		id, err := s.ic.Create(ctx, tx, row)
		if err != nil {
			return nil, err
		}
		if id == 0 {
			// A concurrent import won the race on the dedup key; drop the
			// recipe this iteration created.
			if err := s.rr.Remove(ctx, tx, recipeID); err != nil {
				return nil, err
			}
			continue
		}

		row.ID = id
		row.ImportedAt = time.Now()
		saved = append(saved, row)
	}

	if tx != nil {
		if err := tx.Commit(); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
	}

	return saved, nil
}

func (s *importService) ListImported(ctx context.Context, userID int64, p models.Platform) ([]*models.ImportedContentItem, error) {
	if p != "" && !p.Valid() {
		return nil, ErrUnsupportedPlatform
	}
	return s.ic.ListByUser(ctx, userID, p)
}
