package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/platebook/platebook/internal/models"
	"github.com/platebook/platebook/internal/repository"
	"github.com/platebook/platebook/internal/service"
)

const refreshWindow = 30 * time.Minute

// TokenRefreshJob proactively refreshes connections whose token is close to
// expiry, so interactive requests rarely pay the refresh round trip. All
// refreshing goes through the token service; the job itself never touches
// stored tokens.
type TokenRefreshJob struct {
	sc repository.SocialConnectionRepository
	ts service.TokenService
}

func NewTokenRefreshJob(sc repository.SocialConnectionRepository, ts service.TokenService) *TokenRefreshJob {
	return &TokenRefreshJob{
		sc: sc,
		ts: ts,
	}
}

func (j *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	connections, err := j.sc.ListExpiring(ctx, refreshWindow)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, conn := range connections {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(conn *models.SocialConnection) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if _, err := j.ts.GetValidAccessToken(ctx, conn.UserID, conn.Platform); err != nil {
				slog.Info("proactive token refresh failed",
					"user_id", conn.UserID, "platform", conn.Platform, "err", err.Error())
			}
		}(conn)
	}

	wg.Wait()
}
