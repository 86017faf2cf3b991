package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/platebook/platebook/internal/models"
	"github.com/platebook/platebook/internal/service"
)

func (q *Queue) HandleImportContentTask(ctx context.Context, task *asynq.Task) error {
	var payload ImportContentPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	imported, err := q.is.ImportContent(ctx, payload.UserID, models.Platform(payload.Platform), payload.MaxItems)
	if err != nil {
		// Dead credentials cannot be fixed by retrying the task; the user
		// has to reconnect the platform first.
		if errors.Is(err, service.ErrReauthRequired) || errors.Is(err, service.ErrNotConnected) ||
			errors.Is(err, service.ErrUnsupportedPlatform) {
			log.Printf("Import for user %d on %s needs user action: %v", payload.UserID, payload.Platform, err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		log.Printf("Import for user %d on %s failed after %d items: %v", payload.UserID, payload.Platform, len(imported), err)
		return err
	}

	log.Printf("Imported %d items for user %d from %s", len(imported), payload.UserID, payload.Platform)
	return nil
}
