package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	config "github.com/platebook/platebook/configs"
	"github.com/platebook/platebook/internal/models"
	"github.com/platebook/platebook/internal/queue"
	"github.com/platebook/platebook/internal/service"
	"github.com/platebook/platebook/pkg/utils"
)

type SocialHandler struct {
	ss     service.SocialService
	is     service.ImportService
	client *asynq.Client
	cfg    config.Config
}

func NewSocialHandler(cfg config.Config, ss service.SocialService, is service.ImportService, client *asynq.Client) *SocialHandler {
	return &SocialHandler{
		ss:     ss,
		is:     is,
		client: client,
		cfg:    cfg,
	}
}

func (h *SocialHandler) AddSocialConnection(c *fiber.Ctx) error {
	p := models.Platform(c.Params("platform"))

	claims, err := utils.ValidateToken(h.cfg.SecretKey, c.Cookies(h.cfg.CookieName))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unable to validate user",
		})
	}

	// The state parameter carries the user through the round trip to the
	// platform; the callback validates it before touching any account.
	state, err := utils.GenerateToken(h.cfg.SecretKey, claims.UserID, 10*time.Minute)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to start authorization",
		})
	}

	authURL, err := h.ss.GetAuthURL(c.Context(), p, state)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unsupported platform",
		})
	}
	return c.Redirect(authURL)
}

func (h *SocialHandler) CallbackHandler(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	p := models.Platform(c.Params("platform"))

	if oauthErr := c.Query("error"); oauthErr != "" {
		slog.Info("oauth callback returned an error", "platform", p, "error", oauthErr)
		return c.Redirect(fmt.Sprintf("%s/settings/connections?status=denied", h.cfg.FrontendURL), fiber.StatusTemporaryRedirect)
	}

	claims, err := utils.ValidateToken(h.cfg.SecretKey, state)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to validate user",
		})
	}

	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to validate user",
		})
	}

	if _, err := h.ss.Connect(c.Context(), userID, p, code); err != nil {
		slog.Info(err.Error())
		return c.Redirect(fmt.Sprintf("%s/settings/connections?status=failed", h.cfg.FrontendURL), fiber.StatusTemporaryRedirect)
	}

	return c.Redirect(fmt.Sprintf("%s/settings/connections", h.cfg.FrontendURL), fiber.StatusTemporaryRedirect)
}

func (h *SocialHandler) ListConnections(c *fiber.Ctx) error {
	userID := GetUserID(c)

	connections, err := h.ss.ListConnections(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch connections",
		})
	}

	return c.Status(fiber.StatusOK).JSON(connections)
}

func (h *SocialHandler) Disconnect(c *fiber.Ctx) error {
	userID := GetUserID(c)
	p := models.Platform(c.Query("platform"))

	err := h.ss.Disconnect(c.Context(), userID, p)
	if err != nil {
		if errors.Is(err, service.ErrNotConnected) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "platform is not connected",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to disconnect platform",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *SocialHandler) ImportContent(c *fiber.Ctx) error {
	userID := GetUserID(c)
	p := models.Platform(c.Query("platform"))
	maxItems := c.QueryInt("max_items", 0)

	if !p.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unsupported platform",
		})
	}

	// Imports run in the background by default; sync=true runs inline for
	// small batches.
	if !c.QueryBool("sync", false) {
		err := queue.EnqueueImport(h.client, queue.ImportContentPayload{
			UserID:   userID,
			Platform: string(p),
			MaxItems: maxItems,
		})
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Unable to schedule import",
			})
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status": "scheduled",
		})
	}

	imported, err := h.is.ImportContent(c.Context(), userID, p, maxItems)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotConnected):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "platform is not connected",
			})
		case errors.Is(err, service.ErrReauthRequired):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":    "platform authorization expired, please reconnect",
				"imported": len(imported),
			})
		case errors.Is(err, service.ErrTemporarilyUnavailable):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":    "platform temporarily unavailable",
				"imported": len(imported),
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Import failed",
			})
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"imported": len(imported),
		"items":    imported,
	})
}

func (h *SocialHandler) ListImportedContent(c *fiber.Ctx) error {
	userID := GetUserID(c)
	p := models.Platform(c.Query("platform"))

	items, err := h.is.ListImported(c.Context(), userID, p)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedPlatform) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "unsupported platform",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch imported content",
		})
	}

	return c.Status(fiber.StatusOK).JSON(items)
}
