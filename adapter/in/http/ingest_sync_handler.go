package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"ingest_server/core/domain"
	"ingest_server/core/service/mailsync"
	"ingest_server/pkg/apperr"
	"ingest_server/pkg/response"
)

// =============================================================================
// Sync Handler
// =============================================================================

// SyncHandler serves the provider pull-sync API. Each provider gets its own
// sync service wired with that provider's client. Requests may override the
// configured day windows; zero or negative values fall back to them.
type SyncHandler struct {
	services          map[domain.Provider]*mailsync.SyncService
	initialImportDays int
	fallbackDays      int
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(gmailSync, outlookSync *mailsync.SyncService, initialImportDays, fallbackDays int) *SyncHandler {
	services := make(map[domain.Provider]*mailsync.SyncService)
	if gmailSync != nil {
		services[domain.ProviderGmail] = gmailSync
	}
	if outlookSync != nil {
		services[domain.ProviderOutlook] = outlookSync
	}
	return &SyncHandler{
		services:          services,
		initialImportDays: initialImportDays,
		fallbackDays:      fallbackDays,
	}
}

// orDefaultDays resolves a request day window against the configured one.
func orDefaultDays(requested, configured int) int {
	if requested > 0 {
		return requested
	}
	return configured
}

// Register mounts the sync routes.
func (h *SyncHandler) Register(app fiber.Router) {
	grp := app.Group("/sync")
	grp.Post("/:provider/initial", h.InitialImport)
	grp.Post("/:provider/incremental", h.IncrementalSync)
}

func (h *SyncHandler) serviceFor(c *fiber.Ctx) (*mailsync.SyncService, error) {
	name := c.Params("provider")
	svc, ok := h.services[domain.Provider(name)]
	if !ok {
		return nil, apperr.BadRequest(fmt.Sprintf("unknown provider %q", name))
	}
	return svc, nil
}

// =============================================================================
// Operations
// =============================================================================

type initialImportRequest struct {
	Credentials domain.Credentials `json:"credentials"`
	DaysBack    int                `json:"days_back"`
}

type incrementalSyncRequest struct {
	Credentials  *domain.Credentials `json:"credentials"`
	Address      string              `json:"address"`
	FallbackDays int                 `json:"fallback_days"`
}

// InitialImport bootstraps a mailbox by time window and stores the cursor
// the provider handed back.
func (h *SyncHandler) InitialImport(c *fiber.Ctx) error {
	tenantID, err := requireTenant(c)
	if err != nil {
		return err
	}

	svc, err := h.serviceFor(c)
	if err != nil {
		return err
	}

	var req initialImportRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("malformed request body")
	}

	result, err := svc.InitialImport(c.Context(), tenantID, req.Credentials, orDefaultDays(req.DaysBack, h.initialImportDays))
	if err != nil {
		return err
	}

	return response.OK(c, result)
}

// IncrementalSync advances a mailbox from its stored cursor, or falls back
// to a time window when no cursor exists yet.
func (h *SyncHandler) IncrementalSync(c *fiber.Ctx) error {
	tenantID, err := requireTenant(c)
	if err != nil {
		return err
	}

	svc, err := h.serviceFor(c)
	if err != nil {
		return err
	}

	var req incrementalSyncRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("malformed request body")
	}

	result, err := svc.IncrementalSync(c.Context(), tenantID, req.Credentials, req.Address, orDefaultDays(req.FallbackDays, h.fallbackDays))
	if err != nil {
		return err
	}

	return response.OK(c, result)
}
