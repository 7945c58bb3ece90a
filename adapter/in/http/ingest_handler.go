package http

import (
	"github.com/gofiber/fiber/v2"

	"ingest_server/core/domain"
	"ingest_server/core/service/ingest"
	"ingest_server/core/service/session"
	"ingest_server/pkg/apperr"
	"ingest_server/pkg/response"
)

// =============================================================================
// Ingest Handler
// =============================================================================

// IngestHandler serves the push-batch ingestion API and the resumable
// full-import session API.
type IngestHandler struct {
	ingestService  *ingest.IngestService
	sessionService *session.SessionService
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(ingestService *ingest.IngestService, sessionService *session.SessionService) *IngestHandler {
	return &IngestHandler{
		ingestService:  ingestService,
		sessionService: sessionService,
	}
}

// Register mounts the ingest routes.
func (h *IngestHandler) Register(app fiber.Router) {
	grp := app.Group("/ingest")
	grp.Post("/items", h.IngestItems)

	full := grp.Group("/full")
	full.Post("/start", h.StartSession)
	full.Post("/:sessionID/batch", h.IngestSessionBatch)
	full.Get("/:sessionID", h.SessionStatus)
}

// =============================================================================
// Push Batch
// =============================================================================

type ingestItemsRequest struct {
	Items []domain.IngestItem `json:"items"`
}

type ingestItemsResponse struct {
	IngestedCount int `json:"ingested_count"`
}

// IngestItems accepts a batch of pre-normalized messages and persists the
// ones not seen before. Replays of already ingested batches count zero.
func (h *IngestHandler) IngestItems(c *fiber.Ctx) error {
	tenantID, err := requireTenant(c)
	if err != nil {
		return err
	}

	var req ingestItemsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("malformed request body")
	}

	count, err := h.ingestService.IngestItems(c.Context(), tenantID, req.Items)
	if err != nil {
		return err
	}

	return response.OK(c, ingestItemsResponse{IngestedCount: count})
}

// =============================================================================
// Full-Import Sessions
// =============================================================================

type startSessionRequest struct {
	Provider          string  `json:"provider"`
	InitialCheckpoint *string `json:"initial_checkpoint"`
}

type sessionBatchRequest struct {
	Items          []domain.IngestItem `json:"items"`
	NextCheckpoint *string             `json:"next_checkpoint"`
	MarkCompleted  bool                `json:"mark_completed"`
}

// StartSession opens a resumable full-history import session.
func (h *IngestHandler) StartSession(c *fiber.Ctx) error {
	tenantID, err := requireTenant(c)
	if err != nil {
		return err
	}

	var req startSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("malformed request body")
	}

	sess, err := h.sessionService.Start(c.Context(), tenantID, req.Provider, req.InitialCheckpoint)
	if err != nil {
		return err
	}

	return response.Created(c, sess)
}

// IngestSessionBatch feeds one batch into an open session, advancing its
// checkpoint and optionally marking it completed.
func (h *IngestHandler) IngestSessionBatch(c *fiber.Ctx) error {
	tenantID, err := requireTenant(c)
	if err != nil {
		return err
	}
	sessionID := c.Params("sessionID")

	var req sessionBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("malformed request body")
	}

	sess, err := h.sessionService.IngestBatch(c.Context(), sessionID, tenantID, req.Items, req.NextCheckpoint, req.MarkCompleted)
	if err != nil {
		return err
	}

	return response.OK(c, sess)
}

// SessionStatus reports a session, including its resume checkpoint.
func (h *IngestHandler) SessionStatus(c *fiber.Ctx) error {
	tenantID, err := requireTenant(c)
	if err != nil {
		return err
	}

	sess, err := h.sessionService.Status(c.Context(), c.Params("sessionID"), tenantID)
	if err != nil {
		return err
	}

	return response.OK(c, sess)
}
