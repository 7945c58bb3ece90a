package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"ingest_server/core/port/out"
	"ingest_server/pkg/apperr"
	"ingest_server/pkg/response"
)

// =============================================================================
// Email Read Handler
// =============================================================================

// EmailHandler serves read access to stored records, mainly for operational
// verification of what a sync or import actually landed.
type EmailHandler struct {
	emailRepo out.EmailRepository
}

// NewEmailHandler creates a new email read handler.
func NewEmailHandler(emailRepo out.EmailRepository) *EmailHandler {
	return &EmailHandler{emailRepo: emailRepo}
}

// Register mounts the email read routes.
func (h *EmailHandler) Register(app fiber.Router) {
	grp := app.Group("/emails")
	grp.Get("/", h.ListEmails)
	grp.Get("/:externalID", h.GetEmail)
}

// ListEmails returns the tenant's records newest first, floored at an
// optional since timestamp.
func (h *EmailHandler) ListEmails(c *fiber.Ctx) error {
	tenantID, err := requireTenant(c)
	if err != nil {
		return err
	}

	since := time.Time{}
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return apperr.BadRequest("since must be RFC 3339")
		}
		since = parsed
	}

	limit := c.QueryInt("limit", 100)
	records, err := h.emailRepo.ListRange(c.Context(), tenantID, since, limit)
	if err != nil {
		return err
	}

	return response.OKWithMeta(c, records, &response.Meta{
		Total:   len(records),
		HasMore: len(records) == limit,
	})
}

// GetEmail is a point lookup by provider-assigned external id.
func (h *EmailHandler) GetEmail(c *fiber.Ctx) error {
	tenantID, err := requireTenant(c)
	if err != nil {
		return err
	}

	record, err := h.emailRepo.GetByExternalID(c.Context(), tenantID, c.Params("externalID"))
	if err != nil {
		return err
	}
	if record == nil {
		return apperr.NotFound("email")
	}

	return response.OK(c, record)
}
