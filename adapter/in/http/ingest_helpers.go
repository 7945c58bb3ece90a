// Package http implements the inbound HTTP API.
package http

import (
	"github.com/gofiber/fiber/v2"

	"ingest_server/pkg/apperr"
)

const headerTenantID = "X-Tenant-ID"

// requireTenant extracts the tenant id from the X-Tenant-ID header. Every
// route is tenant-scoped, so a missing header is a client error.
func requireTenant(c *fiber.Ctx) (string, error) {
	tenantID := c.Get(headerTenantID)
	if tenantID == "" {
		return "", apperr.MissingField(headerTenantID)
	}
	c.Locals("tenant_id", tenantID)
	return tenantID, nil
}
