package inventory

import (
	"stocktrack-backend/internal/auth"
	"stocktrack-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Register mounts the inventory routes on an authenticated router.
func Register(protected fiber.Router, d Deps) {
	inv := protected.Group("/inventory")
	inv.Post("/update", UpdateInventoryHandler(d))
	inv.Post("/bulk-update", BulkUpdateInventoryHandler(d))
	inv.Get("/summary", SummaryHandler(d))
	inv.Get("/alerts", ListAlertsHandler(d))
	inv.Put("/alerts/:id/read", AcknowledgeAlertHandler(d))
	inv.Put("/alerts/:id/resolve", auth.RequireRole(models.RoleManager), ResolveAlertHandler(d))

	products := protected.Group("/products")
	products.Get("/:id/history", ProductHistoryHandler(d))
	products.Get("/:id/reconcile", ReconcileHandler(d))
}
