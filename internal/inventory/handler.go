package inventory

import (
	"fmt"
	"strconv"

	"stocktrack-backend/internal/audit"
	"stocktrack-backend/internal/auth"
	"stocktrack-backend/internal/models"
	"stocktrack-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Deps struct {
	Engine   *stock.Engine
	Activity *audit.Writer
	Log      *zap.Logger
}

func actorOf(c *fiber.Ctx) (models.Actor, error) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		return models.Actor{}, fiber.NewError(fiber.StatusUnauthorized, "Not authenticated")
	}
	return actor, nil
}

func uuidParam(c *fiber.Ctx, name, resource string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Invalid %s id", resource))
	}
	return id, nil
}

func pageQuery(c *fiber.Ctx) (int, int, error) {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil {
		return 0, 0, fiber.NewError(fiber.StatusBadRequest, "page must be an integer")
	}
	limit, err := strconv.Atoi(c.Query("limit", "20"))
	if err != nil {
		return 0, 0, fiber.NewError(fiber.StatusBadRequest, "limit must be an integer")
	}
	return page, limit, nil
}

// record writes an activity row without failing the request.
func (d Deps) record(c *fiber.Ctx, actor models.Actor, action models.ActivityAction, resourceType string, resourceID *uuid.UUID, details any) {
	if d.Activity == nil {
		return
	}
	err := d.Activity.WriteLog(c.UserContext(), audit.LogOptions{
		UserID:       actor.ID,
		UserName:     actor.Name,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Action:       action,
		Details:      details,
		IPAddress:    c.IP(),
		UserAgent:    c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		d.Log.Warn("activity log failed",
			zap.String("action", string(action)),
			zap.String("actor_id", actor.ID.String()),
			zap.Error(err),
		)
	}
}

// POST /api/inventory/update
func UpdateInventoryHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := actorOf(c)
		if err != nil {
			return err
		}

		var body stock.AdjustRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		res, err := d.Engine.Adjust(c.UserContext(), actor, body)
		if err != nil {
			return d.httpError(err, "Failed to update inventory")
		}

		d.record(c, actor, models.ActionUpdateInventory, "inventory", &res.ProductID, body)

		return c.JSON(fiber.Map{
			"message": "Inventory updated successfully",
			"update":  res,
		})
	}
}

// POST /api/inventory/bulk-update
func BulkUpdateInventoryHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := actorOf(c)
		if err != nil {
			return err
		}

		var body stock.BulkAdjustRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		res, err := d.Engine.BulkAdjust(c.UserContext(), actor, body)
		if err != nil {
			return d.httpError(err, "Failed to perform bulk inventory update")
		}

		d.record(c, actor, models.ActionBulkUpdateInventory, "inventory", nil, fiber.Map{
			"items":     len(body.Updates),
			"succeeded": len(res.Results),
			"failed":    len(res.Errors),
		})

		out := fiber.Map{
			"message": fmt.Sprintf("Bulk inventory update completed. %d successful, %d failed.", len(res.Results), len(res.Errors)),
			"results": res.Results,
		}
		if len(res.Errors) > 0 {
			out["errors"] = res.Errors
		}
		return c.JSON(out)
	}
}

// GET /api/inventory/alerts?page=&limit=&unreadOnly=
func ListAlertsHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, limit, err := pageQuery(c)
		if err != nil {
			return err
		}

		res, err := d.Engine.ListAlerts(c.UserContext(), stock.AlertFilter{
			UnreadOnly: c.QueryBool("unreadOnly", false),
			Page:       page,
			Limit:      limit,
		})
		if err != nil {
			return d.httpError(err, "Failed to fetch alerts")
		}
		return c.JSON(res)
	}
}

// PUT /api/inventory/alerts/:id/read
func AcknowledgeAlertHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := actorOf(c)
		if err != nil {
			return err
		}
		id, err := uuidParam(c, "id", "alert")
		if err != nil {
			return err
		}

		alert, err := d.Engine.AcknowledgeAlert(c.UserContext(), id)
		if err != nil {
			return d.httpError(err, "Failed to mark alert as read")
		}

		d.record(c, actor, models.ActionAcknowledgeAlert, "stock_alert", &alert.ID, nil)

		return c.JSON(fiber.Map{
			"message": "Alert marked as read",
			"alert":   alert,
		})
	}
}

// PUT /api/inventory/alerts/:id/resolve
func ResolveAlertHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := actorOf(c)
		if err != nil {
			return err
		}
		id, err := uuidParam(c, "id", "alert")
		if err != nil {
			return err
		}

		alert, err := d.Engine.ResolveAlert(c.UserContext(), id)
		if err != nil {
			return d.httpError(err, "Failed to resolve alert")
		}

		d.record(c, actor, models.ActionResolveAlert, "stock_alert", &alert.ID, nil)

		return c.JSON(fiber.Map{
			"message": "Alert resolved",
			"alert":   alert,
		})
	}
}

// GET /api/inventory/summary
func SummaryHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := d.Engine.Summary(c.UserContext())
		if err != nil {
			return d.httpError(err, "Failed to fetch inventory summary")
		}
		return c.JSON(res)
	}
}

// GET /api/products/:id/history?page=&limit=
func ProductHistoryHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := uuidParam(c, "id", "product")
		if err != nil {
			return err
		}
		page, limit, err := pageQuery(c)
		if err != nil {
			return err
		}

		res, err := d.Engine.History(c.UserContext(), id, page, limit)
		if err != nil {
			return d.httpError(err, "Failed to fetch product history")
		}
		return c.JSON(res)
	}
}

// GET /api/products/:id/reconcile
func ReconcileHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := uuidParam(c, "id", "product")
		if err != nil {
			return err
		}

		res, err := d.Engine.Reconcile(c.UserContext(), id)
		if err != nil {
			return d.httpError(err, "Failed to reconcile product")
		}
		return c.JSON(res)
	}
}
