package inventory

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"stocktrack-backend/internal/audit"
	"stocktrack-backend/internal/auth"
	"stocktrack-backend/internal/database/dbtest"
	"stocktrack-backend/internal/models"
	"stocktrack-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type harness struct {
	db      *gorm.DB
	engine  *stock.Engine
	app     *fiber.App
	staff   models.Actor
	manager models.Actor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	db := dbtest.New(t)
	engine := stock.NewEngine(db, nil, log)
	t.Cleanup(engine.Wait)

	h := &harness{
		db:      db,
		engine:  engine,
		staff:   dbtest.User(t, db, "sam", models.RoleStaff),
		manager: dbtest.User(t, db, "maya", models.RoleManager),
	}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(log)})
	// Tests pick the actor through a header instead of a signed token.
	protected := app.Group("/api", func(c *fiber.Ctx) error {
		switch c.Get("X-Test-Actor") {
		case "staff":
			c.Locals(auth.CtxActorKey, h.staff)
		case "manager":
			c.Locals(auth.CtxActorKey, h.manager)
		}
		return c.Next()
	})
	Register(protected, Deps{Engine: engine, Activity: audit.NewWriter(db), Log: log})
	h.app = app
	return h
}

func (h *harness) do(t *testing.T, method, target, actor string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Test-Actor", actor)
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func update(id uuid.UUID, ct string, qty int) map[string]any {
	return map[string]any{"productId": id.String(), "changeType": ct, "quantityChanged": qty}
}

func TestUpdateInventory(t *testing.T) {
	h := newHarness(t)
	p := dbtest.Product(t, h.db, "SKU-H1", 10, 0, true)

	status, body := h.do(t, http.MethodPost, "/api/inventory/update", "staff", update(p.ID, "sale", 4))
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Inventory updated successfully", body["message"])

	upd := body["update"].(map[string]any)
	assert.EqualValues(t, 10, upd["quantityBefore"])
	assert.EqualValues(t, 6, upd["quantityAfter"])
	assert.EqualValues(t, -4, upd["quantityChanged"])
	assert.Equal(t, "sale", upd["changeType"])

	var logs []models.ActivityLog
	require.NoError(t, h.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActionUpdateInventory, logs[0].Action)
	assert.Equal(t, h.staff.ID, logs[0].UserID)
}

func TestUpdateInventoryErrors(t *testing.T) {
	h := newHarness(t)
	p := dbtest.Product(t, h.db, "SKU-H2", 3, 0, true)

	cases := []struct {
		name   string
		body   any
		status int
		msg    string
	}{
		{"insufficient", update(p.ID, "sale", 5), http.StatusBadRequest, "Insufficient stock. Current quantity: 3, requested change: 5"},
		{"unknown product", update(uuid.New(), "restock", 1), http.StatusNotFound, "Product not found or inactive"},
		{"bad change type", update(p.ID, "theft", 1), http.StatusBadRequest, "Invalid change type"},
		{"negative restock", update(p.ID, "restock", -1), http.StatusBadRequest, "quantityChanged can only be negative for adjustments"},
		{"bad product id", map[string]any{"productId": "nope", "changeType": "sale", "quantityChanged": 1}, http.StatusBadRequest, "productId must be a valid UUID"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := h.do(t, http.MethodPost, "/api/inventory/update", "staff", tc.body)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.msg, body["error"])
		})
	}

	status, _ := h.do(t, http.MethodPost, "/api/inventory/update", "", update(p.ID, "restock", 1))
	assert.Equal(t, http.StatusUnauthorized, status)

	assert.Equal(t, 3, dbtest.Quantity(t, h.db, p.ID))
}

func TestUpdateInventoryAcceptsZeroQuantity(t *testing.T) {
	h := newHarness(t)
	p := dbtest.Product(t, h.db, "SKU-H0", 3, 0, true)

	status, body := h.do(t, http.MethodPost, "/api/inventory/update", "staff", update(p.ID, "restock", 0))
	require.Equal(t, http.StatusOK, status, body)
	upd := body["update"].(map[string]any)
	assert.EqualValues(t, 3, upd["quantityBefore"])
	assert.EqualValues(t, 3, upd["quantityAfter"])
	assert.EqualValues(t, 0, upd["quantityChanged"])

	var n int64
	require.NoError(t, h.db.Model(&models.InventoryLog{}).Where("product_id = ?", p.ID).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestBulkUpdatePartialFailureCommits(t *testing.T) {
	h := newHarness(t)
	a := dbtest.Product(t, h.db, "SKU-B1", 10, 0, true)
	c := dbtest.Product(t, h.db, "SKU-B3", 5, 0, true)
	missing := uuid.New()

	status, body := h.do(t, http.MethodPost, "/api/inventory/bulk-update", "staff", map[string]any{
		"updates": []any{
			update(a.ID, "sale", 2),
			update(missing, "restock", 1),
			update(c.ID, "restock", 5),
		},
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Bulk inventory update completed. 2 successful, 1 failed.", body["message"])

	results := body["results"].([]any)
	require.Len(t, results, 2)
	assert.EqualValues(t, 0, results[0].(map[string]any)["index"])
	assert.EqualValues(t, 2, results[1].(map[string]any)["index"])

	errs := body["errors"].([]any)
	require.Len(t, errs, 1)
	item := errs[0].(map[string]any)
	assert.EqualValues(t, 1, item["index"])
	assert.Equal(t, missing.String(), item["productId"])
	assert.Equal(t, "Product not found or inactive", item["error"])

	assert.Equal(t, 8, dbtest.Quantity(t, h.db, a.ID))
	assert.Equal(t, 10, dbtest.Quantity(t, h.db, c.ID))
}

func TestBulkUpdateAllFailRollsBack(t *testing.T) {
	h := newHarness(t)
	a := dbtest.Product(t, h.db, "SKU-BF", 1, 0, true)

	status, body := h.do(t, http.MethodPost, "/api/inventory/bulk-update", "staff", map[string]any{
		"updates": []any{
			update(a.ID, "sale", 5),
			update(uuid.New(), "sale", 1),
		},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "All updates failed", body["error"])
	assert.Len(t, body["errors"], 2)

	assert.Equal(t, 1, dbtest.Quantity(t, h.db, a.ID))
	var n int64
	require.NoError(t, h.db.Model(&models.InventoryLog{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestBulkUpdateEnvelope(t *testing.T) {
	h := newHarness(t)
	p := dbtest.Product(t, h.db, "SKU-ENV", 1, 0, true)

	status, _ := h.do(t, http.MethodPost, "/api/inventory/bulk-update", "staff", map[string]any{"updates": []any{}})
	assert.Equal(t, http.StatusBadRequest, status)

	many := make([]any, stock.MaxBulkItems+1)
	for i := range many {
		many[i] = update(p.ID, "restock", 1)
	}
	status, body := h.do(t, http.MethodPost, "/api/inventory/bulk-update", "staff", map[string]any{"updates": many})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, fmt.Sprintf("updates must contain at most %d items", stock.MaxBulkItems), body["error"])
	assert.Equal(t, 1, dbtest.Quantity(t, h.db, p.ID))
}

func TestAlertsFlow(t *testing.T) {
	h := newHarness(t)
	p := dbtest.Product(t, h.db, "SKU-AL", 10, 5, true)

	status, _ := h.do(t, http.MethodPost, "/api/inventory/update", "staff", update(p.ID, "sale", 8))
	require.Equal(t, http.StatusOK, status)
	h.engine.Wait()

	status, body := h.do(t, http.MethodGet, "/api/inventory/alerts?unreadOnly=true", "staff", nil)
	require.Equal(t, http.StatusOK, status)
	alerts := body["alerts"].([]any)
	require.Len(t, alerts, 1)
	alert := alerts[0].(map[string]any)
	assert.Equal(t, "SKU-AL", alert["sku"])
	assert.EqualValues(t, 2, alert["quantity"])
	id := alert["id"].(string)

	pagination := body["pagination"].(map[string]any)
	assert.EqualValues(t, 1, pagination["total"])
	assert.EqualValues(t, 20, pagination["limit"])

	status, body = h.do(t, http.MethodPut, "/api/inventory/alerts/"+id+"/read", "staff", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["alert"].(map[string]any)["isRead"])

	status, body = h.do(t, http.MethodGet, "/api/inventory/alerts?unreadOnly=true", "staff", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["alerts"])

	status, _ = h.do(t, http.MethodPut, "/api/inventory/alerts/"+id+"/resolve", "staff", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = h.do(t, http.MethodPut, "/api/inventory/alerts/"+id+"/resolve", "manager", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["alert"].(map[string]any)["alertSent"])

	status, body = h.do(t, http.MethodPut, "/api/inventory/alerts/"+uuid.NewString()+"/read", "staff", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Alert not found", body["error"])

	status, _ = h.do(t, http.MethodPut, "/api/inventory/alerts/not-a-uuid/read", "staff", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestListAlertsPagination(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 5; i++ {
		p := dbtest.Product(t, h.db, fmt.Sprintf("SKU-P%d", i), 1, 5, true)
		require.NoError(t, h.db.Create(&models.StockAlert{ProductID: p.ID, Message: "low", IsRead: i%2 == 0}).Error)
	}

	status, body := h.do(t, http.MethodGet, "/api/inventory/alerts?page=2&limit=2", "staff", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["alerts"], 2)
	pagination := body["pagination"].(map[string]any)
	assert.EqualValues(t, 5, pagination["total"])
	assert.EqualValues(t, 3, pagination["pages"])

	status, body = h.do(t, http.MethodGet, "/api/inventory/alerts?unreadOnly=true", "staff", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["alerts"], 2)

	status, _ = h.do(t, http.MethodGet, "/api/inventory/alerts?page=abc", "staff", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestProductHistoryAndReconcile(t *testing.T) {
	h := newHarness(t)
	p := dbtest.Product(t, h.db, "SKU-HIST", 0, 0, true)

	for _, u := range []map[string]any{
		update(p.ID, "restock", 10),
		update(p.ID, "sale", 3),
		update(p.ID, "adjustment", -2),
	} {
		status, _ := h.do(t, http.MethodPost, "/api/inventory/update", "staff", u)
		require.Equal(t, http.StatusOK, status)
	}

	status, body := h.do(t, http.MethodGet, "/api/products/"+p.ID.String()+"/history?limit=2", "staff", nil)
	require.Equal(t, http.StatusOK, status)
	history := body["history"].([]any)
	require.Len(t, history, 2)
	newest := history[0].(map[string]any)
	assert.Equal(t, "adjustment", newest["changeType"])
	assert.Equal(t, "sam", newest["userName"])
	assert.EqualValues(t, 3, body["pagination"].(map[string]any)["total"])

	status, body = h.do(t, http.MethodGet, "/api/products/"+p.ID.String()+"/reconcile", "staff", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["consistent"])
	assert.EqualValues(t, 5, body["quantity"])
	assert.EqualValues(t, 5, body["ledgerSum"])

	status, _ = h.do(t, http.MethodGet, "/api/products/"+uuid.NewString()+"/history", "staff", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestInventorySummary(t *testing.T) {
	h := newHarness(t)
	p := dbtest.Product(t, h.db, "SKU-SUM", 6, 5, true)
	dbtest.Product(t, h.db, "SKU-OUT", 0, 2, true)

	status, _ := h.do(t, http.MethodPost, "/api/inventory/update", "staff", update(p.ID, "sale", 2))
	require.Equal(t, http.StatusOK, status)
	h.engine.Wait()

	status, body := h.do(t, http.MethodGet, "/api/inventory/summary", "staff", nil)
	require.Equal(t, http.StatusOK, status, body)

	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 2, stats["totalProducts"])
	assert.EqualValues(t, 2, stats["activeProducts"])
	assert.EqualValues(t, 2, stats["lowStockProducts"])
	assert.EqualValues(t, 1, stats["outOfStockProducts"])

	movements := body["recentMovements"].([]any)
	require.Len(t, movements, 1)
	m := movements[0].(map[string]any)
	assert.Equal(t, "SKU-SUM", m["sku"])
	assert.Equal(t, "sam", m["userName"])
	assert.EqualValues(t, -2, m["quantityChanged"])

	low := body["lowStockProducts"].([]any)
	require.Len(t, low, 2)
	assert.Equal(t, "SKU-OUT", low[0].(map[string]any)["sku"])
	assert.Equal(t, "SKU-SUM", low[1].(map[string]any)["sku"])
}
