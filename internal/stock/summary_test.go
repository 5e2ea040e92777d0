package stock

import (
	"context"
	"sync"
	"testing"
	"time"

	"stocktrack-backend/internal/database/dbtest"
	"stocktrack-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func TestSummaryEmptyCatalog(t *testing.T) {
	f := newFixture(t)

	s, err := f.engine.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, InventoryStats{}, s.Stats)
	assert.NotNil(t, s.RecentMovements)
	assert.Empty(t, s.RecentMovements)
	assert.NotNil(t, s.LowStockProducts)
	assert.Empty(t, s.LowStockProducts)
}

func TestSummary(t *testing.T) {
	db := dbtest.New(t)
	engine := NewEngine(db, &recordingPublisher{}, zaptest.NewLogger(t),
		WithClock(steppingClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))))
	t.Cleanup(engine.Wait)
	actor := dbtest.User(t, db, "alice", models.RoleStaff)
	ctx := context.Background()

	cat := models.Category{Name: "Beverages"}
	require.NoError(t, db.Create(&cat).Error)

	healthy := dbtest.Product(t, db, "SKU-A", 10, 5, true)
	low := dbtest.Product(t, db, "SKU-B", 2, 5, true)
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", low.ID).Update("category_id", cat.ID).Error)
	empty := dbtest.Product(t, db, "SKU-C", 0, 3, true)
	noThreshold := dbtest.Product(t, db, "SKU-D", 0, 0, true)
	dbtest.Product(t, db, "SKU-E", 0, 5, false)

	for i := 0; i < SummaryListLimit+2; i++ {
		_, err := engine.Adjust(ctx, actor, AdjustRequest{
			ProductID:       healthy.ID.String(),
			ChangeType:      "restock",
			QuantityChanged: 1,
		})
		require.NoError(t, err)
	}
	engine.Wait()

	s, err := engine.Summary(ctx)
	require.NoError(t, err)

	assert.Equal(t, InventoryStats{
		TotalProducts:      5,
		ActiveProducts:     4,
		LowStockProducts:   3,
		OutOfStockProducts: 2,
	}, s.Stats)

	require.Len(t, s.RecentMovements, SummaryListLimit)
	newest := s.RecentMovements[0]
	assert.Equal(t, healthy.ID, newest.ProductID)
	assert.Equal(t, "SKU-A", newest.SKU)
	assert.Equal(t, healthy.Name, newest.ProductName)
	assert.Equal(t, "alice", newest.UserName)
	assert.Equal(t, models.ChangeRestock, newest.ChangeType)
	assert.Equal(t, 10+SummaryListLimit+2, newest.QuantityAfter)
	for i := 1; i < len(s.RecentMovements); i++ {
		assert.True(t, s.RecentMovements[i-1].Timestamp.After(s.RecentMovements[i].Timestamp))
	}

	require.Len(t, s.LowStockProducts, 3)
	assert.Equal(t, empty.ID, s.LowStockProducts[0].ID)
	assert.Nil(t, s.LowStockProducts[0].CategoryName)
	assert.Equal(t, low.ID, s.LowStockProducts[1].ID)
	require.NotNil(t, s.LowStockProducts[1].CategoryName)
	assert.Equal(t, "Beverages", *s.LowStockProducts[1].CategoryName)
	assert.Equal(t, noThreshold.ID, s.LowStockProducts[2].ID)
}
