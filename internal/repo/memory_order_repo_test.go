package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shoporders/internal/models"
	"shoporders/internal/orders"
)

func TestMemoryInsertDefaults(t *testing.T) {
	r := NewMemoryOrderRepo()
	o := r.Insert(models.Order{ShopID: 1})
	assert.Equal(t, int64(1), o.ID)
	assert.Equal(t, models.OrderStatusPending, o.Status)
	assert.False(t, o.CreatedAt.IsZero())

	o = r.Insert(models.Order{ID: 10, ShopID: 1})
	assert.Equal(t, int64(10), o.ID)
	assert.Equal(t, int64(11), r.Insert(models.Order{ShopID: 1}).ID)
}

func TestMemoryRangeScanTieBreak(t *testing.T) {
	r := NewMemoryOrderRepo()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for id := int64(1); id <= 4; id++ {
		r.Insert(models.Order{ID: id, ShopID: 1, CreatedAt: at})
	}

	ctx := context.Background()
	filter := models.OrderFilter{ShopID: 1}
	after := models.Position{CreatedAt: at, ID: 3}
	list, err := r.RangeScan(ctx, filter, &after, 10, models.LoadOptions{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].ID)
	assert.Equal(t, int64(1), list[1].ID)

	_, err = r.RangeScan(ctx, models.OrderFilter{}, nil, 10, models.LoadOptions{})
	assert.ErrorIs(t, err, orders.ErrUnscoped)
}

func TestMemoryLoadOptions(t *testing.T) {
	r := NewMemoryOrderRepo()
	r.SetUserEmail(7, "Dana@Example.com")
	r.Insert(models.Order{ID: 1, ShopID: 1, UserID: 7, Items: []models.OrderItem{{ID: 1, OrderID: 1, Quantity: 2}}})
	ctx := context.Background()

	bare, err := r.FindByID(ctx, 1, models.LoadOptions{})
	require.NoError(t, err)
	assert.Empty(t, bare.CustomerEmail)
	assert.Nil(t, bare.Items)

	full, err := r.FindByID(ctx, 1, models.LoadDetails)
	require.NoError(t, err)
	assert.Equal(t, "Dana@Example.com", full.CustomerEmail)
	assert.Len(t, full.Items, 1)

	hits, err := r.SearchScan(ctx, models.OrderFilter{ShopID: 1}, "dana@", nil, 10, models.LoadOptions{})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestMemoryShopRepo(t *testing.T) {
	r := NewMemoryShopRepo(models.Shop{ID: 1, OwnerID: 5})
	ctx := context.Background()

	ok, err := r.IsMember(ctx, 1, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = r.IsMember(ctx, 1, 6)
	assert.False(t, ok)
	ok, _ = r.IsMember(ctx, 2, 5)
	assert.False(t, ok)
}

func TestMemoryFindByScope(t *testing.T) {
	r := NewMemoryOrderRepo()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.Insert(models.Order{ID: 1, ShopID: 1, UserID: 5, CreatedAt: at})
	r.Insert(models.Order{ID: 2, ShopID: 1, UserID: 6, CreatedAt: at.Add(time.Hour), Status: models.OrderStatusShipped})
	r.Insert(models.Order{ID: 3, ShopID: 2, UserID: 5, CreatedAt: at.Add(2 * time.Hour)})
	ctx := context.Background()

	list, err := r.FindByShop(ctx, 1, models.OrderFilter{}, models.LoadOptions{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].ID)

	list, err = r.FindByShop(ctx, 1, models.OrderFilter{Statuses: []models.OrderStatus{models.OrderStatusPending}}, models.LoadOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].ID)

	list, err = r.FindByUser(ctx, 5, models.OrderFilter{}, models.LoadOptions{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(3), list[0].ID)

	list, err = r.FindByIDs(ctx, []int64{1, 3, 3, 42}, models.LoadOptions{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
