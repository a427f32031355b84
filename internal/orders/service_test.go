package orders_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shoporders/internal/models"
	"shoporders/internal/orders"
	"shoporders/internal/repo"
)

func newService(store orders.Store, policy orders.TransitionPolicy) *orders.Service {
	return orders.NewService(store, orders.NewPlanner(store), orders.NewStatusEngine(store, policy), nil)
}

// plainShop holds pending orders 1..n in shop 1, newest last.
func plainShop(n int) *repo.MemoryOrderRepo {
	store := repo.NewMemoryOrderRepo()
	for i := 1; i <= n; i++ {
		store.Insert(newOrder(int64(i), 1, base.Add(time.Duration(i)*time.Minute)))
	}
	return store
}

func TestServiceGetByID(t *testing.T) {
	store := seedShop(t, 5)
	svc := newService(store, nil)
	ctx := context.Background()

	o, found, err := svc.GetByID(ctx, 3)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(3), o.ID)
	assert.Equal(t, "alice@example.com", o.CustomerEmail)

	_, found, err = svc.GetByID(ctx, 9999)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestServiceListScopes(t *testing.T) {
	store := seedShop(t, 9)
	svc := newService(store, nil)
	ctx := context.Background()

	page, err := svc.ListShopOrders(ctx, 2, orders.ListRequest{Filter: models.OrderFilter{ShopID: 1}, Limit: 50})
	require.NoError(t, err)
	require.Len(t, page.Orders, 7)
	for _, o := range page.Orders {
		assert.Equal(t, int64(2), o.ShopID)
	}

	page, err = svc.ListUserOrders(ctx, 101, orders.ListRequest{Limit: 50})
	require.NoError(t, err)
	require.NotEmpty(t, page.Orders)
	for _, o := range page.Orders {
		assert.Equal(t, int64(101), o.UserID)
	}

	_, err = svc.ListShopOrders(ctx, 0, orders.ListRequest{})
	assert.ErrorIs(t, err, orders.ErrUnscoped)

	n, err := svc.CountShopOrders(ctx, 1, models.OrderFilter{Statuses: []models.OrderStatus{models.OrderStatusPending}})
	require.NoError(t, err)
	assert.Equal(t, 7, n) // every fifth seeded order is delivered
}

func TestSetStatusOverwritesAndNotifies(t *testing.T) {
	store := plainShop(5)
	svc := newService(store, orders.AllowAll{})
	ctx := context.Background()

	var got []models.StatusChange
	svc.Subscribe(orders.ObserverFunc(func(_ context.Context, changes []models.StatusChange) error {
		got = append(got, changes...)
		return nil
	}))

	agent := int64(77)
	o, err := svc.SetStatus(ctx, 2, models.StatusUpdate{Status: models.OrderStatusOutForDelivery, AssignedTo: &agent})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusOutForDelivery, o.Status)
	require.NotNil(t, o.AssignedTo)
	assert.Equal(t, agent, *o.AssignedTo)

	// no legality check without a guard: delivered back to pending is accepted
	_, err = svc.SetStatus(ctx, 2, models.StatusUpdate{Status: models.OrderStatusDelivered})
	require.NoError(t, err)
	o, err = svc.SetStatus(ctx, 2, models.StatusUpdate{Status: models.OrderStatusPending})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, o.Status)

	require.Len(t, got, 3)
	assert.Equal(t, models.StatusChange{OrderID: 2, ShopID: 1, From: models.OrderStatusPending, To: models.OrderStatusOutForDelivery, At: got[0].At}, got[0])
	assert.Equal(t, models.OrderStatusOutForDelivery, got[1].From)
	assert.Equal(t, models.OrderStatusDelivered, got[2].From)
}

func TestSetStatusStampsDeliveryTime(t *testing.T) {
	store := plainShop(5)
	svc := newService(store, nil)
	before := time.Now().Add(-time.Second)

	o, err := svc.SetStatus(context.Background(), 2, models.StatusUpdate{Status: models.OrderStatusDelivered})
	require.NoError(t, err)
	require.NotNil(t, o.ActualDeliveryTime)
	assert.True(t, o.ActualDeliveryTime.After(before))

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	o, err = svc.SetStatus(context.Background(), 3, models.StatusUpdate{Status: models.OrderStatusDelivered, DeliveredAt: &at})
	require.NoError(t, err)
	assert.True(t, at.Equal(*o.ActualDeliveryTime))
}

func TestSetStatusErrors(t *testing.T) {
	store := plainShop(5)
	svc := newService(store, nil)
	ctx := context.Background()

	_, err := svc.SetStatus(ctx, 2, models.StatusUpdate{Status: "teleported"})
	assert.ErrorIs(t, err, orders.ErrInvalidStatus)

	_, err = svc.SetStatus(ctx, 404, models.StatusUpdate{Status: models.OrderStatusShipped})
	assert.ErrorIs(t, err, orders.ErrNotFound)

	_, err = svc.BatchSetStatus(ctx, []int64{1, 2}, "teleported")
	assert.ErrorIs(t, err, orders.ErrInvalidStatus)
}

func TestBatchSetStatusIsIdempotent(t *testing.T) {
	store := plainShop(10)
	svc := newService(store, nil)
	ctx := context.Background()

	var notified int
	svc.Subscribe(orders.ObserverFunc(func(_ context.Context, changes []models.StatusChange) error {
		notified += len(changes)
		return nil
	}))

	targets := []int64{1, 2, 3, 4, 4, 999}
	n, err := svc.BatchSetStatus(ctx, targets, models.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = svc.BatchSetStatus(ctx, targets, models.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "rows already at the target status are not rewritten")

	list, err := store.FindByIDs(ctx, []int64{1, 2, 3, 4}, models.LoadOptions{})
	require.NoError(t, err)
	for _, o := range list {
		assert.Equal(t, models.OrderStatusShipped, o.Status)
	}
	assert.Equal(t, 4, notified)

	n, err = svc.BatchSetStatus(ctx, nil, models.OrderStatusShipped)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTerminalGuard(t *testing.T) {
	store := repo.NewMemoryOrderRepo()
	store.Insert(newOrder(1, 1, base))
	delivered := newOrder(2, 1, base)
	delivered.Status = models.OrderStatusDelivered
	store.Insert(delivered)
	cancelled := newOrder(3, 1, base)
	cancelled.Status = models.OrderStatusCancelled
	store.Insert(cancelled)

	svc := newService(store, orders.TerminalGuard{})
	ctx := context.Background()

	_, err := svc.SetStatus(ctx, 2, models.StatusUpdate{Status: models.OrderStatusPending})
	assert.ErrorIs(t, err, orders.ErrIllegalTransition)

	o, err := svc.SetStatus(ctx, 1, models.StatusUpdate{Status: models.OrderStatusConfirmed})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, o.Status)

	n, err := svc.BatchSetStatus(ctx, []int64{1, 2, 3}, models.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.FindByID(ctx, 3, models.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, got.Status)
}

func TestObserverFailureDoesNotFailWrite(t *testing.T) {
	store := plainShop(3)
	svc := newService(store, nil)
	svc.Subscribe(orders.ObserverFunc(func(context.Context, []models.StatusChange) error {
		return errors.New("audit sink down")
	}))

	o, err := svc.SetStatus(context.Background(), 1, models.StatusUpdate{Status: models.OrderStatusConfirmed})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, o.Status)
}
