package orders

import (
	"context"
	"errors"

	"shoporders/internal/models"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrUnscoped          = errors.New("order query needs a shop or user scope")
	ErrOrderingViolated  = errors.New("store returned orders out of pagination order")
)

// Store is the persistence port for orders. Every listing is ordered by
// (created_at DESC, id DESC).
type Store interface {
	FindByID(ctx context.Context, id int64, load models.LoadOptions) (models.Order, error)
	FindByShop(ctx context.Context, shopID int64, filter models.OrderFilter, load models.LoadOptions) ([]models.Order, error)
	FindByUser(ctx context.Context, userID int64, filter models.OrderFilter, load models.LoadOptions) ([]models.Order, error)
	FindByIDs(ctx context.Context, ids []int64, load models.LoadOptions) ([]models.Order, error)

	// RangeScan returns up to limit orders strictly after the position.
	// A nil position starts at the newest order.
	RangeScan(ctx context.Context, filter models.OrderFilter, after *models.Position, limit int, load models.LoadOptions) ([]models.Order, error)
	// SearchScan is RangeScan restricted to orders whose display id, delivery
	// address or customer email contains term, case-insensitively.
	SearchScan(ctx context.Context, filter models.OrderFilter, term string, after *models.Position, limit int, load models.LoadOptions) ([]models.Order, error)

	// UpdateStatus overwrites the status of one order and returns the
	// updated row with the previous status. It fails with ErrNotFound for
	// an unknown id and ErrIllegalTransition when the current status is in
	// exclude.
	UpdateStatus(ctx context.Context, id int64, upd models.StatusUpdate, exclude []models.OrderStatus) (models.Order, models.StatusChange, error)
	// BatchUpdateStatus sets status on every listed order that is not
	// already at status and whose current status is not in exclude, in a
	// single statement.
	BatchUpdateStatus(ctx context.Context, ids []int64, status models.OrderStatus, exclude []models.OrderStatus) ([]models.StatusChange, error)

	Count(ctx context.Context, filter models.OrderFilter) (int, error)
	SearchCount(ctx context.Context, filter models.OrderFilter, term string) (int, error)
}
