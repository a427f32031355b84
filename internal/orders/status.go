package orders

import (
	"context"
	"fmt"
	"time"

	"shoporders/internal/models"
)

// TransitionPolicy decides which current statuses may be left.
type TransitionPolicy interface {
	// Locked returns the statuses an order cannot be moved out of.
	Locked() []models.OrderStatus
}

// AllowAll permits any status to any status. Writes are last-write-wins.
type AllowAll struct{}

func (AllowAll) Locked() []models.OrderStatus { return nil }

// TerminalGuard forbids leaving delivered, cancelled and refunded.
type TerminalGuard struct{}

func (TerminalGuard) Locked() []models.OrderStatus {
	var out []models.OrderStatus
	for _, s := range models.OrderStatuses() {
		if s.Terminal() {
			out = append(out, s)
		}
	}
	return out
}

type StatusEngine struct {
	store  Store
	policy TransitionPolicy
	now    func() time.Time
}

func NewStatusEngine(store Store, policy TransitionPolicy) *StatusEngine {
	if policy == nil {
		policy = AllowAll{}
	}
	return &StatusEngine{store: store, policy: policy, now: time.Now}
}

func (e *StatusEngine) SetStatus(ctx context.Context, id int64, upd models.StatusUpdate) (models.Order, models.StatusChange, error) {
	if !upd.Status.Valid() {
		return models.Order{}, models.StatusChange{}, fmt.Errorf("%w: %q", ErrInvalidStatus, upd.Status)
	}
	if upd.Status == models.OrderStatusDelivered && upd.DeliveredAt == nil {
		at := e.now().UTC()
		upd.DeliveredAt = &at
	}
	return e.store.UpdateStatus(ctx, id, upd, e.policy.Locked())
}

// BatchSetStatus applies status to all ids in one statement. Orders already
// at status are left untouched and not counted.
func (e *StatusEngine) BatchSetStatus(ctx context.Context, ids []int64, status models.OrderStatus) ([]models.StatusChange, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return e.store.BatchUpdateStatus(ctx, dedupe(ids), status, e.policy.Locked())
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
