package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"shoporders/internal/models"
	"shoporders/internal/orders"
)

// MemoryOrderRepo keeps orders in process. It backs tests and the
// DB_DRIVER=memory development mode.
type MemoryOrderRepo struct {
	mu     sync.RWMutex
	orders map[int64]models.Order
	emails map[int64]string // user id -> email
	nextID int64
	now    func() time.Time
}

var _ orders.Store = (*MemoryOrderRepo)(nil)

func NewMemoryOrderRepo() *MemoryOrderRepo {
	return &MemoryOrderRepo{
		orders: make(map[int64]models.Order),
		emails: make(map[int64]string),
		now:    time.Now,
	}
}

func (r *MemoryOrderRepo) SetUserEmail(userID int64, email string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails[userID] = email
}

// Insert stores o, assigning an id when o.ID is zero.
func (r *MemoryOrderRepo) Insert(o models.Order) models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o.ID == 0 {
		r.nextID++
		o.ID = r.nextID
	} else if o.ID > r.nextID {
		r.nextID = o.ID
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = r.now()
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	if o.Status == "" {
		o.Status = models.OrderStatusPending
	}
	o.CustomerEmail = ""
	r.orders[o.ID] = o
	return o
}

func (r *MemoryOrderRepo) FindByID(_ context.Context, id int64, load models.LoadOptions) (models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return models.Order{}, orders.ErrNotFound
	}
	return r.shape(o, load), nil
}

func (r *MemoryOrderRepo) FindByShop(ctx context.Context, shopID int64, filter models.OrderFilter, load models.LoadOptions) ([]models.Order, error) {
	filter.ShopID = shopID
	return r.scan(filter, "", false, nil, 0, load)
}

func (r *MemoryOrderRepo) FindByUser(ctx context.Context, userID int64, filter models.OrderFilter, load models.LoadOptions) ([]models.Order, error) {
	filter.UserID = userID
	return r.scan(filter, "", false, nil, 0, load)
}

func (r *MemoryOrderRepo) FindByIDs(_ context.Context, ids []int64, load models.LoadOptions) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Order
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if o, ok := r.orders[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, r.shape(o, load))
		}
	}
	sortDesc(out)
	return out, nil
}

func (r *MemoryOrderRepo) RangeScan(_ context.Context, filter models.OrderFilter, after *models.Position, limit int, load models.LoadOptions) ([]models.Order, error) {
	return r.scan(filter, "", false, after, limit, load)
}

func (r *MemoryOrderRepo) SearchScan(_ context.Context, filter models.OrderFilter, term string, after *models.Position, limit int, load models.LoadOptions) ([]models.Order, error) {
	return r.scan(filter, term, true, after, limit, load)
}

func (r *MemoryOrderRepo) Count(_ context.Context, filter models.OrderFilter) (int, error) {
	list, err := r.scan(filter, "", false, nil, 0, models.LoadOptions{})
	return len(list), err
}

func (r *MemoryOrderRepo) SearchCount(_ context.Context, filter models.OrderFilter, term string) (int, error) {
	list, err := r.scan(filter, term, true, nil, 0, models.LoadOptions{})
	return len(list), err
}

func (r *MemoryOrderRepo) UpdateStatus(_ context.Context, id int64, upd models.StatusUpdate, exclude []models.OrderStatus) (models.Order, models.StatusChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return models.Order{}, models.StatusChange{}, orders.ErrNotFound
	}
	if containsStatus(exclude, o.Status) {
		return models.Order{}, models.StatusChange{}, orders.ErrIllegalTransition
	}
	change := models.StatusChange{OrderID: id, ShopID: o.ShopID, From: o.Status, To: upd.Status, At: r.now()}
	o.Status = upd.Status
	o.UpdatedAt = change.At
	if upd.AssignedTo != nil {
		v := *upd.AssignedTo
		o.AssignedTo = &v
	}
	if upd.DeliveredAt != nil {
		v := *upd.DeliveredAt
		o.ActualDeliveryTime = &v
	}
	r.orders[id] = o
	return r.shape(o, models.LoadDetails), change, nil
}

func (r *MemoryOrderRepo) BatchUpdateStatus(_ context.Context, ids []int64, status models.OrderStatus, exclude []models.OrderStatus) ([]models.StatusChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	at := r.now()
	var changes []models.StatusChange
	for _, id := range ids {
		o, ok := r.orders[id]
		if !ok || o.Status == status || containsStatus(exclude, o.Status) {
			continue
		}
		changes = append(changes, models.StatusChange{OrderID: id, ShopID: o.ShopID, From: o.Status, To: status, At: at})
		o.Status = status
		o.UpdatedAt = at
		r.orders[id] = o
	}
	return changes, nil
}

func (r *MemoryOrderRepo) scan(filter models.OrderFilter, term string, search bool, after *models.Position, limit int, load models.LoadOptions) ([]models.Order, error) {
	if !filter.Scoped() {
		return nil, orders.ErrUnscoped
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	term = strings.ToLower(term)
	var out []models.Order
	for _, o := range r.orders {
		if !matches(filter, o) {
			continue
		}
		if search && !r.textMatch(o, term) {
			continue
		}
		if after != nil && !o.Position().Before(*after) {
			continue
		}
		out = append(out, r.shape(o, load))
	}
	sortDesc(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryOrderRepo) textMatch(o models.Order, term string) bool {
	return strings.Contains(strings.ToLower(o.DisplayID), term) ||
		strings.Contains(strings.ToLower(o.DeliveryAddress), term) ||
		strings.Contains(strings.ToLower(r.emails[o.UserID]), term)
}

func (r *MemoryOrderRepo) shape(o models.Order, load models.LoadOptions) models.Order {
	if load.Customer {
		o.CustomerEmail = r.emails[o.UserID]
	}
	if load.Items {
		o.Items = append([]models.OrderItem{}, o.Items...)
	} else {
		o.Items = nil
	}
	return o
}

func matches(f models.OrderFilter, o models.Order) bool {
	if f.ShopID > 0 && o.ShopID != f.ShopID {
		return false
	}
	if f.UserID > 0 && o.UserID != f.UserID {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, o.Status) {
		return false
	}
	if f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus {
		return false
	}
	if f.CreatedFrom != nil && o.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && !o.CreatedAt.Before(*f.CreatedTo) {
		return false
	}
	if f.AssignedTo != nil && (o.AssignedTo == nil || *o.AssignedTo != *f.AssignedTo) {
		return false
	}
	return true
}

func containsStatus(list []models.OrderStatus, s models.OrderStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortDesc(list []models.Order) {
	sort.Slice(list, func(i, j int) bool {
		return list[j].Position().Before(list[i].Position())
	})
}
