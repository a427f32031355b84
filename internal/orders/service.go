package orders

import (
	"context"
	"errors"
	"log/slog"

	"shoporders/internal/models"
)

// StatusObserver receives applied status changes, e.g. an audit or
// notification pipeline. Errors are logged and never fail the write.
type StatusObserver interface {
	StatusChanged(ctx context.Context, changes []models.StatusChange) error
}

type ObserverFunc func(ctx context.Context, changes []models.StatusChange) error

func (f ObserverFunc) StatusChanged(ctx context.Context, changes []models.StatusChange) error {
	return f(ctx, changes)
}

// Service wires the planner and the status engine to callers. Callers must
// have authorized the principal for the shop before calling in.
type Service struct {
	store     Store
	planner   *Planner
	engine    *StatusEngine
	observers []StatusObserver
	log       *slog.Logger
}

func NewService(store Store, planner *Planner, engine *StatusEngine, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, planner: planner, engine: engine, log: log}
}

func (s *Service) Subscribe(o StatusObserver) {
	s.observers = append(s.observers, o)
}

func (s *Service) ListShopOrders(ctx context.Context, shopID int64, req ListRequest) (Page, error) {
	req.Filter.ShopID = shopID
	if shopID <= 0 {
		return Page{}, ErrUnscoped
	}
	return s.planner.List(ctx, req)
}

func (s *Service) ListUserOrders(ctx context.Context, userID int64, req ListRequest) (Page, error) {
	req.Filter.UserID = userID
	if userID <= 0 {
		return Page{}, ErrUnscoped
	}
	return s.planner.List(ctx, req)
}

func (s *Service) CountShopOrders(ctx context.Context, shopID int64, filter models.OrderFilter) (int, error) {
	filter.ShopID = shopID
	if shopID <= 0 {
		return 0, ErrUnscoped
	}
	return s.store.Count(ctx, filter)
}

// GetByID reports a missing order as found == false.
func (s *Service) GetByID(ctx context.Context, id int64) (models.Order, bool, error) {
	o, err := s.store.FindByID(ctx, id, models.LoadDetails)
	if errors.Is(err, ErrNotFound) {
		return models.Order{}, false, nil
	}
	if err != nil {
		return models.Order{}, false, err
	}
	return o, true, nil
}

// FindByIDs returns the known orders among ids without items or customer data.
func (s *Service) FindByIDs(ctx context.Context, ids []int64) ([]models.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.store.FindByIDs(ctx, ids, models.LoadOptions{})
}

func (s *Service) SetStatus(ctx context.Context, id int64, upd models.StatusUpdate) (models.Order, error) {
	o, change, err := s.engine.SetStatus(ctx, id, upd)
	if err != nil {
		return models.Order{}, err
	}
	s.notify(ctx, []models.StatusChange{change})
	return o, nil
}

func (s *Service) BatchSetStatus(ctx context.Context, ids []int64, status models.OrderStatus) (int, error) {
	changes, err := s.engine.BatchSetStatus(ctx, ids, status)
	if err != nil {
		return 0, err
	}
	if len(changes) > 0 {
		s.notify(ctx, changes)
	}
	return len(changes), nil
}

func (s *Service) notify(ctx context.Context, changes []models.StatusChange) {
	for _, o := range s.observers {
		if err := o.StatusChanged(ctx, changes); err != nil {
			s.log.WarnContext(ctx, "status observer failed", slog.Any("err", err), slog.Int("changes", len(changes)))
		}
	}
}
