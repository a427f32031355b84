package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"shoporders/internal/models"
	"shoporders/internal/pagination"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Strategy names a retrieval path.
type Strategy string

const (
	StrategyIndexed Strategy = "indexed" // native keyset continuation
	StrategySearch  Strategy = "search"  // expanded range predicate plus text match
)

type ListRequest struct {
	Filter       models.OrderFilter
	Limit        int
	Cursor       string
	Search       string
	Load         models.LoadOptions
	IncludeTotal bool
}

type Page struct {
	Orders     []models.Order
	NextCursor string // empty at the end of the sequence
	Total      *int   // set when IncludeTotal was requested
	Strategy   Strategy
}

// scanner fetches up to limit rows after a position. Both strategies share
// everything else in Planner.Run.
type scanner interface {
	scan(ctx context.Context, req ListRequest, after *models.Position, limit int) ([]models.Order, error)
	count(ctx context.Context, req ListRequest) (int, error)
}

type indexedScan struct{ store Store }

func (s indexedScan) scan(ctx context.Context, req ListRequest, after *models.Position, limit int) ([]models.Order, error) {
	return s.store.RangeScan(ctx, req.Filter, after, limit, req.Load)
}

func (s indexedScan) count(ctx context.Context, req ListRequest) (int, error) {
	return s.store.Count(ctx, req.Filter)
}

type searchScan struct{ store Store }

func (s searchScan) scan(ctx context.Context, req ListRequest, after *models.Position, limit int) ([]models.Order, error) {
	return s.store.SearchScan(ctx, req.Filter, strings.TrimSpace(req.Search), after, limit, req.Load)
}

func (s searchScan) count(ctx context.Context, req ListRequest) (int, error) {
	return s.store.SearchCount(ctx, req.Filter, strings.TrimSpace(req.Search))
}

type Planner struct {
	store       Store
	log         *slog.Logger
	defaultSize int
	maxSize     int
}

type PlannerOption func(*Planner)

func WithPageSizes(def, max int) PlannerOption {
	return func(p *Planner) {
		if max > 0 {
			p.maxSize = max
		}
		if def > 0 {
			p.defaultSize = def
		}
		if p.defaultSize > p.maxSize {
			p.defaultSize = p.maxSize
		}
	}
}

func WithPlannerLogger(log *slog.Logger) PlannerOption {
	return func(p *Planner) { p.log = log }
}

func NewPlanner(store Store, opts ...PlannerOption) *Planner {
	p := &Planner{
		store:       store,
		log:         slog.Default(),
		defaultSize: DefaultPageSize,
		maxSize:     MaxPageSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan picks the retrieval path: a non-blank search term forces the search path.
func (p *Planner) Plan(req ListRequest) Strategy {
	if strings.TrimSpace(req.Search) != "" {
		return StrategySearch
	}
	return StrategyIndexed
}

func (p *Planner) List(ctx context.Context, req ListRequest) (Page, error) {
	return p.Run(ctx, req, p.Plan(req))
}

// Run executes req on the given strategy. A cursor that cannot be decoded
// is treated as absent and the first page is returned.
func (p *Planner) Run(ctx context.Context, req ListRequest, strategy Strategy) (Page, error) {
	if !req.Filter.Scoped() {
		return Page{}, ErrUnscoped
	}
	limit := p.pageSize(req.Limit)

	var after *models.Position
	if req.Cursor != "" {
		if pos, ok := pagination.Decode(req.Cursor); ok {
			after = &pos
		} else {
			p.log.DebugContext(ctx, "discarding undecodable cursor",
				slog.Int64("shop_id", req.Filter.ShopID), slog.Int("cursor_len", len(req.Cursor)))
		}
	}

	var sc scanner
	switch strategy {
	case StrategySearch:
		sc = searchScan{store: p.store}
	default:
		strategy = StrategyIndexed
		sc = indexedScan{store: p.store}
	}

	var (
		rows  []models.Order
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = sc.scan(gctx, req, after, limit+1)
		if err != nil {
			return fmt.Errorf("%s scan: %w", strategy, err)
		}
		return nil
	})
	if req.IncludeTotal {
		g.Go(func() error {
			var err error
			total, err = sc.count(gctx, req)
			if err != nil {
				return fmt.Errorf("%s count: %w", strategy, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Page{}, err
	}

	if err := checkOrdering(rows, after); err != nil {
		return Page{}, err
	}

	page := Page{Strategy: strategy}
	if len(rows) > limit {
		rows = rows[:limit]
		page.NextCursor = pagination.Encode(rows[len(rows)-1].Position())
	}
	page.Orders = rows
	if req.IncludeTotal {
		page.Total = &total
	}
	return page, nil
}

func (p *Planner) pageSize(n int) int {
	if n <= 0 {
		return p.defaultSize
	}
	if n > p.maxSize {
		return p.maxSize
	}
	return n
}

// checkOrdering fails when rows are not strictly descending or do not start
// after the cursor position.
func checkOrdering(rows []models.Order, after *models.Position) error {
	prev := after
	for i := range rows {
		cur := rows[i].Position()
		if prev != nil && !cur.Before(*prev) {
			return fmt.Errorf("%w: order %d at index %d", ErrOrderingViolated, rows[i].ID, i)
		}
		prev = &cur
	}
	return nil
}
