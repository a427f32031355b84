package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"shoporders/internal/models"
	"shoporders/internal/orders"
)

type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

var _ orders.Store = (*OrderRepo)(nil)

const orderColumns = `
	o.id, o.display_id, o.shop_id, o.user_id, o.order_status, o.payment_status, o.payment_method,
	o.total_price, o.delivery_address, o.assigned_to, o.actual_delivery_time, o.created_at, o.updated_at,
	COALESCE(u.email, '')`

const orderFrom = `
	FROM orders o
	LEFT JOIN users u ON u.id = o.user_id`

const orderBy = `
	ORDER BY o.created_at DESC, o.id DESC`

func (r *OrderRepo) FindByID(ctx context.Context, id int64, load models.LoadOptions) (models.Order, error) {
	query := `SELECT` + orderColumns + orderFrom + ` WHERE o.id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id), load)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Order{}, orders.ErrNotFound
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("find order %d: %w", id, err)
	}
	if load.Items {
		list := []models.Order{order}
		if err := r.attachItems(ctx, list); err != nil {
			return models.Order{}, err
		}
		order = list[0]
	}
	return order, nil
}

func (r *OrderRepo) FindByShop(ctx context.Context, shopID int64, filter models.OrderFilter, load models.LoadOptions) ([]models.Order, error) {
	filter.ShopID = shopID
	return r.list(ctx, filter, load)
}

func (r *OrderRepo) FindByUser(ctx context.Context, userID int64, filter models.OrderFilter, load models.LoadOptions) ([]models.Order, error) {
	filter.UserID = userID
	return r.list(ctx, filter, load)
}

func (r *OrderRepo) FindByIDs(ctx context.Context, ids []int64, load models.LoadOptions) ([]models.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT` + orderColumns + orderFrom + ` WHERE o.id = ANY($1::bigint[])` + orderBy
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("find orders by ids: %w", err)
	}
	return r.collect(ctx, rows, load)
}

// RangeScan continues with a row-value comparison, which Postgres serves
// straight from the (shop_id, created_at DESC, id DESC) index.
func (r *OrderRepo) RangeScan(ctx context.Context, filter models.OrderFilter, after *models.Position, limit int, load models.LoadOptions) ([]models.Order, error) {
	if !filter.Scoped() {
		return nil, orders.ErrUnscoped
	}
	w := filterWhere(filter)
	if after != nil {
		w.add(fmt.Sprintf("(o.created_at, o.id) < (%s, %s)", w.arg(after.CreatedAt), w.arg(after.ID)))
	}
	return r.page(ctx, w, limit, load)
}

// SearchScan spells the continuation out as an OR of two ranges so it can be
// combined with the text predicate.
func (r *OrderRepo) SearchScan(ctx context.Context, filter models.OrderFilter, term string, after *models.Position, limit int, load models.LoadOptions) ([]models.Order, error) {
	if !filter.Scoped() {
		return nil, orders.ErrUnscoped
	}
	w := filterWhere(filter)
	w.search(term)
	if after != nil {
		at, id := w.arg(after.CreatedAt), w.arg(after.ID)
		w.add(fmt.Sprintf("(o.created_at < %s OR (o.created_at = %s AND o.id < %s))", at, at, id))
	}
	return r.page(ctx, w, limit, load)
}

func (r *OrderRepo) Count(ctx context.Context, filter models.OrderFilter) (int, error) {
	if !filter.Scoped() {
		return 0, orders.ErrUnscoped
	}
	return r.count(ctx, filterWhere(filter))
}

func (r *OrderRepo) SearchCount(ctx context.Context, filter models.OrderFilter, term string) (int, error) {
	if !filter.Scoped() {
		return 0, orders.ErrUnscoped
	}
	w := filterWhere(filter)
	w.search(term)
	return r.count(ctx, w)
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, id int64, upd models.StatusUpdate, exclude []models.OrderStatus) (models.Order, models.StatusChange, error) {
	query := `
		WITH prev AS (
			SELECT id, order_status FROM orders WHERE id = $1 FOR UPDATE
		)
		UPDATE orders o
		SET order_status = $2::text,
			assigned_to = COALESCE($3::bigint, o.assigned_to),
			actual_delivery_time = COALESCE($4::timestamptz, o.actual_delivery_time),
			updated_at = now()
		FROM prev
		WHERE o.id = prev.id AND NOT (prev.order_status = ANY($5::text[]))
		RETURNING o.shop_id, prev.order_status, o.updated_at`

	var (
		assigned  sql.NullInt64
		delivered sql.NullTime
	)
	if upd.AssignedTo != nil {
		assigned = sql.NullInt64{Int64: *upd.AssignedTo, Valid: true}
	}
	if upd.DeliveredAt != nil {
		delivered = sql.NullTime{Time: *upd.DeliveredAt, Valid: true}
	}

	change := models.StatusChange{OrderID: id, To: upd.Status}
	var from string
	err := r.db.QueryRowContext(ctx, query, id, string(upd.Status), assigned, delivered, statusArray(exclude)).
		Scan(&change.ShopID, &from, &change.At)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Order{}, models.StatusChange{}, r.explainMiss(ctx, id)
	}
	if err != nil {
		return models.Order{}, models.StatusChange{}, fmt.Errorf("update status of order %d: %w", id, err)
	}
	change.From = models.OrderStatus(from)

	order, err := r.FindByID(ctx, id, models.LoadDetails)
	if err != nil {
		return models.Order{}, models.StatusChange{}, err
	}
	return order, change, nil
}

// explainMiss tells an unknown id from a row the update predicate excluded.
func (r *OrderRepo) explainMiss(ctx context.Context, id int64) error {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT order_status FROM orders WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return orders.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load order %d: %w", id, err)
	}
	return fmt.Errorf("%w: order %d is %s", orders.ErrIllegalTransition, id, status)
}

// BatchUpdateStatus joins orders to itself so RETURNING can report the
// status each row had before the write.
func (r *OrderRepo) BatchUpdateStatus(ctx context.Context, ids []int64, status models.OrderStatus, exclude []models.OrderStatus) ([]models.StatusChange, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		UPDATE orders o
		SET order_status = $1::text, updated_at = now()
		FROM orders prev
		WHERE prev.id = o.id
			AND o.id = ANY($2::bigint[])
			AND o.order_status <> $1::text
			AND NOT (o.order_status = ANY($3::text[]))
		RETURNING o.id, o.shop_id, prev.order_status, o.updated_at`

	rows, err := r.db.QueryContext(ctx, query, string(status), pq.Array(ids), statusArray(exclude))
	if err != nil {
		return nil, fmt.Errorf("batch update status: %w", err)
	}
	defer rows.Close()

	var changes []models.StatusChange
	for rows.Next() {
		var (
			c    models.StatusChange
			from string
		)
		if err := rows.Scan(&c.OrderID, &c.ShopID, &from, &c.At); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		c.From = models.OrderStatus(from)
		c.To = status
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

func (r *OrderRepo) list(ctx context.Context, filter models.OrderFilter, load models.LoadOptions) ([]models.Order, error) {
	if !filter.Scoped() {
		return nil, orders.ErrUnscoped
	}
	return r.page(ctx, filterWhere(filter), 0, load)
}

// page runs the ordered select; limit <= 0 means no limit.
func (r *OrderRepo) page(ctx context.Context, w *where, limit int, load models.LoadOptions) ([]models.Order, error) {
	query := `SELECT` + orderColumns + orderFrom + w.sql() + orderBy
	if limit > 0 {
		query += " LIMIT " + w.arg(limit)
	}
	rows, err := r.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return r.collect(ctx, rows, load)
}

func (r *OrderRepo) count(ctx context.Context, w *where) (int, error) {
	query := `SELECT COUNT(*)` + orderFrom + w.sql()
	var n int
	if err := r.db.QueryRowContext(ctx, query, w.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

func (r *OrderRepo) collect(ctx context.Context, rows *sql.Rows, load models.LoadOptions) ([]models.Order, error) {
	defer rows.Close()

	var list []models.Order
	for rows.Next() {
		order, err := scanOrder(rows, load)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		list = append(list, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if load.Items && len(list) > 0 {
		if err := r.attachItems(ctx, list); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// attachItems loads the lines of every order in one query.
func (r *OrderRepo) attachItems(ctx context.Context, list []models.Order) error {
	ids := make([]int64, len(list))
	byID := make(map[int64]int, len(list))
	for i, o := range list {
		ids[i] = o.ID
		byID[o.ID] = i
		list[i].Items = []models.OrderItem{}
	}

	query := `
		SELECT oi.id, oi.order_id, oi.product_id, COALESCE(p.name, ''), oi.quantity, oi.unit_price
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1::bigint[])
		ORDER BY oi.order_id, oi.id`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		i := byID[item.OrderID]
		list[i].Items = append(list[i].Items, item)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner, load models.LoadOptions) (models.Order, error) {
	var (
		o         models.Order
		status    string
		payment   string
		assigned  sql.NullInt64
		delivered sql.NullTime
		email     string
	)
	err := row.Scan(
		&o.ID, &o.DisplayID, &o.ShopID, &o.UserID, &status, &payment, &o.PaymentMethod,
		&o.TotalPrice, &o.DeliveryAddress, &assigned, &delivered, &o.CreatedAt, &o.UpdatedAt,
		&email,
	)
	if err != nil {
		return models.Order{}, err
	}
	o.Status = models.OrderStatus(status)
	o.PaymentStatus = models.PaymentStatus(payment)
	if assigned.Valid {
		v := assigned.Int64
		o.AssignedTo = &v
	}
	if delivered.Valid {
		v := delivered.Time
		o.ActualDeliveryTime = &v
	}
	if load.Customer {
		o.CustomerEmail = email
	}
	return o, nil
}

// where accumulates AND-ed conditions with positional arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) add(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "\n\tWHERE " + strings.Join(w.conds, "\n\t\tAND ")
}

func (w *where) search(term string) {
	p := w.arg(likePattern(term))
	w.add(fmt.Sprintf("(o.display_id ILIKE %s OR o.delivery_address ILIKE %s OR COALESCE(u.email, '') ILIKE %s)", p, p, p))
}

func filterWhere(f models.OrderFilter) *where {
	w := &where{}
	if f.ShopID > 0 {
		w.add("o.shop_id = " + w.arg(f.ShopID))
	}
	if f.UserID > 0 {
		w.add("o.user_id = " + w.arg(f.UserID))
	}
	if len(f.Statuses) > 0 {
		w.add("o.order_status = ANY(" + w.arg(statusArray(f.Statuses)) + "::text[])")
	}
	if f.PaymentStatus != "" {
		w.add("o.payment_status = " + w.arg(string(f.PaymentStatus)))
	}
	if f.CreatedFrom != nil {
		w.add("o.created_at >= " + w.arg(*f.CreatedFrom))
	}
	if f.CreatedTo != nil {
		w.add("o.created_at < " + w.arg(*f.CreatedTo))
	}
	if f.AssignedTo != nil {
		w.add("o.assigned_to = " + w.arg(*f.AssignedTo))
	}
	return w
}

// likePattern wraps term for a substring ILIKE, escaping LIKE metacharacters.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

func statusArray(list []models.OrderStatus) any {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = string(s)
	}
	return pq.Array(out)
}
