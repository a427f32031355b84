package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"shoporders/internal/models"
	"shoporders/internal/orders"
)

// maxBatch caps the ids accepted by one batch status request.
const maxBatch = 500

type OrderHandler struct {
	orders *orders.Service
	shops  ShopAccess
}

func NewOrderHandler(svc *orders.Service, shops ShopAccess) *OrderHandler {
	return &OrderHandler{orders: svc, shops: shops}
}

type pageResponse struct {
	Items      []models.Order `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
	Total      *int           `json:"total,omitempty"`
}

func newPageResponse(p orders.Page) pageResponse {
	items := p.Orders
	if items == nil {
		items = []models.Order{}
	}
	return pageResponse{Items: items, NextCursor: p.NextCursor, Total: p.Total}
}

// GET /api/shops/:shopID/orders
func (h *OrderHandler) ListShopOrders(c *gin.Context) {
	req, err := parseListRequest(c)
	if err != nil {
		writeError(c, err)
		return
	}
	page, err := h.orders.ListShopOrders(c.Request.Context(), c.GetInt64(ctxShopID), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPageResponse(page))
}

// GET /api/shops/:shopID/orders/count
func (h *OrderHandler) CountShopOrders(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}
	n, err := h.orders.CountShopOrders(c.Request.Context(), c.GetInt64(ctxShopID), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

type batchStatusRequest struct {
	IDs    []int64            `json:"ids" binding:"required"`
	Status models.OrderStatus `json:"status" binding:"required"`
}

// POST /api/shops/:shopID/orders/status
//
// Ids of orders outside the shop are ignored like unknown ids.
func (h *OrderHandler) BatchSetStatus(c *gin.Context) {
	var req batchStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if len(req.IDs) > maxBatch {
		writeError(c, fmt.Errorf("%w: at most %d ids per request", errBadRequest, maxBatch))
		return
	}
	if !req.Status.Valid() {
		writeError(c, fmt.Errorf("%w: %q", orders.ErrInvalidStatus, req.Status))
		return
	}

	ctx := c.Request.Context()
	shopID := c.GetInt64(ctxShopID)
	known, err := h.orders.FindByIDs(ctx, req.IDs)
	if err != nil {
		writeError(c, err)
		return
	}
	owned := make([]int64, 0, len(known))
	for _, o := range known {
		if o.ShopID == shopID {
			owned = append(owned, o.ID)
		}
	}

	n, err := h.orders.BatchSetStatus(ctx, owned, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"affected": n})
}

// GET /api/orders/:id
//
// Orders the caller may not see are reported as missing.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	o, found, err := h.orders.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if found && o.UserID != currentClaims(c).UserID {
		found, err = canManage(c, h.shops, o.ShopID)
		if err != nil {
			writeError(c, err)
			return
		}
	}
	if !found {
		writeError(c, fmt.Errorf("order %d: %w", id, orders.ErrNotFound))
		return
	}
	c.JSON(http.StatusOK, o)
}

type statusRequest struct {
	Status      models.OrderStatus `json:"status" binding:"required"`
	AssignedTo  *int64             `json:"assigned_to"`
	DeliveredAt *time.Time         `json:"delivered_at"`
}

// PATCH /api/orders/:id/status
func (h *OrderHandler) SetStatus(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	ctx := c.Request.Context()
	current, found, err := h.orders.GetByID(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	if found {
		found, err = canManage(c, h.shops, current.ShopID)
		if err != nil {
			writeError(c, err)
			return
		}
	}
	if !found {
		writeError(c, fmt.Errorf("order %d: %w", id, orders.ErrNotFound))
		return
	}

	o, err := h.orders.SetStatus(ctx, id, models.StatusUpdate{
		Status:      req.Status,
		AssignedTo:  req.AssignedTo,
		DeliveredAt: req.DeliveredAt,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// GET /api/me/orders
func (h *OrderHandler) MyOrders(c *gin.Context) {
	req, err := parseListRequest(c)
	if err != nil {
		writeError(c, err)
		return
	}
	page, err := h.orders.ListUserOrders(c.Request.Context(), currentClaims(c).UserID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPageResponse(page))
}

func parseListRequest(c *gin.Context) (orders.ListRequest, error) {
	filter, err := parseFilter(c)
	if err != nil {
		return orders.ListRequest{}, err
	}
	req := orders.ListRequest{
		Filter: filter,
		Cursor: c.Query("cursor"),
		Search: c.Query("q"),
		Load:   models.LoadOptions{Customer: true},
	}
	if v := c.Query("limit"); v != "" {
		if req.Limit, err = strconv.Atoi(v); err != nil {
			return orders.ListRequest{}, fmt.Errorf("%w: limit must be an integer", errBadRequest)
		}
	}
	if req.IncludeTotal, err = queryBool(c, "total"); err != nil {
		return orders.ListRequest{}, err
	}
	if req.Load.Items, err = queryBool(c, "items"); err != nil {
		return orders.ListRequest{}, err
	}
	return req, nil
}

func parseFilter(c *gin.Context) (models.OrderFilter, error) {
	var f models.OrderFilter
	if v := c.Query("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			st := models.OrderStatus(strings.TrimSpace(s))
			if !st.Valid() {
				return f, fmt.Errorf("%w: %q", orders.ErrInvalidStatus, st)
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	if v := c.Query("payment_status"); v != "" {
		f.PaymentStatus = models.PaymentStatus(v)
		if !f.PaymentStatus.Valid() {
			return f, fmt.Errorf("%w: unknown payment status %q", errBadRequest, v)
		}
	}
	var err error
	if f.CreatedFrom, err = queryTime(c, "from"); err != nil {
		return f, err
	}
	if f.CreatedTo, err = queryTime(c, "to"); err != nil {
		return f, err
	}
	if v := c.Query("assigned_to"); v != "" {
		id, err := parseID(v)
		if err != nil {
			return f, err
		}
		f.AssignedTo = &id
	}
	return f, nil
}

func parseID(v string) (int64, error) {
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", errBadRequest, v)
	}
	return id, nil
}

func queryTime(c *gin.Context, key string) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC 3339", errBadRequest, key)
	}
	return &t, nil
}

func queryBool(c *gin.Context, key string) (bool, error) {
	v := c.Query(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", errBadRequest, key)
	}
	return b, nil
}
