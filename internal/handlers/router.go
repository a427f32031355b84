package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shoporders/internal/orders"
)

type RouterDeps struct {
	Orders         *orders.Service
	Shops          ShopAccess
	Tokens         *TokenIssuer
	Log            *slog.Logger
	RequestTimeout time.Duration
	Ready          func(ctx context.Context) error // optional readiness probe
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(d.Log), Timeout(d.RequestTimeout))

	r.GET("/healthz", func(c *gin.Context) {
		if d.Ready != nil {
			if err := d.Ready(c.Request.Context()); err != nil {
				_ = c.Error(err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := NewOrderHandler(d.Orders, d.Shops)
	api := r.Group("/api", AuthMiddleware(d.Tokens))

	shop := api.Group("/shops/:shopID", RequireShopMember(d.Shops))
	shop.GET("/orders", h.ListShopOrders)
	shop.GET("/orders/count", h.CountShopOrders)
	shop.POST("/orders/status", h.BatchSetStatus)

	api.GET("/orders/:id", h.GetOrder)
	api.PATCH("/orders/:id/status", h.SetStatus)
	api.GET("/me/orders", h.MyOrders)

	return r
}
