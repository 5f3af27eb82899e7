package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/marketsync/internal/carrier"
	"example.com/backstage/services/marketsync/internal/services"
	"example.com/backstage/services/marketsync/internal/tracing"
)

// OrderHandler handles order-related HTTP requests
type OrderHandler struct {
	orderService *services.OrderService
	tracer       tracing.Tracer
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService *services.OrderService, tracer tracing.Tracer) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		tracer:       tracer,
	}
}

// HandleGetOrders returns the tenant's orders updated at or after the
// given unix millisecond watermark. A tenant with no mirrored orders
// gets a synchronous first sync before the read.
func (h *OrderHandler) HandleGetOrders(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-get-orders")
	defer h.tracer.EndTransaction(txn)

	accountID := c.Query("accountId")
	storeID := c.Query("storeId")
	if accountID == "" || storeID == "" {
		writeError(c, errors.WithMessage(services.ErrValidation, "accountId and storeId are required"))
		return
	}

	since, err := strconv.ParseInt(c.DefaultQuery("since", "0"), 10, 64)
	if err != nil {
		writeError(c, errors.WithMessage(services.ErrValidation, "since must be a unix millisecond timestamp"))
		return
	}

	h.tracer.AddAttribute(txn, "account_id", accountID)
	h.tracer.AddAttribute(txn, "store_id", storeID)

	orders, err := h.orderService.GetOrdersSince(c.Request.Context(), accountID, storeID, since)
	if err != nil {
		log.Error().Err(err).Str("account_id", accountID).Msg("Failed to get orders")
		h.tracer.RecordError(txn, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, orders)
}

// HandleRefreshOrder fetches one order from the marketplace on demand
// and returns the reconciled stored view.
func (h *OrderHandler) HandleRefreshOrder(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-refresh-order")
	defer h.tracer.EndTransaction(txn)

	accountID := c.Query("accountId")
	storeID := c.Query("storeId")
	purchaseOrderID := c.Param("purchaseOrderId")
	if accountID == "" || storeID == "" {
		writeError(c, errors.WithMessage(services.ErrValidation, "accountId and storeId are required"))
		return
	}

	h.tracer.AddAttribute(txn, "purchase_order_id", purchaseOrderID)

	order, err := h.orderService.RefreshOrder(c.Request.Context(), accountID, storeID, purchaseOrderID)
	if err != nil {
		log.Error().Err(err).Str("purchase_order_id", purchaseOrderID).Msg("Failed to refresh order")
		h.tracer.RecordError(txn, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// HandleDispatch confirms an order shipped on the marketplace.
func (h *OrderHandler) HandleDispatch(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-dispatch-order")
	defer h.tracer.EndTransaction(txn)

	var req services.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error().Err(err).Msg("Invalid dispatch request body")
		h.tracer.RecordError(txn, err)
		writeError(c, errors.WithMessage(services.ErrValidation, err.Error()))
		return
	}

	h.tracer.AddAttribute(txn, "account_id", req.AccountID)
	h.tracer.AddAttribute(txn, "order_id", req.OrderID)

	if err := h.orderService.Dispatch(c.Request.Context(), req); err != nil {
		log.Error().Err(err).Str("order_id", req.OrderID).Msg("Failed to dispatch order")
		h.tracer.RecordError(txn, err)
		writeError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// HandleGetCarriers lists the carrier names the marketplace accepts on
// dispatch, so callers know when to fall back to a tracking URL.
func (h *OrderHandler) HandleGetCarriers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"carriers": carrier.SupportedCarriers})
}

// RegisterRoutes registers the handler's routes
func (h *OrderHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.GET("/orders", h.HandleGetOrders)
	v1.POST("/orders/:purchaseOrderId/refresh", h.HandleRefreshOrder)
	v1.POST("/orders/dispatch", h.HandleDispatch)
	v1.GET("/carriers", h.HandleGetCarriers)
}
