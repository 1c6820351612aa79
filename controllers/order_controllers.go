package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dispatch/apperror"
	"github.com/yeremiapane/restaurant-dispatch/middlewares"
	"github.com/yeremiapane/restaurant-dispatch/models"
	"github.com/yeremiapane/restaurant-dispatch/services"
	"github.com/yeremiapane/restaurant-dispatch/utils"
)

type OrderController struct {
	orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{orders: orders}
}

type cancelBody struct {
	Reason string `json:"reason"`
}

// bindCancel reads an optional reason. An empty body is fine.
func bindCancel(c *gin.Context) string {
	var body cancelBody
	if c.Request.ContentLength > 0 {
		_ = c.ShouldBindJSON(&body)
	}
	return body.Reason
}

func ticketParam(c *gin.Context) (int64, bool) {
	n, err := strconv.ParseInt(c.Param("ticket_no"), 10, 64)
	if err != nil || n <= 0 {
		utils.RespondServiceError(c, apperror.Validation("ticket_no must be a positive number"))
		return 0, false
	}
	return n, true
}

// Checkout turns the caller's cart into a pending order.
func (oc *OrderController) Checkout(c *gin.Context) {
	var req services.CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := oc.orders.Checkout(c.Request.Context(), middlewares.CurrentIdentity(c), req)
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order placed, waiting for approval", order)
}

func (oc *OrderController) TicketStatus(c *gin.Context) {
	ticket, ok := ticketParam(c)
	if !ok {
		return
	}
	status, err := oc.orders.StatusByTicket(c.Request.Context(), ticket)
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, status.StatusText, status)
}

func (oc *OrderController) CancelByTicket(c *gin.Context) {
	ticket, ok := ticketParam(c)
	if !ok {
		return
	}
	order, err := oc.orders.CancelByTicket(c.Request.Context(), middlewares.CurrentIdentity(c), ticket, bindCancel(c))
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order cancelled", order)
}

func (oc *OrderController) GetOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	order, err := oc.orders.GetFor(c.Request.Context(), middlewares.CurrentIdentity(c), id)
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order", order)
}

// GetReceipt returns the receipt issued at checkout.
func (oc *OrderController) GetReceipt(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	order, err := oc.orders.GetFor(c.Request.Context(), middlewares.CurrentIdentity(c), id)
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	if order.Receipt == nil {
		utils.RespondServiceError(c, apperror.NotFound("order %d has no receipt", id))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Receipt", order.Receipt)
}

func (oc *OrderController) MyOrders(c *gin.Context) {
	id := middlewares.CurrentIdentity(c)
	orders, err := oc.orders.ListForUser(c.Request.Context(), id.ID, queryInt(c, "limit"))
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Your orders", orders)
}

// ListOrders serves the kitchen and admin dashboards.
// Query: status=waiting,ready  type=delivery  limit  offset
func (oc *OrderController) ListOrders(c *gin.Context) {
	statuses, err := services.ParseStatuses(c.Query("status"))
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	filter := services.OrderFilter{
		Statuses: statuses,
		Limit:    queryInt(c, "limit"),
		Offset:   queryInt(c, "offset"),
	}
	if t := c.Query("type"); t != "" {
		filter.OrderType = models.OrderType(t)
		if !filter.OrderType.Valid() {
			utils.RespondServiceError(c, apperror.Validation("unknown order type %q", t))
			return
		}
	}
	orders, err := oc.orders.List(c.Request.Context(), filter)
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Orders", orders)
}

type transitionFunc func(c *gin.Context, actor models.Identity, id uint) (*models.Order, error)

// transition wraps one lifecycle step as a handler.
func (oc *OrderController) transition(message string, fn transitionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		order, err := fn(c, middlewares.CurrentIdentity(c), id)
		if err != nil {
			utils.RespondServiceError(c, err)
			return
		}
		utils.RespondJSON(c, http.StatusOK, message, order)
	}
}

func (oc *OrderController) Approve() gin.HandlerFunc {
	return oc.transition("Order approved", func(c *gin.Context, actor models.Identity, id uint) (*models.Order, error) {
		return oc.orders.Approve(c.Request.Context(), actor, id)
	})
}

func (oc *OrderController) MarkReady() gin.HandlerFunc {
	return oc.transition("Order ready", func(c *gin.Context, actor models.Identity, id uint) (*models.Order, error) {
		return oc.orders.MarkReady(c.Request.Context(), actor, id)
	})
}

func (oc *OrderController) MarkServed() gin.HandlerFunc {
	return oc.transition("Order served", func(c *gin.Context, actor models.Identity, id uint) (*models.Order, error) {
		return oc.orders.MarkServed(c.Request.Context(), actor, id)
	})
}

func (oc *OrderController) Cancel() gin.HandlerFunc {
	return oc.transition("Order cancelled", func(c *gin.Context, actor models.Identity, id uint) (*models.Order, error) {
		return oc.orders.Cancel(c.Request.Context(), actor, id, bindCancel(c))
	})
}
