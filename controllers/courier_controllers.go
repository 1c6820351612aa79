package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dispatch/middlewares"
	"github.com/yeremiapane/restaurant-dispatch/services"
	"github.com/yeremiapane/restaurant-dispatch/utils"
)

type CourierController struct {
	dispatch *services.DispatchService
}

func NewCourierController(dispatch *services.DispatchService) *CourierController {
	return &CourierController{dispatch: dispatch}
}

// Available lists ready delivery orders nobody has claimed.
func (cc *CourierController) Available(c *gin.Context) {
	orders, err := cc.dispatch.Available(c.Request.Context())
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Available orders", orders)
}

func (cc *CourierController) Active(c *gin.Context) {
	courier := middlewares.CurrentIdentity(c)
	orders, err := cc.dispatch.Active(c.Request.Context(), courier.ID)
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Active orders", orders)
}

func (cc *CourierController) History(c *gin.Context) {
	courier := middlewares.CurrentIdentity(c)
	orders, err := cc.dispatch.History(c.Request.Context(), courier.ID, queryInt(c, "limit"))
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Delivery history", orders)
}

func (cc *CourierController) Claim(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	order, err := cc.dispatch.Claim(c.Request.Context(), middlewares.CurrentIdentity(c).ID, id)
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order claimed", order)
}

func (cc *CourierController) Deliver(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	order, err := cc.dispatch.Deliver(c.Request.Context(), middlewares.CurrentIdentity(c).ID, id)
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order delivered", order)
}
