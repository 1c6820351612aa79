package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dispatch/middlewares"
	"github.com/yeremiapane/restaurant-dispatch/services"
	"github.com/yeremiapane/restaurant-dispatch/utils"
)

type CartController struct {
	carts *services.CartService
}

func NewCartController(carts *services.CartService) *CartController {
	return &CartController{carts: carts}
}

func (cc *CartController) owner(c *gin.Context) (services.CartOwner, bool) {
	owner, err := services.OwnerFor(middlewares.CurrentIdentity(c))
	if err != nil {
		utils.RespondServiceError(c, err)
		return services.CartOwner{}, false
	}
	return owner, true
}

func (cc *CartController) AddItem(c *gin.Context) {
	owner, ok := cc.owner(c)
	if !ok {
		return
	}
	var req services.AddToCartRequest
	if !bindJSON(c, &req) {
		return
	}
	line, err := cc.carts.Add(c.Request.Context(), owner, req)
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Added to cart", line)
}

func (cc *CartController) GetCart(c *gin.Context) {
	owner, ok := cc.owner(c)
	if !ok {
		return
	}
	view, err := cc.carts.Items(c.Request.Context(), owner)
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Cart", view)
}

func (cc *CartController) Count(c *gin.Context) {
	owner, ok := cc.owner(c)
	if !ok {
		return
	}
	n, err := cc.carts.Count(c.Request.Context(), owner)
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Cart count", gin.H{"count": n})
}

func (cc *CartController) RemoveItem(c *gin.Context) {
	owner, ok := cc.owner(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "item_id")
	if !ok {
		return
	}
	if err := cc.carts.Remove(c.Request.Context(), owner, id); err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Removed from cart", nil)
}
