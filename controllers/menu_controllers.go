package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/yeremiapane/restaurant-dispatch/services"
	"github.com/yeremiapane/restaurant-dispatch/utils"
)

type MenuController struct {
	menu *services.MenuService
}

func NewMenuController(menu *services.MenuService) *MenuController {
	return &MenuController{menu: menu}
}

// GetActiveMenu lists the items customers can order right now.
func (mc *MenuController) GetActiveMenu(c *gin.Context) {
	items, err := mc.menu.Active(c.Request.Context())
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Menu", items)
}

func (mc *MenuController) GetMenuItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	item, err := mc.menu.Get(c.Request.Context(), id)
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Menu item", item)
}

func (mc *MenuController) CreateMenuItem(c *gin.Context) {
	var req services.MenuItemRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := mc.menu.Create(c.Request.Context(), req)
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Menu item created", item)
}

func (mc *MenuController) UpdatePrice(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Price              decimal.Decimal `json:"price"`
		DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	}
	if !bindJSON(c, &body) {
		return
	}
	item, err := mc.menu.UpdatePrice(c.Request.Context(), id, body.Price, body.DiscountPercentage)
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Price updated", item)
}

// SetAvailability toggles whether an item can be ordered.
func (mc *MenuController) SetAvailability(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Available *bool `json:"available" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}
	item, err := mc.menu.SetAvailability(c.Request.Context(), id, *body.Available)
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Availability updated", item)
}
