package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dispatch/kds"
	"github.com/yeremiapane/restaurant-dispatch/middlewares"
	"github.com/yeremiapane/restaurant-dispatch/utils"
)

type KDSController struct {
	hub *kds.Hub
}

func NewKDSController(hub *kds.Hub) *KDSController {
	return &KDSController{hub: hub}
}

// Connect upgrades to a websocket and streams the order updates,
// notifications and chat messages addressed to the caller.
func (kc *KDSController) Connect(c *gin.Context) {
	identity := middlewares.CurrentIdentity(c)
	ws, err := kds.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.InfoLogger.Warnf("websocket upgrade for %s: %v", identity.Key(), err)
		return
	}
	kc.hub.Serve(ws, identity)
}
