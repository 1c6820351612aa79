package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dispatch/middlewares"
	"github.com/yeremiapane/restaurant-dispatch/services"
	"github.com/yeremiapane/restaurant-dispatch/utils"
)

type NotificationController struct {
	notifications *services.NotificationService
}

func NewNotificationController(notifications *services.NotificationService) *NotificationController {
	return &NotificationController{notifications: notifications}
}

// GetNotifications lists what the caller can see. ?unread=true keeps only
// unread ones.
func (nc *NotificationController) GetNotifications(c *gin.Context) {
	id := middlewares.CurrentIdentity(c)
	list, err := nc.notifications.List(c.Request.Context(), id, c.Query("unread") == "true", queryInt(c, "limit"))
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notifications", list)
}

func (nc *NotificationController) UnreadCount(c *gin.Context) {
	n, err := nc.notifications.UnreadCount(c.Request.Context(), middlewares.CurrentIdentity(c))
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Unread notifications", gin.H{"count": n})
}

func (nc *NotificationController) MarkRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := nc.notifications.MarkRead(c.Request.Context(), middlewares.CurrentIdentity(c), id); err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification marked as read", nil)
}

func (nc *NotificationController) MarkAllRead(c *gin.Context) {
	n, err := nc.notifications.MarkAllRead(c.Request.Context(), middlewares.CurrentIdentity(c))
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All notifications marked as read", gin.H{"marked": n})
}

// Broadcast sends a notification from the super-admin to a party, or to one
// member of it when recipient_id is set.
func (nc *NotificationController) Broadcast(c *gin.Context) {
	var req services.BroadcastRequest
	if !bindJSON(c, &req) {
		return
	}
	n, err := nc.notifications.Broadcast(c.Request.Context(), middlewares.CurrentIdentity(c), req)
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Notification sent", n)
}
