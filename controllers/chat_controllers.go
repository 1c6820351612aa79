package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dispatch/middlewares"
	"github.com/yeremiapane/restaurant-dispatch/services"
	"github.com/yeremiapane/restaurant-dispatch/utils"
)

type ChatController struct {
	chats *services.ChatService
}

func NewChatController(chats *services.ChatService) *ChatController {
	return &ChatController{chats: chats}
}

func (cc *ChatController) ListChats(c *gin.Context) {
	chats, err := cc.chats.ListChats(c.Request.Context(), middlewares.CurrentIdentity(c))
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Chats", chats)
}

func (cc *ChatController) OpenPrivateChat(c *gin.Context) {
	var req services.PrivateChatRequest
	if !bindJSON(c, &req) {
		return
	}
	chat, err := cc.chats.GetOrCreatePrivateChat(c.Request.Context(), middlewares.CurrentIdentity(c), req)
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Chat", chat)
}

// GetMessages pages forward from after_id, oldest first.
func (cc *ChatController) GetMessages(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	after := uint(queryInt(c, "after_id"))
	msgs, err := cc.chats.Messages(c.Request.Context(), id, middlewares.CurrentIdentity(c), queryInt(c, "limit"), after)
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Messages", msgs)
}

func (cc *ChatController) PostMessage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Text string `json:"text" binding:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}
	msg, err := cc.chats.PostMessage(c.Request.Context(), id, middlewares.CurrentIdentity(c), body.Text)
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Message sent", msg)
}
