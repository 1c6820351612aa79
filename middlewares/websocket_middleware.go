package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dispatch/apperror"
	"github.com/yeremiapane/restaurant-dispatch/utils"
)

// WebSocketAuthMiddleware accepts the token as a query parameter, since
// browsers cannot set headers on an upgrade request. Without one it keeps
// whatever IdentityMiddleware resolved, and guests are turned away.
func WebSocketAuthMiddleware(tokens *utils.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := c.Query("token"); raw != "" {
			id, err := tokens.Parse(raw)
			if err != nil {
				utils.RespondServiceError(c, apperror.Unauthorized("%v", err))
				return
			}
			SetIdentity(c, id)
		}

		if CurrentIdentity(c).IsGuest() {
			utils.RespondServiceError(c, apperror.Unauthorized("login required for live updates"))
			return
		}
		c.Next()
	}
}
