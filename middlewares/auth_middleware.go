package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yeremiapane/restaurant-dispatch/apperror"
	"github.com/yeremiapane/restaurant-dispatch/models"
	"github.com/yeremiapane/restaurant-dispatch/utils"
)

const (
	identityKey   = "identity"
	SessionCookie = "session_id"
	TokenCookie   = "token"
)

// IdentityMiddleware resolves who the request acts as. A bearer header wins
// over the token cookie. Requests without a token become guests keyed by the
// session cookie, which is issued on first contact.
func IdentityMiddleware(tokens *utils.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if header := c.GetHeader("Authorization"); header != "" {
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				utils.RespondServiceError(c, apperror.Unauthorized("authorization header must use the Bearer scheme"))
				return
			}
			id, err := tokens.Parse(strings.TrimSpace(raw))
			if err != nil {
				utils.RespondServiceError(c, apperror.Unauthorized("%v", err))
				return
			}
			SetIdentity(c, id)
			c.Next()
			return
		}

		if raw, err := c.Cookie(TokenCookie); err == nil && raw != "" {
			if id, err := tokens.Parse(raw); err == nil {
				SetIdentity(c, id)
				c.Next()
				return
			}
			// stale cookie, drop it and carry on as a guest
			c.SetCookie(TokenCookie, "", -1, "/", "", false, true)
		}

		SetIdentity(c, models.Guest(guestSession(c)))
		c.Next()
	}
}

func guestSession(c *gin.Context) string {
	if sid, err := c.Cookie(SessionCookie); err == nil {
		if _, err := uuid.Parse(sid); err == nil {
			return sid
		}
	}
	sid := uuid.NewString()
	c.SetCookie(SessionCookie, sid, 30*24*3600, "/", "", false, true)
	return sid
}

func SetIdentity(c *gin.Context, id models.Identity) {
	c.Set(identityKey, id)
}

// CurrentIdentity returns the identity resolved by IdentityMiddleware, or an
// anonymous guest when the middleware did not run.
func CurrentIdentity(c *gin.Context) models.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(models.Identity); ok {
			return id
		}
	}
	return models.Guest("")
}

// RequireRole lets the request through only for the listed roles. Guests get
// 401 so the client knows to log in, everyone else gets 403.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := CurrentIdentity(c)
		for _, r := range roles {
			if id.Role == r {
				c.Next()
				return
			}
		}
		if id.IsGuest() {
			utils.RespondServiceError(c, apperror.Unauthorized("login required"))
			return
		}
		utils.RespondServiceError(c, apperror.Forbidden("access denied for role %s", id.Role))
	}
}

// RequireSignedIn admits every identity except guests.
func RequireSignedIn() gin.HandlerFunc {
	return RequireRole(models.RoleUser, models.RoleStaff, models.RoleCourier, models.RoleSuperAdmin)
}
