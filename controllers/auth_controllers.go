package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dispatch/middlewares"
	"github.com/yeremiapane/restaurant-dispatch/services"
	"github.com/yeremiapane/restaurant-dispatch/utils"
)

type AuthController struct {
	auth     *services.AuthService
	tokenTTL int
}

func NewAuthController(auth *services.AuthService, tokens *utils.TokenIssuer) *AuthController {
	return &AuthController{auth: auth, tokenTTL: int(tokens.TTL().Seconds())}
}

func (ac *AuthController) Register(c *gin.Context) {
	var req services.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := ac.auth.RegisterUser(c.Request.Context(), req)
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "User registered", user)
}

// LoginUser signs a customer in. The guest session of the caller, if any,
// hands its cart over to the account.
func (ac *AuthController) LoginUser(c *gin.Context) {
	var req services.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	session := middlewares.CurrentIdentity(c).SessionID
	res, err := ac.auth.LoginUser(c.Request.Context(), req, session)
	ac.respondLogin(c, res, err)
}

func (ac *AuthController) LoginStaff(c *gin.Context) {
	var req services.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := ac.auth.LoginStaff(c.Request.Context(), req)
	ac.respondLogin(c, res, err)
}

func (ac *AuthController) LoginCourier(c *gin.Context) {
	var req services.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := ac.auth.LoginCourier(c.Request.Context(), req)
	ac.respondLogin(c, res, err)
}

func (ac *AuthController) LoginSuperAdmin(c *gin.Context) {
	var req services.SuperAdminLoginRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := ac.auth.LoginSuperAdmin(c.Request.Context(), req)
	ac.respondLogin(c, res, err)
}

func (ac *AuthController) respondLogin(c *gin.Context, res *services.LoginResult, err error) {
	if err != nil {
		utils.RespondServiceError(c, err)
		return
	}
	c.SetCookie(middlewares.TokenCookie, res.Token, ac.tokenTTL, "/", "", false, true)
	utils.RespondJSON(c, http.StatusOK, "Login successful", res)
}

// Logout drops the token cookie. Tokens are stateless, so a copied bearer
// token stays valid until it expires.
func (ac *AuthController) Logout(c *gin.Context) {
	c.SetCookie(middlewares.TokenCookie, "", -1, "/", "", false, true)
	utils.RespondJSON(c, http.StatusOK, "Logged out", nil)
}

// Me echoes the identity the request acts as.
func (ac *AuthController) Me(c *gin.Context) {
	utils.RespondJSON(c, http.StatusOK, "Current identity", middlewares.CurrentIdentity(c))
}
