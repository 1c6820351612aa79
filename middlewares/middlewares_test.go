package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-dispatch/models"
	"github.com/yeremiapane/restaurant-dispatch/utils"
)

func setupRouter(tokens *utils.TokenIssuer, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdentityMiddleware(tokens))
	handlers := append(extra, func(c *gin.Context) {
		id := CurrentIdentity(c)
		c.JSON(http.StatusOK, gin.H{"role": id.Role, "id": id.ID, "key": id.Key()})
	})
	r.GET("/whoami", handlers...)
	return r
}

func TestIdentityFromBearerAndCookie(t *testing.T) {
	tokens := utils.NewTokenIssuer("mw-secret", time.Hour)
	r := setupRouter(tokens)
	token, err := tokens.Generate(models.StaffIdentity(7))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"key":"staff:7"`)

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: token})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), `"role":"staff"`)
}

func TestIdentityRejectsBadHeader(t *testing.T) {
	tokens := utils.NewTokenIssuer("mw-secret", time.Hour)
	r := setupRouter(tokens)

	for _, header := range []string{"Bearer nope", "Token abc"} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
	}

	other := utils.NewTokenIssuer("other-secret", time.Hour)
	forged, err := other.Generate(models.SuperAdminIdentity())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGuestSessionIsStable(t *testing.T) {
	r := setupRouter(utils.NewTokenIssuer("mw-secret", time.Hour))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var session *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == SessionCookie {
			session = ck
		}
	}
	require.NotNil(t, session, "first contact issues a session cookie")
	assert.Contains(t, w.Body.String(), `"key":"guest:`+session.Value+`"`)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(session)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), `"key":"guest:`+session.Value+`"`)

	// a stale token cookie degrades to a guest instead of failing
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(session)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: "expired"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"guest"`)
}

func TestRequireRole(t *testing.T) {
	tokens := utils.NewTokenIssuer("mw-secret", time.Hour)
	r := setupRouter(tokens, RequireRole(models.RoleCourier, models.RoleSuperAdmin))

	tests := []struct {
		name string
		id   *models.Identity
		want int
	}{
		{"guest", nil, http.StatusUnauthorized},
		{"user", &models.Identity{Role: models.RoleUser, ID: 1}, http.StatusForbidden},
		{"staff", &models.Identity{Role: models.RoleStaff, ID: 2}, http.StatusForbidden},
		{"courier", &models.Identity{Role: models.RoleCourier, ID: 3}, http.StatusOK},
		{"admin", &models.Identity{Role: models.RoleSuperAdmin}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.id != nil {
				token, err := tokens.Generate(*tt.id)
				require.NoError(t, err)
				req.Header.Set("Authorization", "Bearer "+token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestWebSocketAuthMiddleware(t *testing.T) {
	tokens := utils.NewTokenIssuer("mw-secret", time.Hour)
	r := setupRouter(tokens, WebSocketAuthMiddleware(tokens))
	token, err := tokens.Generate(models.CourierIdentity(4))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami?token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"key":"couriers:4"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami?token=garbage", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("2.2.2.2"), "buckets are per IP")

	now = now.Add(30 * time.Second)
	assert.True(t, rl.Allow("1.1.1.1"), "one token refills every interval/burst")

	now = now.Add(time.Hour)
	rl.Allow("3.3.3.3")
	rl.mu.Lock()
	assert.Len(t, rl.ips, 1, "idle buckets are swept")
	rl.mu.Unlock()
}

func TestRateLimitHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewStrictRateLimiter().RateLimit())
	r.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 6)
	for i := 0; i < 6; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, 200, 200, 200, 429}, codes)
}

func TestCORSAndSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders(), CORSMiddlewares("*"))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "http://shop.local")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://shop.local", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	fixed := gin.New()
	fixed.Use(CORSMiddlewares("https://admin.example"))
	fixed.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://evil.local")
	w = httptest.NewRecorder()
	fixed.ServeHTTP(w, req)
	assert.Equal(t, "https://admin.example", w.Header().Get("Access-Control-Allow-Origin"))
}
