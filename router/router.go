package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dispatch/controllers"
	"github.com/yeremiapane/restaurant-dispatch/kds"
	"github.com/yeremiapane/restaurant-dispatch/middlewares"
	"github.com/yeremiapane/restaurant-dispatch/models"
	"github.com/yeremiapane/restaurant-dispatch/report"
	"github.com/yeremiapane/restaurant-dispatch/services"
	"github.com/yeremiapane/restaurant-dispatch/utils"
)

// Deps is everything the HTTP layer needs. main builds it once.
type Deps struct {
	CORSOrigin    string
	Tokens        *utils.TokenIssuer
	Hub           *kds.Hub
	Auth          *services.AuthService
	Menu          *services.MenuService
	Carts         *services.CartService
	Orders        *services.OrderService
	Dispatch      *services.DispatchService
	Notifications *services.NotificationService
	Chats         *services.ChatService
	Reports       *services.ReportService
	PDF           *report.PDFExporter
	// RateLimiter throttles every route per IP. Nil disables it.
	RateLimiter *middlewares.RateLimiter
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(d.CORSOrigin))
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.IdentityMiddleware(d.Tokens))
	if d.RateLimiter != nil {
		r.Use(d.RateLimiter.RateLimit())
	}

	authCtrl := controllers.NewAuthController(d.Auth, d.Tokens)
	menuCtrl := controllers.NewMenuController(d.Menu)
	cartCtrl := controllers.NewCartController(d.Carts)
	orderCtrl := controllers.NewOrderController(d.Orders)
	courierCtrl := controllers.NewCourierController(d.Dispatch)
	notificationCtrl := controllers.NewNotificationController(d.Notifications)
	chatCtrl := controllers.NewChatController(d.Chats)
	adminCtrl := controllers.NewAdminController(d.Auth, d.Reports, d.PDF)
	kdsCtrl := controllers.NewKDSController(d.Hub)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "time": time.Now().UTC()})
	})

	authGroup := r.Group("/auth")
	authGroup.Use(middlewares.NewStrictRateLimiter().RateLimit())
	{
		authGroup.POST("/register", authCtrl.Register)
		authGroup.POST("/login/user", authCtrl.LoginUser)
		authGroup.POST("/login/staff", authCtrl.LoginStaff)
		authGroup.POST("/login/courier", authCtrl.LoginCourier)
		authGroup.POST("/login/super-admin", authCtrl.LoginSuperAdmin)
	}
	r.POST("/auth/logout", authCtrl.Logout)
	r.GET("/auth/me", authCtrl.Me)

	r.GET("/menu", menuCtrl.GetActiveMenu)
	r.GET("/menu/:id", menuCtrl.GetMenuItem)

	// guests and users share the cart and checkout, keyed by session or account
	r.GET("/cart", cartCtrl.GetCart)
	r.GET("/cart/count", cartCtrl.Count)
	r.POST("/cart/items", cartCtrl.AddItem)
	r.DELETE("/cart/items/:item_id", cartCtrl.RemoveItem)
	r.POST("/checkout", orderCtrl.Checkout)

	r.GET("/orders/ticket/:ticket_no", orderCtrl.TicketStatus)
	r.POST("/orders/ticket/:ticket_no/cancel", orderCtrl.CancelByTicket)
	r.GET("/orders/:id", orderCtrl.GetOrder)
	r.GET("/orders/:id/receipt", orderCtrl.GetReceipt)

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	me := r.Group("/me", middlewares.RequireRole(models.RoleUser))
	me.GET("/orders", orderCtrl.MyOrders)

	staff := r.Group("/staff", middlewares.RequireRole(models.RoleStaff))
	{
		staff.GET("/orders", orderCtrl.ListOrders)
		staff.POST("/orders/:id/ready", orderCtrl.MarkReady())
		staff.POST("/orders/:id/served", orderCtrl.MarkServed())
		staff.POST("/orders/:id/cancel", orderCtrl.Cancel())
	}

	courier := r.Group("/courier", middlewares.RequireRole(models.RoleCourier))
	{
		courier.GET("/orders/available", courierCtrl.Available)
		courier.GET("/orders/active", courierCtrl.Active)
		courier.GET("/orders/history", courierCtrl.History)
		courier.POST("/orders/:id/claim", courierCtrl.Claim)
		courier.POST("/orders/:id/deliver", courierCtrl.Deliver)
	}

	admin := r.Group("/admin", middlewares.RequireRole(models.RoleSuperAdmin))
	{
		admin.GET("/orders", orderCtrl.ListOrders)
		admin.POST("/orders/:id/approve", orderCtrl.Approve())
		admin.POST("/orders/:id/cancel", orderCtrl.Cancel())

		admin.POST("/staff", adminCtrl.CreateStaff)
		admin.POST("/couriers", adminCtrl.CreateCourier)

		admin.POST("/menu", menuCtrl.CreateMenuItem)
		admin.PATCH("/menu/:id/price", menuCtrl.UpdatePrice)
		admin.PATCH("/menu/:id/availability", menuCtrl.SetAvailability)

		admin.POST("/notifications", notificationCtrl.Broadcast)

		admin.GET("/dashboard/stats", adminCtrl.GetDashboardStats)
		admin.GET("/reports/daily", adminCtrl.GetDailyReport)
		admin.GET("/reports/daily.pdf", adminCtrl.GetDailyReportPDF)
	}

	signedIn := r.Group("/", middlewares.RequireSignedIn())
	{
		signedIn.GET("/notifications", notificationCtrl.GetNotifications)
		signedIn.GET("/notifications/unread-count", notificationCtrl.UnreadCount)
		signedIn.POST("/notifications/read-all", notificationCtrl.MarkAllRead)
		signedIn.POST("/notifications/:id/read", notificationCtrl.MarkRead)
	}

	// customers may open a private chat with the team, groups are team only
	chats := r.Group("/chats", middlewares.RequireSignedIn())
	{
		chats.GET("", chatCtrl.ListChats)
		chats.POST("/private", chatCtrl.OpenPrivateChat)
		chats.GET("/:id/messages", chatCtrl.GetMessages)
		chats.POST("/:id/messages", chatCtrl.PostMessage)
	}

	r.GET("/ws", middlewares.WebSocketAuthMiddleware(d.Tokens), kdsCtrl.Connect)

	return r
}
