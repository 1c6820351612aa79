package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dispatch/cache"
	"github.com/yeremiapane/restaurant-dispatch/config"
	"github.com/yeremiapane/restaurant-dispatch/database"
	"github.com/yeremiapane/restaurant-dispatch/geo"
	"github.com/yeremiapane/restaurant-dispatch/kds"
	"github.com/yeremiapane/restaurant-dispatch/middlewares"
	"github.com/yeremiapane/restaurant-dispatch/report"
	"github.com/yeremiapane/restaurant-dispatch/router"
	"github.com/yeremiapane/restaurant-dispatch/services"
	"github.com/yeremiapane/restaurant-dispatch/utils"
	"gorm.io/gorm"
)

// application holds the wired services and the background workers.
type application struct {
	deps    router.Deps
	hub     *kds.Hub
	monitor *services.EventMonitor
	sweeper *services.OrderSweeper
}

func newApplication(cfg *config.Config, db *gorm.DB, c cache.Cache) *application {
	hub := kds.NewHub()
	tokens := utils.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	var geocoder geo.Geocoder
	if cfg.Geocoder.APIKey != "" {
		geocoder = geo.NewSerperClient(cfg.Geocoder)
	}
	resolver := geo.NewResolver(geocoder)

	notifications := services.NewNotificationService(db, hub)
	monitor := services.NewEventMonitor(db, notifications, hub)
	if cfg.Background.EventInterval > 0 {
		monitor.Interval = cfg.Background.EventInterval
	}
	if cfg.Background.EventMaxAttempts > 0 {
		monitor.MaxAttempts = cfg.Background.EventMaxAttempts
	}

	carts := services.NewCartService(db, c, cfg.Cache.TTL)
	orders := services.NewOrderService(db, cfg.Business, carts, resolver, monitor)

	return &application{
		hub:     hub,
		monitor: monitor,
		sweeper: services.NewOrderSweeper(orders, cfg.Background.SweepInterval),
		deps: router.Deps{
			CORSOrigin:    cfg.CORSOrigin,
			Tokens:        tokens,
			Hub:           hub,
			Auth:          services.NewAuthService(db, tokens, cfg.SuperAdmin, carts),
			Menu:          services.NewMenuService(db, c, cfg.Cache.TTL),
			Carts:         carts,
			Orders:        orders,
			Dispatch:      services.NewDispatchService(db, cfg.Business, monitor),
			Notifications: notifications,
			Chats:         services.NewChatService(db, hub),
			Reports:       services.NewReportService(db, monitor),
			PDF:           report.NewPDFExporter("Daily orders"),
			RateLimiter:   middlewares.NewRateLimiter(50, time.Second),
		},
	}
}

func (a *application) start() {
	a.monitor.Start()
	a.sweeper.Start()
}

func (a *application) stop() {
	a.sweeper.Stop()
	a.monitor.Stop()
	a.hub.Close()
}

func main() {
	cfg := config.Load()
	utils.InitLogger(cfg.LogLevel)
	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.SuperAdmin.Password == "" {
		utils.InfoLogger.Warn("SUPER_ADMIN_PASSWORD is empty, super-admin login is disabled")
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := cache.New(ctx, cfg.Cache.RedisURL)
	if err != nil {
		utils.ErrorLogger.Errorf("Redis unavailable, using in-process cache: %v", err)
		store = cache.NewMemory()
	}

	app := newApplication(cfg, db, store)
	app.start()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.SetupRouter(app.deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatal(err)
		}
	}()

	<-ctx.Done()
	utils.InfoLogger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.ErrorLogger.Errorf("HTTP shutdown: %v", err)
	}
	app.stop()
	if err := store.Close(); err != nil {
		utils.ErrorLogger.Errorf("Cache close: %v", err)
	}
	if err := database.Close(db); err != nil {
		utils.ErrorLogger.Errorf("Database close: %v", err)
	}
}
