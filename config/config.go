package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port       string
	GinMode    string
	LogLevel   string
	CORSOrigin string

	Database   Database
	Cache      Cache
	Auth       Auth
	SuperAdmin SuperAdmin
	Business   Business
	Geocoder   Geocoder
	Background Background
}

type Database struct {
	Driver       string // sqlite, mysql, postgres
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

type Cache struct {
	RedisURL string
	TTL      time.Duration
}

type Auth struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type SuperAdmin struct {
	Username string
	Password string
}

// Business holds the tunables of the order lifecycle and dispatch rules.
type Business struct {
	AvgPrepMinutes        int
	CashbackPercentage    decimal.Decimal
	DeliveryBasePrice     decimal.Decimal
	CourierBaseRate       decimal.Decimal
	MinCourierPrice       decimal.Decimal
	MaxCourierPrice       decimal.Decimal
	MinCourierMinutes     int
	MinutesPerKm          int
	MaxDeliveryDistanceKm float64
	MinOrderAmount        decimal.Decimal
	OrderExpiry           time.Duration
	RestaurantLat         float64
	RestaurantLon         float64
}

type Geocoder struct {
	APIKey  string
	BaseURL string
	Country string
	Timeout time.Duration
}

type Background struct {
	EventInterval    time.Duration
	EventMaxAttempts int
	SweepInterval    time.Duration
}

// DefaultBusiness returns the stock business rules.
func DefaultBusiness() Business {
	return Business{
		AvgPrepMinutes:        7,
		CashbackPercentage:    decimal.NewFromInt(1),
		DeliveryBasePrice:     decimal.NewFromInt(10000),
		CourierBaseRate:       decimal.NewFromInt(8000),
		MinCourierPrice:       decimal.NewFromInt(15000),
		MaxCourierPrice:       decimal.NewFromInt(50000),
		MinCourierMinutes:     15,
		MinutesPerKm:          8,
		MaxDeliveryDistanceKm: 50,
		MinOrderAmount:        decimal.NewFromInt(20000),
		OrderExpiry:           30 * time.Minute,
		RestaurantLat:         41.2995,
		RestaurantLon:         69.2401,
	}
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	_ = godotenv.Load()

	def := DefaultBusiness()
	return &Config{
		Port:       getEnv("PORT", "8080"),
		GinMode:    getEnv("GIN_MODE", "debug"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		CORSOrigin: getEnv("CORS_ORIGIN", "*"),
		Database: Database{
			Driver:       strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			DSN:          getEnv("DATABASE_URL", "restaurant.db?_busy_timeout=5000&_journal_mode=WAL"),
			MaxOpenConns: getEnvInt("DB_POOL_MAX_CONNECTIONS", 20),
			MaxIdleConns: getEnvInt("DB_POOL_MAX_IDLE", 5),
		},
		Cache: Cache{
			RedisURL: os.Getenv("REDIS_URL"),
			TTL:      time.Duration(getEnvInt("CACHE_TTL_SECONDS", 30)) * time.Second,
		},
		Auth: Auth{
			JWTSecret: getEnv("JWT_SECRET", "change-me-in-production"),
			TokenTTL:  time.Duration(getEnvInt("TOKEN_TTL_HOURS", 24)) * time.Hour,
		},
		SuperAdmin: SuperAdmin{
			Username: getEnv("SUPER_ADMIN_USERNAME", "masteradmin"),
			Password: getEnv("SUPER_ADMIN_PASSWORD", ""),
		},
		Business: Business{
			AvgPrepMinutes:        getEnvInt("AVG_PREP_MINUTES", def.AvgPrepMinutes),
			CashbackPercentage:    getEnvDecimal("CASHBACK_PERCENTAGE", def.CashbackPercentage),
			DeliveryBasePrice:     getEnvDecimal("DELIVERY_BASE_PRICE", def.DeliveryBasePrice),
			CourierBaseRate:       getEnvDecimal("COURIER_BASE_RATE", def.CourierBaseRate),
			MinCourierPrice:       getEnvDecimal("MIN_COURIER_PRICE", def.MinCourierPrice),
			MaxCourierPrice:       getEnvDecimal("MAX_COURIER_PRICE", def.MaxCourierPrice),
			MinCourierMinutes:     def.MinCourierMinutes,
			MinutesPerKm:          def.MinutesPerKm,
			MaxDeliveryDistanceKm: getEnvFloat("MAX_DELIVERY_DISTANCE", def.MaxDeliveryDistanceKm),
			MinOrderAmount:        getEnvDecimal("MIN_ORDER_AMOUNT", def.MinOrderAmount),
			OrderExpiry:           time.Duration(getEnvInt("ORDER_EXPIRY_MINUTES", 30)) * time.Minute,
			RestaurantLat:         getEnvFloat("RESTAURANT_LAT", def.RestaurantLat),
			RestaurantLon:         getEnvFloat("RESTAURANT_LON", def.RestaurantLon),
		},
		Geocoder: Geocoder{
			APIKey:  os.Getenv("SERPER_API_KEY"),
			BaseURL: getEnv("GEOCODER_URL", "https://google.serper.dev/places"),
			Country: getEnv("GEOCODER_COUNTRY", "uz"),
			Timeout: time.Duration(getEnvInt("GEOCODER_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Background: Background{
			EventInterval:    time.Duration(getEnvInt("EVENT_INTERVAL_MS", 500)) * time.Millisecond,
			EventMaxAttempts: getEnvInt("EVENT_MAX_ATTEMPTS", 5),
			SweepInterval:    time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
		},
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	v, err := decimal.NewFromString(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
