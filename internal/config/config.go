package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"

	"github.com/niaga-platform/service-commerce-analytics/internal/analytics"
)

// Config holds all configuration for the commerce analytics service
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Shopify   ShopifyConfig   `mapstructure:"shopify"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
}

// RedisConfig holds Redis cache configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// AppConfig holds application configuration
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// DSN returns the Postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// NATSConfig holds NATS configuration. An empty URL disables events.
type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// SentryConfig holds Sentry error tracking configuration
type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
	Release     string `mapstructure:"release"`
}

// ShopifyConfig holds Shopify Admin API configuration
type ShopifyConfig struct {
	Shop              string        `mapstructure:"shop"`
	AccessToken       string        `mapstructure:"access_token"`
	APIVersion        string        `mapstructure:"api_version"`
	WebhookSecret     string        `mapstructure:"webhook_secret"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
}

// Cache backends.
const (
	CacheBackendRedis    = "redis"
	CacheBackendPostgres = "postgres"
	CacheBackendNone     = "none"
)

// CacheConfig selects the cache backend and the lifetime of each report.
type CacheConfig struct {
	Backend      string        `mapstructure:"backend"`
	Namespace    string        `mapstructure:"namespace"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	TTL          ReportTTLs    `mapstructure:"ttl"`
}

// ReportTTLs holds the cache lifetime of each report.
type ReportTTLs struct {
	Pareto      time.Duration `mapstructure:"pareto"`
	Brands      time.Duration `mapstructure:"brands"`
	Geography   time.Duration `mapstructure:"geography"`
	Inventory   time.Duration `mapstructure:"inventory"`
	Projections time.Duration `mapstructure:"projections"`
	PnL         time.Duration `mapstructure:"pnl"`
	Executive   time.Duration `mapstructure:"executive"`
}

// PageLimits caps the pages collected per report. Zero means no cap.
type PageLimits struct {
	Pareto         int `mapstructure:"pareto"`
	Brands         int `mapstructure:"brands"`
	Geography      int `mapstructure:"geography"`
	Projections    int `mapstructure:"projections"`
	PnL            int `mapstructure:"pnl"`
	InventorySales int `mapstructure:"inventory_sales"`
	Catalog        int `mapstructure:"catalog"`
	Executive      int `mapstructure:"executive"`
}

// AnalyticsConfig holds the tunables of the analytics engine
type AnalyticsConfig struct {
	TaxRate                 float64    `mapstructure:"tax_rate"`
	Timezone                string     `mapstructure:"timezone"`
	ParetoThresholdPercent  float64    `mapstructure:"pareto_threshold"`
	ReportLimit             int        `mapstructure:"report_limit"`
	HomeCountry             string     `mapstructure:"home_country"`
	CityLimit               int        `mapstructure:"city_limit"`
	VelocityWindowDays      int        `mapstructure:"velocity_window_days"`
	CriticalCoverDays       float64    `mapstructure:"critical_cover_days"`
	LowCoverDays            float64    `mapstructure:"low_cover_days"`
	LowStockThreshold       int        `mapstructure:"low_stock_threshold"`
	OwnerBrandAliases       []string   `mapstructure:"owner_brand_aliases"`
	ExcludedMarkers         []string   `mapstructure:"excluded_markers"`
	HistoryStart            string     `mapstructure:"history_start"`
	DefaultBrandMonths      int        `mapstructure:"default_brand_months"`
	DefaultProjectionMonths int        `mapstructure:"default_projection_months"`
	Pages                   PageLimits `mapstructure:"pages"`
}

// Settings builds the engine settings, starting from the engine defaults.
func (c AnalyticsConfig) Settings() (analytics.Settings, error) {
	s := analytics.DefaultSettings()

	if c.Timezone != "" {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return s, fmt.Errorf("invalid analytics timezone %q: %w", c.Timezone, err)
		}
		s.Location = loc
	}
	if c.TaxRate < 0 {
		return s, fmt.Errorf("invalid tax rate %v", c.TaxRate)
	}
	s.TaxRate = c.TaxRate
	if c.ParetoThresholdPercent <= 0 || c.ParetoThresholdPercent > 100 {
		return s, fmt.Errorf("invalid pareto threshold %v", c.ParetoThresholdPercent)
	}
	s.ParetoThresholdPercent = c.ParetoThresholdPercent
	s.ReportLimit = c.ReportLimit
	s.HomeCountry = strings.ToUpper(c.HomeCountry)
	s.CityLimit = c.CityLimit
	if c.VelocityWindowDays <= 0 {
		return s, fmt.Errorf("invalid velocity window %d", c.VelocityWindowDays)
	}
	s.VelocityWindowDays = c.VelocityWindowDays
	s.CriticalCoverDays = c.CriticalCoverDays
	s.LowCoverDays = c.LowCoverDays
	s.LowStockThreshold = c.LowStockThreshold
	if len(c.OwnerBrandAliases) > 0 {
		s.OwnerBrandAliases = c.OwnerBrandAliases
	}
	if len(c.ExcludedMarkers) > 0 {
		s.ExcludedMarkers = c.ExcludedMarkers
	}
	return s, nil
}

// HistoryStartTime parses HistoryStart as a date in loc.
func (c AnalyticsConfig) HistoryStartTime(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", c.HistoryStart, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid history start %q: %w", c.HistoryStart, err)
	}
	return t, nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Automatically load environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("") // No prefix, read exact variable names

	_ = v.BindEnv("app.name", "APP_NAME")
	_ = v.BindEnv("app.env", "APP_ENV")
	_ = v.BindEnv("app.port", "APP_PORT")

	_ = v.BindEnv("database.host", "DB_HOST")
	_ = v.BindEnv("database.port", "DB_PORT")
	_ = v.BindEnv("database.user", "DB_USER")
	_ = v.BindEnv("database.password", "DB_PASSWORD")
	_ = v.BindEnv("database.name", "DB_NAME")
	_ = v.BindEnv("database.ssl_mode", "DB_SSLMODE")

	_ = v.BindEnv("nats.url", "NATS_URL")

	// Redis
	_ = v.BindEnv("redis.host", "REDIS_HOST")
	_ = v.BindEnv("redis.port", "REDIS_PORT")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")

	_ = v.BindEnv("sentry.dsn", "SENTRY_DSN")
	_ = v.BindEnv("sentry.environment", "APP_ENV")
	_ = v.BindEnv("sentry.release", "APP_VERSION")

	// Shopify
	_ = v.BindEnv("shopify.shop", "SHOPIFY_SHOP_NAME")
	_ = v.BindEnv("shopify.access_token", "SHOPIFY_ACCESS_TOKEN")
	_ = v.BindEnv("shopify.api_version", "SHOPIFY_API_VERSION")
	_ = v.BindEnv("shopify.webhook_secret", "SHOPIFY_WEBHOOK_SECRET")
	_ = v.BindEnv("shopify.requests_per_second", "SHOPIFY_RPS")
	_ = v.BindEnv("shopify.burst", "SHOPIFY_BURST")
	_ = v.BindEnv("shopify.request_timeout", "SHOPIFY_TIMEOUT")

	// Cache
	_ = v.BindEnv("cache.backend", "CACHE_BACKEND")
	_ = v.BindEnv("cache.namespace", "CACHE_NAMESPACE")
	_ = v.BindEnv("cache.write_timeout", "CACHE_WRITE_TIMEOUT")
	_ = v.BindEnv("cache.ttl.pareto", "CACHE_TTL_PARETO")
	_ = v.BindEnv("cache.ttl.brands", "CACHE_TTL_BRANDS")
	_ = v.BindEnv("cache.ttl.geography", "CACHE_TTL_GEOGRAPHY")
	_ = v.BindEnv("cache.ttl.inventory", "CACHE_TTL_INVENTORY")
	_ = v.BindEnv("cache.ttl.projections", "CACHE_TTL_PROJECTIONS")
	_ = v.BindEnv("cache.ttl.pnl", "CACHE_TTL_PNL")
	_ = v.BindEnv("cache.ttl.executive", "CACHE_TTL_EXECUTIVE")

	// Analytics
	_ = v.BindEnv("analytics.tax_rate", "ANALYTICS_TAX_RATE")
	_ = v.BindEnv("analytics.timezone", "ANALYTICS_TIMEZONE")
	_ = v.BindEnv("analytics.pareto_threshold", "ANALYTICS_PARETO_THRESHOLD")
	_ = v.BindEnv("analytics.report_limit", "ANALYTICS_REPORT_LIMIT")
	_ = v.BindEnv("analytics.home_country", "ANALYTICS_HOME_COUNTRY")
	_ = v.BindEnv("analytics.city_limit", "ANALYTICS_CITY_LIMIT")
	_ = v.BindEnv("analytics.velocity_window_days", "ANALYTICS_VELOCITY_WINDOW_DAYS")
	_ = v.BindEnv("analytics.critical_cover_days", "ANALYTICS_CRITICAL_COVER_DAYS")
	_ = v.BindEnv("analytics.low_cover_days", "ANALYTICS_LOW_COVER_DAYS")
	_ = v.BindEnv("analytics.low_stock_threshold", "ANALYTICS_LOW_STOCK_THRESHOLD")
	_ = v.BindEnv("analytics.owner_brand_aliases", "ANALYTICS_OWNER_BRAND_ALIASES")
	_ = v.BindEnv("analytics.excluded_markers", "ANALYTICS_EXCLUDED_MARKERS")
	_ = v.BindEnv("analytics.history_start", "ANALYTICS_HISTORY_START")
	_ = v.BindEnv("analytics.default_brand_months", "ANALYTICS_BRAND_MONTHS")
	_ = v.BindEnv("analytics.default_projection_months", "ANALYTICS_PROJECTION_MONTHS")
	for _, report := range []string{"pareto", "brands", "geography", "projections", "pnl", "inventory_sales", "catalog", "executive"} {
		_ = v.BindEnv("analytics.pages."+report, "ANALYTICS_PAGES_"+strings.ToUpper(report))
	}

	// Set defaults
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	switch config.Cache.Backend {
	case CacheBackendRedis, CacheBackendPostgres, CacheBackendNone:
	default:
		return nil, fmt.Errorf("unknown cache backend %q", config.Cache.Backend)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "service-commerce-analytics")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8012")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.ssl_mode", "disable")

	// NATS
	v.SetDefault("nats.url", "nats://localhost:4222")

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Shopify
	v.SetDefault("shopify.api_version", "2024-01")
	v.SetDefault("shopify.requests_per_second", 2)
	v.SetDefault("shopify.burst", 4)
	v.SetDefault("shopify.request_timeout", "30s")

	// Cache
	v.SetDefault("cache.backend", CacheBackendRedis)
	v.SetDefault("cache.namespace", "analytics:")
	v.SetDefault("cache.write_timeout", "10s")
	v.SetDefault("cache.ttl.pareto", "6h")
	v.SetDefault("cache.ttl.brands", "6h")
	v.SetDefault("cache.ttl.geography", "12h")
	v.SetDefault("cache.ttl.inventory", "30m")
	v.SetDefault("cache.ttl.projections", "6h")
	v.SetDefault("cache.ttl.pnl", "2h")
	v.SetDefault("cache.ttl.executive", "1h")

	// Analytics
	v.SetDefault("analytics.tax_rate", 0.19)
	v.SetDefault("analytics.timezone", "America/Santiago")
	v.SetDefault("analytics.pareto_threshold", 80)
	v.SetDefault("analytics.report_limit", 30)
	v.SetDefault("analytics.home_country", "CL")
	v.SetDefault("analytics.city_limit", 15)
	v.SetDefault("analytics.velocity_window_days", 90)
	v.SetDefault("analytics.critical_cover_days", 15)
	v.SetDefault("analytics.low_cover_days", 30)
	v.SetDefault("analytics.low_stock_threshold", 5)
	v.SetDefault("analytics.excluded_markers", []string{"(GB)"})
	v.SetDefault("analytics.history_start", "2024-01-01")
	v.SetDefault("analytics.default_brand_months", 12)
	v.SetDefault("analytics.default_projection_months", 6)
	v.SetDefault("analytics.pages.pareto", 4)
	v.SetDefault("analytics.pages.brands", 10)
	v.SetDefault("analytics.pages.geography", 15)
	v.SetDefault("analytics.pages.projections", 8)
	v.SetDefault("analytics.pages.pnl", 20)
	v.SetDefault("analytics.pages.inventory_sales", 20)
	v.SetDefault("analytics.pages.catalog", 40)
	v.SetDefault("analytics.pages.executive", 4)

	// Sentry
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.release", "1.0.0")
}
