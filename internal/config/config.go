package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Geocode  GeocodeConfig
	Location LocationConfig
	Geofence GeofenceConfig
	CORS     CORSConfig
	Cron     CronConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
	// MaxConnLifetime recycles pooled connections; zero keeps the pgx default
	MaxConnLifetime time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port     int
	Env      string
	LogLevel string
	Version  string
	// Timezone is the IANA zone attendance days and office hours are evaluated in.
	Timezone string
	BaseURL  string
}

type StorageConfig struct {
	UploadDir string
	PublicURL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type GeocodeConfig struct {
	BaseURL   string
	UserAgent string
	Language  string
	Timeout   time.Duration
	CacheTTL  time.Duration
}

// LocationConfig holds the acquisition pipeline tunables.
type LocationConfig struct {
	FastFixTimeout        time.Duration
	FastFixMaxAge         time.Duration
	RefineTimeout         time.Duration
	TargetAccuracyMeters  float64
	GeocodeEpsilonDegrees float64
	SessionIdleTimeout    time.Duration
}

type GeofenceConfig struct {
	Enabled      bool
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

type CORSConfig struct {
	AllowedOrigins []string
}

type CronConfig struct {
	OfficeHoursReloadInterval time.Duration
	SessionReapInterval       time.Duration
}

func Load() (*Config, error) {
	// .env is optional; the environment wins either way
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	} else if err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	config := &Config{}
	p := &parser{}

	// Database configuration
	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     p.int("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "attendance"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(p.int("DB_MAX_CONNS", "25")),
		MinConns: int32(p.int("DB_MIN_CONNS", "5")),

		MaxConnLifetime: p.duration("DB_MAX_CONN_LIFETIME", "1h"),
	}

	// Application configuration
	config.App = AppConfig{
		Port:     p.int("APP_PORT", "8080"),
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Version:  getEnv("APP_VERSION", "v1.0.0"),
		Timezone: getEnv("APP_TIMEZONE", "Asia/Jakarta"),
		BaseURL:  getEnv("APP_BASE_URL", "http://localhost:8080"),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	config.Storage = StorageConfig{
		UploadDir: getEnv("STORAGE_UPLOAD_DIR", "./uploads"),
		PublicURL: getEnv("STORAGE_PUBLIC_URL", strings.TrimRight(config.App.BaseURL, "/")+"/uploads"),
	}

	// Redis configuration, empty address disables the geocode cache
	config.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       p.int("REDIS_DB", "0"),
	}

	config.Geocode = GeocodeConfig{
		BaseURL:   getEnv("GEOCODE_BASE_URL", "https://nominatim.openstreetmap.org"),
		UserAgent: getEnv("GEOCODE_USER_AGENT", "attendance-engine/1.0"),
		Language:  getEnv("GEOCODE_LANGUAGE", "id"),
		Timeout:   p.duration("GEOCODE_TIMEOUT", "5s"),
		CacheTTL:  p.duration("GEOCODE_CACHE_TTL", "24h"),
	}

	config.Location = LocationConfig{
		FastFixTimeout:        p.duration("LOCATION_FAST_FIX_TIMEOUT", "5s"),
		FastFixMaxAge:         p.duration("LOCATION_FAST_FIX_MAX_AGE", "0s"),
		RefineTimeout:         p.duration("LOCATION_REFINE_TIMEOUT", "30s"),
		TargetAccuracyMeters:  p.float("LOCATION_TARGET_ACCURACY", "10"),
		GeocodeEpsilonDegrees: p.float("LOCATION_GEOCODE_EPSILON", "0.000001"),
		SessionIdleTimeout:    p.duration("LOCATION_SESSION_IDLE_TIMEOUT", "10m"),
	}

	config.Geofence = GeofenceConfig{
		Enabled:      p.bool("GEOFENCE_ENABLED", "false"),
		Latitude:     p.float("GEOFENCE_LATITUDE", "0"),
		Longitude:    p.float("GEOFENCE_LONGITUDE", "0"),
		RadiusMeters: p.float("GEOFENCE_RADIUS_METERS", "100"),
	}

	config.CORS = CORSConfig{
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
	}

	config.Cron = CronConfig{
		OfficeHoursReloadInterval: p.duration("OFFICE_HOURS_RELOAD_INTERVAL", "5m"),
		SessionReapInterval:       p.duration("LOCATION_SESSION_REAP_INTERVAL", "1m"),
	}

	if p.err != nil {
		return nil, p.err
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if _, err := time.ParseDuration(c.JWT.AccessExpiration); err != nil {
		return fmt.Errorf("invalid JWT_ACCESS_EXPIRATION_TIME: %w", err)
	}
	if _, err := c.TimeLocation(); err != nil {
		return err
	}
	if c.Geofence.Enabled {
		if c.Geofence.Latitude < -90 || c.Geofence.Latitude > 90 || c.Geofence.Longitude < -180 || c.Geofence.Longitude > 180 {
			return fmt.Errorf("GEOFENCE_LATITUDE/GEOFENCE_LONGITUDE out of range")
		}
		if c.Geofence.RadiusMeters <= 0 {
			return fmt.Errorf("GEOFENCE_RADIUS_METERS must be positive")
		}
	}
	if c.Location.TargetAccuracyMeters <= 0 {
		return fmt.Errorf("LOCATION_TARGET_ACCURACY must be positive")
	}
	return nil
}

// TimeLocation loads the configured timezone.
func (c *Config) TimeLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.App.Timezone, err)
	}
	return loc, nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.App.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(key, fallback string) []string {
	value := getEnv(key, fallback)
	if value == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

// parser keeps the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
}

func (p *parser) int(key, fallback string) int {
	value := getEnv(key, fallback)
	n, err := strconv.Atoi(value)
	if err != nil {
		p.fail(key, value, err)
	}
	return n
}

func (p *parser) float(key, fallback string) float64 {
	value := getEnv(key, fallback)
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		p.fail(key, value, err)
	}
	return f
}

func (p *parser) bool(key, fallback string) bool {
	value := getEnv(key, fallback)
	b, err := strconv.ParseBool(value)
	if err != nil {
		p.fail(key, value, err)
	}
	return b
}

func (p *parser) duration(key, fallback string) time.Duration {
	value := getEnv(key, fallback)
	d, err := time.ParseDuration(value)
	if err != nil {
		p.fail(key, value, err)
	}
	return d
}
