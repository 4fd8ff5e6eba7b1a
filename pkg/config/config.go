package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	HTTP       HTTPConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Analytics  AnalyticsConfig
	Focus      FocusConfig
	Attendance AttendanceConfig
}

type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AnalyticsConfig governs caching and query windows for focus analytics endpoints.
type AnalyticsConfig struct {
	CacheEnabled  bool
	CacheTTL      time.Duration
	DefaultWindow time.Duration
	Timezone      string
}

// FocusConfig carries the scoring weights, sub-signal curves and validation bounds.
type FocusConfig struct {
	WeightStability  float64
	WeightStillness  float64
	WeightEngagement float64

	RestingHeartRateLow  float64
	RestingHeartRateHigh float64
	StabilityFalloff     float64

	MaxMovementRate  float64
	IdleMovementRate float64
	IdleMinDuration  time.Duration
	IdleStillnessCap float64

	EngagementBaseline   float64
	EngagementSaturation float64

	HeartRateMin      float64
	HeartRateMax      float64
	DurationTolerance time.Duration
	MaxCount          int
	TrendThreshold    float64
}

// AttendanceConfig controls attendance listing defaults.
type AttendanceConfig struct {
	HistoryLimit int
	Timezone     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.HTTP = HTTPConfig{
		ReadTimeout:     parseDuration(v.GetString("HTTP_READ_TIMEOUT"), 15*time.Second),
		WriteTimeout:    parseDuration(v.GetString("HTTP_WRITE_TIMEOUT"), 30*time.Second),
		ShutdownTimeout: parseDuration(v.GetString("HTTP_SHUTDOWN_TIMEOUT"), 10*time.Second),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Analytics = AnalyticsConfig{
		CacheEnabled:  v.GetBool("ENABLE_ANALYTICS_CACHE"),
		CacheTTL:      parseDuration(v.GetString("ANALYTICS_CACHE_TTL"), 10*time.Minute),
		DefaultWindow: parseDuration(v.GetString("ANALYTICS_DEFAULT_WINDOW"), 30*24*time.Hour),
		Timezone:      v.GetString("ANALYTICS_TIMEZONE"),
	}

	cfg.Focus = FocusConfig{
		WeightStability:      v.GetFloat64("FOCUS_WEIGHT_STABILITY"),
		WeightStillness:      v.GetFloat64("FOCUS_WEIGHT_STILLNESS"),
		WeightEngagement:     v.GetFloat64("FOCUS_WEIGHT_ENGAGEMENT"),
		RestingHeartRateLow:  v.GetFloat64("FOCUS_RESTING_HR_LOW"),
		RestingHeartRateHigh: v.GetFloat64("FOCUS_RESTING_HR_HIGH"),
		StabilityFalloff:     v.GetFloat64("FOCUS_STABILITY_FALLOFF"),
		MaxMovementRate:      v.GetFloat64("FOCUS_MAX_MOVEMENT_RATE"),
		IdleMovementRate:     v.GetFloat64("FOCUS_IDLE_MOVEMENT_RATE"),
		IdleMinDuration:      parseDuration(v.GetString("FOCUS_IDLE_MIN_DURATION"), 10*time.Minute),
		IdleStillnessCap:     v.GetFloat64("FOCUS_IDLE_STILLNESS_CAP"),
		EngagementBaseline:   v.GetFloat64("FOCUS_ENGAGEMENT_BASELINE"),
		EngagementSaturation: v.GetFloat64("FOCUS_ENGAGEMENT_SATURATION"),
		HeartRateMin:         v.GetFloat64("FOCUS_HR_MIN"),
		HeartRateMax:         v.GetFloat64("FOCUS_HR_MAX"),
		DurationTolerance:    parseDuration(v.GetString("FOCUS_DURATION_TOLERANCE"), 5*time.Minute),
		MaxCount:             v.GetInt("FOCUS_MAX_COUNT"),
		TrendThreshold:       v.GetFloat64("FOCUS_TREND_THRESHOLD"),
	}

	cfg.Attendance = AttendanceConfig{
		HistoryLimit: v.GetInt("ATTENDANCE_HISTORY_LIMIT"),
		Timezone:     v.GetString("ATTENDANCE_TIMEZONE"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("HTTP_READ_TIMEOUT", "15s")
	v.SetDefault("HTTP_WRITE_TIMEOUT", "30s")
	v.SetDefault("HTTP_SHUTDOWN_TIMEOUT", "10s")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "classroom_focus")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "sma-focus-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_ANALYTICS_CACHE", true)
	v.SetDefault("ANALYTICS_CACHE_TTL", "10m")
	v.SetDefault("ANALYTICS_DEFAULT_WINDOW", "720h")
	v.SetDefault("ANALYTICS_TIMEZONE", "UTC")

	v.SetDefault("FOCUS_WEIGHT_STABILITY", 0.35)
	v.SetDefault("FOCUS_WEIGHT_STILLNESS", 0.35)
	v.SetDefault("FOCUS_WEIGHT_ENGAGEMENT", 0.30)
	v.SetDefault("FOCUS_RESTING_HR_LOW", 60)
	v.SetDefault("FOCUS_RESTING_HR_HIGH", 90)
	v.SetDefault("FOCUS_STABILITY_FALLOFF", 40)
	v.SetDefault("FOCUS_MAX_MOVEMENT_RATE", 2.0)
	v.SetDefault("FOCUS_IDLE_MOVEMENT_RATE", 0.02)
	v.SetDefault("FOCUS_IDLE_MIN_DURATION", "10m")
	v.SetDefault("FOCUS_IDLE_STILLNESS_CAP", 0.5)
	v.SetDefault("FOCUS_ENGAGEMENT_BASELINE", 0.15)
	v.SetDefault("FOCUS_ENGAGEMENT_SATURATION", 0.5)
	v.SetDefault("FOCUS_HR_MIN", 30)
	v.SetDefault("FOCUS_HR_MAX", 220)
	v.SetDefault("FOCUS_DURATION_TOLERANCE", "5m")
	v.SetDefault("FOCUS_MAX_COUNT", 100000)
	v.SetDefault("FOCUS_TREND_THRESHOLD", 0.05)

	v.SetDefault("ATTENDANCE_HISTORY_LIMIT", 30)
	v.SetDefault("ATTENDANCE_TIMEZONE", "UTC")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
