package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	LogLevel  string
	LogFormat string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	MetricsEnabled bool
	MetricsAddr    string

	ExchangeRateURL     string
	ExchangeRateTimeout time.Duration
	ExchangeRateTTL     time.Duration

	RedisAddr string

	SchedulerEnabled   bool
	SchedulerRatesSpec string
	SchedulerDueSpec   string

	RentalPolicyPath string
}

// Load loads configuration from environment variables, an optional .env file
// and an optional CONFIG_FILE (yaml/json/toml) overlay.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if path := strings.TrimSpace(v.GetString("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			log.Printf("[config] ignoring %s: %v", path, err)
		}
	}

	return Config{
		AppName:             v.GetString("APP_SERVICE"),
		AppVersion:          v.GetString("APP_VERSION"),
		Environment:         v.GetString("ENVIRONMENT"),
		LogLevel:            strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		LogFormat:           strings.ToLower(strings.TrimSpace(v.GetString("LOG_FORMAT"))),
		DBType:              v.GetString("DATABASE_TYPE"),
		DBHost:              v.GetString("DATABASE_HOST"),
		DBPort:              v.GetString("DATABASE_PORT"),
		DBName:              v.GetString("DATABASE_NAME"),
		DBUser:              v.GetString("DATABASE_USER"),
		DBPassword:          v.GetString("DATABASE_PASSWORD"),
		DBSSLMode:           v.GetString("DATABASE_SSLMODE"),
		DBMaxIdleConn:       v.GetInt("DATABASE_MAX_IDLE_CONN"),
		DBMaxOpenConn:       v.GetInt("DATABASE_MAX_OPEN_CONN"),
		DBConnMaxLifetime:   v.GetInt("DATABASE_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTime:   v.GetInt("DATABASE_CONN_MAX_IDLE_TIME"),
		MetricsEnabled:      v.GetBool("METRICS_ENABLED"),
		MetricsAddr:         v.GetString("METRICS_ADDR"),
		ExchangeRateURL:     strings.TrimSpace(v.GetString("EXCHANGE_RATE_URL")),
		ExchangeRateTimeout: v.GetDuration("EXCHANGE_RATE_TIMEOUT"),
		ExchangeRateTTL:     v.GetDuration("EXCHANGE_RATE_TTL"),
		RedisAddr:           strings.TrimSpace(v.GetString("REDIS_ADDR")),
		SchedulerEnabled:    v.GetBool("SCHEDULER_ENABLED"),
		SchedulerRatesSpec:  v.GetString("SCHEDULER_RATES_SPEC"),
		SchedulerDueSpec:    v.GetString("SCHEDULER_DUE_SPEC"),
		RentalPolicyPath:    strings.TrimSpace(v.GetString("RENTAL_POLICY_PATH")),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_SERVICE", "equiprent")
	v.SetDefault("APP_VERSION", "0.1.0")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DATABASE_TYPE", "postgres")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", "5432")
	v.SetDefault("DATABASE_NAME", "equiprent")
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "postgres")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_IDLE_CONN", 10)
	v.SetDefault("DATABASE_MAX_OPEN_CONN", 50)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", 300)
	v.SetDefault("DATABASE_CONN_MAX_IDLE_TIME", 60)

	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("METRICS_ADDR", ":9090")

	v.SetDefault("EXCHANGE_RATE_URL", "https://www.tcmb.gov.tr/kurlar/today.xml")
	v.SetDefault("EXCHANGE_RATE_TIMEOUT", 5*time.Second)
	v.SetDefault("EXCHANGE_RATE_TTL", 6*time.Hour)

	v.SetDefault("SCHEDULER_ENABLED", true)
	v.SetDefault("SCHEDULER_RATES_SPEC", "0 */6 * * *")
	v.SetDefault("SCHEDULER_DUE_SPEC", "15 7 * * *")
}

// Debug reports whether the process runs outside production.
func (c Config) Debug() bool {
	return c.Environment != "production"
}
