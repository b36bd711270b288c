/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the booking-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                      string `mapstructure:"SERVER_PORT"`
	DatabaseURL                     string `mapstructure:"DATABASE_URL"`
	RedisURL                        string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix            string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                     string `mapstructure:"RABBITMQ_URL"`
	PaymentEventQueue               string `mapstructure:"PAYMENT_EVENT_QUEUE"`
	PaymentAPIBaseURL               string `mapstructure:"PAYMENT_API_BASE_URL"`
	PaymentAPIKey                   string `mapstructure:"PAYMENT_API_KEY"`
	ClerkJWKSURL                    string `mapstructure:"CLERK_JWKS_URL"`
	ClerkAudience                   string `mapstructure:"CLERK_AUDIENCE"`
	ClerkIssuer                     string `mapstructure:"CLERK_ISSUER"`
	AvailabilityServiceURL          string `mapstructure:"AVAILABILITY_SERVICE_URL"`
	AvailabilityServiceAPIKey       string `mapstructure:"AVAILABILITY_SERVICE_API_KEY"`
	InternalAPIKey                  string `mapstructure:"INTERNAL_API_KEY"`
	Currency                        string `mapstructure:"CURRENCY"`
	DefaultCountry                  string `mapstructure:"DEFAULT_COUNTRY"`
	DirectHireFee                   int64  `mapstructure:"DIRECT_HIRE_FEE"`
	Timezone                        string `mapstructure:"TIMEZONE"`
	PlanFiringSchedule              string `mapstructure:"PLAN_FIRING_SCHEDULE"`
	ReconcileSchedule               string `mapstructure:"RECONCILE_SCHEDULE"`
	ResumeCutoffHour                int    `mapstructure:"RESUME_CUTOFF_HOUR"`
	PricingCacheTTLMinutes          int    `mapstructure:"PRICING_CACHE_TTL_MINUTES"`
	BookingCreateRateLimitPerMinute int    `mapstructure:"BOOKING_CREATE_RATE_LIMIT_PER_MINUTE"`
	ReconcileStaleAfterHours        int    `mapstructure:"RECONCILE_STALE_AFTER_HOURS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("PAYMENT_EVENT_QUEUE", "booking_service.payment_updates")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "maidconnect:rate_limit")
	viper.SetDefault("CURRENCY", "COP")
	viper.SetDefault("DEFAULT_COUNTRY", "CO")
	viper.SetDefault("DIRECT_HIRE_FEE", 40000000)
	viper.SetDefault("TIMEZONE", "America/Bogota")
	viper.SetDefault("PLAN_FIRING_SCHEDULE", "0 * * * *")
	viper.SetDefault("RECONCILE_SCHEDULE", "*/30 * * * *")
	viper.SetDefault("RESUME_CUTOFF_HOUR", 12)
	viper.SetDefault("PRICING_CACHE_TTL_MINUTES", 5)
	viper.SetDefault("BOOKING_CREATE_RATE_LIMIT_PER_MINUTE", 20)
	viper.SetDefault("RECONCILE_STALE_AFTER_HOURS", 6)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "BOOKING_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("PAYMENT_EVENT_QUEUE")
	_ = viper.BindEnv("PAYMENT_API_BASE_URL")
	_ = viper.BindEnv("PAYMENT_API_KEY")
	_ = viper.BindEnv("CLERK_JWKS_URL")
	_ = viper.BindEnv("CLERK_AUDIENCE")
	_ = viper.BindEnv("CLERK_ISSUER")
	_ = viper.BindEnv("AVAILABILITY_SERVICE_URL")
	_ = viper.BindEnv("AVAILABILITY_SERVICE_API_KEY")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "BOOKING_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("CURRENCY")
	_ = viper.BindEnv("DEFAULT_COUNTRY")
	_ = viper.BindEnv("DIRECT_HIRE_FEE")
	_ = viper.BindEnv("TIMEZONE")
	_ = viper.BindEnv("PLAN_FIRING_SCHEDULE")
	_ = viper.BindEnv("RECONCILE_SCHEDULE")
	_ = viper.BindEnv("RESUME_CUTOFF_HOUR")
	_ = viper.BindEnv("PRICING_CACHE_TTL_MINUTES")
	_ = viper.BindEnv("BOOKING_CREATE_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("RECONCILE_STALE_AFTER_HOURS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("BOOKING_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "maidconnect:rate_limit"
	}

	if config.DirectHireFee < 0 {
		log.Printf("level=warn component=config msg=\"negative direct hire fee configured; coercing to zero\" fee=%d", config.DirectHireFee)
		config.DirectHireFee = 0
	}
	if config.ResumeCutoffHour < 0 || config.ResumeCutoffHour > 23 {
		log.Printf("level=warn component=config msg=\"resume cutoff hour out of range; using default\" hour=%d", config.ResumeCutoffHour)
		config.ResumeCutoffHour = 12
	}
	if config.PricingCacheTTLMinutes <= 0 {
		config.PricingCacheTTLMinutes = 5
	}
	if config.ReconcileStaleAfterHours <= 0 {
		config.ReconcileStaleAfterHours = 6
	}

	return
}
