/**
 * @description
 * This file handles configuration management for the payment-relay-service.
 * It uses the Viper library to read settings from environment variables or a
 * local .env file, with explicit binding and post-load validation of the
 * provider credentials the relay cannot run without.
 *
 * @dependencies
 * - github.com/spf13/viper: A powerful configuration library for Go applications.
 */
package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RedisURL    string `mapstructure:"REDIS_URL"`
	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`

	XsollaMerchantID       string `mapstructure:"XSOLLA_MERCHANT_ID"`
	XsollaAPIKey           string `mapstructure:"XSOLLA_API_KEY"`
	XsollaProjectID        string `mapstructure:"XSOLLA_PROJECT_ID"`
	XsollaWebhookSecretKey string `mapstructure:"XSOLLA_WEBHOOK_SECRET_KEY"`
	XsollaStoreBaseURL     string `mapstructure:"XSOLLA_STORE_BASE_URL"`
	XsollaAPIBaseURL       string `mapstructure:"XSOLLA_API_BASE_URL"`

	Environment string `mapstructure:"ENVIRONMENT"`

	AuthJWTSecret string `mapstructure:"AUTH_JWT_SECRET"`

	PaymentEventsExchange string `mapstructure:"PAYMENT_EVENTS_EXCHANGE"`
	SessionBusChannel     string `mapstructure:"SESSION_BUS_CHANNEL"`
}

// Sandbox reports whether token requests should hit Xsolla's test processing
// path. Anything that is not explicitly production is sandbox.
func (c Config) Sandbox() bool {
	return !strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (config Config, err error) {
	viper.AddConfigPath(".")
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "2567")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("PAYMENT_EVENTS_EXCHANGE", "payment_events")
	viper.SetDefault("SESSION_BUS_CHANNEL", "relay:orders")

	// Bind env vars explicitly
	_ = viper.BindEnv("SERVER_PORT", "SERVER_PORT", "PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("XSOLLA_MERCHANT_ID")
	_ = viper.BindEnv("XSOLLA_API_KEY")
	_ = viper.BindEnv("XSOLLA_PROJECT_ID")
	_ = viper.BindEnv("XSOLLA_WEBHOOK_SECRET_KEY")
	_ = viper.BindEnv("XSOLLA_STORE_BASE_URL")
	_ = viper.BindEnv("XSOLLA_API_BASE_URL")
	_ = viper.BindEnv("ENVIRONMENT", "ENVIRONMENT", "NODE_ENV")
	_ = viper.BindEnv("AUTH_JWT_SECRET")
	_ = viper.BindEnv("PAYMENT_EVENTS_EXCHANGE")
	_ = viper.BindEnv("SESSION_BUS_CHANNEL")

	// Read the config file if it exists.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	required := []struct {
		name  string
		value string
	}{
		{"XSOLLA_MERCHANT_ID", config.XsollaMerchantID},
		{"XSOLLA_API_KEY", config.XsollaAPIKey},
		{"XSOLLA_PROJECT_ID", config.XsollaProjectID},
		{"XSOLLA_WEBHOOK_SECRET_KEY", config.XsollaWebhookSecretKey},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return config, fmt.Errorf("missing required configuration value %s", field.name)
		}
	}

	return config, nil
}
