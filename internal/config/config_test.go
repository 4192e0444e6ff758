package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XSOLLA_MERCHANT_ID", "merchant-1")
	t.Setenv("XSOLLA_API_KEY", "key-1")
	t.Setenv("XSOLLA_PROJECT_ID", "777")
	t.Setenv("XSOLLA_WEBHOOK_SECRET_KEY", "whsec")
}

func TestLoadConfig_DefaultsApplied(t *testing.T) {
	viper.Reset()
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}

	if cfg.ServerPort != "2567" {
		t.Errorf("expected default port 2567, got %q", cfg.ServerPort)
	}
	if cfg.Environment != "development" {
		t.Errorf("expected default environment development, got %q", cfg.Environment)
	}
	if cfg.PaymentEventsExchange != "payment_events" {
		t.Errorf("expected default exchange, got %q", cfg.PaymentEventsExchange)
	}
	if cfg.SessionBusChannel != "relay:orders" {
		t.Errorf("expected default bus channel, got %q", cfg.SessionBusChannel)
	}
	if !cfg.Sandbox() {
		t.Error("development environment must run sandboxed")
	}
}

func TestLoadConfig_MissingRequiredValue(t *testing.T) {
	viper.Reset()
	setRequiredEnv(t)
	t.Setenv("XSOLLA_WEBHOOK_SECRET_KEY", "")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("expected error for missing webhook secret")
	}
	if !strings.Contains(err.Error(), "XSOLLA_WEBHOOK_SECRET_KEY") {
		t.Fatalf("error should name the missing value, got %v", err)
	}
}

func TestLoadConfig_EnvironmentControlsSandbox(t *testing.T) {
	tests := []struct {
		environment string
		sandbox     bool
	}{
		{"production", false},
		{"PRODUCTION", false},
		{"development", true},
		{"staging", true},
		{"", true},
	}

	for _, tc := range tests {
		t.Run("env_"+tc.environment, func(t *testing.T) {
			viper.Reset()
			setRequiredEnv(t)
			t.Setenv("ENVIRONMENT", tc.environment)

			cfg, err := LoadConfig()
			if err != nil {
				t.Fatalf("expected config to load, got %v", err)
			}
			if cfg.Sandbox() != tc.sandbox {
				t.Errorf("environment %q: expected sandbox=%v, got %v", tc.environment, tc.sandbox, cfg.Sandbox())
			}
		})
	}
}

func TestLoadConfig_NodeEnvAlias(t *testing.T) {
	viper.Reset()
	setRequiredEnv(t)
	t.Setenv("NODE_ENV", "production")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
	if cfg.Sandbox() {
		t.Error("NODE_ENV=production must disable sandbox")
	}
}

func TestLoadConfig_PortAlias(t *testing.T) {
	viper.Reset()
	setRequiredEnv(t)
	t.Setenv("PORT", "8080")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("expected PORT alias honored, got %q", cfg.ServerPort)
	}
}
