package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "9090")
	t.Setenv("LEDGER_DEFAULT_CASHOUT_FEE_PERCENTAGE", "2.5")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port: got %d, want 9090", cfg.Server.Port)
	}
	if cfg.Cache.ReportTTL != 60*time.Second {
		t.Errorf("report ttl: got %s, want 60s", cfg.Cache.ReportTTL)
	}

	d, err := cfg.LedgerDefaults()
	if err != nil {
		t.Fatalf("LedgerDefaults: %v", err)
	}
	if d.PlatformFeePercentage.String() != "10" {
		t.Errorf("platform fee: got %s, want 10", d.PlatformFeePercentage)
	}
	if d.CashoutFeePercentage.String() != "2.5" {
		t.Errorf("cashout fee: got %s, want 2.5", d.CashoutFeePercentage)
	}
	if d.MinCashoutAmount.String() != "1000" {
		t.Errorf("min cashout: got %s, want 1000", d.MinCashoutAmount)
	}
}

func TestLoad_File(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "ledger:\n  default_platform_fee_percentage: \"7.5\"\nnotifications:\n  webhook_url: http://hooks.local/notify\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Notifications.WebhookURL != "http://hooks.local/notify" {
		t.Errorf("webhook url: got %q", cfg.Notifications.WebhookURL)
	}
	d, _ := cfg.LedgerDefaults()
	if d.PlatformFeePercentage.String() != "7.5" {
		t.Errorf("platform fee: got %s, want 7.5", d.PlatformFeePercentage)
	}
}

func TestLoad_RejectsBadPercent(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("LEDGER_DEFAULT_PLATFORM_FEE_PERCENTAGE", "150")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for fee percentage above 100")
	}
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error when JWT_SECRET is empty")
	}
}

func TestLoad_ZeroLedgerSettingsKept(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("LEDGER_DEFAULT_PLATFORM_FEE_PERCENTAGE", "0")
	t.Setenv("LEDGER_DEFAULT_CASHOUT_FEE_PERCENTAGE", "0")
	t.Setenv("LEDGER_DEFAULT_MIN_CASHOUT_AMOUNT", "0")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d, err := cfg.LedgerDefaults()
	if err != nil {
		t.Fatalf("LedgerDefaults: %v", err)
	}
	if !d.PlatformFeePercentage.IsZero() || !d.CashoutFeePercentage.IsZero() || !d.MinCashoutAmount.IsZero() {
		t.Errorf("defaults = %+v, want all zero", d)
	}
}
