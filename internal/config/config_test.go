package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("FORM_WINDOW_MINUTES", "")
	t.Setenv("PAYMENT_WINDOW_MINUTES", "")
	t.Setenv("SWEEP_INTERVAL_MINUTES", "")
	t.Setenv("TAX_RATE_PERCENT", "")
	t.Setenv("DELIVERY_COST", "")

	cfg := LoadConfig()

	assert.Equal(t, 10*time.Minute, cfg.FormWindow)
	assert.Equal(t, 5*time.Minute, cfg.PaymentWindow)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.Equal(t, int64(2100), cfg.TaxRateBps)
	assert.Equal(t, int64(500), cfg.DeliveryCost)
	assert.Equal(t, 20*time.Minute, cfg.ReservationWindow())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("FORM_WINDOW_MINUTES", "3")
	t.Setenv("PAYMENT_WINDOW_MINUTES", "2")
	t.Setenv("TAX_RATE_PERCENT", "10.5")
	t.Setenv("DELIVERY_COST", "7.50")

	cfg := LoadConfig()

	assert.Equal(t, 3*time.Minute, cfg.FormWindow)
	assert.Equal(t, 2*time.Minute, cfg.PaymentWindow)
	assert.Equal(t, int64(1050), cfg.TaxRateBps)
	assert.Equal(t, int64(750), cfg.DeliveryCost)
	assert.Equal(t, 10*time.Minute, cfg.ReservationWindow())
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("FORM_WINDOW_MINUTES", "not-a-number")
	t.Setenv("TAX_RATE_PERCENT", "-1")

	cfg := LoadConfig()

	assert.Equal(t, 10*time.Minute, cfg.FormWindow)
	assert.Equal(t, int64(2100), cfg.TaxRateBps)
}
