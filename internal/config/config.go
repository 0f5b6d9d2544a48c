package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is built once in main and injected into every component.
// Nothing in the codebase reads environment variables after startup.
type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string

	StripeSecretKey     string
	StripeWebhookSecret string
	SendGridAPIKey      string
	FromEmail           string
	WebsiteURL          string
	JWTSecret           string

	// Checkout time windows. The reservation window enforced by the sweeper
	// is FormWindow + PaymentWindow + SweepBuffer.
	FormWindow    time.Duration
	PaymentWindow time.Duration
	SweepInterval time.Duration
	SweepBuffer   time.Duration

	// TaxRateBps is the tax rate in basis points (21.0% -> 2100) so pricing
	// stays in integer arithmetic. DeliveryCost is in minor currency units.
	TaxRateBps   int64
	DeliveryCost int64
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),
		AppPort:    os.Getenv("APP_PORT"),
		AppEnv:     os.Getenv("APP_ENV"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		SendGridAPIKey:      os.Getenv("SENDGRID_API_KEY"),
		FromEmail:           os.Getenv("FROM_EMAIL"),
		WebsiteURL:          os.Getenv("WEBSITE_URL"),
		JWTSecret:           os.Getenv("SECRET_KEY"),

		FormWindow:    minutesEnv("FORM_WINDOW_MINUTES", 10),
		PaymentWindow: minutesEnv("PAYMENT_WINDOW_MINUTES", 5),
		SweepInterval: minutesEnv("SWEEP_INTERVAL_MINUTES", 5),
		SweepBuffer:   5 * time.Minute,

		TaxRateBps:   bpsEnv("TAX_RATE_PERCENT", 2100),
		DeliveryCost: centsEnv("DELIVERY_COST", 500),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

// ReservationWindow is how long an unpaid order may hold its stock
// reservation before the sweeper reclaims it.
func (c *Config) ReservationWindow() time.Duration {
	return c.FormWindow + c.PaymentWindow + c.SweepBuffer
}

func minutesEnv(name string, def int) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return time.Duration(def) * time.Minute
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("invalid %s=%q, using default %d", name, v, def)
		return time.Duration(def) * time.Minute
	}
	return time.Duration(n) * time.Minute
}

// bpsEnv parses a percentage like "21.0" into basis points.
func bpsEnv(name string, def int64) int64 {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		log.Printf("invalid %s=%q, using default %d bps", name, v, def)
		return def
	}
	return int64(f * 100)
}

// centsEnv parses a decimal amount like "5.0" into minor currency units.
func centsEnv(name string, def int64) int64 {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		log.Printf("invalid %s=%q, using default %d cents", name, v, def)
		return def
	}
	return int64(f * 100)
}
