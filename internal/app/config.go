package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/herafy/marketplace/internal/domain/order"
)

// Config holds the complete application configuration, loadable from
// environment variables (HERAFY_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (HERAFY_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Pricing     PricingConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// PricingConfig carries the order totals knobs as decimal strings so they can
// come from env or YAML without float rounding.
type PricingConfig struct {
	TaxRate         string `default:"0.10" usage:"Tax rate applied to order subtotals" flag:"tax-rate"`
	FlatShippingFee string `default:"10"   usage:"Flat shipping fee per order" flag:"shipping-fee"`
	FreeShippingAt  string `default:"500"  usage:"Subtotal from which shipping is free" flag:"free-shipping-at"`
}

// Parse converts the string knobs into order.Pricing.
func (p PricingConfig) Parse() (order.Pricing, error) {
	taxRate, err := decimal.NewFromString(p.TaxRate)
	if err != nil {
		return order.Pricing{}, errors.Wrap(err, "tax rate")
	}
	shippingFee, err := decimal.NewFromString(p.FlatShippingFee)
	if err != nil {
		return order.Pricing{}, errors.Wrap(err, "shipping fee")
	}
	freeAt, err := decimal.NewFromString(p.FreeShippingAt)
	if err != nil {
		return order.Pricing{}, errors.Wrap(err, "free shipping threshold")
	}
	return order.Pricing{
		TaxRate:         taxRate,
		FlatShippingFee: shippingFee,
		FreeShippingAt:  freeAt,
	}, nil
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "HERAFY",
		Files:     []string{"config.yaml", "/etc/herafy/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set HERAFY_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's HERAFY_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
