package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete bot configuration, loadable from environment
// variables (SHOPBOT_ prefix), flags, or YAML config files.
type Config struct {
	BotToken   string  `usage:"Telegram bot token (SHOPBOT_BOT_TOKEN or TELEGRAM_BOT_TOKEN)" flag:"bot-token"`
	Debug      bool    `default:"false" usage:"Log Bot API traffic"`
	Operators  []int64 `usage:"Operator chat ids receiving order and support notifications (or ADMIN_IDS)"`
	Gateway    GatewayConfig
	Telegram   TelegramConfig
	Catalog    CatalogConfig
	Checkout   CheckoutConfig
	Dispatcher DispatcherConfig
	Notify     NotifyConfig
	Push       PushConfig
	Graceful   GracefulConfig
}

// GatewayConfig points at the commerce backend bot API.
type GatewayConfig struct {
	URL       string        `usage:"Backend bot API root, e.g. https://shop.example.com/api/bot (or LARAVEL_API_URL)"`
	Token     string        `usage:"Bearer token for the backend"`
	Timeout   time.Duration `default:"10s" usage:"Per call timeout including retries"`
	Retries   int           `default:"2" usage:"Extra attempts for idempotent reads"`
	RetryWait time.Duration `default:"300ms" usage:"First retry backoff"`
	Breaker   BreakerConfig
}

// BreakerConfig controls the circuit breaker around backend calls.
type BreakerConfig struct {
	Timeout      time.Duration `default:"30s" usage:"Open state duration before probing"`
	FailureRatio float64       `default:"0.6" usage:"Failure ratio that trips the breaker"`
	MinRequests  uint32        `default:"10" usage:"Requests needed before the ratio applies"`
}

// TelegramConfig tunes the Bot API client.
type TelegramConfig struct {
	PollTimeout time.Duration `default:"60s" usage:"Long polling timeout"`
	Rate        float64       `default:"25" usage:"Outgoing Bot API calls per second"`
	Burst       int           `default:"5" usage:"Outgoing call burst"`
}

// CatalogConfig controls catalog listings.
type CatalogConfig struct {
	PageSize int `default:"20" usage:"Products shown per listing"`
}

// CheckoutConfig controls checkout sessions.
type CheckoutConfig struct {
	TTL time.Duration `default:"24h" usage:"Abandoned checkout expiry, 0 disables"`
}

// DispatcherConfig controls per-user event workers.
type DispatcherConfig struct {
	Queue       int           `default:"16" usage:"Events buffered per user"`
	IdleTimeout time.Duration `default:"1m" usage:"Idle time before a user worker exits"`
	MaxWorkers  int           `default:"10000" usage:"Active user workers above which liveness fails"`
}

// NotifyConfig controls operator fan-out.
type NotifyConfig struct {
	Timeout     time.Duration `default:"10s" usage:"Per recipient delivery timeout"`
	Parallelism int           `default:"4" usage:"Concurrent deliveries"`
}

// PushConfig configures the inbound push listener.
type PushConfig struct {
	Addr      string   `default:"0.0.0.0:8080" usage:"Push listener address"`
	Secret    string   `usage:"Bearer secret required on /admin routes (or WEBHOOK_SECRET)"`
	Origins   []string `usage:"Allowed Origin or Referer hosts for /admin routes"`
	RateLimit RateLimitConfig
}

// RateLimitConfig controls the per-client limiter on /admin routes.
type RateLimitConfig struct {
	Max    int           `default:"120" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
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
		EnvPrefix: "SHOPBOT",
		Files:     []string{"config.yaml", "/etc/shopbot/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if err := cfg.applyPlatformDefaults(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.BotToken == "" {
		return errors.New("bot token is required: set SHOPBOT_BOT_TOKEN or TELEGRAM_BOT_TOKEN")
	}
	if c.Gateway.URL == "" {
		return errors.New("gateway URL is required: set SHOPBOT_GATEWAY_URL or LARAVEL_API_URL")
	}
	return nil
}

// applyPlatformDefaults maps the unprefixed variables used by existing
// deployments (TELEGRAM_BOT_TOKEN, LARAVEL_API_URL, ADMIN_IDS,
// WEBHOOK_SECRET, PORT) onto empty settings.
func (c *Config) applyPlatformDefaults(getenv func(string) string) error {
	if c.BotToken == "" {
		c.BotToken = getenv("TELEGRAM_BOT_TOKEN")
	}
	if c.Gateway.URL == "" {
		c.Gateway.URL = getenv("LARAVEL_API_URL")
	}
	if c.Push.Secret == "" {
		c.Push.Secret = getenv("WEBHOOK_SECRET")
	}
	if len(c.Operators) == 0 {
		ids, err := parseIDs(getenv("ADMIN_IDS"))
		if err != nil {
			return errors.Wrap(err, "parse ADMIN_IDS")
		}
		c.Operators = ids
	}
	if port := getenv("PORT"); port != "" && c.Push.Addr == "0.0.0.0:8080" {
		c.Push.Addr = "0.0.0.0:" + port
	}
	return nil
}

// parseIDs parses a comma separated list of chat ids, skipping blanks.
func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "chat id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
