package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	AppEnv  string `env:"APP_ENV" envDefault:"dev"`
	APIAddr string `env:"API_ADDR" envDefault:":8080"`

	RedisAddr     string `env:"REDIS_ADDR,notEmpty"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	ListingURL  string `env:"LISTING_URL,notEmpty"`
	ItemPattern string `env:"ITEM_PATTERN"`
	MaxPages    int    `env:"MAX_PAGES" envDefault:"3"`

	WebhookURL string `env:"WEBHOOK_URL,notEmpty"`

	LLMBaseURL string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMAPIKey  string `env:"LLM_API_KEY"`
	LLMModel   string `env:"LLM_MODEL"`

	PollBatch int `env:"POLL_BATCH" envDefault:"50"`

	// Summarization failures skew permanent, delivery failures skew
	// transient; hence the asymmetric budgets.
	EnrichMaxAttempts  int `env:"ENRICH_MAX_ATTEMPTS" envDefault:"3"`
	DeliverMaxAttempts int `env:"DELIVER_MAX_ATTEMPTS" envDefault:"8"`

	DiscoveryInterval time.Duration `env:"DISCOVERY_INTERVAL" envDefault:"30m"`
	EnrichInterval    time.Duration `env:"ENRICH_INTERVAL" envDefault:"2m"`
	DeliverInterval   time.Duration `env:"DELIVER_INTERVAL" envDefault:"1m"`
}

// Load aborts the process on a missing required binding: a stage with no
// store or no listing to watch has nothing useful to do.
func Load() Config {
	var c Config
	if err := env.Parse(&c); err != nil {
		log.Fatal(err)
	}
	return c
}
