// Package config binds every BOT_* environment variable spec.md §6
// enumerates into one struct, grounded on `config.Config`'s
// load-then-validate shape in the teacher (there: YAML plus flags; here:
// `kelseyhightower/envconfig`, the env-var-binding library already in
// the teacher's stack's neighborhood via harness-Harness's go.mod).
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"

	"github.com/scbot-go/scbot/internal/domain"
)

// Config is every BOT_* environment variable spec.md §6 names, bound
// with the "BOT" envconfig prefix (so, e.g., BotUsername's tag
// BOT_USERNAME becomes the env var BOT_BOT_USERNAME, matching the
// spec's own doubled name).
type Config struct {
	BindIP   string `envconfig:"BIND_IP" default:"127.0.0.1"`
	BindPort int    `envconfig:"BIND_PORT" default:"8080"`

	DatabaseURL               string        `envconfig:"DATABASE_URL" required:"true"`
	DatabasePoolSize          int           `envconfig:"DATABASE_POOL_SIZE" default:"5"`
	DatabaseConnectionTimeout time.Duration `envconfig:"DATABASE_CONNECTION_TIMEOUT" default:"5s"`

	RedisAddress string `envconfig:"REDIS_ADDRESS"`

	GitHubAppID             int64  `envconfig:"GITHUB_APP_ID"`
	GitHubAppPrivateKey     string `envconfig:"GITHUB_APP_PRIVATE_KEY"`
	GitHubAppInstallationID int64  `envconfig:"GITHUB_APP_INSTALLATION_ID"`
	GitHubWebhookSecret     string `envconfig:"GITHUB_WEBHOOK_SECRET"`

	SentryURL   string `envconfig:"SENTRY_URL"`
	TenorAPIKey string `envconfig:"TENOR_API_KEY"`

	DefaultMergeStrategy          string `envconfig:"DEFAULT_MERGE_STRATEGY" default:"merge"`
	DefaultNeededReviewersCount   uint64 `envconfig:"DEFAULT_NEEDED_REVIEWERS_COUNT" default:"2"`
	DefaultPRTitleValidationRegex string `envconfig:"DEFAULT_PR_TITLE_VALIDATION_REGEX"`

	BotUsername            string `envconfig:"BOT_USERNAME" required:"true"`
	LockTimeoutMS          int64  `envconfig:"LOCK_TIMEOUT_MS" default:"10000"`
	JWTValiditySeconds     int64  `envconfig:"JWT_VALIDITY_SECONDS" default:"30"`
	DisableWelcomeComments bool   `envconfig:"DISABLE_WELCOME_COMMENTS" default:"false"`
}

// Load reads and validates Config from the process environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("BOT", &cfg); err != nil {
		return nil, errors.Wrap(err, "process environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the cross-field and enum constraints envconfig's
// struct tags alone can't express.
func (c *Config) Validate() error {
	if !domain.MergeStrategy(c.DefaultMergeStrategy).Valid() {
		return errors.Errorf("invalid BOT_DEFAULT_MERGE_STRATEGY %q", c.DefaultMergeStrategy)
	}
	if c.DefaultPRTitleValidationRegex != "" {
		if _, err := (domain.Repository{PRTitleValidationRegex: c.DefaultPRTitleValidationRegex}).ValidateTitle(""); err != nil {
			return errors.Wrap(err, "invalid BOT_DEFAULT_PR_TITLE_VALIDATION_REGEX")
		}
	}
	if c.LockTimeoutMS <= 0 {
		return errors.New("BOT_LOCK_TIMEOUT_MS must be positive")
	}
	if c.JWTValiditySeconds <= 0 {
		return errors.New("BOT_JWT_VALIDITY_SECONDS must be positive")
	}
	return nil
}

// LockTimeout is LockTimeoutMS as a time.Duration.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMS) * time.Millisecond
}

// JWTValidity is JWTValiditySeconds as a time.Duration.
func (c *Config) JWTValidity() time.Duration {
	return time.Duration(c.JWTValiditySeconds) * time.Second
}

// RepositoryDefaults builds the fallback domain.Repository the engine
// seeds new repositories from, per spec.md §4.1's Synchronize step.
func (c *Config) RepositoryDefaults() domain.Repository {
	return domain.Repository{
		DefaultStrategy:             domain.MergeStrategy(c.DefaultMergeStrategy),
		DefaultNeededReviewersCount: c.DefaultNeededReviewersCount,
		PRTitleValidationRegex:      c.DefaultPRTitleValidationRegex,
		DefaultEnableChecks:         true,
		DefaultEnableQA:             true,
	}
}
