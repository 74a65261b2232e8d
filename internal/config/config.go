// Package config loads the harness configuration file and runs the fatal
// pre-flight checks that must pass before any task is launched.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/agentjudge/internal/aggregation"
	"github.com/ahrav/agentjudge/internal/invoker"
	"github.com/ahrav/agentjudge/internal/llm/configuration"
	"github.com/ahrav/agentjudge/internal/scoring"
	"github.com/ahrav/agentjudge/internal/tracing"
	"github.com/ahrav/agentjudge/internal/worker"
)

// EnvRedisPassword supplies the judge cache password; it is never read from
// the config file.
const EnvRedisPassword = "AGENTJUDGE_REDIS_PASSWORD"

// Config is the whole harness configuration.
type Config struct {
	Agent    invoker.Config     `yaml:"agent"`
	Run      aggregation.Config `yaml:"run"`
	Judge    JudgeConfig        `yaml:"judge"`
	Scorers  []scoring.Spec     `yaml:"scorers" validate:"dive"`
	Tracing  tracing.Config     `yaml:"tracing"`
	Temporal worker.Options     `yaml:"temporal"`
	Logging  LoggingConfig      `yaml:"logging"`
	Events   EventsConfig       `yaml:"events"`
}

// JudgeConfig selects the judge model and the resilience settings of the
// judge client.
type JudgeConfig struct {
	Provider    string        `yaml:"provider" validate:"required,oneof=anthropic openai"`
	Model       string        `yaml:"model" validate:"required"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Endpoint    string        `yaml:"endpoint" validate:"omitempty,url"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
	LogRequests bool          `yaml:"log_requests"`

	RateLimit configuration.RateLimitConfig `yaml:"rate_limit"`
	Retry     configuration.RetryConfig     `yaml:"retry"`
	Cache     configuration.CacheConfig     `yaml:"cache"`
}

// LoggingConfig picks the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// EventsConfig selects event sinks. With neither set, events go nowhere.
type EventsConfig struct {
	// Path receives one JSON envelope per line.
	Path string `yaml:"path"`

	// Log writes each event to the harness log.
	Log bool `yaml:"log"`
}

// Defaults.
const (
	DefaultConcurrency = 4
	DefaultJudgeModel  = "claude-sonnet-4-5"
	DefaultTemporal    = "localhost:7233"
	DefaultNamespace   = "default"
	DefaultJudgeTimeout = 60 * time.Second
)

// Default returns the configuration used for every key the file omits.
func Default() Config {
	llm := configuration.DefaultConfig()
	run := aggregation.DefaultConfig()
	run.Concurrency = DefaultConcurrency
	return Config{
		Agent: invoker.DefaultConfig(),
		Run:   run,
		Judge: JudgeConfig{
			Provider:  "anthropic",
			Model:     DefaultJudgeModel,
			APIKeyEnv: configuration.DefaultAnthropicKeyEnv,
			Timeout:   DefaultJudgeTimeout,
			RateLimit: llm.RateLimit,
			Retry:     llm.Retry,
			Cache:     llm.Cache,
		},
		Tracing: tracing.Config{Exporter: tracing.ExporterNone},
		Temporal: worker.Options{
			HostPort:  DefaultTemporal,
			Namespace: DefaultNamespace,
			TaskQueue: worker.DefaultTaskQueue,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// DefaultScorers is used when the file lists none.
func DefaultScorers() []scoring.Spec {
	return []scoring.Spec{{Kind: scoring.KindEquivalence}, {Kind: scoring.KindConciseness}}
}

// Load reads path over Default. Unknown keys are an error.
func Load(path string) (Config, error) {
	f, err := os.Open(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a YAML document over Default and validates it.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Scorers) == 0 {
		cfg.Scorers = DefaultScorers()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints, scorer kinds and choice tables. It
// does not touch the environment; see Preflight.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Judge.Retry.Validate(); err != nil {
		return fmt.Errorf("invalid config: judge %w", err)
	}
	switch c.Tracing.Exporter {
	case "", tracing.ExporterNone, tracing.ExporterStdout, tracing.ExporterOTLP:
	default:
		return fmt.Errorf("invalid config: %w: %q", tracing.ErrUnknownExporter, c.Tracing.Exporter)
	}

	seen := map[string]bool{}
	for i, s := range c.Scorers {
		if err := checkScorer(s); err != nil {
			return fmt.Errorf("invalid config: scorers[%d]: %w", i, err)
		}
		name := s.Name
		if name == "" {
			name = s.Kind
		}
		if seen[name] {
			return fmt.Errorf("invalid config: scorers[%d]: %w: %s", i, scoring.ErrDuplicateScorer, name)
		}
		seen[name] = true
	}
	return nil
}

func checkScorer(s scoring.Spec) error {
	switch s.Kind {
	case scoring.KindEquivalence, scoring.KindConciseness, scoring.KindPossible,
		scoring.KindExactMatch, scoring.KindContains:
	default:
		return fmt.Errorf("%w: %q", scoring.ErrUnknownKind, s.Kind)
	}
	if len(s.Choices) > 0 && !s.RequiresJudge() {
		return fmt.Errorf("%s takes no choice table", s.Kind)
	}
	if len(s.Choices) > 0 {
		if _, err := scoring.NormalizeChoices(s.Choices); err != nil {
			return fmt.Errorf("%s choices: %w", s.Kind, err)
		}
	}
	return nil
}

// RequiresJudge reports whether any configured scorer calls an LLM.
func (c Config) RequiresJudge() bool {
	for _, s := range c.Scorers {
		if s.RequiresJudge() {
			return true
		}
	}
	return false
}

// TaskTimeout is the per-task agent budget.
func (c Config) TaskTimeout() time.Duration {
	if c.Run.TaskTimeout > 0 {
		return c.Run.TaskTimeout
	}
	if c.Agent.Timeout > 0 {
		return c.Agent.Timeout
	}
	return invoker.DefaultTimeout
}

// ClientConfig converts the judge section into the judge client's config.
func (j JudgeConfig) ClientConfig() configuration.Config {
	cfg := configuration.DefaultConfig()
	cfg.HTTPTimeout = j.Timeout
	cfg.Providers = map[string]configuration.ProviderConfig{
		j.Provider: {Endpoint: j.Endpoint, APIKeyEnv: j.APIKeyEnv},
	}
	cfg.Retry = j.Retry
	cfg.RateLimit = j.RateLimit
	cfg.Cache = j.Cache
	cfg.Cache.RedisPassword = os.Getenv(EnvRedisPassword)
	cfg.LogRequests = j.LogRequests
	return cfg
}

// Defaults returns the provider and model LLM scorers fall back to.
func (j JudgeConfig) Defaults() scoring.JudgeDefaults {
	return scoring.JudgeDefaults{Provider: j.Provider, Model: j.Model}
}
