// Package config loads the twentyq configuration from the viper registry
// (config file, TWENTYQ_ environment variables and bound flags).
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/andywolf/twentyq/internal/action"
	"github.com/andywolf/twentyq/internal/decision"
	"github.com/andywolf/twentyq/internal/llm"
	"github.com/andywolf/twentyq/internal/memory"
	"github.com/andywolf/twentyq/internal/observability"
	"github.com/andywolf/twentyq/internal/routing"
)

// Player modes for the guesser and host.
const (
	ModeLLM    = "llm"
	ModeKB     = "kb"
	ModeScript = "script"
)

// Config represents the full twentyq configuration
type Config struct {
	Game         GameConfig                    `mapstructure:"game"`
	Schema       SchemaConfig                  `mapstructure:"schema"`
	Memory       memory.Config                 `mapstructure:"memory"`
	MacroClasses map[string][]string           `mapstructure:"macro_classes"`
	Categories   []string                      `mapstructure:"categories"`
	Routing      routing.RoleRouting           `mapstructure:"routing"`
	Providers    map[string]llm.ProviderConfig `mapstructure:"providers"`
	Retry        llm.RetryPolicy               `mapstructure:"retry"`
	Guesser      PlayerConfig                  `mapstructure:"guesser"`
	Host         PlayerConfig                  `mapstructure:"host"`
	KB           KBConfig                      `mapstructure:"kb"`
	Prompts      PromptsConfig                 `mapstructure:"prompts"`
	Output       OutputConfig                  `mapstructure:"output"`
	Store        StoreConfig                   `mapstructure:"store"`
	Langfuse     observability.LangfuseConfig  `mapstructure:"langfuse"`
	Server       ServerConfig                  `mapstructure:"server"`
	Attest       AttestConfig                  `mapstructure:"attest"`
	Bench        BenchConfig                   `mapstructure:"bench"`
}

// GameConfig contains the per-game rules
type GameConfig struct {
	MaxTurns            int     `mapstructure:"max_turns"`
	QuestionWordLimit   int     `mapstructure:"question_word_limit"`
	GuessWordLimit      int     `mapstructure:"guess_word_limit"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	LowInfoWindow       int     `mapstructure:"low_info_window"`
}

// SchemaConfig bounds repair and retry of model output
type SchemaConfig struct {
	MaxRepairPasses int           `mapstructure:"max_repair_passes"`
	SchemaRetries   int           `mapstructure:"schema_retries"`
	EmptyRetries    int           `mapstructure:"empty_retries"`
	CallTimeout     time.Duration `mapstructure:"call_timeout"`
}

// PlayerConfig selects how a role is played
type PlayerConfig struct {
	Mode        string  `mapstructure:"mode"`   // llm, kb or script
	Script      string  `mapstructure:"script"` // YAML script for mode=script
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// KBConfig points at a knowledge base file; empty uses the embedded seed
type KBConfig struct {
	Path string `mapstructure:"path"`
}

// PromptsConfig overrides the embedded prompt templates
type PromptsConfig struct {
	Dir string `mapstructure:"dir"`
}

// OutputConfig controls where finished games are written
type OutputConfig struct {
	Dir          string             `mapstructure:"dir"`
	CloudLogging CloudLoggingConfig `mapstructure:"cloud_logging"`
}

// CloudLoggingConfig enables the Cloud Logging sink when Project is set
type CloudLoggingConfig struct {
	Project string `mapstructure:"project"`
	LogID   string `mapstructure:"log_id"`
}

// StoreConfig locates the results database; empty disables it
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig contains results API settings
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      int           `mapstructure:"rate_limit"`
	RateInterval   time.Duration `mapstructure:"rate_interval"`
}

// AttestConfig contains report signing settings
type AttestConfig struct {
	Issuer string        `mapstructure:"issuer"`
	Secret string        `mapstructure:"secret"` // literal or gcp-secret:// reference
	TTL    time.Duration `mapstructure:"ttl"`
}

// BenchConfig contains benchmark run settings
type BenchConfig struct {
	Topics      string `mapstructure:"topics"`
	Repeats     int    `mapstructure:"repeats"`
	Concurrency int    `mapstructure:"concurrency"`
}

// Load loads configuration from file and environment
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals the given viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	normalizeRoutingKeys(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// normalizeRoutingKeys upper-cases override keys; viper lowercases map keys.
func normalizeRoutingKeys(cfg *Config) {
	if len(cfg.Routing.Overrides) == 0 {
		return
	}
	normalized := make(map[string]routing.ModelConfig, len(cfg.Routing.Overrides))
	for role, mc := range cfg.Routing.Overrides {
		normalized[strings.ToUpper(role)] = mc
	}
	cfg.Routing.Overrides = normalized
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.Game.MaxTurns == 0 {
		cfg.Game.MaxTurns = 20
	}
	if cfg.Game.QuestionWordLimit == 0 {
		cfg.Game.QuestionWordLimit = 12
	}
	if cfg.Game.GuessWordLimit == 0 {
		cfg.Game.GuessWordLimit = 2
	}
	if cfg.Game.ConfidenceThreshold == 0 {
		cfg.Game.ConfidenceThreshold = decision.DefaultConfidenceThreshold
	}
	if cfg.Game.LowInfoWindow == 0 {
		cfg.Game.LowInfoWindow = decision.DefaultLowInfoWindow
	}

	budget := action.DefaultBudget()
	if cfg.Schema.MaxRepairPasses == 0 {
		cfg.Schema.MaxRepairPasses = 3
	}
	if cfg.Schema.SchemaRetries == 0 {
		cfg.Schema.SchemaRetries = budget.SchemaRetries
	}
	if cfg.Schema.EmptyRetries == 0 {
		cfg.Schema.EmptyRetries = budget.EmptyRetries
	}
	if cfg.Schema.CallTimeout == 0 {
		cfg.Schema.CallTimeout = budget.CallTimeout
	}

	if cfg.Memory.ScratchpadCap == 0 {
		cfg.Memory.ScratchpadCap = memory.DefaultScratchpadCap
	}
	if cfg.Memory.HistoryWindow == 0 {
		cfg.Memory.HistoryWindow = memory.DefaultHistoryWindow
	}
	if cfg.Memory.NoteMaxLen == 0 {
		cfg.Memory.NoteMaxLen = memory.DefaultNoteMaxLen
	}
	if cfg.Memory.ContextBudget == 0 {
		cfg.Memory.ContextBudget = memory.DefaultContextBudget
	}

	if cfg.Retry == (llm.RetryPolicy{}) {
		cfg.Retry = llm.DefaultRetryPolicy()
	}

	if cfg.Routing.Default.IsZero() {
		cfg.Routing.Default = routing.ModelConfig{Provider: llm.ProviderOpenAI, Model: "gpt-4o-mini"}
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]llm.ProviderConfig)
	}
	// Conventional provider environment variables fill in missing keys.
	fillProviderFromEnv(cfg.Providers, llm.ProviderOpenAI, "OPENAI_API_KEY", "OPENAI_BASE_URL")
	fillProviderFromEnv(cfg.Providers, llm.ProviderGemini, "GEMINI_API_KEY", "GEMINI_BASE_URL")

	if cfg.Guesser.Mode == "" {
		cfg.Guesser.Mode = ModeLLM
	}
	if cfg.Host.Mode == "" {
		cfg.Host.Mode = ModeLLM
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "runs"
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 10 * time.Second
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = 120
	}
	if cfg.Server.RateInterval == 0 {
		cfg.Server.RateInterval = time.Minute
	}

	if cfg.Attest.Issuer == "" {
		cfg.Attest.Issuer = "twentyq"
	}

	if cfg.Bench.Repeats == 0 {
		cfg.Bench.Repeats = 1
	}
	if cfg.Bench.Concurrency == 0 {
		cfg.Bench.Concurrency = 4
	}
}

func fillProviderFromEnv(providers map[string]llm.ProviderConfig, name, keyVar, urlVar string) {
	pc := providers[name]
	if pc.APIKey == "" {
		pc.APIKey = os.Getenv(keyVar)
	}
	if pc.BaseURL == "" {
		pc.BaseURL = os.Getenv(urlVar)
	}
	if pc != (llm.ProviderConfig{}) {
		providers[name] = pc
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Game.MaxTurns < 1 {
		return fmt.Errorf("game.max_turns must be at least 1, got %d", c.Game.MaxTurns)
	}
	if c.Game.QuestionWordLimit < 1 || c.Game.GuessWordLimit < 1 {
		return fmt.Errorf("word limits must be positive")
	}
	if err := c.GateConfig().Validate(); err != nil {
		return fmt.Errorf("invalid game settings: %w", err)
	}

	if c.Schema.MaxRepairPasses < 0 || c.Schema.SchemaRetries < 0 || c.Schema.EmptyRetries < 0 {
		return fmt.Errorf("schema retry and repair budgets must not be negative")
	}
	if c.Schema.CallTimeout < 0 {
		return fmt.Errorf("schema.call_timeout must not be negative")
	}

	if c.Memory.ScratchpadCap < 1 || c.Memory.HistoryWindow < 1 {
		return fmt.Errorf("memory windows must be at least 1")
	}

	for _, p := range []struct {
		role string
		cfg  PlayerConfig
	}{{"guesser", c.Guesser}, {"host", c.Host}} {
		switch p.cfg.Mode {
		case ModeLLM, ModeKB, ModeScript:
		default:
			return fmt.Errorf("invalid %s mode: %s (must be llm, kb, or script)", p.role, p.cfg.Mode)
		}
		if p.cfg.Mode == ModeScript && p.cfg.Script == "" {
			return fmt.Errorf("%s.script is required when %s.mode is script", p.role, p.role)
		}
	}

	router := routing.NewRouter(&c.Routing)
	if unknown := router.UnknownRoles(); len(unknown) > 0 {
		return fmt.Errorf("unknown roles in routing overrides: %v (valid: %v)", unknown, routing.ValidRoleNames())
	}
	for _, provider := range router.Providers() {
		if provider != llm.ProviderOpenAI && provider != llm.ProviderGemini {
			return fmt.Errorf("unknown model provider %q in routing", provider)
		}
	}

	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative")
	}
	if c.Attest.TTL < 0 {
		return fmt.Errorf("attest.ttl must not be negative")
	}

	return nil
}

// ValidateForPlay performs additional validation required before playing a
// game: every model the chosen modes need has an API key.
func (c *Config) ValidateForPlay() error {
	if err := c.Validate(); err != nil {
		return err
	}

	router := routing.NewRouter(&c.Routing)
	var missing []string
	check := func(role string) {
		mc := router.ModelForRole(role)
		provider := mc.Provider
		if provider == "" {
			provider = llm.ProviderGemini
		}
		if c.Providers[provider].APIKey == "" {
			missing = append(missing, provider)
		}
	}
	if c.Guesser.Mode == ModeLLM {
		check(routing.RoleGuesser)
	}
	if c.Host.Mode == ModeLLM {
		check(routing.RoleHost)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("API key required for provider(s) %v (set providers.<name>.api_key or the provider's environment variable)", dedupe(missing))
	}
	return nil
}

// ValidateForBench performs additional validation required before a
// benchmark run.
func (c *Config) ValidateForBench() error {
	if err := c.ValidateForPlay(); err != nil {
		return err
	}
	if c.Bench.Topics == "" {
		return fmt.Errorf("bench.topics (a topics file) is required")
	}
	if c.Bench.Repeats < 1 {
		return fmt.Errorf("bench.repeats must be at least 1, got %d", c.Bench.Repeats)
	}
	if c.Bench.Concurrency < 1 {
		return fmt.Errorf("bench.concurrency must be at least 1, got %d", c.Bench.Concurrency)
	}
	return nil
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}

// ActionConfig returns the schema settings.
func (c *Config) ActionConfig() action.Config {
	return action.Config{
		QuestionWordLimit: c.Game.QuestionWordLimit,
		GuessWordLimit:    c.Game.GuessWordLimit,
		MaxRepairPasses:   c.Schema.MaxRepairPasses,
	}
}

// Budget returns the retry budget for each model interaction.
func (c *Config) Budget() action.Budget {
	return action.Budget{
		SchemaRetries: c.Schema.SchemaRetries,
		EmptyRetries:  c.Schema.EmptyRetries,
		CallTimeout:   c.Schema.CallTimeout,
	}
}

// GateConfig returns the decision gate settings.
func (c *Config) GateConfig() decision.Config {
	return decision.Config{
		ConfidenceThreshold: c.Game.ConfidenceThreshold,
		LowInfoWindow:       c.Game.LowInfoWindow,
		Categories:          c.Categories,
	}
}

// envKeys are bound explicitly so TWENTYQ_* variables override them even
// when no config file mentions the key.
var envKeys = []string{
	"game.max_turns",
	"providers.openai.api_key",
	"providers.openai.base_url",
	"providers.gemini.api_key",
	"providers.gemini.base_url",
	"guesser.mode",
	"host.mode",
	"kb.path",
	"output.dir",
	"output.cloud_logging.project",
	"store.path",
	"langfuse.public_key",
	"langfuse.secret_key",
	"langfuse.base_url",
	"attest.secret",
	"server.addr",
}

// BindEnv binds the well-known keys to their TWENTYQ_ environment variables.
func BindEnv(v *viper.Viper) {
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
}
