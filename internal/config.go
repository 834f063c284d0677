package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Oracle providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Vault    VaultConfig       `yaml:"vault"`
	Anki     AnkiConfig        `yaml:"anki"`
	Oracle   OracleConfig      `yaml:"oracle"`
	Sampling SamplingConfig    `yaml:"sampling"`
	Behavior BehaviorConfig    `yaml:"behavior"`
	Batch    BatchConfig       `yaml:"batch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Anki.Validate(); err != nil {
		return err
	}
	if err := c.Oracle.Validate(); err != nil {
		return err
	}
	if err := c.Sampling.Validate(); err != nil {
		return err
	}
	if err := c.Behavior.Validate(); err != nil {
		return err
	}
	return c.Batch.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	// LogLevel is one of debug, info, warn, error. Empty means info.
	LogLevel string `yaml:"log_level"`
	// StateDir overrides where jera keeps config.yaml, tags.json and
	// history.json. Empty means the per-user config directory.
	StateDir string `yaml:"state_dir"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
	)
}

// Level returns the configured slog level, defaulting to info.
func (c *ApplicationConfig) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// VaultConfig holds the Obsidian Local REST API connection settings.
type VaultConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	// Insecure skips TLS verification. The plugin serves a self-signed
	// certificate on localhost, so this defaults to true.
	Insecure       bool     `yaml:"insecure"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Folders        []string `yaml:"folders"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required),
		validation.Field(&c.TimeoutSeconds, validation.Min(1)),
	)
}

// Timeout returns the vault request timeout.
func (c *VaultConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ResolveAPIKey returns the configured key, falling back to the
// OBSIDIAN_API_KEY environment variable.
func (c *VaultConfig) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return os.Getenv("OBSIDIAN_API_KEY")
}

// AnkiConfig holds the AnkiConnect connection settings and card target.
type AnkiConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Deck           string `yaml:"deck"`
	CardType       string `yaml:"card_type"`
}

// Validate validates the anki configuration.
func (c *AnkiConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required),
		validation.Field(&c.Deck, validation.Required),
		validation.Field(&c.CardType, validation.Required),
		validation.Field(&c.TimeoutSeconds, validation.Min(1)),
	)
}

// Timeout returns the AnkiConnect request timeout.
func (c *AnkiConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// OracleConfig selects and configures the LLM backend.
type OracleConfig struct {
	Provider string `yaml:"provider"`
	// Model overrides the provider's default model.
	Model string `yaml:"model"`
	// APIKey overrides the provider's environment variable.
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	MaxTokens      int    `yaml:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Validate validates the oracle configuration.
func (c *OracleConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(ProviderAnthropic, ProviderGemini)),
		validation.Field(&c.MaxTokens, validation.Min(1)),
		validation.Field(&c.TimeoutSeconds, validation.Min(1)),
	)
}

// Timeout returns the oracle request timeout.
func (c *OracleConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ResolveAPIKey returns the configured key, falling back to the
// provider's conventional environment variable.
func (c *OracleConfig) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	switch c.Provider {
	case ProviderGemini:
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_API_KEY")
	default:
		return os.Getenv("ANTHROPIC_API_KEY")
	}
}

// SamplingConfig tunes how candidate notes are picked from the vault.
type SamplingConfig struct {
	// NotesToSample is how many notes a default run processes.
	NotesToSample int `yaml:"notes_to_sample"`
	// DaysOld keeps only notes untouched for at least this many days.
	DaysOld int `yaml:"days_old"`
	// MinNoteSize drops stub notes below this many characters.
	MinNoteSize int `yaml:"min_note_size"`
	// BiasStrength scales how hard sampling avoids notes that already
	// produced many cards, from 0 (off) to 1.
	BiasStrength float64 `yaml:"bias_strength"`
}

// Validate validates the sampling configuration.
func (c *SamplingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.NotesToSample, validation.Required, validation.Min(1)),
		validation.Field(&c.DaysOld, validation.Min(0)),
		validation.Field(&c.MinNoteSize, validation.Min(0)),
		validation.Field(&c.BiasStrength, validation.Min(0.0), validation.Max(1.0)),
	)
}

// BehaviorConfig tunes a generation run.
type BehaviorConfig struct {
	// MaxCards is the default card budget for a run.
	MaxCards int `yaml:"max_cards"`
	// ApproveNotes asks for confirmation before processing each note.
	ApproveNotes bool `yaml:"approve_notes"`
	// ApproveCards asks for confirmation before inserting each card.
	ApproveCards bool `yaml:"approve_cards"`
	// DedupHistory feeds previously generated fronts back into prompts.
	DedupHistory bool `yaml:"dedup_history"`
	// DedupDeck additionally feeds existing deck fronts into prompts.
	DedupDeck bool `yaml:"dedup_deck"`
	// UseDeckSchema samples existing deck cards as style examples.
	UseDeckSchema bool `yaml:"use_deck_schema"`
	// Highlight renders card markup with terminal colors.
	Highlight bool `yaml:"highlight"`
}

// Validate validates the behavior configuration.
func (c *BehaviorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxCards, validation.Required, validation.Min(1)),
	)
}

// BatchConfig controls parallel note processing.
type BatchConfig struct {
	Enabled bool `yaml:"enabled"`
	// SizeLimit disables batching above this many notes.
	SizeLimit int `yaml:"size_limit"`
	// CardLimit disables batching above this card budget.
	CardLimit int `yaml:"card_limit"`
	// Workers caps concurrent generation requests.
	Workers int `yaml:"workers"`
}

// Validate validates the batch configuration.
func (c *BatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SizeLimit, validation.Required, validation.Min(1)),
		validation.Field(&c.CardLimit, validation.Required, validation.Min(1)),
		validation.Field(&c.Workers, validation.Required, validation.Min(1)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
// API keys are left empty; they resolve from the environment at startup.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: "info",
		},
		Vault: VaultConfig{
			URL:            "https://127.0.0.1:27124",
			Insecure:       true,
			TimeoutSeconds: 30,
		},
		Anki: AnkiConfig{
			URL:            "http://127.0.0.1:8765",
			TimeoutSeconds: 15,
			Deck:           "Obsidian",
			CardType:       "Basic",
		},
		Oracle: OracleConfig{
			Provider:       ProviderAnthropic,
			MaxTokens:      8000,
			TimeoutSeconds: 120,
		},
		Sampling: SamplingConfig{
			NotesToSample: 3,
			DaysOld:       30,
			MinNoteSize:   100,
			BiasStrength:  0.5,
		},
		Behavior: BehaviorConfig{
			MaxCards:     6,
			DedupHistory: true,
		},
		Batch: BatchConfig{
			SizeLimit: 10,
			CardLimit: 30,
			Workers:   5,
		},
	}
}

// DefaultStateDir returns where jera keeps its state when app.state_dir
// is unset: the per-user config directory, or .jera when unknown.
func DefaultStateDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".jera"
	}
	return filepath.Join(base, "jera")
}

// StateDir returns the effective state directory.
func (c *Config) StateDir() string {
	if c.App.StateDir != "" {
		return c.App.StateDir
	}
	return DefaultStateDir()
}

// ConfigPath returns the config file location inside the state directory.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.StateDir(), "config.yaml")
}

// SchemaPath returns the tag schema file location.
func (c *Config) SchemaPath() string {
	return filepath.Join(c.StateDir(), "tags.json")
}

// HistoryPath returns the generation history file location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.StateDir(), "history.json")
}
