// Package config handles configuration loading for sn2notion.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sn2notion/sn2notion/internal/convctx"
	"github.com/sn2notion/sn2notion/internal/diagnostics"
)

// Config is the complete configuration for sn2notion.
type Config struct {
	// Corpus is the directory of .html documents to walk when converting
	// a batch rather than a single file.
	Corpus string `yaml:"corpus"`

	// Notion contains Notion API configuration.
	Notion NotionConfig `yaml:"notion"`

	// Convert mirrors convctx.Options, the extraction pipeline's tunables.
	Convert ConvertConfig `yaml:"convert"`

	// Orchestration configures the marker-append retry budget and
	// image-upload concurrency.
	Orchestration OrchestrationConfig `yaml:"orchestration"`

	// Audit holds coverage-band settings (see AuditConfig.ToDiagnostics).
	// convert.Convert does not read them; it always builds its report
	// with diagnostics.DefaultAuditConfig.
	Audit AuditConfig `yaml:"audit"`

	// DiagnosticsDB is the path to the SQLite diagnostics/resume database.
	DiagnosticsDB string `yaml:"diagnostics_db"`

	// Watch configures watch-mode debounce and poll behavior.
	Watch WatchConfig `yaml:"watch"`
}

// NotionConfig holds Notion API credentials and defaults.
type NotionConfig struct {
	// Token is the Notion API integration token. Can be a literal value
	// or a ${ENV_VAR} reference.
	Token string `yaml:"token"`

	// ParentPage is the page every converted document is created under.
	ParentPage string `yaml:"parent_page"`

	// RequestsPerSecond bounds the shared rate limiter.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// BatchSize is the max blocks per AppendChildren call.
	BatchSize int `yaml:"batch_size"`
}

// ConvertConfig mirrors convctx.Options in YAML form.
type ConvertConfig struct {
	StrictSourceOrder              bool `yaml:"strict_source_order"`
	PreserveUIControlsAsParagraphs bool `yaml:"preserve_ui_controls_as_paragraphs"`
	OrphanListRepair               bool `yaml:"orphan_list_repair"`
	ImageMinDimension              int  `yaml:"image_min_dimension"`
	MaxRichTextRuns                int  `yaml:"max_rich_text_runs"`
	MaxContentChars                int  `yaml:"max_content_chars"`
}

// ToOptions converts the YAML-facing config into convctx.Options.
func (c ConvertConfig) ToOptions() convctx.Options {
	return convctx.Options{
		StrictSourceOrder:              c.StrictSourceOrder,
		PreserveUIControlsAsParagraphs: c.PreserveUIControlsAsParagraphs,
		OrphanListRepair:               c.OrphanListRepair,
		ImageMinDimension:              c.ImageMinDimension,
		MaxRichTextRuns:                c.MaxRichTextRuns,
		MaxContentChars:                c.MaxContentChars,
	}
}

// OrchestrationConfig governs Orchestrate's retry budget and the
// concurrency caps shared by image uploads and marker-append fan-out.
type OrchestrationConfig struct {
	ImageUploadConcurrency int           `yaml:"image_upload_concurrency"`
	AppendConcurrency      int           `yaml:"append_concurrency"`
	MaxAttempts            int           `yaml:"max_attempts"`
	BaseBackoff            time.Duration `yaml:"base_backoff"`
	MaxBackoff             time.Duration `yaml:"max_backoff"`
}

// AuditConfig mirrors diagnostics.AuditConfig in YAML form.
type AuditConfig struct {
	BaseLow               float64 `yaml:"base_low"`
	BaseHigh              float64 `yaml:"base_high"`
	TablesInCalloutsDelta float64 `yaml:"tables_in_callouts_delta"`
	MultiRowTableDelta    float64 `yaml:"multi_row_table_delta"`
	DeepNestingDelta      float64 `yaml:"deep_nesting_delta"`
	BlockCountDelta       float64 `yaml:"block_count_delta"`
}

// ToDiagnostics converts the YAML-facing config into diagnostics.AuditConfig.
func (a AuditConfig) ToDiagnostics() diagnostics.AuditConfig {
	return diagnostics.AuditConfig{
		BaseLow:               a.BaseLow,
		BaseHigh:              a.BaseHigh,
		TablesInCalloutsDelta: a.TablesInCalloutsDelta,
		MultiRowTableDelta:    a.MultiRowTableDelta,
		DeepNestingDelta:      a.DeepNestingDelta,
		BlockCountDelta:       a.BlockCountDelta,
	}
}

// WatchConfig governs watch-mode's filesystem-event debounce.
type WatchConfig struct {
	DebounceInterval time.Duration `yaml:"debounce_interval"`
	PollInterval     time.Duration `yaml:"poll_interval"`
}

// DefaultConfig returns a Config with the spec's documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Notion: NotionConfig{
			RequestsPerSecond: 3,
			BatchSize:         100,
		},
		Convert: ConvertConfig{
			ImageMinDimension: 64,
			MaxRichTextRuns:   100,
			MaxContentChars:   2000,
		},
		Orchestration: OrchestrationConfig{
			ImageUploadConcurrency: 4,
			AppendConcurrency:      4,
			MaxAttempts:            5,
			BaseBackoff:            time.Second,
			MaxBackoff:             30 * time.Second,
		},
		Audit: AuditConfig{
			BaseLow:               0.70,
			BaseHigh:              1.05,
			TablesInCalloutsDelta: 0.03,
			MultiRowTableDelta:    0.01,
			DeepNestingDelta:      0.01,
			BlockCountDelta:       0.01,
		},
		DiagnosticsDB: "sn2notion.db",
		Watch: WatchConfig{
			DebounceInterval: 2 * time.Second,
			PollInterval:     0,
		},
	}
}

// Load loads configuration from path, or from default locations when path
// is empty.
func Load(path string) (*Config, error) {
	if path != "" {
		return loadFromFile(path)
	}

	locations := []string{
		".sn2notion.yaml",
		".sn2notion.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations,
			filepath.Join(home, ".config", "sn2notion", "config.yaml"),
			filepath.Join(home, ".config", "sn2notion", "config.yml"),
		)
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loadFromFile(loc)
		}
	}

	return nil, fmt.Errorf("no configuration file found (tried: %s)", strings.Join(locations, ", "))
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.expandEnvVars()

	if strings.HasPrefix(cfg.Corpus, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Corpus = filepath.Join(home, cfg.Corpus[1:])
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) expandEnvVars() {
	c.Notion.Token = expandEnv(c.Notion.Token)
	c.Notion.ParentPage = expandEnv(c.Notion.ParentPage)
	c.Corpus = expandEnv(c.Corpus)
	c.DiagnosticsDB = expandEnv(c.DiagnosticsDB)
}

func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return os.ExpandEnv(s)
}

// Validate checks that the Notion token and parent page are set;
// loadFromFile runs it on every configuration file it loads.
func (c *Config) Validate() error {
	if c.Notion.Token == "" {
		return fmt.Errorf("notion.token is required")
	}
	if c.Notion.ParentPage == "" {
		return fmt.Errorf("notion.parent_page is required")
	}
	return nil
}

// Save writes the configuration to path, creating parent directories as
// needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}
