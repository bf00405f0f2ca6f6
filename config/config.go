// Package config provides configuration management for the krisp-import
// command-line tool. It supports loading configuration from YAML files,
// environment variables, and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/krisp-import/pkg/enrichment/analytics"
	kerrors "github.com/otherjamesbrown/krisp-import/pkg/errors"
	"github.com/otherjamesbrown/krisp-import/pkg/vault"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Default configuration values.
const (
	DefaultOutputFormat       = OutputFormatText
	DefaultConfigDir          = ".krisp-import"
	DefaultConfigFile         = "config.yaml"
	DefaultStreamingThreshold = 100 << 20
	DefaultMaxStreamBytes     = 50 << 20
	DefaultAnalysisLimit      = 5000
	DefaultCacheSize          = 128
	DefaultConcurrency        = 4
	DefaultSettle             = 5 * time.Second
	DefaultRetryDelay         = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultRedisCacheTTL      = 24 * time.Hour
)

// VaultConfig locates the Obsidian vault and says how notes land in it.
type VaultConfig struct {
	// Path is the vault root. Supports ~ for home directory expansion.
	Path string `yaml:"path"`

	// NotesFolder and AttachmentsFolder are relative to Path.
	NotesFolder       string `yaml:"notes_folder"`
	AttachmentsFolder string `yaml:"attachments_folder"`

	// TemplatePath is a user note template; empty selects the built-in one.
	TemplatePath string `yaml:"template_path,omitempty"`

	// Duplicates is skip, overwrite or suffix.
	Duplicates string `yaml:"duplicates"`
}

// ParserConfig tunes meeting parsing.
type ParserConfig struct {
	// StreamingThreshold is the transcript size in bytes above which the
	// transcript is segmented line by line.
	StreamingThreshold int64 `yaml:"streaming_threshold"`

	// MaxStreamBytes is the memory ceiling for a streamed transcript.
	MaxStreamBytes int64 `yaml:"max_stream_bytes"`

	// AnalysisLimit bounds the text the extractor runs its patterns on.
	AnalysisLimit int `yaml:"analysis_limit"`

	// CacheSize bounds the in-process analytics cache.
	CacheSize int `yaml:"cache_size"`

	// Locale selects the analytics keyword lexicon: auto, ru or en.
	Locale string `yaml:"locale,omitempty"`
}

// RedisConfig enables the shared analytics cache and import event
// publishing.
type RedisConfig struct {
	// Address is host:port. Redis is off when empty.
	Address string `yaml:"address,omitempty"`

	// DB is the Redis database number.
	DB int `yaml:"db,omitempty"`

	// CacheTTL is how long cached analytics live.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// EventsPrefix, when set, is prepended to import event channels.
	EventsPrefix string `yaml:"events_prefix,omitempty"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// WatchConfig holds settings for the watch command.
type WatchConfig struct {
	// Dir is the default directory to watch.
	Dir string `yaml:"dir,omitempty"`

	// Settle is how long a new export must stay unchanged before import.
	Settle time.Duration `yaml:"settle"`

	// RetryDelay is the wait before retrying a failed import.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// MaxRetries caps retries of retryable failures.
	MaxRetries int `yaml:"max_retries"`

	// MetricsAddr serves Prometheus metrics while watching when set.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// CLIConfig holds the CLI configuration settings.
type CLIConfig struct {
	Vault  VaultConfig  `yaml:"vault"`
	Parser ParserConfig `yaml:"parser"`
	Redis  RedisConfig  `yaml:"redis"`
	Watch  WatchConfig  `yaml:"watch"`

	// Concurrency is the number of sources imported in parallel.
	Concurrency int `yaml:"concurrency"`

	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat `yaml:"output_format"`

	// JournalPath appends every log entry as JSON lines when set.
	JournalPath string `yaml:"journal_path,omitempty"`

	// LogLevel is debug, info, warn or error. Debug forces debug.
	LogLevel string `yaml:"log_level,omitempty"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`
}

// DefaultConfig returns a CLIConfig with default values.
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		Vault: VaultConfig{
			NotesFolder:       vault.DefaultNotesFolder,
			AttachmentsFolder: vault.DefaultAttachmentsFolder,
			Duplicates:        string(vault.DuplicateSkip),
		},
		Parser: ParserConfig{
			StreamingThreshold: DefaultStreamingThreshold,
			MaxStreamBytes:     DefaultMaxStreamBytes,
			AnalysisLimit:      DefaultAnalysisLimit,
			CacheSize:          DefaultCacheSize,
			Locale:             analytics.LocaleAuto,
		},
		Redis: RedisConfig{
			CacheTTL: DefaultRedisCacheTTL,
		},
		Watch: WatchConfig{
			Settle:     DefaultSettle,
			RetryDelay: DefaultRetryDelay,
			MaxRetries: DefaultMaxRetries,
		},
		Concurrency:  DefaultConcurrency,
		OutputFormat: DefaultOutputFormat,
	}
}

// ConfigDir returns the configuration directory path.
// Uses $KRISP_CONFIG_DIR if set, otherwise ~/.krisp-import
func ConfigDir() (string, error) {
	if dir := os.Getenv("KRISP_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the CLI configuration from file and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file (~/.krisp-import/config.yaml or $KRISP_CONFIG_DIR/config.yaml)
// 3. Environment variables (KRISP_VAULT_PATH, KRISP_DUPLICATES, ...)
func LoadConfig() (*CLIConfig, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// configFile mirrors CLIConfig with durations as strings.
type configFile struct {
	Vault  VaultConfig `yaml:"vault"`
	Parser ParserConfig `yaml:"parser"`
	Redis  struct {
		Address      string `yaml:"address,omitempty"`
		DB           int    `yaml:"db,omitempty"`
		CacheTTL     string `yaml:"cache_ttl,omitempty"`
		EventsPrefix string `yaml:"events_prefix,omitempty"`
	} `yaml:"redis"`
	Watch struct {
		Dir         string `yaml:"dir,omitempty"`
		Settle      string `yaml:"settle,omitempty"`
		RetryDelay  string `yaml:"retry_delay,omitempty"`
		MaxRetries  *int   `yaml:"max_retries,omitempty"`
		MetricsAddr string `yaml:"metrics_addr,omitempty"`
	} `yaml:"watch"`
	Concurrency  int          `yaml:"concurrency,omitempty"`
	OutputFormat OutputFormat `yaml:"output_format,omitempty"`
	JournalPath  string       `yaml:"journal_path,omitempty"`
	LogLevel     string       `yaml:"log_level,omitempty"`
	Debug        bool         `yaml:"debug,omitempty"`
}

// loadFromFile loads configuration from a YAML file. Only keys present in
// the file replace defaults.
func loadFromFile(cfg *CLIConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	v := fileCfg.Vault
	setString(&cfg.Vault.Path, v.Path)
	setString(&cfg.Vault.NotesFolder, v.NotesFolder)
	setString(&cfg.Vault.AttachmentsFolder, v.AttachmentsFolder)
	setString(&cfg.Vault.TemplatePath, v.TemplatePath)
	setString(&cfg.Vault.Duplicates, v.Duplicates)

	p := fileCfg.Parser
	if p.StreamingThreshold != 0 {
		cfg.Parser.StreamingThreshold = p.StreamingThreshold
	}
	if p.MaxStreamBytes != 0 {
		cfg.Parser.MaxStreamBytes = p.MaxStreamBytes
	}
	if p.AnalysisLimit != 0 {
		cfg.Parser.AnalysisLimit = p.AnalysisLimit
	}
	if p.CacheSize != 0 {
		cfg.Parser.CacheSize = p.CacheSize
	}
	setString(&cfg.Parser.Locale, p.Locale)

	r := fileCfg.Redis
	setString(&cfg.Redis.Address, r.Address)
	if r.DB != 0 {
		cfg.Redis.DB = r.DB
	}
	if err := setDuration(&cfg.Redis.CacheTTL, r.CacheTTL, "redis.cache_ttl"); err != nil {
		return err
	}
	setString(&cfg.Redis.EventsPrefix, r.EventsPrefix)

	w := fileCfg.Watch
	setString(&cfg.Watch.Dir, w.Dir)
	if err := setDuration(&cfg.Watch.Settle, w.Settle, "watch.settle"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Watch.RetryDelay, w.RetryDelay, "watch.retry_delay"); err != nil {
		return err
	}
	if w.MaxRetries != nil {
		cfg.Watch.MaxRetries = *w.MaxRetries
	}
	setString(&cfg.Watch.MetricsAddr, w.MetricsAddr)

	if fileCfg.Concurrency != 0 {
		cfg.Concurrency = fileCfg.Concurrency
	}
	if fileCfg.OutputFormat != "" {
		cfg.OutputFormat = fileCfg.OutputFormat
	}
	setString(&cfg.JournalPath, fileCfg.JournalPath)
	setString(&cfg.LogLevel, fileCfg.LogLevel)
	cfg.Debug = fileCfg.Debug

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v, key string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	*dst = d
	return nil
}

// loadFromEnv overlays KRISP_* environment variables onto the configuration.
func loadFromEnv(cfg *CLIConfig) error {
	setString(&cfg.Vault.Path, os.Getenv("KRISP_VAULT_PATH"))
	setString(&cfg.Vault.NotesFolder, os.Getenv("KRISP_NOTES_FOLDER"))
	setString(&cfg.Vault.AttachmentsFolder, os.Getenv("KRISP_ATTACHMENTS_FOLDER"))
	setString(&cfg.Vault.TemplatePath, os.Getenv("KRISP_TEMPLATE_PATH"))
	setString(&cfg.Vault.Duplicates, os.Getenv("KRISP_DUPLICATES"))
	setString(&cfg.Parser.Locale, os.Getenv("KRISP_LOCALE"))
	setString(&cfg.Redis.Address, os.Getenv("KRISP_REDIS_ADDR"))
	setString(&cfg.Redis.EventsPrefix, os.Getenv("KRISP_EVENTS_PREFIX"))
	setString(&cfg.Watch.Dir, os.Getenv("KRISP_WATCH_DIR"))
	setString(&cfg.Watch.MetricsAddr, os.Getenv("KRISP_METRICS_ADDR"))
	setString(&cfg.JournalPath, os.Getenv("KRISP_JOURNAL_PATH"))

	if v := os.Getenv("KRISP_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}

	ints := []struct {
		name string
		dst  func(int64)
	}{
		{"KRISP_STREAMING_THRESHOLD", func(n int64) { cfg.Parser.StreamingThreshold = n }},
		{"KRISP_MAX_STREAM_BYTES", func(n int64) { cfg.Parser.MaxStreamBytes = n }},
		{"KRISP_ANALYSIS_LIMIT", func(n int64) { cfg.Parser.AnalysisLimit = int(n) }},
		{"KRISP_CACHE_SIZE", func(n int64) { cfg.Parser.CacheSize = int(n) }},
		{"KRISP_CONCURRENCY", func(n int64) { cfg.Concurrency = int(n) }},
	}
	for _, e := range ints {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", e.name, err)
		}
		e.dst(n)
	}

	if err := setDuration(&cfg.Redis.CacheTTL, os.Getenv("KRISP_REDIS_TTL"), "KRISP_REDIS_TTL"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Watch.Settle, os.Getenv("KRISP_WATCH_SETTLE"), "KRISP_WATCH_SETTLE"); err != nil {
		return err
	}

	setString(&cfg.LogLevel, os.Getenv("KRISP_LOG_LEVEL"))
	if v := os.Getenv("KRISP_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}

	return nil
}

// Validate checks that the configuration is valid. The vault path is not
// required here because commands can take it as a flag.
func (c *CLIConfig) Validate() error {
	if _, err := vault.ParseDuplicateStrategy(c.Vault.Duplicates); err != nil {
		return fmt.Errorf("vault.duplicates: %w", err)
	}

	for key, folder := range map[string]string{
		"vault.notes_folder":       c.Vault.NotesFolder,
		"vault.attachments_folder": c.Vault.AttachmentsFolder,
	} {
		if filepath.IsAbs(folder) {
			return fmt.Errorf("%s must be relative to the vault: %w", key, kerrors.ErrValidation)
		}
	}

	if c.Parser.StreamingThreshold <= 0 {
		return fmt.Errorf("parser.streaming_threshold must be positive: %w", kerrors.ErrValidation)
	}
	if c.Parser.MaxStreamBytes <= 0 {
		return fmt.Errorf("parser.max_stream_bytes must be positive: %w", kerrors.ErrValidation)
	}
	if c.Parser.AnalysisLimit <= 0 {
		return fmt.Errorf("parser.analysis_limit must be positive: %w", kerrors.ErrValidation)
	}
	if c.Parser.CacheSize < 0 {
		return fmt.Errorf("parser.cache_size must not be negative: %w", kerrors.ErrValidation)
	}
	if _, err := analytics.LexiconFor(c.Parser.Locale); err != nil {
		return fmt.Errorf("parser.locale: %w", err)
	}

	if c.Redis.Enabled() && c.Redis.CacheTTL <= 0 {
		return fmt.Errorf("redis.cache_ttl must be positive: %w", kerrors.ErrValidation)
	}

	if c.Watch.Settle <= 0 {
		return fmt.Errorf("watch.settle must be positive: %w", kerrors.ErrValidation)
	}
	if c.Watch.RetryDelay < 0 {
		return fmt.Errorf("watch.retry_delay must not be negative: %w", kerrors.ErrValidation)
	}

	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive: %w", kerrors.ErrValidation)
	}

	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml): %w", c.OutputFormat, kerrors.ErrValidation)
	}

	return nil
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// SaveConfig saves the configuration to the config file.
func SaveConfig(cfg *CLIConfig) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	var fileCfg configFile
	fileCfg.Vault = cfg.Vault
	fileCfg.Parser = cfg.Parser
	fileCfg.Redis.Address = cfg.Redis.Address
	fileCfg.Redis.DB = cfg.Redis.DB
	fileCfg.Redis.CacheTTL = cfg.Redis.CacheTTL.String()
	fileCfg.Redis.EventsPrefix = cfg.Redis.EventsPrefix
	fileCfg.Watch.Dir = cfg.Watch.Dir
	fileCfg.Watch.Settle = cfg.Watch.Settle.String()
	fileCfg.Watch.RetryDelay = cfg.Watch.RetryDelay.String()
	maxRetries := cfg.Watch.MaxRetries
	fileCfg.Watch.MaxRetries = &maxRetries
	fileCfg.Watch.MetricsAddr = cfg.Watch.MetricsAddr
	fileCfg.Concurrency = cfg.Concurrency
	fileCfg.OutputFormat = cfg.OutputFormat
	fileCfg.JournalPath = cfg.JournalPath
	fileCfg.LogLevel = cfg.LogLevel
	fileCfg.Debug = cfg.Debug

	data, err := yaml.Marshal(&fileCfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(configDir, DefaultConfigFile), data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// VaultRoot returns the expanded vault path.
func (c *CLIConfig) VaultRoot() (string, error) {
	return ExpandPath(c.Vault.Path)
}
