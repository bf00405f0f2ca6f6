// Package main provides the krisp-import CLI entry point.
// krisp-import turns Krisp meeting exports into Obsidian notes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/krisp-import/cmd"
	"github.com/otherjamesbrown/krisp-import/config"
	"github.com/otherjamesbrown/krisp-import/pkg/buildinfo"
)

// Global flags.
var (
	outputFormat string
	debug        bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "krisp-import",
	Short: "Import Krisp meeting exports into Obsidian",
	Long: `krisp-import converts Krisp meeting exports into Obsidian Markdown notes.

Each meeting becomes a note with frontmatter, a summary, action items,
per-speaker statistics, meeting analytics and a formatted transcript.
Recordings are copied into the vault and embedded in the note.

COMMON WORKFLOWS:
  One-off import:    krisp-import import ~/Downloads/krisp-export.zip
  Keep importing:    krisp-import watch ~/Downloads
  Inspect a meeting: krisp-import analyze transcript.txt

Settings live in ~/.krisp-import/config.yaml ('krisp-import config init')
and can be overridden with KRISP_* environment variables or flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// loadConfig loads the configuration and applies the global flags.
func loadConfig() (*config.CLIConfig, error) {
	c, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if outputFormat != "" {
		format := config.OutputFormat(outputFormat)
		if !format.IsValid() {
			return nil, fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", outputFormat)
		}
		c.OutputFormat = format
	}
	if debug {
		c.Debug = true
	}
	return c, nil
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of krisp-import.

Examples:
  krisp-import version
  krisp-import version --output json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.Get("krisp-import")
		out := cmd.OutOrStdout()

		switch config.OutputFormat(outputFormat) {
		case config.OutputFormatJSON:
			return outputJSON(out, info)
		case config.OutputFormatYAML:
			return outputYAML(out, info)
		}

		fmt.Fprintf(out, "krisp-import version %s\n", info.Version)
		fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
		fmt.Fprintf(out, "  go:         %s\n", info.GoVersion)
		if info.Modified {
			fmt.Fprintln(out, "  (built from a modified tree)")
		}
		return nil
	},
}

// configCmd manages CLI configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify the krisp-import configuration settings.`,
}

// configShowCmd displays current configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration: file values with environment overrides applied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		out := cmd.OutOrStdout()

		switch cfg.OutputFormat {
		case config.OutputFormatJSON:
			return outputJSON(out, cfg)
		case config.OutputFormatYAML:
			return outputYAML(out, cfg)
		}

		configPath, _ := config.ConfigPath()
		fmt.Fprintln(out, "Current configuration:")
		fmt.Fprintf(out, "  Config file:         %s\n", configPath)
		fmt.Fprintf(out, "  Vault:               %s\n", valueOrDefault(cfg.Vault.Path, "(not set)"))
		fmt.Fprintf(out, "  Notes folder:        %s\n", cfg.Vault.NotesFolder)
		fmt.Fprintf(out, "  Attachments folder:  %s\n", cfg.Vault.AttachmentsFolder)
		fmt.Fprintf(out, "  Template:            %s\n", valueOrDefault(cfg.Vault.TemplatePath, "(built-in)"))
		fmt.Fprintf(out, "  Duplicates:          %s\n", cfg.Vault.Duplicates)
		fmt.Fprintf(out, "  Locale:              %s\n", cfg.Parser.Locale)
		fmt.Fprintf(out, "  Streaming threshold: %d bytes\n", cfg.Parser.StreamingThreshold)
		fmt.Fprintf(out, "  Concurrency:         %d\n", cfg.Concurrency)
		fmt.Fprintf(out, "  Redis:               %s\n", valueOrDefault(cfg.Redis.Address, "(disabled)"))
		fmt.Fprintf(out, "  Watch folder:        %s\n", valueOrDefault(cfg.Watch.Dir, "(not set)"))
		fmt.Fprintf(out, "  Watch settle:        %s\n", cfg.Watch.Settle)
		fmt.Fprintf(out, "  Journal:             %s\n", valueOrDefault(cfg.JournalPath, "(disabled)"))
		fmt.Fprintf(out, "  Output format:       %s\n", cfg.OutputFormat)
		fmt.Fprintf(out, "  Debug:               %t\n", cfg.Debug)
		return nil
	},
}

// configInitCmd initializes configuration.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with default values if one doesn't exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		configPath, err := config.ConfigPath()
		if err != nil {
			return fmt.Errorf("getting config path: %w", err)
		}

		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(out, "Configuration file already exists: %s\n", configPath)
			fmt.Fprintln(out, "Use 'krisp-import config show' to view current settings.")
			return nil
		}

		defaultCfg := config.DefaultConfig()
		if err := config.SaveConfig(defaultCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(out, "Created configuration file: %s\n", configPath)
		fmt.Fprintln(out, "\nNext, point it at your vault:")
		fmt.Fprintln(out, "  krisp-import config set vault_path ~/Obsidian/Work")
		return nil
	},
}

// configSetCmd sets a configuration value.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the config file.

Available keys:
  vault_path          - Obsidian vault root (supports ~)
  notes_folder        - Notes folder inside the vault
  attachments_folder  - Attachments folder inside the vault
  template_path       - Note template file (empty for the built-in one)
  duplicates          - Duplicate strategy (skip, overwrite, suffix)
  locale              - Analytics keywords (auto, en, ru)
  streaming_threshold - Transcript size in bytes that switches to streaming
  max_stream_bytes    - Memory ceiling for a streamed transcript
  analysis_limit      - Characters scanned for action items and entities
  cache_size          - Entries in the in-process analytics cache
  concurrency         - Sources imported in parallel
  redis_address       - Redis host:port (empty disables Redis)
  redis_db            - Redis database number
  redis_cache_ttl     - Lifetime of cached analytics (e.g., 24h)
  events_prefix       - Prefix for import event channels
  watch_dir           - Default folder for 'watch'
  watch_settle        - Quiet period before a new export is imported
  watch_retry_delay   - Wait before retrying a failed import
  watch_max_retries   - Retries for timeouts and incomplete archives
  metrics_addr        - Address for the watch metrics endpoint
  journal_path        - Append logs as JSON lines to this file
  output_format       - Default output format (text, json, yaml)
  log_level           - Minimum log level (debug, info, warn, error)
  debug               - Enable debug logging (true/false)

Examples:
  krisp-import config set vault_path ~/Obsidian/Work
  krisp-import config set duplicates suffix
  krisp-import config set redis_address localhost:6379`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		currentCfg, err := config.LoadConfig()
		if err != nil {
			// A broken or missing file is replaced by defaults plus this key.
			currentCfg = config.DefaultConfig()
		}

		if err := setConfigValue(currentCfg, key, value); err != nil {
			return err
		}
		if err := currentCfg.Validate(); err != nil {
			return err
		}
		if err := config.SaveConfig(currentCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}

// setConfigValue applies one `config set` key to c.
func setConfigValue(c *config.CLIConfig, key, value string) error {
	var err error
	switch key {
	case "vault_path":
		if _, err := config.ExpandPath(value); err != nil {
			return fmt.Errorf("invalid vault path: %w", err)
		}
		c.Vault.Path = value
	case "notes_folder":
		c.Vault.NotesFolder = value
	case "attachments_folder":
		c.Vault.AttachmentsFolder = value
	case "template_path":
		c.Vault.TemplatePath = value
	case "duplicates":
		c.Vault.Duplicates = value
	case "locale":
		c.Parser.Locale = value
	case "streaming_threshold":
		c.Parser.StreamingThreshold, err = parseInt64(key, value)
	case "max_stream_bytes":
		c.Parser.MaxStreamBytes, err = parseInt64(key, value)
	case "analysis_limit":
		c.Parser.AnalysisLimit, err = parseInt(key, value)
	case "cache_size":
		c.Parser.CacheSize, err = parseInt(key, value)
	case "concurrency":
		c.Concurrency, err = parseInt(key, value)
	case "redis_address":
		c.Redis.Address = value
	case "redis_db":
		c.Redis.DB, err = parseInt(key, value)
	case "redis_cache_ttl":
		c.Redis.CacheTTL, err = parseDuration(key, value)
	case "events_prefix":
		c.Redis.EventsPrefix = value
	case "watch_dir":
		c.Watch.Dir = value
	case "watch_settle":
		c.Watch.Settle, err = parseDuration(key, value)
	case "watch_retry_delay":
		c.Watch.RetryDelay, err = parseDuration(key, value)
	case "watch_max_retries":
		c.Watch.MaxRetries, err = parseInt(key, value)
	case "metrics_addr":
		c.Watch.MetricsAddr = value
	case "journal_path":
		c.JournalPath = value
	case "output_format":
		format := config.OutputFormat(value)
		if !format.IsValid() {
			return fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", value)
		}
		c.OutputFormat = format
	case "log_level":
		c.LogLevel = value
	case "debug":
		c.Debug, err = parseBool(key, value)
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return err
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s (must be a whole number)", key, value)
	}
	return n, nil
}

func parseInt64(key, value string) (int64, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s (must be a whole number)", key, value)
	}
	return n, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return d, nil
}

func parseBool(key, value string) (bool, error) {
	switch value {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid %s value: %s (must be true or false)", key, value)
}

// completionCmd generates shell completion scripts.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for krisp-import.

To load completions:

Bash:
  $ source <(krisp-import completion bash)

Zsh:
  $ krisp-import completion zsh > "${fpath[1]}/_krisp-import"

Fish:
  $ krisp-import completion fish > ~/.config/fish/completions/krisp-import.fish

PowerShell:
  PS> krisp-import completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func outputYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(v)
}

// valueOrDefault returns value or defaultValue if empty.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddGroup(
		&cobra.Group{ID: "meetings", Title: "Meetings:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	// Meetings
	importCmd := cmd.NewImportCommand(&cmd.ImportCommandDeps{LoadConfig: loadConfig, NewRuntime: cmd.NewRuntime})
	importCmd.GroupID = "meetings"
	rootCmd.AddCommand(importCmd)

	watchCmd := cmd.NewWatchCommand(&cmd.WatchCommandDeps{LoadConfig: loadConfig, NewRuntime: cmd.NewRuntime})
	watchCmd.GroupID = "meetings"
	rootCmd.AddCommand(watchCmd)

	analyzeCmd := cmd.NewAnalyzeCommand(&cmd.AnalyzeCommandDeps{LoadConfig: loadConfig, NewRuntime: cmd.NewRuntime})
	analyzeCmd.GroupID = "meetings"
	rootCmd.AddCommand(analyzeCmd)

	// Setup
	configCmd.GroupID = "setup"
	rootCmd.AddCommand(configCmd)

	completionCmd.GroupID = "setup"
	rootCmd.AddCommand(completionCmd)

	versionCmd.GroupID = "setup"
	rootCmd.AddCommand(versionCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
}

func main() {
	// Cancelling the context lets watch finish the import in flight.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
