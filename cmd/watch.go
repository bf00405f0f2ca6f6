package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/krisp-import/config"
	"github.com/otherjamesbrown/krisp-import/pkg/buildinfo"
	"github.com/otherjamesbrown/krisp-import/pkg/ingest/batch"
	"github.com/otherjamesbrown/krisp-import/pkg/ingest/watch"
	"github.com/otherjamesbrown/krisp-import/pkg/logging"
	"github.com/otherjamesbrown/krisp-import/pkg/vault"
)

// metricsShutdownTimeout bounds the metrics server shutdown.
const metricsShutdownTimeout = 5 * time.Second

// WatchCommandDeps holds the dependencies for the watch command.
type WatchCommandDeps struct {
	Config     *config.CLIConfig
	LoadConfig func() (*config.CLIConfig, error)
	NewRuntime func(ctx context.Context, cfg *config.CLIConfig, opts RuntimeOptions) (*Runtime, error)
}

// DefaultWatchDeps returns the default dependencies for production use.
func DefaultWatchDeps() *WatchCommandDeps {
	return &WatchCommandDeps{
		LoadConfig: config.LoadConfig,
		NewRuntime: NewRuntime,
	}
}

type watchOptions struct {
	vault          string
	duplicates     string
	settle         time.Duration
	retryDelay     time.Duration
	maxRetries     int
	importExisting bool
	metricsAddr    string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(deps *WatchCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultWatchDeps()
	}
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Import Krisp exports as they appear in a folder",
		Long: `Watch a folder and import every Krisp export that lands in it.

New .zip files and meeting folders are imported once they stop changing
for the settle period, so partially downloaded exports are left alone.
Timeouts and incomplete archives are retried; other failures are logged
and the export is skipped until it changes again.

With --metrics-addr the command also serves Prometheus metrics on
/metrics and build information on /version.

Examples:
  # Watch the downloads folder
  krisp-import watch ~/Downloads --vault ~/Obsidian/Work

  # Import what is already there, then keep watching
  krisp-import watch ~/Downloads --import-existing

  # Expose metrics
  krisp-import watch ~/Downloads --metrics-addr 127.0.0.1:9108`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runWatch(cmd.Context(), deps, opts, cmd, dir)
		},
	}

	cmd.Flags().StringVar(&opts.vault, "vault", "", "Vault root (overrides config)")
	cmd.Flags().StringVar(&opts.duplicates, "duplicates", "", "Duplicate strategy: skip, overwrite, suffix")
	cmd.Flags().DurationVar(&opts.settle, "settle", 0, "Quiet period before an export is imported")
	cmd.Flags().DurationVar(&opts.retryDelay, "retry-delay", 0, "Wait before retrying a failed import")
	cmd.Flags().IntVar(&opts.maxRetries, "max-retries", -1, "Retries for timeouts and incomplete archives")
	cmd.Flags().BoolVar(&opts.importExisting, "import-existing", false, "Import exports already in the folder at startup")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}

func runWatch(ctx context.Context, deps *WatchCommandDeps, opts *watchOptions, cmd *cobra.Command, dir string) error {
	cfg, err := commandConfig(deps.Config, deps.LoadConfig)
	if err != nil {
		return err
	}
	if err := applyWatchOptions(cfg, opts); err != nil {
		return err
	}
	if dir == "" {
		dir = cfg.Watch.Dir
	}
	if dir == "" {
		return errors.New("no folder to watch: pass one or set watch.dir in the config")
	}
	if dir, err = config.ExpandPath(dir); err != nil {
		return err
	}

	rt, err := deps.NewRuntime(ctx, cfg, RuntimeOptions{LogOutput: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer rt.Close()

	v, err := rt.NewVault(opts.vault)
	if err != nil {
		return err
	}
	proc, err := rt.NewProcessor(v, false, nil)
	if err != nil {
		return err
	}

	w, err := watch.New(watch.Config{
		Dir:            dir,
		Settle:         cfg.Watch.Settle,
		RetryDelay:     cfg.Watch.RetryDelay,
		MaxRetries:     watchRetries(cfg.Watch.MaxRetries),
		ImportExisting: opts.importExisting,
		Logger:         rt.Logger,
	}, importHandler(proc, cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	defer w.Close()

	if cfg.Watch.MetricsAddr != "" {
		_, stop, err := serveMetrics(ctx, rt, cfg.Watch.MetricsAddr)
		if err != nil {
			return err
		}
		defer stop()
	}

	rt.Logger.Info("Watch started",
		logging.F("dir", dir),
		logging.F("notes", v.NotesDir()),
		logging.F("duplicates", string(v.Strategy())))

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func applyWatchOptions(cfg *config.CLIConfig, opts *watchOptions) error {
	if opts.duplicates != "" {
		if _, err := vault.ParseDuplicateStrategy(opts.duplicates); err != nil {
			return err
		}
		cfg.Vault.Duplicates = opts.duplicates
	}
	if opts.settle > 0 {
		cfg.Watch.Settle = opts.settle
	}
	if opts.retryDelay > 0 {
		cfg.Watch.RetryDelay = opts.retryDelay
	}
	if opts.maxRetries >= 0 {
		cfg.Watch.MaxRetries = opts.maxRetries
	}
	if opts.metricsAddr != "" {
		cfg.Watch.MetricsAddr = opts.metricsAddr
	}
	return nil
}

// watchRetries maps a configured retry count to the watcher's convention,
// where zero means the default and a negative value disables retries.
func watchRetries(n int) int {
	if n == 0 {
		return -1
	}
	return n
}

// importHandler imports one settled export and reports the first failure
// so the watcher can decide whether to retry.
func importHandler(proc *batch.Processor, out io.Writer) watch.Handler {
	return func(ctx context.Context, path string) error {
		sr := proc.ImportSource(ctx, path)
		for _, m := range sr.Meetings {
			if m.Outcome == batch.OutcomeImported {
				fmt.Fprintf(out, "imported %s -> %s\n", m.Title, m.NotePath)
			}
		}
		if ie := sr.FirstError(); ie != nil {
			return ie
		}
		return nil
	}
}

// serveMetrics starts the metrics endpoint and returns the bound address
// and a shutdown func.
func serveMetrics(ctx context.Context, rt *Runtime, addr string) (string, func(), error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{}))
	mux.Handle("/version", buildinfo.Handler("krisp-import"))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.Logger.Error("Metrics server failed", logging.Err(err))
		}
	}()
	rt.Logger.Info("Serving metrics", logging.F("addr", ln.Addr().String()))

	return ln.Addr().String(), func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}, nil
}
