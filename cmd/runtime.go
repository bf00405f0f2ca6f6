// Package cmd provides CLI commands for the krisp-import tool.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/term"

	"github.com/otherjamesbrown/krisp-import/config"
	"github.com/otherjamesbrown/krisp-import/pkg/enrichment/analytics"
	"github.com/otherjamesbrown/krisp-import/pkg/enrichment/extraction"
	"github.com/otherjamesbrown/krisp-import/pkg/importer"
	"github.com/otherjamesbrown/krisp-import/pkg/ingest/batch"
	"github.com/otherjamesbrown/krisp-import/pkg/logging"
	"github.com/otherjamesbrown/krisp-import/pkg/observability"
	"github.com/otherjamesbrown/krisp-import/pkg/render"
	"github.com/otherjamesbrown/krisp-import/pkg/vault"
)

// redisPingTimeout bounds the startup connectivity check.
const redisPingTimeout = 3 * time.Second

// Runtime holds the collaborators shared by import, watch and analyze.
type Runtime struct {
	Config   *config.CLIConfig
	Logger   logging.Logger
	Registry *prometheus.Registry
	Metrics  *observability.ImportMetrics
	Tracer   *observability.Tracer
	Emitter  *observability.EventEmitter
	Parser   *importer.Parser
	Renderer *render.Renderer

	closers []io.Closer
}

// RuntimeOptions adjusts how a Runtime is built.
type RuntimeOptions struct {
	// LogOutput receives console or JSON logs. Defaults to stderr.
	LogOutput io.Writer

	// RedisClient replaces the client built from the config.
	RedisClient redis.UniversalClient
}

// NewRuntime wires logging, metrics, tracing, the analytics cache, event
// publishing, the parser and the renderer from cfg. Close releases what
// it opened.
func NewRuntime(ctx context.Context, cfg *config.CLIConfig, opts RuntimeOptions) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Tracer: observability.NewTracer()}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		logCfg.Level = logging.LevelDebug
	}
	logCfg.NoColor = os.Getenv("NO_COLOR") != ""
	logCfg.JSONFormat = cfg.OutputFormat == config.OutputFormatJSON
	if opts.LogOutput != nil {
		logCfg.Output = opts.LogOutput
	}
	if cfg.JournalPath != "" {
		path, err := config.ExpandPath(cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		journal, err := logging.OpenJournal(path)
		if err != nil {
			return nil, fmt.Errorf("opening journal: %w", err)
		}
		logCfg.Sinks = append(logCfg.Sinks, journal)
		rt.closers = append(rt.closers, journal)
	}
	rt.Logger = logging.NewLogger(logCfg)

	rt.Registry = prometheus.NewRegistry()
	rt.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt.Metrics = observability.NewImportMetrics(rt.Registry)

	lexicon, err := analytics.LexiconFor(cfg.Parser.Locale)
	if err != nil {
		rt.Close()
		return nil, err
	}

	cache, err := analytics.NewLRUCache(cfg.Parser.CacheSize)
	if err != nil {
		rt.Close()
		return nil, err
	}
	var analyticsCache analytics.Cache = cache

	var publisher observability.EventPublisher = &observability.NoOpEventPublisher{}
	if client := rt.redisClient(ctx, opts.RedisClient); client != nil {
		analyticsCache = analytics.NewTieredCache(cache, analytics.NewRedisCache(client, cfg.Parser.Locale, cfg.Redis.CacheTTL))
		publisher = observability.NewRedisEventPublisher(client, cfg.Redis.EventsPrefix)
	}
	rt.Emitter = observability.NewEventEmitter(publisher)

	rt.Parser = importer.NewParser(
		importer.WithLogger(rt.Logger),
		importer.WithCache(analyticsCache),
		importer.WithLexicon(lexicon),
		importer.WithExtractor(extraction.NewExtractor(extraction.WithAnalysisLimit(cfg.Parser.AnalysisLimit))),
		importer.WithMetrics(rt.Metrics),
		importer.WithTracer(rt.Tracer),
		importer.WithStreamingThreshold(cfg.Parser.StreamingThreshold),
		importer.WithMaxStreamBytes(cfg.Parser.MaxStreamBytes),
	)

	templatePath, err := config.ExpandPath(cfg.Vault.TemplatePath)
	if err != nil {
		rt.Close()
		return nil, err
	}
	tmpl, err := render.LoadTemplate(templatePath)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("loading template: %w", err)
	}
	if unknown := render.UnknownPlaceholders(tmpl); len(unknown) > 0 {
		rt.Logger.Warn("Template has unknown placeholders; they are left as written",
			logging.F("placeholders", unknown))
	}
	rt.Renderer = render.NewRenderer(tmpl)

	return rt, nil
}

// redisClient connects when Redis is configured. An unreachable server is
// logged and ignored so imports still run on the local cache.
func (rt *Runtime) redisClient(ctx context.Context, injected redis.UniversalClient) redis.UniversalClient {
	if injected != nil {
		return injected
	}
	if !rt.Config.Redis.Enabled() {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr: rt.Config.Redis.Address,
		DB:   rt.Config.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		rt.Logger.Warn("Redis unavailable; using local analytics cache only",
			logging.F("address", rt.Config.Redis.Address), logging.Err(err))
		_ = client.Close()
		return nil
	}
	rt.closers = append(rt.closers, client)
	rt.Logger.Debug("Connected to Redis", logging.F("address", rt.Config.Redis.Address))
	return client
}

// NewVault opens the configured vault. root overrides the configured path
// when non-empty.
func (rt *Runtime) NewVault(root string) (*vault.Vault, error) {
	if root == "" {
		root = rt.Config.Vault.Path
	}
	if root == "" {
		return nil, errors.New("no vault path: pass --vault or set vault.path in the config")
	}
	expanded, err := config.ExpandPath(root)
	if err != nil {
		return nil, err
	}
	strategy, err := vault.ParseDuplicateStrategy(rt.Config.Vault.Duplicates)
	if err != nil {
		return nil, err
	}
	return vault.New(vault.Config{
		Root:              expanded,
		NotesFolder:       rt.Config.Vault.NotesFolder,
		AttachmentsFolder: rt.Config.Vault.AttachmentsFolder,
		Duplicates:        strategy,
	}, rt.Logger)
}

// NewProcessor builds a batch processor writing into v.
func (rt *Runtime) NewProcessor(v *vault.Vault, dryRun bool, onProgress func(batch.ProgressSnapshot)) (*batch.Processor, error) {
	return batch.NewProcessor(batch.Dependencies{
		Parser:   rt.Parser,
		Renderer: rt.Renderer,
		Vault:    v,
		Emitter:  rt.Emitter,
		Metrics:  rt.Metrics,
		Tracer:   rt.Tracer,
		Logger:   rt.Logger,
	}, batch.ProcessorConfig{
		Concurrency:        rt.Config.Concurrency,
		DryRun:             dryRun,
		StreamingThreshold: rt.Config.Parser.StreamingThreshold,
		OnProgress:         onProgress,
	})
}

// Close flushes the journal and closes Redis.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
