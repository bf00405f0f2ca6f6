package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/krisp-import/config"
	"github.com/otherjamesbrown/krisp-import/pkg/ingest/batch"
	"github.com/otherjamesbrown/krisp-import/pkg/vault"
)

// ImportCommandDeps holds the dependencies for the import command.
type ImportCommandDeps struct {
	Config     *config.CLIConfig
	LoadConfig func() (*config.CLIConfig, error)
	NewRuntime func(ctx context.Context, cfg *config.CLIConfig, opts RuntimeOptions) (*Runtime, error)
}

// DefaultImportDeps returns the default dependencies for production use.
func DefaultImportDeps() *ImportCommandDeps {
	return &ImportCommandDeps{
		LoadConfig: config.LoadConfig,
		NewRuntime: NewRuntime,
	}
}

// importOptions are the flags of one import command.
type importOptions struct {
	vault       string
	duplicates  string
	template    string
	concurrency int
	dryRun      bool
	noProgress  bool
	output      string
}

// ImportReport is the machine-readable summary of an import.
type ImportReport struct {
	JobID      string              `json:"job_id" yaml:"job_id"`
	Path       string              `json:"path" yaml:"path"`
	Vault      string              `json:"vault" yaml:"vault"`
	DryRun     bool                `json:"dry_run" yaml:"dry_run"`
	Sources    int                 `json:"sources" yaml:"sources"`
	Imported   int                 `json:"imported" yaml:"imported"`
	Skipped    int                 `json:"skipped" yaml:"skipped"`
	Failed     int                 `json:"failed" yaml:"failed"`
	DurationMs int64               `json:"duration_ms" yaml:"duration_ms"`
	Meetings   []ImportedMeeting   `json:"meetings" yaml:"meetings"`
	Errors     []ImportReportError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// ImportedMeeting is one meeting line of an ImportReport.
type ImportedMeeting struct {
	Source    string `json:"source" yaml:"source"`
	Folder    string `json:"folder" yaml:"folder"`
	Title     string `json:"title,omitempty" yaml:"title,omitempty"`
	Outcome   string `json:"outcome" yaml:"outcome"`
	Action    string `json:"action,omitempty" yaml:"action,omitempty"`
	NotePath  string `json:"note_path,omitempty" yaml:"note_path,omitempty"`
	Truncated bool   `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

// ImportReportError is one failure of an ImportReport.
type ImportReportError struct {
	Path      string `json:"path" yaml:"path"`
	Folder    string `json:"folder,omitempty" yaml:"folder,omitempty"`
	Code      string `json:"code" yaml:"code"`
	Stage     string `json:"stage" yaml:"stage"`
	Message   string `json:"message" yaml:"message"`
	Retryable bool   `json:"retryable" yaml:"retryable"`
}

// NewImportCommand creates the import command.
func NewImportCommand(deps *ImportCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultImportDeps()
	}
	opts := &importOptions{}

	cmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Import Krisp exports into an Obsidian vault",
		Long: `Import Krisp meeting exports into an Obsidian vault as Markdown notes.

<path> may be a Krisp .zip export, an extracted meeting folder, or a
directory holding any number of both. Each meeting becomes one note with
frontmatter, summary, action items, analytics and a formatted transcript.
Audio recordings are copied to the attachments folder.

A meeting already in the vault (matched by its Krisp folder name) is
handled by the duplicate strategy: skip, overwrite or suffix.

Examples:
  # Import one export
  krisp-import import ~/Downloads/krisp-export.zip --vault ~/Obsidian/Work

  # Import a folder of exports, re-rendering existing notes
  krisp-import import ~/Downloads/krisp --duplicates overwrite

  # Preview without writing to the vault
  krisp-import import ~/Downloads/krisp --dry-run --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), deps, opts, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.vault, "vault", "", "Vault root (overrides config)")
	cmd.Flags().StringVar(&opts.duplicates, "duplicates", "", "Duplicate strategy: skip, overwrite, suffix")
	cmd.Flags().StringVar(&opts.template, "template", "", "Note template file (overrides config)")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "j", 0, "Sources imported in parallel")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Parse and render without writing to the vault")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable the progress line")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

func runImport(ctx context.Context, deps *ImportCommandDeps, opts *importOptions, path string, out, errOut io.Writer) error {
	cfg, err := commandConfig(deps.Config, deps.LoadConfig)
	if err != nil {
		return err
	}
	format, err := resolveOutputFormat(opts.output, cfg)
	if err != nil {
		return err
	}

	if opts.duplicates != "" {
		if _, err := vault.ParseDuplicateStrategy(opts.duplicates); err != nil {
			return err
		}
		cfg.Vault.Duplicates = opts.duplicates
	}
	if opts.template != "" {
		cfg.Vault.TemplatePath = opts.template
	}
	if opts.concurrency > 0 {
		cfg.Concurrency = opts.concurrency
	}

	rt, err := deps.NewRuntime(ctx, cfg, RuntimeOptions{LogOutput: errOut})
	if err != nil {
		return err
	}
	defer rt.Close()

	v, err := rt.NewVault(opts.vault)
	if err != nil {
		return err
	}

	var onProgress func(batch.ProgressSnapshot)
	if format == config.OutputFormatText && !opts.noProgress && isTerminal(errOut) {
		onProgress = newProgressPrinter(errOut).Print
	}

	proc, err := rt.NewProcessor(v, opts.dryRun, onProgress)
	if err != nil {
		return err
	}

	result, procErr := proc.Process(ctx, path)
	if onProgress != nil {
		fmt.Fprintln(errOut)
	}
	if result == nil {
		return procErr
	}

	report := buildImportReport(path, v.NotesDir(), opts.dryRun, result)
	switch format {
	case config.OutputFormatJSON:
		err = outputJSON(out, report)
	case config.OutputFormatYAML:
		err = outputYAML(out, report)
	default:
		err = outputImportText(out, report)
	}
	if err != nil {
		return err
	}

	if procErr != nil {
		return procErr
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d import(s) failed", report.Failed)
	}
	return nil
}

// commandConfig returns a copy of the injected config or loads one.
func commandConfig(injected *config.CLIConfig, load func() (*config.CLIConfig, error)) (*config.CLIConfig, error) {
	if injected != nil {
		cfg := *injected
		return &cfg, nil
	}
	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

func buildImportReport(path, notesDir string, dryRun bool, result *batch.ProcessResult) *ImportReport {
	report := &ImportReport{
		JobID:      result.JobID,
		Path:       path,
		Vault:      notesDir,
		DryRun:     dryRun,
		Sources:    result.TotalSources,
		Imported:   result.ImportedCount,
		Skipped:    result.SkippedCount,
		Failed:     result.FailedCount,
		DurationMs: result.CompletedAt.Sub(result.StartedAt).Milliseconds(),
		Meetings:   []ImportedMeeting{},
	}
	for _, src := range result.Sources {
		for _, m := range src.Meetings {
			report.Meetings = append(report.Meetings, ImportedMeeting{
				Source:    src.Path,
				Folder:    m.Folder,
				Title:     m.Title,
				Outcome:   m.Outcome,
				Action:    string(m.Action),
				NotePath:  m.NotePath,
				Truncated: m.Truncated,
			})
		}
	}
	for _, fe := range result.Errors {
		report.Errors = append(report.Errors, ImportReportError{
			Path:      fe.FilePath,
			Folder:    fe.Folder,
			Code:      string(fe.Code),
			Stage:     fe.Stage,
			Message:   fe.Error,
			Retryable: fe.Retryable,
		})
	}
	return report
}

func outputImportText(w io.Writer, r *ImportReport) error {
	if r.DryRun {
		fmt.Fprintln(w, "Dry run: nothing was written.")
	}
	if len(r.Meetings) > 0 {
		fmt.Fprintf(w, "%-10s %-40s %s\n", "OUTCOME", "MEETING", "NOTE")
		for _, m := range r.Meetings {
			title := m.Title
			if title == "" {
				title = m.Folder
			}
			note := m.NotePath
			if m.Truncated {
				note += " (transcript truncated)"
			}
			fmt.Fprintf(w, "%-10s %-40s %s\n", m.Outcome, truncateString(title, 40), note)
		}
		fmt.Fprintln(w)
	}

	for _, e := range r.Errors {
		where := e.Path
		if e.Folder != "" {
			where += " > " + e.Folder
		}
		fmt.Fprintf(w, "Error [%s/%s] %s: %s\n", e.Stage, e.Code, where, e.Message)
	}

	fmt.Fprintf(w, "Imported %d, skipped %d, failed %d from %d source(s) in %s\n",
		r.Imported, r.Skipped, r.Failed, r.Sources, formatDurationMs(r.DurationMs))
	return nil
}

// progressPrinter redraws a single status line. Print is safe for
// concurrent use.
type progressPrinter struct {
	mu   sync.Mutex
	w    io.Writer
	last time.Time
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

// Print redraws at most ten times a second, always drawing final states.
func (p *progressPrinter) Print(s batch.ProgressSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if !s.IsComplete() && now.Sub(p.last) < 100*time.Millisecond {
		return
	}
	p.last = now
	fmt.Fprintf(p.w, "\r\033[K[%d/%d %3.0f%%] imported %d, skipped %d, failed %d",
		s.ProcessedSources, s.TotalSources, s.PercentComplete(),
		s.ImportedMeetings, s.SkippedMeetings, s.FailedMeetings)
}
