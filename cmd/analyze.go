package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/krisp-import/config"
	"github.com/otherjamesbrown/krisp-import/pkg/importer"
	"github.com/otherjamesbrown/krisp-import/pkg/ingest/archive"
	"github.com/otherjamesbrown/krisp-import/pkg/render"
)

// AnalyzeCommandDeps holds the dependencies for the analyze command.
type AnalyzeCommandDeps struct {
	Config     *config.CLIConfig
	LoadConfig func() (*config.CLIConfig, error)
	NewRuntime func(ctx context.Context, cfg *config.CLIConfig, opts RuntimeOptions) (*Runtime, error)
}

// DefaultAnalyzeDeps returns the default dependencies for production use.
func DefaultAnalyzeDeps() *AnalyzeCommandDeps {
	return &AnalyzeCommandDeps{
		LoadConfig: config.LoadConfig,
		NewRuntime: NewRuntime,
	}
}

type analyzeOptions struct {
	notes          string
	output         string
	render         bool
	withTranscript bool
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(deps *AnalyzeCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultAnalyzeDeps()
	}
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <path>",
		Short: "Analyze a transcript or export without importing it",
		Long: `Parse and analyze Krisp meetings and print the result. Nothing is
written to the vault.

<path> may be a transcript .txt file, a meeting folder or a .zip export.

Examples:
  # Analytics for one transcript
  krisp-import analyze transcript.txt

  # Full record as YAML, transcript included
  krisp-import analyze ./Weekly\ Sync --output yaml --with-transcript

  # Preview the note that import would write
  krisp-import analyze export.zip --render`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), deps, opts, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.notes, "notes", "", "Meeting notes file to pair with a transcript file")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output format: text, json, yaml")
	cmd.Flags().BoolVar(&opts.render, "render", false, "Print the rendered Markdown note")
	cmd.Flags().BoolVar(&opts.withTranscript, "with-transcript", false, "Include transcripts in json and yaml output")

	return cmd
}

func runAnalyze(ctx context.Context, deps *AnalyzeCommandDeps, opts *analyzeOptions, path string, out, errOut io.Writer) error {
	cfg, err := commandConfig(deps.Config, deps.LoadConfig)
	if err != nil {
		return err
	}
	format, err := resolveOutputFormat(opts.output, cfg)
	if err != nil {
		return err
	}

	rt, err := deps.NewRuntime(ctx, cfg, RuntimeOptions{LogOutput: errOut})
	if err != nil {
		return err
	}
	defer rt.Close()

	meetings, cleanup, err := analyzeTargets(ctx, path, opts.notes)
	if err != nil {
		return err
	}
	defer cleanup()

	records := make([]*importer.ParsedMeetingRecord, 0, len(meetings))
	for _, m := range meetings {
		rec, err := analyzeMeeting(ctx, rt, m, cfg.Parser.StreamingThreshold)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}

	if opts.render {
		for i, rec := range records {
			note, err := rt.Renderer.Render(rec)
			if err != nil {
				return err
			}
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprint(out, note)
		}
		return nil
	}

	if !opts.withTranscript {
		for _, rec := range records {
			rec.RawTranscript = ""
			rec.FormattedTranscript = ""
		}
	}

	switch format {
	case config.OutputFormatJSON:
		return outputJSON(out, records)
	case config.OutputFormatYAML:
		return outputYAML(out, records)
	default:
		for i, rec := range records {
			if i > 0 {
				fmt.Fprintln(out)
			}
			outputRecordText(out, rec)
		}
		return nil
	}
}

// analyzeTargets resolves path to the meetings to analyze. A plain text
// file is treated as a transcript, named after the file.
func analyzeTargets(ctx context.Context, path, notesPath string) ([]archive.Meeting, func(), error) {
	noop := func() {}

	if info, err := os.Stat(path); err == nil && !info.IsDir() && strings.EqualFold(filepath.Ext(path), ".txt") {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return []archive.Meeting{{
			FolderName:     name,
			Dir:            filepath.Dir(path),
			TranscriptPath: path,
			NotesPath:      notesPath,
		}}, noop, nil
	}

	src, err := archive.Open(ctx, path)
	if err != nil {
		return nil, noop, err
	}
	if len(src.Meetings) == 0 {
		src.Close()
		return nil, noop, fmt.Errorf("no meeting notes or transcript found in %s", path)
	}
	return src.Meetings, func() { _ = src.Close() }, nil
}

func analyzeMeeting(ctx context.Context, rt *Runtime, m archive.Meeting, threshold int64) (*importer.ParsedMeetingRecord, error) {
	in, err := importer.LoadInput(m, threshold)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", m.FolderName, err)
	}
	defer in.Close()

	rec, err := rt.Parser.Parse(ctx, in.Input)
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", m.FolderName, err)
	}
	return rec, nil
}

func outputRecordText(w io.Writer, rec *importer.ParsedMeetingRecord) {
	fmt.Fprintf(w, "%s\n", rec.Title)
	fmt.Fprintf(w, "  Date:          %s %s\n", valueOrDefault(rec.Date, "(unknown)"), rec.Time)
	fmt.Fprintf(w, "  Duration:      %s\n", rec.Duration)
	fmt.Fprintf(w, "  Participants:  %s\n", valueOrDefault(strings.Join(rec.Participants, ", "), "(none)"))
	fmt.Fprintf(w, "  Words:         %d\n", rec.WordCount)
	if a := rec.Analytics; a != nil {
		fmt.Fprintf(w, "  Meeting type:  %s\n", a.MeetingType)
		fmt.Fprintf(w, "  Sentiment:     %s\n", a.Sentiment)
		fmt.Fprintf(w, "  Energy:        %s\n", a.EnergyLevel)
		fmt.Fprintf(w, "  Decisions:     %d\n", a.DecisionCount)
		fmt.Fprintf(w, "  Questions:     %d\n", a.QuestionCount)
		fmt.Fprintf(w, "  Most engaged:  %s\n", a.MostEngaged)
	}
	if len(rec.Tags) > 0 {
		fmt.Fprintf(w, "  Tags:          %s\n", strings.Join(rec.Tags, ", "))
	}
	if rec.Truncated {
		fmt.Fprintln(w, "  Transcript truncated at the memory ceiling")
	}

	if len(rec.ParticipantStats) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, render.StatsTable(rec.ParticipantStats))
	}
	if len(rec.ActionItems) > 0 {
		fmt.Fprintln(w, "\nAction items:")
		for _, item := range rec.ActionItems {
			fmt.Fprintf(w, "  - %s\n", item)
		}
	}
	if rec.Entities != "" {
		fmt.Fprintln(w, "\nEntities:")
		fmt.Fprintln(w, rec.Entities)
	}
}

// valueOrDefault returns value or defaultValue if empty.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
