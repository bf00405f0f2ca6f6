package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	kerrors "github.com/otherjamesbrown/krisp-import/pkg/errors"
	"github.com/otherjamesbrown/krisp-import/pkg/importer"
	"github.com/otherjamesbrown/krisp-import/pkg/ingest/archive"
	"github.com/otherjamesbrown/krisp-import/pkg/logging"
	"github.com/otherjamesbrown/krisp-import/pkg/observability"
	"github.com/otherjamesbrown/krisp-import/pkg/render"
	"github.com/otherjamesbrown/krisp-import/pkg/vault"
)

// DefaultConcurrency is the default number of sources imported at once.
const DefaultConcurrency = 4

// Meeting outcomes.
const (
	OutcomeImported = "imported"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// ProcessorConfig configures the batch processor.
type ProcessorConfig struct {
	// Concurrency is the number of sources imported in parallel.
	Concurrency int

	// DryRun parses and renders without touching the vault.
	DryRun bool

	// StreamingThreshold is the transcript size above which files are
	// streamed instead of read whole.
	StreamingThreshold int64

	// OnProgress, when set, receives a snapshot after every progress change.
	// It is called synchronously from the import workers.
	OnProgress func(ProgressSnapshot)
}

// Dependencies are the collaborators a Processor drives. Parser, Renderer
// and Vault are required.
type Dependencies struct {
	Parser   *importer.Parser
	Renderer *render.Renderer
	Vault    *vault.Vault

	Emitter *observability.EventEmitter
	Metrics *observability.ImportMetrics
	Tracer  *observability.Tracer
	Logger  logging.Logger
}

// MeetingResult is the outcome of one meeting.
type MeetingResult struct {
	Source    string
	Folder    string
	Title     string
	NotePath  string
	Action    vault.Action
	Outcome   string
	Truncated bool
	Err       *kerrors.ImportError
}

// SourceResult is the outcome of one archive or folder.
type SourceResult struct {
	Path     string
	Meetings []MeetingResult

	// Err is set when the source could not be opened at all.
	Err *kerrors.ImportError
}

// Failed reports whether anything in the source failed.
func (r *SourceResult) Failed() bool {
	if r.Err != nil {
		return true
	}
	for _, m := range r.Meetings {
		if m.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}

// FirstError returns the source error or the first meeting error.
func (r *SourceResult) FirstError() *kerrors.ImportError {
	if r.Err != nil {
		return r.Err
	}
	for _, m := range r.Meetings {
		if m.Err != nil {
			return m.Err
		}
	}
	return nil
}

// ProcessResult summarises a batch.
type ProcessResult struct {
	JobID         string
	TotalSources  int
	ImportedCount int
	SkippedCount  int
	FailedCount   int
	StartedAt     time.Time
	CompletedAt   time.Time
	Success       bool
	Sources       []SourceResult
	Errors        []FileError
}

// FileError records a failure for a source or one of its meetings.
type FileError struct {
	FilePath  string
	Folder    string
	Code      kerrors.ErrorCode
	Stage     string
	Error     string
	Retryable bool
}

// Processor imports Krisp exports into a vault.
type Processor struct {
	cfg      ProcessorConfig
	parser   *importer.Parser
	renderer *render.Renderer
	vault    *vault.Vault
	emitter  *observability.EventEmitter
	metrics  *observability.ImportMetrics
	tracer   *observability.Tracer
	logger   logging.Logger

	progress *Progress
	mu       sync.Mutex
}

// NewProcessor creates a batch processor.
func NewProcessor(deps Dependencies, cfg ProcessorConfig) (*Processor, error) {
	if deps.Parser == nil || deps.Renderer == nil || deps.Vault == nil {
		return nil, fmt.Errorf("parser, renderer and vault are required: %w", kerrors.ErrValidation)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.StreamingThreshold <= 0 {
		cfg.StreamingThreshold = importer.DefaultStreamingThreshold
	}
	if deps.Emitter == nil {
		deps.Emitter = observability.NewEventEmitter(nil)
	}
	if deps.Tracer == nil {
		deps.Tracer = observability.NewTracer()
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}

	return &Processor{
		cfg:      cfg,
		parser:   deps.Parser,
		renderer: deps.Renderer,
		vault:    deps.Vault,
		emitter:  deps.Emitter,
		metrics:  deps.Metrics,
		tracer:   deps.Tracer,
		logger:   deps.Logger.With(logging.F("component", "batch_processor")),
		progress: NewProgress(0),
	}, nil
}

// Process imports every source found at path: a zip, a meeting folder, or
// a directory of zips and meeting folders.
func (p *Processor) Process(ctx context.Context, path string) (*ProcessResult, error) {
	sources, err := DiscoverSources(path)
	if err != nil {
		return nil, fmt.Errorf("failed to discover sources: %w", err)
	}

	result := &ProcessResult{
		JobID:        uuid.New().String(),
		TotalSources: len(sources),
		StartedAt:    time.Now(),
		Sources:      make([]SourceResult, 0, len(sources)),
		Errors:       []FileError{},
	}

	p.mu.Lock()
	p.progress = NewProgress(len(sources))
	progress := p.progress
	p.mu.Unlock()
	if p.cfg.OnProgress != nil {
		progress.SetOnUpdate(p.cfg.OnProgress)
	}

	progress.Start()
	log := p.logger.With(logging.F("job_id", result.JobID))
	log.Info("Import started", logging.F("path", path), logging.F("sources", len(sources)))

	if p.cfg.Concurrency == 1 || len(sources) <= 1 {
		p.processSequential(ctx, sources, result)
	} else {
		p.processParallel(ctx, sources, result)
	}

	result.CompletedAt = time.Now()
	result.Success = result.FailedCount == 0

	if ctx.Err() != nil {
		progress.Cancel()
		return result, ctx.Err()
	}
	progress.Complete(result.Success)

	log.Info("Import finished",
		logging.F("imported", result.ImportedCount),
		logging.F("skipped", result.SkippedCount),
		logging.F("failed", result.FailedCount),
		logging.F("duration_ms", result.CompletedAt.Sub(result.StartedAt).Milliseconds()))
	return result, nil
}

// Progress returns the tracker of the current or last batch.
func (p *Processor) Progress() *Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// DiscoverSources lists what Process would import from path. A directory
// counts as a source when it holds meeting files itself; zips anywhere
// below it are sources of their own.
func DiscoverSources(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		if archive.IsZip(path) {
			return []string{abs}, nil
		}
		return nil, fmt.Errorf("%s is not a zip archive or folder: %w", path, kerrors.ErrInvalidArchive)
	}

	var sources []string
	meetings, err := archive.ScanMeetings(abs)
	if err != nil {
		return nil, err
	}
	if len(meetings) > 0 {
		sources = append(sources, abs)
	}

	var zips []string
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && p != abs && (d.Name() == "__MACOSX" || d.Name()[0] == '.') {
			return filepath.SkipDir
		}
		if !d.IsDir() && archive.IsZip(d.Name()) && d.Name()[0] != '.' {
			zips = append(zips, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(zips)
	return append(sources, zips...), nil
}

func (p *Processor) processSequential(ctx context.Context, sources []string, result *ProcessResult) {
	for _, src := range sources {
		if ctx.Err() != nil {
			return
		}
		sr := p.ImportSource(ctx, src)
		p.recordSource(sr, result)
	}
}

// processParallel imports sources on a worker pool. Results are recorded
// in discovery order.
func (p *Processor) processParallel(ctx context.Context, sources []string, result *ProcessResult) {
	type indexed struct {
		i  int
		sr *SourceResult
	}
	jobs := make(chan int, len(sources))
	done := make(chan indexed, len(sources))

	var wg sync.WaitGroup
	for w := 0; w < p.cfg.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					continue
				}
				done <- indexed{i: i, sr: p.ImportSource(ctx, sources[i])}
			}
		}()
	}
	for i := range sources {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(done)
	}()

	ordered := make([]*SourceResult, len(sources))
	for d := range done {
		ordered[d.i] = d.sr
	}
	for _, sr := range ordered {
		if sr != nil {
			p.recordSource(sr, result)
		}
	}
}

func (p *Processor) recordSource(sr *SourceResult, result *ProcessResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	result.Sources = append(result.Sources, *sr)
	if sr.Err != nil {
		result.FailedCount++
		result.Errors = append(result.Errors, fileError(sr.Path, "", sr.Err))
	}
	for _, m := range sr.Meetings {
		switch m.Outcome {
		case OutcomeImported:
			result.ImportedCount++
		case OutcomeSkipped:
			result.SkippedCount++
		case OutcomeFailed:
			result.FailedCount++
			result.Errors = append(result.Errors, fileError(sr.Path, m.Folder, m.Err))
		}
	}
}

func fileError(path, folder string, ie *kerrors.ImportError) FileError {
	return FileError{
		FilePath:  path,
		Folder:    folder,
		Code:      ie.Code,
		Stage:     ie.Stage,
		Error:     ie.Message,
		Retryable: kerrors.IsErrorRetryable(ie),
	}
}

// ImportSource imports every meeting of one archive or folder. Failures
// are reported in the result, classified, rather than returned.
func (p *Processor) ImportSource(ctx context.Context, path string) *SourceResult {
	progress := p.Progress()
	progress.SetCurrentSource(path)
	defer progress.SourceDone()

	ctx, span := p.tracer.StartSourceSpan(ctx, path)
	defer span.End()
	helper := observability.NewSpanHelper(span)
	log := p.logger.WithContext(ctx).With(logging.F("source", path))

	sr := &SourceResult{Path: path, Meetings: []MeetingResult{}}

	started := time.Now()
	src, err := archive.Open(ctx, path)
	p.metrics.RecordStage(kerrors.StageExtract, time.Since(started).Seconds())
	if err == nil && len(src.Meetings) == 0 {
		src.Close()
		err = fmt.Errorf("no meeting notes or transcript in %s: %w", filepath.Base(path), kerrors.ErrEmptyContent)
	}
	if err != nil {
		sr.Err = p.fail(ctx, log, helper, err, kerrors.StageExtract, path, "")
		p.metrics.RecordArchive(observability.StatusFailed)
		return sr
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warn("Failed to remove extracted files", logging.Err(err))
		}
	}()

	for _, m := range src.Meetings {
		if ctx.Err() != nil {
			break
		}
		mr := p.importMeeting(ctx, path, m)
		sr.Meetings = append(sr.Meetings, mr)
		switch mr.Outcome {
		case OutcomeImported:
			progress.RecordImported()
		case OutcomeSkipped:
			progress.RecordSkipped()
		default:
			progress.RecordFailed()
		}
	}

	if sr.Failed() {
		p.metrics.RecordArchive(observability.StatusFailed)
		helper.SetError(sr.FirstError(), string(sr.FirstError().Code), kerrors.IsErrorRetryable(sr.FirstError()))
	} else {
		p.metrics.RecordArchive(observability.StatusImported)
		helper.SetSuccess()
	}
	return sr
}

func (p *Processor) importMeeting(ctx context.Context, source string, m archive.Meeting) MeetingResult {
	ctx, span := p.tracer.StartMeetingSpan(ctx, m.FolderName)
	defer span.End()
	helper := observability.NewSpanHelper(span)
	log := p.logger.WithContext(ctx).With(logging.F("source", source), logging.F("folder", m.FolderName))

	mr := MeetingResult{Source: source, Folder: m.FolderName}
	failed := func(err error, stage string) MeetingResult {
		mr.Outcome = OutcomeFailed
		mr.Err = p.fail(ctx, log, helper, err, stage, source, m.FolderName)
		p.metrics.RecordMeeting(observability.StatusFailed)
		return mr
	}

	in, err := importer.LoadInput(m, p.cfg.StreamingThreshold)
	if err != nil {
		return failed(err, kerrors.StageExtract)
	}
	defer in.Close()

	rec, err := p.parser.Parse(ctx, in.Input)
	if err != nil {
		return failed(err, kerrors.StageParse)
	}
	mr.Title = rec.Title
	mr.Truncated = rec.Truncated
	helper.SetTranscript(int64(len(rec.RawTranscript)), string(in.TranscriptEncoding), in.TranscriptReader != nil, rec.Truncated)

	started := time.Now()
	placement, err := p.vault.Resolve(ctx, rec.Source, vault.NoteFileName(rec.Date, rec.Title))
	if err != nil {
		return failed(err, kerrors.StageWrite)
	}
	mr.Action = placement.Action
	mr.NotePath = placement.NotePath

	if placement.Action == vault.ActionSkip {
		mr.Outcome = OutcomeSkipped
		log.Info("Meeting already imported, skipping", logging.F("note", placement.Existing))
		p.metrics.RecordMeeting(observability.StatusSkipped)
		if err := p.emitter.EmitSkipped(ctx, observability.NewMeetingSkippedEvent(source, m.FolderName, placement.Existing, "duplicate")); err != nil {
			log.Warn("Failed to publish skipped event", logging.Err(err))
		}
		helper.SetSuccess()
		return mr
	}

	if m.AudioPath != "" && !p.cfg.DryRun {
		name, err := p.vault.CopyAttachment(ctx, m.AudioPath)
		if err != nil {
			p.vault.Release(placement)
			return failed(err, kerrors.StageWrite)
		}
		rec.AudioFile = name
	}

	renderStarted := time.Now()
	content, err := p.renderer.Render(rec)
	p.metrics.RecordStage(kerrors.StageRender, time.Since(renderStarted).Seconds())
	if err != nil {
		p.vault.Release(placement)
		return failed(err, kerrors.StageRender)
	}

	if p.cfg.DryRun {
		log.Info("Dry run: would write note", logging.F("note", placement.NotePath), logging.F("action", string(placement.Action)))
	} else if err := p.vault.WriteNote(ctx, placement, content); err != nil {
		return failed(err, kerrors.StageWrite)
	}
	p.metrics.RecordStage(kerrors.StageWrite, time.Since(started).Seconds())

	mr.Outcome = OutcomeImported
	p.metrics.RecordMeeting(observability.StatusImported)
	helper.SetNotePath(placement.NotePath)
	helper.SetSuccess()

	if !p.cfg.DryRun {
		if err := p.emitter.EmitImported(ctx, observability.NewMeetingImportedEvent(source, m.FolderName, rec.Title, placement.NotePath)); err != nil {
			log.Warn("Failed to publish imported event", logging.Err(err))
		}
	}
	log.Info("Meeting imported",
		logging.F("title", rec.Title),
		logging.F("note", placement.NotePath),
		logging.F("action", string(placement.Action)),
		logging.F("participants", len(rec.Participants)),
		logging.F("words", rec.WordCount))
	return mr
}

// fail classifies err and reports it through logs, metrics, the span and
// the event stream.
func (p *Processor) fail(ctx context.Context, log logging.Logger, helper *observability.SpanHelper, err error, stage, source, folder string) *kerrors.ImportError {
	ie := kerrors.ClassifyError(err, stage, source)
	retryable := kerrors.IsErrorRetryable(ie)

	log.Error("Import failed",
		logging.Err(err),
		logging.F("stage", stage),
		logging.F("code", string(ie.Code)),
		logging.F("retryable", retryable))
	p.metrics.RecordError(string(ie.Code), stage)
	helper.SetError(err, string(ie.Code), retryable)

	// The event outlives a cancelled import.
	emitCtx := ctx
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		emitCtx = context.WithoutCancel(ctx)
	}
	event := observability.NewImportErrorEvent(source, folder, stage, string(ie.Code), ie.Message, retryable)
	if err := p.emitter.EmitError(emitCtx, event); err != nil {
		log.Warn("Failed to publish error event", logging.Err(err))
	}
	return ie
}
