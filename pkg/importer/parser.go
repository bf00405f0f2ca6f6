package importer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/otherjamesbrown/krisp-import/pkg/enrichment/analytics"
	kerrors "github.com/otherjamesbrown/krisp-import/pkg/errors"
	"github.com/otherjamesbrown/krisp-import/pkg/enrichment/extraction"
	"github.com/otherjamesbrown/krisp-import/pkg/ingest/archive"
	"github.com/otherjamesbrown/krisp-import/pkg/ingest/meeting"
	"github.com/otherjamesbrown/krisp-import/pkg/logging"
	"github.com/otherjamesbrown/krisp-import/pkg/observability"
)

// DefaultStreamingThreshold is the transcript size above which a reader is
// segmented line by line instead of being read into memory.
const DefaultStreamingThreshold int64 = 100 << 20

// recordNamespace scopes deterministic record IDs.
var recordNamespace = uuid.MustParse("6f1c2a8e-5b7d-4e39-9a0c-3d2f8b1e4c57")

// Parser composes the meeting parsers, analytics and extraction into one
// record per meeting. A Parser is safe for concurrent use; its analytics
// cache is shared by every Parse call.
type Parser struct {
	logger     logging.Logger
	cache      analytics.Cache
	lexicon    analytics.Lexicon
	thresholds analytics.Thresholds
	extractor  *extraction.Extractor
	metrics    *observability.ImportMetrics
	tracer     *observability.Tracer
	now        func() time.Time

	streamingThreshold int64
	maxStreamBytes     int64
	onProgress         func(meeting.StreamProgress)
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithLogger sets the logger used for warnings.
func WithLogger(l logging.Logger) ParserOption {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithCache replaces the default in-process LRU analytics cache. A nil
// cache disables caching.
func WithCache(c analytics.Cache) ParserOption {
	return func(p *Parser) {
		p.cache = c
	}
}

// WithLexicon sets the keyword lexicon used by analytics.
func WithLexicon(lex analytics.Lexicon) ParserOption {
	return func(p *Parser) {
		p.lexicon = lex
	}
}

// WithThresholds sets the analytics classification thresholds.
func WithThresholds(th analytics.Thresholds) ParserOption {
	return func(p *Parser) {
		p.thresholds = th
	}
}

// WithExtractor sets the entity and tag extractor.
func WithExtractor(e *extraction.Extractor) ParserOption {
	return func(p *Parser) {
		if e != nil {
			p.extractor = e
		}
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *observability.ImportMetrics) ParserOption {
	return func(p *Parser) {
		p.metrics = m
	}
}

// WithTracer sets the tracer for parse spans.
func WithTracer(t *observability.Tracer) ParserOption {
	return func(p *Parser) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithClock sets the reference clock for dates without a year and for
// ImportedAt.
func WithClock(now func() time.Time) ParserOption {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// WithStreamingThreshold sets the reader size above which transcripts are
// streamed.
func WithStreamingThreshold(n int64) ParserOption {
	return func(p *Parser) {
		if n > 0 {
			p.streamingThreshold = n
		}
	}
}

// WithMaxStreamBytes sets the memory ceiling of a streamed transcript.
func WithMaxStreamBytes(n int64) ParserOption {
	return func(p *Parser) {
		if n > 0 {
			p.maxStreamBytes = n
		}
	}
}

// WithProgress sets a callback for streaming progress.
func WithProgress(fn func(meeting.StreamProgress)) ParserOption {
	return func(p *Parser) {
		p.onProgress = fn
	}
}

// NewParser creates a parser with the merged default lexicon, default
// thresholds and a bounded in-process analytics cache.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		logger:             logging.NewNopLogger(),
		lexicon:            analytics.DefaultLexicon(),
		thresholds:         analytics.DefaultThresholds(),
		extractor:          extraction.NewExtractor(),
		tracer:             observability.NewTracer(),
		now:                time.Now,
		streamingThreshold: DefaultStreamingThreshold,
		maxStreamBytes:     meeting.DefaultMaxStreamBytes,
	}
	if c, err := analytics.NewLRUCache(analytics.DefaultCacheSize); err == nil {
		p.cache = c
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse builds the record for one meeting. Content problems never fail a
// parse: missing pieces come back empty. An error is returned only when ctx
// is done or the transcript reader fails; in the latter case the record
// built from what was read is returned alongside the error.
func (p *Parser) Parse(ctx context.Context, in Input) (*ParsedMeetingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := p.tracer.StartStageSpan(ctx, kerrors.StageParse)
	defer span.End()
	helper := observability.NewSpanHelper(span)
	log := p.logger.WithContext(ctx).With(logging.F("folder", in.FolderName))

	started := time.Now()
	defer func() { p.metrics.RecordStage(kerrors.StageParse, time.Since(started).Seconds()) }()

	now := p.now()
	notes := p.validText("notes", in.Notes, log)

	rec := &ParsedMeetingRecord{
		Source:     in.FolderName,
		Title:      meeting.NormalizeTitle(in.FolderName),
		AudioFile:  in.AudioFile,
		ImportedAt: now,
	}
	rec.Date, rec.Time = resolveDateTime(notes, in.FolderName, now)

	rec.Summary = meeting.ExtractSection(notes, meeting.SectionSummary, false)
	rec.KeyPoints = meeting.ExtractSection(notes, meeting.SectionKeyPoints, true)
	rec.ActionItems = meeting.ExtractSection(notes, meeting.SectionActionItems, true)
	for i, item := range rec.ActionItems {
		rec.ActionItems[i] = meeting.NormalizeActionItemAt(item, now)
	}

	seg, stats, readErr := p.segment(ctx, in, log)
	if readErr != nil {
		log.Warn("transcript read failed, keeping partial result", logging.Err(readErr))
	}

	rec.Duration = seg.Duration
	rec.Participants = seg.Participants
	rec.RawTranscript = seg.RawTranscript
	rec.FormattedTranscript = seg.FormattedTranscript
	rec.WordCount = seg.Words
	rec.Truncated = seg.Truncated
	rec.Analytics = stats
	rec.ParticipantStats = stats.SortedStats()
	rec.MostEngaged = stats.MostEngaged

	if rec.Truncated {
		log.Warn("transcript truncated at memory ceiling",
			logging.F("bytes_processed", seg.BytesProcessed),
			logging.F("max_bytes", p.maxStreamBytes))
	}

	rec.EntityBlocks = p.extractor.ExtractEntities(notes, rec.RawTranscript)
	rec.Entities = extraction.RenderBlocks(rec.EntityBlocks)
	rec.Tags = p.extractor.GenerateTags(extraction.TagInput{
		Analytics:  stats,
		Notes:      notes,
		Transcript: rec.RawTranscript,
		Title:      rec.Title,
	})
	rec.RelatedLinks = relatedLinks(rec.Participants, rec.EntityBlocks)
	rec.ID = recordID(in.FolderName, notes, rec.RawTranscript)

	helper.SetMeeting(rec.Title, string(stats.MeetingType), len(rec.Participants), rec.WordCount)
	p.metrics.RecordParticipants(len(rec.Participants))

	if readErr != nil {
		helper.SetError(readErr, "TRANSCRIPT_READ", false)
		return rec, fmt.Errorf("read transcript for %q: %w", in.FolderName, readErr)
	}
	helper.SetSuccess()
	return rec, nil
}

// segment runs the single segmentation and analytics pass, from memory or
// from a stream.
func (p *Parser) segment(ctx context.Context, in Input, log logging.Logger) (*meeting.SegmentResult, *analytics.MeetingAnalytics, error) {
	if in.TranscriptReader != nil {
		if in.TranscriptSize < 0 || in.TranscriptSize > p.streamingThreshold {
			return p.segmentStream(ctx, in, log)
		}
		data, err := io.ReadAll(&contextReader{ctx: ctx, r: in.TranscriptReader})
		if err != nil {
			// Keep whatever arrived before the failure.
			seg, stats := p.segmentText(ctx, p.validText("transcript", string(data), log))
			return seg, stats, err
		}
		in.Transcript = string(data)
	}

	seg, stats := p.segmentText(ctx, p.validText("transcript", in.Transcript, log))
	return seg, stats, nil
}

func (p *Parser) segmentText(ctx context.Context, text string) (*meeting.SegmentResult, *analytics.MeetingAnalytics) {
	p.metrics.RecordTranscript(int64(len(text)), false, false)

	if p.cache == nil {
		stats, seg := analytics.Analyze(text, p.lexicon, p.thresholds)
		return seg, stats
	}

	key := analytics.Fingerprint(text)
	cached, ok, err := p.cache.Get(ctx, key)
	switch {
	case err != nil:
		p.metrics.RecordCacheLookup(observability.CacheError)
		p.logger.Warn("analytics cache lookup failed", logging.Err(err))
	case ok:
		p.metrics.RecordCacheLookup(observability.CacheHit)
		// Segmentation still runs once for the formatted transcript.
		return meeting.Segment(text), cached
	default:
		p.metrics.RecordCacheLookup(observability.CacheMiss)
	}

	stats, seg := analytics.Analyze(text, p.lexicon, p.thresholds)
	if err := p.cache.Put(ctx, key, stats); err != nil {
		p.logger.Warn("analytics cache store failed", logging.Err(err))
	}
	return seg, stats
}

// segmentStream is never cached: fingerprinting would need a second read.
func (p *Parser) segmentStream(ctx context.Context, in Input, log logging.Logger) (*meeting.SegmentResult, *analytics.MeetingAnalytics, error) {
	log.Info("streaming large transcript", logging.F("size_bytes", in.TranscriptSize))

	agg := analytics.NewAggregator(p.lexicon, p.thresholds)
	seg, err := meeting.SegmentStream(
		&contextReader{ctx: ctx, r: in.TranscriptReader},
		meeting.StreamOptions{MaxBytes: p.maxStreamBytes, OnProgress: p.onProgress},
		agg,
	)
	p.metrics.RecordTranscript(seg.BytesProcessed, true, seg.Truncated)
	return seg, agg.Result(), err
}

// validText returns s unchanged when it is valid UTF-8 and decodes it
// otherwise, logging a warning.
func (p *Parser) validText(field, s string, log logging.Logger) string {
	if utf8.ValidString(s) {
		return s
	}
	decoded, enc := archive.DecodeText([]byte(s))
	log.Warn("input is not valid UTF-8", logging.F("field", field), logging.F("decoded_as", string(enc)))
	return decoded
}

// resolveDateTime reads date and time from the first notes line, falling
// back to the folder name.
func resolveDateTime(notes, folder string, now time.Time) (string, string) {
	first := firstLine(notes)

	date, ok := meeting.ExtractDateAt(first, now)
	if !ok {
		date, _ = meeting.ExtractDateAt(folder, now)
	}

	clock := meeting.ExtractTime(first)
	if clock == meeting.UnknownTime {
		clock = meeting.ExtractTimeCompact(folder)
	}
	return date, clock
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// relatedLinks returns wiki links to participants, then to projects.
func relatedLinks(participants []string, blocks []extraction.EntityBlock) []string {
	links := make([]string, 0, len(participants))
	seen := make(map[string]bool)
	add := func(name string) {
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			return
		}
		seen[key] = true
		links = append(links, "[["+name+"]]")
	}

	for _, p := range participants {
		add(p)
	}
	for _, b := range blocks {
		if b.Kind == extraction.EntityProjects {
			for _, item := range b.Items {
				add(item)
			}
		}
	}
	return links
}

// recordID is stable for identical input so re-imports keep their ID.
func recordID(folder, notes, transcript string) string {
	key := folder + "\x00" + analytics.Fingerprint(notes) + "\x00" + analytics.Fingerprint(transcript)
	return uuid.NewSHA1(recordNamespace, []byte(key)).String()
}

// contextReader stops a read loop once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(b)
}
