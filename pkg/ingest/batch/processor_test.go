package batch

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/otherjamesbrown/krisp-import/pkg/errors"
	"github.com/otherjamesbrown/krisp-import/pkg/importer"
	"github.com/otherjamesbrown/krisp-import/pkg/observability"
	"github.com/otherjamesbrown/krisp-import/pkg/render"
	"github.com/otherjamesbrown/krisp-import/pkg/vault"
)

const (
	sampleNotes = "Summary\nWe planned the beta.\n\nAction Items\n- Send deck\n"

	sampleTranscript = "Alice | 00:00:05\nHello everyone.\nBob | 00:01:00\nWhat is the plan?\n"
)

type capturePublisher struct {
	mu       sync.Mutex
	channels []string
}

func (c *capturePublisher) Publish(_ context.Context, channel string, _ interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels = append(c.channels, channel)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func (c *capturePublisher) count(channel string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ch := range c.channels {
		if ch == channel {
			n++
		}
	}
	return n
}

type harness struct {
	proc      *Processor
	vault     *vault.Vault
	metrics   *observability.ImportMetrics
	publisher *capturePublisher
}

func newHarness(t *testing.T, strategy vault.DuplicateStrategy, cfg ProcessorConfig) *harness {
	t.Helper()
	v, err := vault.New(vault.Config{Root: t.TempDir(), Duplicates: strategy}, nil)
	require.NoError(t, err)

	h := &harness{
		vault:     v,
		metrics:   observability.NewImportMetrics(prometheus.NewRegistry()),
		publisher: &capturePublisher{},
	}
	h.proc, err = NewProcessor(Dependencies{
		Parser:   importer.NewParser(),
		Renderer: render.NewRenderer(""),
		Vault:    v,
		Emitter:  observability.NewEventEmitter(h.publisher),
		Metrics:  h.metrics,
	}, cfg)
	require.NoError(t, err)
	return h
}

func writeMeetingDir(t *testing.T, parent, folder string, withAudio bool) string {
	t.Helper()
	dir := filepath.Join(parent, folder)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meeting_notes.txt"), []byte(sampleNotes), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "transcript.txt"), []byte(sampleTranscript), 0o644))
	if withAudio {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "recording.m4a"), []byte("audio"), 0o644))
	}
	return dir
}

func writeZip(t *testing.T, path, folder string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range map[string]string{
		folder + "/meeting_notes.txt": sampleNotes,
		folder + "/transcript.txt":    sampleTranscript,
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestNewProcessor_RequiresCollaborators(t *testing.T) {
	_, err := NewProcessor(Dependencies{}, ProcessorConfig{})
	assert.True(t, kerrors.IsValidation(err))
}

func TestDiscoverSources(t *testing.T) {
	root := t.TempDir()
	writeMeetingDir(t, root, "Sync 2024-05-14", false)
	writeZip(t, filepath.Join(root, "b.zip"), "Planning")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nested"), 0o755))
	writeZip(t, filepath.Join(root, "nested", "a.zip"), "Retro")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "__MACOSX"), 0o755))
	writeZip(t, filepath.Join(root, "__MACOSX", "c.zip"), "Ghost")

	sources, err := DiscoverSources(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		root,
		filepath.Join(root, "b.zip"),
		filepath.Join(root, "nested", "a.zip"),
	}, sources)

	only, err := DiscoverSources(filepath.Join(root, "b.zip"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "b.zip")}, only)

	txt := filepath.Join(root, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))
	_, err = DiscoverSources(txt)
	assert.True(t, kerrors.IsInvalidArchive(err))
}

func TestProcess_FolderAndZip(t *testing.T) {
	h := newHarness(t, vault.DuplicateSkip, ProcessorConfig{Concurrency: 2})
	root := t.TempDir()
	writeMeetingDir(t, root, "Weekly Sync 2024-05-14", true)
	writeZip(t, filepath.Join(root, "planning.zip"), "Planning 2024-05-15")

	result, err := h.proc.Process(context.Background(), root)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.NotEmpty(t, result.JobID)
	assert.Equal(t, 2, result.TotalSources)
	assert.Equal(t, 2, result.ImportedCount)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Sources, 2)
	assert.Equal(t, root, result.Sources[0].Path)

	sync1 := filepath.Join(h.vault.NotesDir(), "2024-05-14 Weekly Sync 2024-05-14.md")
	data, err := os.ReadFile(sync1)
	require.NoError(t, err)
	assert.Contains(t, string(data), "krisp_source: Weekly Sync 2024-05-14")
	assert.Contains(t, string(data), "![[recording.m4a]]")
	assert.Contains(t, string(data), "- [ ] Send deck")
	assert.FileExists(t, filepath.Join(h.vault.AttachmentsDir(), "recording.m4a"))
	assert.FileExists(t, filepath.Join(h.vault.NotesDir(), "2024-05-15 Planning 2024-05-15.md"))

	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.MeetingsTotal.WithLabelValues(observability.StatusImported)))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.ArchivesTotal.WithLabelValues(observability.StatusImported)))
	assert.Equal(t, 2, h.publisher.count(observability.ChannelMeetingImported))

	snap := h.proc.Progress().Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 2, snap.ProcessedSources)
	assert.Equal(t, 2, snap.ImportedMeetings)
}

func TestProcess_ReimportSkipsDuplicates(t *testing.T) {
	h := newHarness(t, vault.DuplicateSkip, ProcessorConfig{Concurrency: 1})
	root := t.TempDir()
	writeMeetingDir(t, root, "Weekly Sync", false)

	_, err := h.proc.Process(context.Background(), root)
	require.NoError(t, err)

	result, err := h.proc.Process(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ImportedCount)
	assert.Equal(t, 1, result.SkippedCount)
	assert.True(t, result.Success)
	assert.Equal(t, vault.ActionSkip, result.Sources[0].Meetings[0].Action)
	assert.Equal(t, 1, h.publisher.count(observability.ChannelMeetingSkipped))

	entries, err := os.ReadDir(h.vault.NotesDir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestProcess_ReimportWithSuffix(t *testing.T) {
	h := newHarness(t, vault.DuplicateSuffix, ProcessorConfig{Concurrency: 1})
	root := t.TempDir()
	writeMeetingDir(t, root, "Weekly Sync", false)

	_, err := h.proc.Process(context.Background(), root)
	require.NoError(t, err)
	result, err := h.proc.Process(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ImportedCount)
	assert.Equal(t, vault.ActionSuffix, result.Sources[0].Meetings[0].Action)
	assert.FileExists(t, filepath.Join(h.vault.NotesDir(), "Weekly Sync (2).md"))
}

func TestProcess_DryRunWritesNothing(t *testing.T) {
	h := newHarness(t, vault.DuplicateSkip, ProcessorConfig{DryRun: true})
	root := t.TempDir()
	writeMeetingDir(t, root, "Weekly Sync", true)

	result, err := h.proc.Process(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ImportedCount)
	assert.NoDirExists(t, h.vault.NotesDir())
	assert.NoDirExists(t, h.vault.AttachmentsDir())
	assert.Equal(t, 0, h.publisher.count(observability.ChannelMeetingImported))
}

func TestImportSource_Failures(t *testing.T) {
	h := newHarness(t, vault.DuplicateSkip, ProcessorConfig{})
	root := t.TempDir()

	corrupt := filepath.Join(root, "corrupt.zip")
	require.NoError(t, os.WriteFile(corrupt, []byte("PK not really"), 0o644))
	sr := h.proc.ImportSource(context.Background(), corrupt)
	require.NotNil(t, sr.Err)
	assert.Equal(t, kerrors.CodeInvalidArchive, sr.Err.Code)
	assert.Equal(t, kerrors.StageExtract, sr.Err.Stage)
	assert.True(t, sr.Failed())

	empty := filepath.Join(root, "empty")
	require.NoError(t, os.MkdirAll(empty, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(empty, "recording.mp3"), []byte("audio"), 0o644))
	sr = h.proc.ImportSource(context.Background(), empty)
	require.NotNil(t, sr.Err)
	assert.Equal(t, kerrors.CodeEmptyContent, sr.Err.Code)
	assert.False(t, kerrors.IsErrorRetryable(sr.Err))

	assert.Equal(t, 2, h.publisher.count(observability.ChannelImportError))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.ArchivesTotal.WithLabelValues(observability.StatusFailed)))
}

func TestProcess_RecordsFailures(t *testing.T) {
	h := newHarness(t, vault.DuplicateSkip, ProcessorConfig{Concurrency: 1})
	root := t.TempDir()
	writeMeetingDir(t, root, "Weekly Sync", false)
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.zip"), []byte("nope"), 0o644))

	result, err := h.proc.Process(context.Background(), root)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.ImportedCount)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Errors, 1)
	assert.True(t, strings.HasSuffix(result.Errors[0].FilePath, "broken.zip"))
	assert.Equal(t, kerrors.CodeInvalidArchive, result.Errors[0].Code)
	assert.Equal(t, StatusFailed, h.proc.Progress().Snapshot().Status)
}

func TestProcess_Cancelled(t *testing.T) {
	h := newHarness(t, vault.DuplicateSkip, ProcessorConfig{Concurrency: 1})
	root := t.TempDir()
	writeMeetingDir(t, root, "Weekly Sync", false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := h.proc.Process(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, 0, result.ImportedCount)
	assert.Equal(t, StatusCancelled, h.proc.Progress().Snapshot().Status)
}

func TestProcess_ParallelSameNoteName(t *testing.T) {
	h := newHarness(t, vault.DuplicateSkip, ProcessorConfig{Concurrency: 4})
	root := t.TempDir()
	writeZip(t, filepath.Join(root, "morning.zip"), "Standup - May 14, 2024 0900 AM")
	writeZip(t, filepath.Join(root, "afternoon.zip"), "Standup - May 14, 2024 0400 PM")

	result, err := h.proc.Process(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ImportedCount)

	notes, err := filepath.Glob(filepath.Join(h.vault.NotesDir(), "*.md"))
	require.NoError(t, err)
	assert.Len(t, notes, 2)

	for _, source := range []string{"Standup - May 14, 2024 0900 AM", "Standup - May 14, 2024 0400 PM"} {
		_, ok, err := h.vault.FindBySource(context.Background(), source)
		require.NoError(t, err)
		assert.True(t, ok, source)
	}
}
