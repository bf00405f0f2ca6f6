package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/krisp-import/config"
	"github.com/otherjamesbrown/krisp-import/pkg/ingest/batch"
)

func TestResolveOutputFormat(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputFormat = config.OutputFormatYAML

	got, err := resolveOutputFormat("", cfg)
	require.NoError(t, err)
	assert.Equal(t, config.OutputFormatYAML, got)

	got, err = resolveOutputFormat("json", cfg)
	require.NoError(t, err)
	assert.Equal(t, config.OutputFormatJSON, got)

	got, err = resolveOutputFormat("", nil)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultOutputFormat, got)

	_, err = resolveOutputFormat("csv", cfg)
	assert.Error(t, err)
}

func TestFormatDurationMs(t *testing.T) {
	assert.Equal(t, "250ms", formatDurationMs(250))
	assert.Equal(t, "1.5s", formatDurationMs(1500))
	assert.Equal(t, "2.0m", formatDurationMs(120000))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "Weekly ...", truncateString("Weekly Sync Meeting", 10))
	assert.Equal(t, "Пла...", truncateString("Планирование", 6))
	assert.Equal(t, "ab", truncateString("abcdef", 2))
}

func TestProgressPrinter_ThrottlesButDrawsFinal(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf)

	p.Print(batch.ProgressSnapshot{TotalSources: 4, ProcessedSources: 1, Status: batch.StatusRunning})
	p.Print(batch.ProgressSnapshot{TotalSources: 4, ProcessedSources: 2, Status: batch.StatusRunning})
	p.Print(batch.ProgressSnapshot{TotalSources: 4, ProcessedSources: 4, ImportedMeetings: 4, Status: batch.StatusCompleted})

	out := buf.String()
	assert.Contains(t, out, "[1/4")
	assert.NotContains(t, out, "[2/4")
	assert.Contains(t, out, "[4/4 100%] imported 4")
}
