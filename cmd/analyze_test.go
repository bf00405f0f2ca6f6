package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/krisp-import/pkg/importer"
)

func runAnalyzeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := NewAnalyzeCommand(&AnalyzeCommandDeps{Config: testConfig(t), NewRuntime: NewRuntime})
	var stdout, stderr bytes.Buffer
	c.SetOut(&stdout)
	c.SetErr(&stderr)
	c.SetArgs(args)
	err := c.ExecuteContext(context.Background())
	return stdout.String(), err
}

func writeTranscriptFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(sampleTranscript), 0o644))
	return path
}

func TestAnalyze_TranscriptText(t *testing.T) {
	path := writeTranscriptFile(t, "Planning.txt")

	stdout, err := runAnalyzeCommand(t, path)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Planning\n")
	assert.Contains(t, stdout, "Participants:  Alice, Bob")
	assert.Contains(t, stdout, "Meeting type:")
	assert.Contains(t, stdout, "Alice")
}

func TestAnalyze_JSONOmitsTranscript(t *testing.T) {
	path := writeTranscriptFile(t, "Planning.txt")

	stdout, err := runAnalyzeCommand(t, path, "--output", "json")
	require.NoError(t, err)

	var records []importer.ParsedMeetingRecord
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "Planning", records[0].Title)
	assert.Equal(t, []string{"Alice", "Bob"}, records[0].Participants)
	assert.Empty(t, records[0].RawTranscript)
	require.NotNil(t, records[0].Analytics)
	assert.Len(t, records[0].ParticipantStats, 2)

	stdout, err = runAnalyzeCommand(t, path, "--output", "json", "--with-transcript")
	require.NoError(t, err)
	records = nil
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	assert.Contains(t, records[0].RawTranscript, "ship on Friday")
}

func TestAnalyze_NotesFlag(t *testing.T) {
	path := writeTranscriptFile(t, "Planning.txt")
	notes := filepath.Join(filepath.Dir(path), "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte(sampleNotes), 0o644))

	stdout, err := runAnalyzeCommand(t, path, "--notes", notes, "-o", "json")
	require.NoError(t, err)

	var records []importer.ParsedMeetingRecord
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	require.Len(t, records, 1)
	assert.Contains(t, records[0].ActionItems, "Send deck")
}

func TestAnalyze_RenderZip(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "export.zip")
	writeZip(t, zipPath, "Weekly Sync 2024-05-14")

	stdout, err := runAnalyzeCommand(t, zipPath, "--render")
	require.NoError(t, err)

	assert.Contains(t, stdout, "krisp_source: Weekly Sync 2024-05-14")
	assert.Contains(t, stdout, "## Transcript")
	assert.Contains(t, stdout, "- [ ] Send deck")
}

func TestAnalyze_MissingPath(t *testing.T) {
	_, err := runAnalyzeCommand(t, filepath.Join(t.TempDir(), "nope.zip"))
	assert.Error(t, err)
}

func TestAnalyze_EmptyFolder(t *testing.T) {
	_, err := runAnalyzeCommand(t, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no meeting notes or transcript")
}
