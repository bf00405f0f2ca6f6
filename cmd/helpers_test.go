package cmd

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/krisp-import/config"
)

const (
	sampleNotes = "Summary\nWe planned the beta.\n\nAction Items\n- Send deck\n"

	sampleTranscript = "Alice | 00:00:05\nLet's plan the beta.\n\nBob | 00:01:10\nSounds good, we decided to ship on Friday.\n"
)

// testConfig returns defaults pointing at a fresh vault.
func testConfig(t *testing.T) *config.CLIConfig {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Vault.Path = t.TempDir()
	return cfg
}

func writeMeetingDir(t *testing.T, parent, folder string) string {
	t.Helper()
	dir := filepath.Join(parent, folder)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meeting_notes.txt"), []byte(sampleNotes), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "transcript.txt"), []byte(sampleTranscript), 0o644))
	return dir
}

func writeZip(t *testing.T, path, folder string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
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
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}
