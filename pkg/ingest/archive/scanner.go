package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	kerrors "github.com/otherjamesbrown/krisp-import/pkg/errors"
)

// Meeting is one export folder with the files found in it. Paths are empty
// when a file is missing.
type Meeting struct {
	// FolderName is the export folder name, the source of title and date.
	FolderName string
	Dir        string

	NotesPath      string
	TranscriptPath string
	AudioPath      string
}

// HasContent reports whether the meeting has notes or a transcript.
func (m Meeting) HasContent() bool {
	return m.NotesPath != "" || m.TranscriptPath != ""
}

// ScanMeetings finds meeting folders under root. root itself is a meeting
// when it directly holds notes or a transcript; otherwise every
// subdirectory is scanned, recursively, in name order.
func ScanMeetings(root string) ([]Meeting, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan %s: not a directory: %w", root, kerrors.ErrInvalidArchive)
	}

	meetings := make([]Meeting, 0)
	if err := scanDirectory(root, &meetings); err != nil {
		return nil, err
	}
	return meetings, nil
}

func scanDirectory(dir string, out *[]Meeting) error {
	m, subdirs, err := scanMeetingDirectory(dir)
	if err != nil {
		return err
	}
	if m.HasContent() {
		*out = append(*out, m)
		return nil
	}

	for _, sub := range subdirs {
		if err := scanDirectory(sub, out); err != nil {
			return err
		}
	}
	return nil
}

// scanMeetingDirectory reads one directory. The first file of each type in
// name order wins.
func scanMeetingDirectory(dir string) (Meeting, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Meeting{}, nil, fmt.Errorf("read %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	m := Meeting{FolderName: filepath.Base(dir), Dir: dir}
	var subdirs []string

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || name == "__MACOSX" {
			continue
		}
		path := filepath.Join(dir, name)
		if entry.IsDir() {
			subdirs = append(subdirs, path)
			continue
		}

		switch DetectFileType(name) {
		case FileNotes:
			if m.NotesPath == "" {
				m.NotesPath = path
			}
		case FileTranscript:
			if m.TranscriptPath == "" {
				m.TranscriptPath = path
			}
		case FileAudio:
			if m.AudioPath == "" {
				m.AudioPath = path
			}
		}
	}

	return m, subdirs, nil
}
