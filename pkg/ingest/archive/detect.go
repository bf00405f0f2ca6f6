// Package archive locates the files of Krisp meeting exports, both zipped
// and already extracted, and decodes their text.
package archive

import (
	"path/filepath"
	"strings"
)

// FileType classifies a file found in a Krisp export.
type FileType string

const (
	FileNotes      FileType = "notes"
	FileTranscript FileType = "transcript"
	FileAudio      FileType = "audio"
	FileUnknown    FileType = "unknown"
)

// Names Krisp uses inside an export folder.
const (
	NotesFileName      = "meeting_notes.txt"
	TranscriptFileName = "transcript.txt"
)

var audioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".wav":  true,
	".ogg":  true,
	".webm": true,
}

// DetectFileType determines the type of a file from its name.
func DetectFileType(filename string) FileType {
	base := filepath.Base(filename)
	lower := strings.ToLower(base)
	ext := strings.ToLower(filepath.Ext(base))

	if audioExtensions[ext] {
		return FileAudio
	}
	if ext != ".txt" || strings.HasPrefix(lower, ".") {
		return FileUnknown
	}

	switch lower {
	case NotesFileName, "notes.txt", "meeting notes.txt":
		return FileNotes
	case TranscriptFileName, "transcription.txt":
		return FileTranscript
	}

	// Renamed exports: "Weekly Sync transcript.txt", "notes_weekly.txt"
	if strings.Contains(lower, "transcript") {
		return FileTranscript
	}
	if strings.Contains(lower, "notes") || strings.Contains(lower, "summary") {
		return FileNotes
	}
	return FileUnknown
}

// IsZip reports whether path names a zip archive.
func IsZip(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}
