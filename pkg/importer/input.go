package importer

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/otherjamesbrown/krisp-import/pkg/ingest/archive"
)

// LoadedInput is an Input backed by open files.
type LoadedInput struct {
	Input

	NotesEncoding      archive.Encoding
	TranscriptEncoding archive.Encoding

	transcript io.Closer
}

// Close releases the transcript file, if one is still open.
func (l *LoadedInput) Close() error {
	if l.transcript == nil {
		return nil
	}
	err := l.transcript.Close()
	l.transcript = nil
	return err
}

// LoadInput reads a scanned meeting folder. Notes are read whole. A
// transcript up to streamingThreshold bytes is read whole; a larger one is
// left open for streaming and must be released with Close.
func LoadInput(m archive.Meeting, streamingThreshold int64) (*LoadedInput, error) {
	if streamingThreshold <= 0 {
		streamingThreshold = DefaultStreamingThreshold
	}

	in := &LoadedInput{Input: Input{FolderName: m.FolderName, TranscriptSize: 0}}
	if m.AudioPath != "" {
		in.AudioFile = filepath.Base(m.AudioPath)
	}

	if m.NotesPath != "" {
		notes, enc, err := archive.ReadText(m.NotesPath)
		if err != nil {
			return nil, err
		}
		in.Notes = notes
		in.NotesEncoding = enc
	}

	if m.TranscriptPath == "" {
		return in, nil
	}

	tf, err := archive.OpenText(m.TranscriptPath)
	if err != nil {
		return nil, err
	}
	in.TranscriptEncoding = tf.Encoding

	if tf.Size > streamingThreshold {
		in.TranscriptReader = tf
		in.TranscriptSize = tf.Size
		in.transcript = tf
		return in, nil
	}

	data, err := io.ReadAll(tf)
	tf.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", m.TranscriptPath, err)
	}
	in.Transcript = string(data)
	return in, nil
}
