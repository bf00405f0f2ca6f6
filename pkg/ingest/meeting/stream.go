package meeting

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// Streaming defaults.
const (
	DefaultMaxStreamBytes = 50 << 20
	DefaultProgressEvery  = 1000

	// maxLineBytes caps a single transcript line.
	maxLineBytes = 1 << 20
)

// StreamProgress is reported every StreamOptions.ProgressEvery lines.
type StreamProgress struct {
	Lines              int
	MegabytesProcessed float64
}

// StreamOptions configures SegmentStream.
type StreamOptions struct {
	// MaxBytes is the memory ceiling; processing stops before exceeding it.
	MaxBytes int64

	// ProgressEvery is the line cadence of OnProgress calls.
	ProgressEvery int

	// OnProgress is optional.
	OnProgress func(StreamProgress)
}

func (o StreamOptions) withDefaults() StreamOptions {
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxStreamBytes
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = DefaultProgressEvery
	}
	return o
}

// SegmentStream segments a transcript read line by line from r. Its output
// matches Segment for the same input. When the next line would push the
// processed byte count past MaxBytes, reading stops and the partial result
// is returned with Truncated set. A read error returns the partial result
// together with the error. r is never closed by SegmentStream.
func SegmentStream(r io.Reader, opts StreamOptions, observers ...TurnObserver) (*SegmentResult, error) {
	opts = opts.withDefaults()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	s := NewSegmenter(observers...)
	truncated := false

	for scanner.Scan() {
		line := scanner.Text()
		if s.bytes+int64(len(line))+1 > opts.MaxBytes {
			truncated = true
			break
		}

		s.Feed(line)

		if opts.OnProgress != nil && s.lines%opts.ProgressEvery == 0 {
			opts.OnProgress(StreamProgress{
				Lines:              s.lines,
				MegabytesProcessed: float64(s.bytes) / (1 << 20),
			})
		}
	}

	err := scanner.Err()
	if errors.Is(err, bufio.ErrTooLong) {
		// An oversized line is treated like the ceiling: keep what we have.
		truncated = true
		err = nil
	}

	result := s.Finish()
	result.Truncated = truncated
	if err != nil {
		return result, fmt.Errorf("reading transcript: %w", err)
	}
	return result, nil
}
