// Package meeting provides parsing for Krisp meeting exports: date and time
// normalization, notes section extraction, and transcript segmentation.
package meeting

// Sentinels returned when a value could not be determined.
const (
	// UnknownTime is returned by ExtractTime when no time is present.
	// It means "unknown", not midnight.
	UnknownTime = "00:00"

	// NoDuration is the duration of a transcript without any speaker line.
	NoDuration = "N/A"
)

// SpeakerTurn is one contiguous block of dialogue attributed to a speaker.
type SpeakerTurn struct {
	Speaker   string   `json:"speaker" yaml:"speaker"`
	Timestamp string   `json:"timestamp" yaml:"timestamp"` // HH:MM:SS
	Lines     []string `json:"lines" yaml:"lines"`
}

// SegmentResult is the output of a segmentation pass over a transcript.
type SegmentResult struct {
	Turns               []SpeakerTurn `json:"turns"`
	Participants        []string      `json:"participants"`
	Duration            string        `json:"duration"`
	FormattedTranscript string        `json:"formatted_transcript"`

	// RawTranscript holds the lines actually consumed, newline-joined.
	RawTranscript string `json:"raw_transcript"`

	// Truncated is set when a streaming pass stopped at its memory ceiling.
	Truncated      bool  `json:"truncated"`
	Lines          int   `json:"lines"`
	BytesProcessed int64 `json:"bytes_processed"`

	// Words counts word tokens on every non-speaker line, as
	// CountTranscriptWords does.
	Words int `json:"words"`
}

// TurnObserver receives segmentation events in the same pass that builds
// the turns. Speaker is empty for lines seen before the first speaker.
type TurnObserver interface {
	OnTurn(speaker, timestamp string)
	OnLine(speaker, line string)
}
