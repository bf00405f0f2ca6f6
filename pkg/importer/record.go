// Package importer turns one Krisp meeting folder into a ParsedMeetingRecord
// and drives whole imports from archive to vault.
package importer

import (
	"io"
	"time"

	"github.com/otherjamesbrown/krisp-import/pkg/enrichment/analytics"
	"github.com/otherjamesbrown/krisp-import/pkg/enrichment/extraction"
)

// Input is the raw material of one meeting.
type Input struct {
	// FolderName is the export folder name, the fallback source of title,
	// date and time.
	FolderName string

	Notes      string
	Transcript string

	// TranscriptReader, when set, is used instead of Transcript. Readers
	// larger than the streaming threshold, or of unknown size, are
	// segmented line by line. The parser never closes it.
	TranscriptReader io.Reader

	// TranscriptSize is the reader's size in bytes, or -1 when unknown.
	TranscriptSize int64

	// AudioFile is the audio file name as it will appear in the vault.
	AudioFile string
}

// ParsedMeetingRecord is everything the renderer needs. Every field is
// always populated: strings may be empty, slices are never nil, and time
// keeps the "00:00" unknown sentinel.
type ParsedMeetingRecord struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source"`

	Title    string `json:"title" yaml:"title"`
	Date     string `json:"date" yaml:"date"`
	Time     string `json:"time" yaml:"time"`
	Duration string `json:"duration" yaml:"duration"`

	Participants     []string                     `json:"participants" yaml:"participants"`
	ParticipantStats []analytics.ParticipantStats `json:"participant_stats" yaml:"participant_stats"`
	MostEngaged      string                       `json:"most_engaged" yaml:"most_engaged"`

	Summary     []string `json:"summary" yaml:"summary"`
	ActionItems []string `json:"action_items" yaml:"action_items"`
	KeyPoints   []string `json:"key_points" yaml:"key_points"`

	RawTranscript       string `json:"raw_transcript" yaml:"raw_transcript"`
	FormattedTranscript string `json:"formatted_transcript" yaml:"formatted_transcript"`
	WordCount           int    `json:"word_count" yaml:"word_count"`

	Analytics    *analytics.MeetingAnalytics `json:"analytics" yaml:"analytics"`
	EntityBlocks []extraction.EntityBlock    `json:"entity_blocks" yaml:"entity_blocks"`
	Entities     string                      `json:"entities" yaml:"entities"`
	Tags         []string                    `json:"tags" yaml:"tags"`
	RelatedLinks []string                    `json:"related_links" yaml:"related_links"`

	AudioFile string `json:"audio_file" yaml:"audio_file"`

	// Truncated is set when a streamed transcript hit the memory ceiling.
	Truncated bool `json:"truncated" yaml:"truncated"`

	ImportedAt time.Time `json:"imported_at" yaml:"imported_at"`
}
