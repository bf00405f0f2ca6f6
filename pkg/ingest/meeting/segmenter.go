package meeting

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Transcript parsing regular expressions
var (
	// Matches a speaker line: Alice Smith | 00:01:10 or Alice | 01:10
	speakerLineRegex = regexp.MustCompile(`^(.+?)\s*\|\s*(\d{1,2}):(\d{2})(?::(\d{2}))?\s*$`)

	// Word tokens: letters (any script), digits and underscore.
	wordRegex = regexp.MustCompile(`[\p{L}\p{N}_]+`)
)

// MaxSpeakerNameRunes bounds the length of a plausible speaker name.
const MaxSpeakerNameRunes = 50

// ContinuationMarker is inserted by Krisp where a transcript chunk continues.
const ContinuationMarker = "продолжение следует..."

// deniedSpeakerSubstrings and deniedSpeakerPrefixes mark system labels that
// are formatted like speaker lines but are not people.
var (
	deniedSpeakerSubstrings = []string{"transcription service", "meeting summary"}
	deniedSpeakerPrefixes   = []string{"recording", "system"}
)

// IsValidSpeaker reports whether name can be attributed dialogue.
func IsValidSpeaker(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) >= MaxSpeakerNameRunes {
		return false
	}
	lower := strings.ToLower(name)
	for _, s := range deniedSpeakerSubstrings {
		if strings.Contains(lower, s) {
			return false
		}
	}
	for _, p := range deniedSpeakerPrefixes {
		if strings.HasPrefix(lower, p) {
			return false
		}
	}
	return true
}

// ParseSpeakerLine returns the speaker and the HH:MM:SS timestamp of a
// speaker line. ok is false for any other line, including lines whose
// speaker fails IsValidSpeaker or whose minutes or seconds exceed 59.
func ParseSpeakerLine(line string) (speaker, timestamp string, ok bool) {
	m := speakerLineRegex.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", "", false
	}
	if m[3] > "59" || m[4] > "59" {
		return "", "", false
	}
	speaker = strings.TrimSpace(m[1])
	if !IsValidSpeaker(speaker) {
		return "", "", false
	}

	hours := m[2]
	if len(hours) == 1 {
		hours = "0" + hours
	}
	seconds := m[4]
	if seconds == "" {
		seconds = "00"
	}
	return speaker, hours + ":" + m[3] + ":" + seconds, true
}

// CountWords counts word tokens in text.
func CountWords(text string) int {
	return len(wordRegex.FindAllStringIndex(text, -1))
}

// CountTranscriptWords counts words in a transcript, excluding speaker lines.
func CountTranscriptWords(text string) int {
	total := 0
	for _, line := range splitLines(text) {
		if _, _, ok := ParseSpeakerLine(line); ok {
			continue
		}
		total += CountWords(line)
	}
	return total
}

// Segmenter splits transcript lines into speaker turns. Feed it lines in
// order and call Finish once; observers see each event as it happens.
type Segmenter struct {
	observers []TurnObserver

	turns        []SpeakerTurn
	current      *SpeakerTurn
	participants []string
	speakerSet   map[string]bool
	duration     string

	preamble []string
	blocks   []string
	raw      strings.Builder

	lines int
	bytes int64
	words int
}

// NewSegmenter creates a segmenter notifying the given observers.
func NewSegmenter(observers ...TurnObserver) *Segmenter {
	return &Segmenter{
		observers:    observers,
		turns:        make([]SpeakerTurn, 0),
		participants: make([]string, 0),
		speakerSet:   make(map[string]bool),
		duration:     NoDuration,
	}
}

// Feed consumes one transcript line (without its line terminator).
func (s *Segmenter) Feed(line string) {
	line = strings.TrimSuffix(line, "\r")

	if s.lines > 0 {
		s.raw.WriteByte('\n')
	}
	s.raw.WriteString(line)
	s.lines++
	s.bytes += int64(len(line)) + 1

	if speaker, ts, ok := ParseSpeakerLine(line); ok {
		s.closeTurn()
		s.current = &SpeakerTurn{Speaker: speaker, Timestamp: ts, Lines: make([]string, 0)}
		s.duration = ts
		if !s.speakerSet[speaker] {
			s.speakerSet[speaker] = true
			s.participants = append(s.participants, speaker)
		}
		for _, o := range s.observers {
			o.OnTurn(speaker, ts)
		}
		return
	}

	trimmed := strings.TrimSpace(line)
	s.words += CountWords(trimmed)

	if s.current == nil {
		s.preamble = append(s.preamble, strings.TrimRight(line, " \t"))
		for _, o := range s.observers {
			o.OnLine("", trimmed)
		}
		return
	}

	if trimmed == "" {
		return
	}

	for _, o := range s.observers {
		o.OnLine(s.current.Speaker, trimmed)
	}

	if strings.ToLower(trimmed) == ContinuationMarker {
		trimmed = "*" + trimmed + "*"
	}
	s.current.Lines = append(s.current.Lines, trimmed)
}

// closeTurn emits the open turn, flushing any preamble before it.
func (s *Segmenter) closeTurn() {
	s.flushPreamble()
	if s.current == nil {
		return
	}
	s.turns = append(s.turns, *s.current)
	s.blocks = append(s.blocks, FormatTurn(*s.current))
	s.current = nil
}

func (s *Segmenter) flushPreamble() {
	if len(s.preamble) == 0 {
		return
	}
	if block := strings.Join(trimBlankEdges(s.preamble), "\n"); block != "" {
		s.blocks = append(s.blocks, block)
	}
	s.preamble = nil
}

// Finish closes the last turn and returns the result. The segmenter must
// not be fed afterwards.
func (s *Segmenter) Finish() *SegmentResult {
	s.closeTurn()
	return &SegmentResult{
		Turns:               s.turns,
		Participants:        s.participants,
		Duration:            s.duration,
		FormattedTranscript: strings.Join(s.blocks, "\n\n"),
		RawTranscript:       s.raw.String(),
		Lines:               s.lines,
		BytesProcessed:      s.bytes,
		Words:               s.words,
	}
}

// FormatTurn renders a turn as "[[ts]] **speaker**: line1\nline2".
func FormatTurn(turn SpeakerTurn) string {
	var b strings.Builder
	b.WriteString("[[")
	b.WriteString(turn.Timestamp)
	b.WriteString("]] **")
	b.WriteString(turn.Speaker)
	b.WriteString("**:")
	for i, line := range turn.Lines {
		if i == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return b.String()
}

// Segment runs a single in-memory pass over transcript text.
func Segment(text string, observers ...TurnObserver) *SegmentResult {
	s := NewSegmenter(observers...)
	if text != "" {
		// Split like bufio.ScanLines so both modes see the same lines.
		for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
			s.Feed(line)
		}
	}
	return s.Finish()
}
