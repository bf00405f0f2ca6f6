package meeting

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Section names found in Krisp meeting notes.
const (
	SectionSummary     = "Summary"
	SectionActionItems = "Action Items"
	SectionKeyPoints   = "Key Points"
)

// knownSectionHeaders is the closed set of sibling headers that end a section.
var knownSectionHeaders = map[string]bool{
	"summary":       true,
	"action items":  true,
	"key points":    true,
	"transcript":    true,
	"transcription": true,
}

var (
	// "- item", "* item", "• item", "1. item", "2) item"
	bulletRegex = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)

	// A header never ends like a sentence.
	terminalPunctuation = ".!?:;,"
)

// Limits used by the header heuristics.
const (
	maxHeaderWords     = 6
	maxSubheadingRunes = 60
)

// ExtractSection returns the lines of the named section of notes text. In
// list mode bullet markers are stripped and blank lines are dropped; in
// paragraph mode blank lines are kept as "" separators. A missing section
// yields an empty slice.
func ExtractSection(fullText, name string, isList bool) []string {
	result := make([]string, 0)
	if fullText == "" || strings.TrimSpace(name) == "" {
		return result
	}

	lines := splitLines(fullText)
	start := -1
	for i, line := range lines {
		if isHeaderNamed(line, name) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return result
	}

	for i := start; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		if isKnownSectionHeader(line) {
			break
		}

		if isList {
			if line == "" {
				if i+1 >= len(lines) || isListTerminator(lines[i+1]) {
					break
				}
				continue
			}
			if isHeuristicHeader(line) {
				break
			}
			item := strings.TrimSpace(bulletRegex.ReplaceAllString(line, ""))
			if item != "" {
				result = append(result, item)
			}
			continue
		}

		result = append(result, line)
	}

	return trimBlankEdges(result)
}

// isHeaderNamed reports whether line is a standalone header for name.
func isHeaderNamed(line, name string) bool {
	trimmed := strings.TrimSuffix(strings.TrimSpace(line), ":")
	return strings.EqualFold(strings.TrimSpace(trimmed), strings.TrimSpace(name))
}

func isKnownSectionHeader(line string) bool {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ":"))
	return knownSectionHeaders[strings.ToLower(trimmed)]
}

func isListTerminator(line string) bool {
	trimmed := strings.TrimSpace(line)
	return isKnownSectionHeader(trimmed) || isHeuristicHeader(trimmed)
}

// isHeuristicHeader reports whether a line looks like an unlisted section
// header: not a bullet, a few words, no terminal punctuation, and either
// ALL CAPS or Title Case.
func isHeuristicHeader(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || bulletRegex.MatchString(line) {
		return false
	}
	if endsWithPunctuation(line) {
		return false
	}

	words := strings.Fields(line)
	if len(words) > maxHeaderWords {
		return false
	}

	return isAllCaps(line) || isTitleCase(words)
}

func endsWithPunctuation(line string) bool {
	r, _ := utf8.DecodeLastRuneInString(line)
	return strings.ContainsRune(terminalPunctuation, r)
}

func isAllCaps(line string) bool {
	letters := 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 2
}

func isTitleCase(words []string) bool {
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return len(words) > 0
}

// SummaryLineKind classifies a line of a captured Summary block.
type SummaryLineKind string

const (
	SummaryBlank     SummaryLineKind = "blank"
	SummaryHeading   SummaryLineKind = "heading"
	SummaryBullet    SummaryLineKind = "bullet"
	SummaryParagraph SummaryLineKind = "paragraph"
)

// SummaryLine is a classified Summary line. Text has bullet markers removed.
type SummaryLine struct {
	Kind SummaryLineKind
	Text string
}

// ClassifySummaryLines promotes short unpunctuated lines that introduce a
// bullet list to sub-headings.
func ClassifySummaryLines(lines []string) []SummaryLine {
	out := make([]SummaryLine, 0, len(lines))
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			out = append(out, SummaryLine{Kind: SummaryBlank})
		case bulletRegex.MatchString(line):
			out = append(out, SummaryLine{Kind: SummaryBullet, Text: strings.TrimSpace(bulletRegex.ReplaceAllString(line, ""))})
		case isSubheading(line, nextNonBlank(lines, i+1)):
			out = append(out, SummaryLine{Kind: SummaryHeading, Text: line})
		default:
			out = append(out, SummaryLine{Kind: SummaryParagraph, Text: line})
		}
	}
	return out
}

func isSubheading(line, next string) bool {
	if utf8.RuneCountInString(line) > maxSubheadingRunes || endsWithPunctuation(strings.TrimSuffix(line, ":")) {
		return false
	}
	return next != "" && bulletRegex.MatchString(next)
}

func nextNonBlank(lines []string, from int) string {
	for i := from; i < len(lines); i++ {
		if s := strings.TrimSpace(lines[i]); s != "" {
			return s
		}
	}
	return ""
}

// NormalizeActionItem appends a due-date marker when the item mentions a
// recognizable date: "Follow up May, 27" -> "Follow up May, 27 📅 2024-05-27".
func NormalizeActionItem(item string) string {
	return NormalizeActionItemAt(item, time.Now())
}

// NormalizeActionItemAt is NormalizeActionItem with an explicit reference
// time for dates without a year.
func NormalizeActionItemAt(item string, now time.Time) string {
	item = strings.TrimSpace(item)
	if date, ok := ExtractDateAt(item, now); ok && !strings.Contains(item, date) {
		return item + " 📅 " + date
	}
	return item
}

// splitLines splits text on LF, dropping any CR before it.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func trimBlankEdges(lines []string) []string {
	start, end := 0, len(lines)
	for start < end && lines[start] == "" {
		start++
	}
	for end > start && lines[end-1] == "" {
		end--
	}
	return lines[start:end]
}
