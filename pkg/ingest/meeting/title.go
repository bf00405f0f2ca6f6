package meeting

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// DefaultTitle is used when nothing usable remains of a folder name.
const DefaultTitle = "Untitled Meeting"

// Title suffix patterns
var (
	// Weekly Sync (3f2b...-...)
	parenUUIDSuffix = regexp.MustCompile(`\s*\(([0-9A-Fa-f-]{32,36})\)\s*$`)

	// Weekly Sync-3f2b... / Weekly Sync_3f2b...
	bareUUIDSuffix = regexp.MustCompile(`[\s_-]+([0-9A-Fa-f]{8}-?[0-9A-Fa-f]{4}-?[0-9A-Fa-f]{4}-?[0-9A-Fa-f]{4}-?[0-9A-Fa-f]{12})\s*$`)

	// Weekly Sync - May 14, 2024 1105 AM
	krispDateSuffix = regexp.MustCompile(`\s+-\s+(\p{L}+)\.?\s+\d{1,2}(?:,?\s*\d{4})?(?:\s+\d{1,2}:?\d{2}\s*(?:[AaPp]\.?[Mm]\.?)?)?\s*$`)

	whitespaceRun = regexp.MustCompile(`\s+`)
)

// MeetingInfo holds what can be read from a Krisp folder name.
type MeetingInfo struct {
	Title string
	Date  string // YYYY-MM-DD, empty when unknown
	Time  string // HH:MM, UnknownTime when unknown
}

// ExtractMeetingInfo derives title, date and time from a Krisp folder name.
func ExtractMeetingInfo(folderName string) MeetingInfo {
	info := MeetingInfo{
		Title: NormalizeTitle(folderName),
		Time:  ExtractTimeCompact(folderName),
	}
	if date, ok := ExtractDate(folderName); ok {
		info.Date = date
	}
	return info
}

// NormalizeTitle strips the UUID and date suffixes Krisp appends to export
// names and collapses whitespace.
func NormalizeTitle(name string) string {
	title := strings.TrimSpace(name)

	if m := parenUUIDSuffix.FindStringSubmatchIndex(title); m != nil {
		if _, err := uuid.Parse(title[m[2]:m[3]]); err == nil {
			title = strings.TrimSpace(title[:m[0]])
		}
	}

	if m := bareUUIDSuffix.FindStringSubmatchIndex(title); m != nil {
		if _, err := uuid.Parse(title[m[2]:m[3]]); err == nil {
			title = strings.TrimSpace(title[:m[0]])
		}
	}

	if m := krispDateSuffix.FindStringSubmatchIndex(title); m != nil {
		if _, ok := LookupMonth(title[m[2]:m[3]]); ok {
			title = title[:m[0]]
		}
	}

	title = strings.TrimSpace(whitespaceRun.ReplaceAllString(title, " "))
	if title == "" {
		return DefaultTitle
	}
	return title
}
