package meeting

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Accepted year window for extracted dates.
const (
	MinYear = 2000
	MaxYear = 2099
)

// Date and time regular expressions. Go's \b is ASCII-only, so letter
// boundaries are expressed with explicit non-letter groups to keep Cyrillic
// month names matchable.
var (
	// 2024-05-14
	isoDateRegex = regexp.MustCompile(`(?:^|\D)(\d{4})-(\d{1,2})-(\d{1,2})(?:\D|$)`)

	// May 14, 2024 / мая 14 2024
	monthDayYearRegex = regexp.MustCompile(`(?:^|[^\p{L}])(\p{L}+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})(?:\D|$)`)

	// 14.05.2024 / 14-05-2024 / 14/05/2024
	numericDateRegex = regexp.MustCompile(`(?:^|[^\d./-])(\d{1,2})([./-])(\d{1,2})([./-])(\d{4})(?:\D|$)`)

	// May, 27 / May 27
	monthDayRegex = regexp.MustCompile(`(?:^|[^\p{L}])(\p{L}+)\.?,?\s+(\d{1,2})(?:st|nd|rd|th)?(?:[^\d:]|$)`)

	// 14 мая 2024 / 14 May 2024
	dayMonthYearRegex = regexp.MustCompile(`(?:^|\D)(\d{1,2})\s+(\p{L}+)\.?,?\s+(\d{4})(?:\D|$)`)

	// 14:05 / 14:05:33
	clock24Regex = regexp.MustCompile(`(?:^|\D)(\d{1,2}):(\d{2})(?::(\d{2}))?`)

	// 2:05 PM / 2:05pm / 2:05 p.m.
	clock12Regex = regexp.MustCompile(`(?:^|\D)(\d{1,2}):(\d{2})\s*([AaPp])\.?[Mm]\.?`)

	// 1105 AM / 905pm / 1430
	compactTimeRegex = regexp.MustCompile(`(?:^|\D)(\d{1,2})(\d{2})\s*(?:([AaPp])\.?[Mm]\.?)?(?:\D|$)`)

	meridiemPrefixRegex = regexp.MustCompile(`^\s*[AaPp]\.?[Mm]`)

	yearRegex = regexp.MustCompile(`\d{4}`)
)

// monthsByName maps lowercase English and Russian month names and
// abbreviations to month numbers.
var monthsByName = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,

	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "jun": 6, "jul": 7,
	"aug": 8, "sep": 9, "sept": 9, "oct": 10, "nov": 11, "dec": 12,

	// Russian genitive ("14 мая")
	"января": 1, "февраля": 2, "марта": 3, "апреля": 4, "мая": 5, "июня": 6,
	"июля": 7, "августа": 8, "сентября": 9, "октября": 10, "ноября": 11, "декабря": 12,

	// Russian nominative
	"январь": 1, "февраль": 2, "март": 3, "апрель": 4, "май": 5, "июнь": 6,
	"июль": 7, "август": 8, "сентябрь": 9, "октябрь": 10, "ноябрь": 11, "декабрь": 12,

	// Russian abbreviations
	"янв": 1, "фев": 2, "мар": 3, "апр": 4, "июн": 6, "июл": 7,
	"авг": 8, "сен": 9, "сент": 9, "окт": 10, "ноя": 11, "нояб": 11, "дек": 12,
}

// LookupMonth resolves an English or Russian month name or abbreviation.
func LookupMonth(name string) (int, bool) {
	m, ok := monthsByName[strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))]
	return m, ok
}

// ExtractDate finds the first recognizable date in text and returns it as
// YYYY-MM-DD. Bare "Month DD" dates are placed in the current year.
func ExtractDate(text string) (string, bool) {
	return ExtractDateAt(text, time.Now())
}

// ExtractDateAt is ExtractDate with an explicit reference time.
func ExtractDateAt(text string, now time.Time) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}

	for _, m := range isoDateRegex.FindAllStringSubmatch(text, -1) {
		if d, ok := formatDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); ok {
			return d, true
		}
	}

	for _, m := range monthDayYearRegex.FindAllStringSubmatch(text, -1) {
		month, ok := LookupMonth(m[1])
		if !ok {
			continue
		}
		if d, ok := formatDate(atoi(m[3]), month, atoi(m[2])); ok {
			return d, true
		}
	}

	for _, m := range numericDateRegex.FindAllStringSubmatch(text, -1) {
		if m[2] != m[4] {
			continue
		}
		if d, ok := formatDate(atoi(m[5]), atoi(m[3]), atoi(m[1])); ok {
			return d, true
		}
	}

	for _, m := range monthDayRegex.FindAllStringSubmatch(text, -1) {
		month, ok := LookupMonth(m[1])
		if !ok {
			continue
		}
		if d, ok := formatDate(now.Year(), month, atoi(m[2])); ok {
			return d, true
		}
	}

	for _, m := range dayMonthYearRegex.FindAllStringSubmatch(text, -1) {
		month, ok := LookupMonth(m[2])
		if !ok {
			continue
		}
		if d, ok := formatDate(atoi(m[3]), month, atoi(m[1])); ok {
			return d, true
		}
	}

	return "", false
}

// ExtractTime finds the first time of day in text and returns it as HH:MM.
// It returns UnknownTime when nothing matches.
func ExtractTime(text string) string {
	if t, ok := extractClockTime(text); ok {
		return t
	}
	return UnknownTime
}

// ExtractTimeCompact is ExtractTime that also accepts compact HHMM times
// ("1105 AM"), as used in Krisp folder names. Date phrases are removed
// first so that years are never read as times.
func ExtractTimeCompact(text string) string {
	if t, ok := extractClockTime(text); ok {
		return t
	}

	for _, m := range compactTimeRegex.FindAllStringSubmatch(stripDates(text), -1) {
		hour, minute := atoi(m[1]), atoi(m[2])
		if m[3] != "" {
			if t, ok := formatClock12(hour, minute, m[3]); ok {
				return t
			}
			continue
		}
		// Bare values inside the year window are years, not times.
		if year := hour*100 + minute; year >= MinYear && year <= MaxYear {
			continue
		}
		if t, ok := formatClock(hour, minute); ok {
			return t
		}
	}

	return UnknownTime
}

// stripDates blanks date phrases whose year is inside the year window. A
// phrase like "Dec 3 1105" is left alone since 1105 is a time, not a year.
func stripDates(text string) string {
	for _, re := range []*regexp.Regexp{isoDateRegex, monthDayYearRegex, numericDateRegex, dayMonthYearRegex} {
		text = re.ReplaceAllStringFunc(text, func(match string) string {
			for _, y := range yearRegex.FindAllString(match, -1) {
				if year := atoi(y); year >= MinYear && year <= MaxYear {
					return " "
				}
			}
			return match
		})
	}
	return text
}

// extractClockTime tries 24-hour times not followed by a meridiem, then
// 12-hour times.
func extractClockTime(text string) (string, bool) {
	for _, idx := range clock24Regex.FindAllStringSubmatchIndex(text, -1) {
		end := idx[1]
		if end < len(text) && text[end] >= '0' && text[end] <= '9' {
			continue
		}
		if meridiemPrefixRegex.MatchString(text[end:]) {
			continue
		}
		hour := atoi(text[idx[2]:idx[3]])
		minute := atoi(text[idx[4]:idx[5]])
		if t, ok := formatClock(hour, minute); ok {
			return t, true
		}
	}

	for _, m := range clock12Regex.FindAllStringSubmatch(text, -1) {
		if t, ok := formatClock12(atoi(m[1]), atoi(m[2]), m[3]); ok {
			return t, true
		}
	}

	return "", false
}

func formatClock(hour, minute int) (string, bool) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

// formatClock12 converts a 12-hour clock reading: 12 AM is 00, 12 PM stays 12.
func formatClock12(hour, minute int, meridiem string) (string, bool) {
	if hour < 1 || hour > 12 {
		return "", false
	}
	pm := strings.EqualFold(meridiem, "p")
	switch {
	case pm && hour != 12:
		hour += 12
	case !pm && hour == 12:
		hour = 0
	}
	return formatClock(hour, minute)
}

// formatDate validates a calendar date and formats it as YYYY-MM-DD.
func formatDate(year, month, day int) (string, bool) {
	if year < MinYear || year > MaxYear || month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
