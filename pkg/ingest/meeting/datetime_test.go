package meeting

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractDate_Formats(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  string
		found bool
	}{
		{name: "iso", input: "Meeting 2024-05-14 notes", want: "2024-05-14", found: true},
		{name: "iso single digits", input: "2024-5-4", want: "2024-05-04", found: true},
		{name: "english month day year", input: "Weekly Sync - May 14, 2024 1105 AM", want: "2024-05-14", found: true},
		{name: "english abbreviation", input: "Sept. 3, 2025", want: "2025-09-03", found: true},
		{name: "english case insensitive", input: "DECEMBER 31 2025", want: "2025-12-31", found: true},
		{name: "dotted numeric", input: "Встреча 14.05.2024", want: "2024-05-14", found: true},
		{name: "dashed numeric", input: "on 01-02-2025", want: "2025-02-01", found: true},
		{name: "slashed numeric", input: "due 28/02/2025", want: "2025-02-28", found: true},
		{name: "bare month day uses current year", input: "Follow up May, 27", want: "2026-05-27", found: true},
		{name: "russian day month year", input: "Планерка 14 мая 2024 года", want: "2024-05-14", found: true},
		{name: "russian abbreviation", input: "3 дек. 2025", want: "2025-12-03", found: true},
		{name: "english day month year", input: "held 9 March 2025", want: "2025-03-09", found: true},
		{name: "no date", input: "Nothing to see here", found: false},
		{name: "empty", input: "", found: false},
		{name: "unknown month name", input: "Sprint 12, 2024", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractDateAt(tt.input, now)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractDate_RejectsInvalidCalendarDates(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	invalid := []string{
		"2024-13-01",
		"2024-02-30",
		"2023-02-29",
		"31.04.2025",
		"February 30, 2024",
		"1999-05-01",
		"2150-05-01",
		"00.00.2024",
	}
	for _, input := range invalid {
		t.Run(input, func(t *testing.T) {
			got, ok := ExtractDateAt(input, now)
			assert.False(t, ok, "got %q", got)
		})
	}

	got, ok := ExtractDateAt("2024-02-29", now)
	assert.True(t, ok)
	assert.Equal(t, "2024-02-29", got)
}

func TestExtractDate_FallsThroughToValidCandidate(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// The first ISO-looking value is invalid, the second is used.
	got, ok := ExtractDateAt("2024-02-31 then 2024-03-01", now)
	assert.True(t, ok)
	assert.Equal(t, "2024-03-01", got)
}

func TestExtractDate_PriorityOrder(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// ISO wins over an earlier month-name date.
	got, ok := ExtractDateAt("May 14, 2024 and 2023-01-02", now)
	assert.True(t, ok)
	assert.Equal(t, "2023-01-02", got)
}

func TestExtractDate_ScenarioCurrentYear(t *testing.T) {
	got, ok := ExtractDate("Follow up May, 27")
	assert.True(t, ok)
	assert.Equal(t, fmt.Sprintf("%d-05-27", time.Now().Year()), got)
}

func TestLookupMonth_CoversAllMonths(t *testing.T) {
	english := []string{"january", "february", "march", "april", "may", "june",
		"july", "august", "september", "october", "november", "december"}
	russian := []string{"января", "февраля", "марта", "апреля", "мая", "июня",
		"июля", "августа", "сентября", "октября", "ноября", "декабря"}

	for i := range english {
		m, ok := LookupMonth(english[i])
		assert.True(t, ok, english[i])
		assert.Equal(t, i+1, m)

		m, ok = LookupMonth(english[i][:3])
		assert.True(t, ok, english[i][:3])
		assert.Equal(t, i+1, m)

		m, ok = LookupMonth(russian[i])
		assert.True(t, ok, russian[i])
		assert.Equal(t, i+1, m)
	}

	m, ok := LookupMonth("МАЯ")
	assert.True(t, ok)
	assert.Equal(t, 5, m)

	_, ok = LookupMonth("Sprint")
	assert.False(t, ok)
}

func TestExtractTime(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Meeting at 14:05", "14:05"},
		{"Started 09:30:15", "09:30"},
		{"9:05 am standup", "09:05"},
		{"12:15 AM", "00:15"},
		{"12:45 PM", "12:45"},
		{"3:07 PM", "15:07"},
		{"3:07 p.m.", "15:07"},
		{"25:00 and then 10:00", "10:00"},
		{"no time here", UnknownTime},
		{"", UnknownTime},
		{"1105 AM", UnknownTime},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTime(tt.input))
		})
	}
}

func TestExtractTimeCompact(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Weekly Sync - May 14, 2024 1105 AM", "11:05"},
		{"Weekly Sync - May 14, 2024 905 PM", "21:05"},
		{"Weekly Sync - May 14, 2024 1205 AM", "00:05"},
		{"Weekly Sync - May 14, 2024 1430", "14:30"},
		{"Weekly Sync - May 14, 2024", UnknownTime},
		{"Q3 2025 planning", UnknownTime},
		{"Standup 10:15", "10:15"},
		{"Retro - Dec 3 1105 AM", "11:05"},
		{"Weekly Sync - May 14 1230 PM", "12:30"},
		{"Weekly Sync - 14 May 2024 0930 AM", "09:30"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTimeCompact(tt.input))
		})
	}
}

func TestExtractTime_AlwaysInRange(t *testing.T) {
	inputs := []string{"99:99", "24:00", "23:60", "13:00 PM", "0:00 AM", "7:61 pm", "12:00"}
	for _, in := range inputs {
		got := ExtractTime(in)
		_, err := time.Parse("15:04", got)
		assert.NoError(t, err, "input %q produced %q", in, got)
	}
}
