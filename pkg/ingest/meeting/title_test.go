package meeting

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractMeetingInfo_KrispFolderName(t *testing.T) {
	info := ExtractMeetingInfo("Weekly Sync - May 14, 2024 1105 AM")

	assert.Equal(t, "Weekly Sync", info.Title)
	assert.Equal(t, "2024-05-14", info.Date)
	assert.Equal(t, "11:05", info.Time)
}

func TestExtractMeetingInfo_WithoutYear(t *testing.T) {
	info := ExtractMeetingInfo("Retro - Dec 3 905 PM")

	assert.Equal(t, "Retro", info.Title)
	assert.Equal(t, fmt.Sprintf("%d-12-03", time.Now().Year()), info.Date)
	assert.Equal(t, "21:05", info.Time)
}

func TestExtractMeetingInfo_WithoutYearFourDigitTime(t *testing.T) {
	info := ExtractMeetingInfo("Retro - Dec 3 1105 AM")

	assert.Equal(t, "Retro", info.Title)
	assert.Equal(t, fmt.Sprintf("%d-12-03", time.Now().Year()), info.Date)
	assert.Equal(t, "11:05", info.Time)

	info = ExtractMeetingInfo("Weekly Sync - May 14 1230 PM")
	assert.Equal(t, "Weekly Sync", info.Title)
	assert.Equal(t, "12:30", info.Time)
}

func TestExtractMeetingInfo_NoDateOrTime(t *testing.T) {
	info := ExtractMeetingInfo("Weekly Sync")

	assert.Equal(t, "Weekly Sync", info.Title)
	assert.Equal(t, "", info.Date)
	assert.Equal(t, UnknownTime, info.Time)
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"parenthesized uuid", "Design Review (3f2b8c1e-9d4a-4b6e-8f7a-1c2d3e4f5a6b)", "Design Review"},
		{"hyphenated uuid", "Design Review-3f2b8c1e-9d4a-4b6e-8f7a-1c2d3e4f5a6b", "Design Review"},
		{"compact uuid", "Design Review_3f2b8c1e9d4a4b6e8f7a1c2d3e4f5a6b", "Design Review"},
		{"uuid and date", "Standup - Jan 9, 2025 930 AM (3f2b8c1e-9d4a-4b6e-8f7a-1c2d3e4f5a6b)", "Standup"},
		{"non-uuid parens kept", "Budget (not-a-uuid)", "Budget (not-a-uuid)"},
		{"non-month suffix kept", "Team Call - Sprint 12", "Team Call - Sprint 12"},
		{"whitespace collapsed", "  Planning   Session  ", "Planning Session"},
		{"cyrillic title", "Планерка отдела - May 14, 2024", "Планерка отдела"},
		{"empty", "", DefaultTitle},
		{"only uuid", "(3f2b8c1e-9d4a-4b6e-8f7a-1c2d3e4f5a6b)", DefaultTitle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeTitle(tt.input))
		})
	}
}
