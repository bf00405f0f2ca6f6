package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/krisp-import/pkg/enrichment/analytics"
	"github.com/otherjamesbrown/krisp-import/pkg/importer"
)

func sampleRecord() *importer.ParsedMeetingRecord {
	return &importer.ParsedMeetingRecord{
		ID:           "0b3c7d0e-8f44-5a5e-9c1e-3a3c1f2f0a11",
		Source:       "Weekly Sync (3f2b8c4e-1d2a-4b5c-9e6f-7a8b9c0d1e2f)",
		Title:        "Weekly Sync",
		Date:         "2024-05-14",
		Time:         "11:05",
		Duration:     "00:42:10",
		Participants: []string{"Alice", "Bob"},
		ParticipantStats: []analytics.ParticipantStats{
			{Speaker: "Alice", Words: 120, Segments: 4, AverageSegmentLength: 30, FirstAppearance: "00:00:05", LastAppearance: "00:40:00", EngagementScore: 71},
			{Speaker: "Bob", Words: 40, Segments: 2, AverageSegmentLength: 20, FirstAppearance: "00:01:00", LastAppearance: "00:30:00", EngagementScore: 29},
		},
		MostEngaged:         "Alice",
		Summary:             []string{"Roadmap", "- ship beta", "- hire QA", "", "We agreed on dates."},
		ActionItems:         []string{"Send deck 📅 2024-05-27", "Book room"},
		KeyPoints:           []string{"Beta in June"},
		RawTranscript:       "Alice | 00:00:05\nHello",
		FormattedTranscript: "[[00:00:05]] **Alice**: Hello",
		WordCount:           160,
		Analytics: &analytics.MeetingAnalytics{
			MeetingType:   analytics.MeetingTypeDiscussion,
			Sentiment:     analytics.SentimentPositive,
			EnergyLevel:   analytics.EnergyMedium,
			DecisionCount: 2,
			QuestionCount: 3,
		},
		Entities:     "### Projects\n- Apollo",
		Tags:         []string{"meeting", "krisp", "discussion"},
		RelatedLinks: []string{"[[Alice]]", "[[Bob]]", "[[Apollo]]"},
		AudioFile:    "Weekly Sync.m4a",
		ImportedAt:   time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC),
	}
}

func TestSubstitute(t *testing.T) {
	values := map[string]string{"title": "Sync", "summary": "{{title}}"}

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{"simple", "# {{title}}", "# Sync"},
		{"inner spaces", "# {{ title }}", "# Sync"},
		{"repeated", "{{title}}/{{title}}", "Sync/Sync"},
		{"unknown kept", "{{nope}} {{title}}", "{{nope}} Sync"},
		{"values not rescanned", "{{summary}}", "{{title}}"},
		{"no placeholders", "plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Substitute(tt.tmpl, values))
		})
	}
}

func TestDefaultTemplateUsesOnlyKnownPlaceholders(t *testing.T) {
	assert.Empty(t, UnknownPlaceholders(DefaultTemplate))
	assert.Equal(t, []string{"custom"}, UnknownPlaceholders("{{title}} {{custom}} {{custom}}"))
}

func TestValuesCoverEveryPlaceholder(t *testing.T) {
	values, err := Values(sampleRecord())
	require.NoError(t, err)

	for name := range knownPlaceholders() {
		_, ok := values[name]
		assert.True(t, ok, "missing value for %s", name)
	}
}

func TestRender_DefaultTemplate(t *testing.T) {
	out, err := NewRenderer("").Render(sampleRecord())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "---\n"))
	assert.NotContains(t, out, "{{")
	assert.Contains(t, out, "# Weekly Sync")
	assert.Contains(t, out, "- [ ] Send deck 📅 2024-05-27")
	assert.Contains(t, out, "- [ ] Book room")
	assert.Contains(t, out, "### Roadmap\n- ship beta\n- hire QA\n\nWe agreed on dates.")
	assert.Contains(t, out, "| Alice | 120 | 4 | 30 | 00:00:05 | 00:40:00 | 71 |")
	assert.Contains(t, out, "![[Weekly Sync.m4a]]")
	assert.Contains(t, out, "[[00:00:05]] **Alice**: Hello")
	assert.Contains(t, out, "- **Decisions:** 2")
}

func TestRender_FrontmatterRoundTrip(t *testing.T) {
	out, err := NewRenderer("").Render(sampleRecord())
	require.NoError(t, err)

	parts := strings.SplitN(out, "---\n", 3)
	require.Len(t, parts, 3)

	var fm Frontmatter
	require.NoError(t, yaml.Unmarshal([]byte(parts[1]), &fm))
	assert.Equal(t, "Weekly Sync", fm.Title)
	assert.Equal(t, "2024-05-14", fm.Date)
	assert.Equal(t, "11:05", fm.Time)
	assert.Equal(t, []string{"Alice", "Bob"}, fm.Participants)
	assert.Equal(t, "discussion", fm.MeetingType)
	assert.Equal(t, sampleRecord().Source, fm.KrispSource)
	assert.Equal(t, sampleRecord().ID, fm.KrispID)
	assert.Equal(t, "2024-05-14T12:00:00Z", fm.Imported)
}

func TestRender_CustomTemplateWithoutFrontmatter(t *testing.T) {
	out, err := NewRenderer("# {{title}} ({{date}})\n{{tags}}\n").Render(sampleRecord())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "---\n"))
	assert.True(t, strings.HasSuffix(out, "# Weekly Sync (2024-05-14)\n#meeting #krisp #discussion\n"))
}

func TestRender_SparseRecord(t *testing.T) {
	rec := &importer.ParsedMeetingRecord{
		Title:        "Untitled Meeting",
		Time:         "00:00",
		Duration:     "N/A",
		Participants: []string{},
		MostEngaged:  analytics.NoSpeaker,
		Tags:         []string{},
	}

	out, err := NewRenderer("").Render(rec)
	require.NoError(t, err)
	assert.NotContains(t, out, "{{")
	assert.NotContains(t, out, "![[")
	assert.NotContains(t, out, "| Participant |")

	fm := BuildFrontmatter(rec)
	assert.Empty(t, fm.Time)
	assert.Empty(t, fm.MostEngaged)
	assert.NotNil(t, fm.Participants)
}

func TestRender_NilRecord(t *testing.T) {
	_, err := NewRenderer("").Render(nil)
	assert.Error(t, err)
}

func TestStatsTable_EscapesPipes(t *testing.T) {
	table := StatsTable([]analytics.ParticipantStats{{Speaker: "A|B", Words: 1, Segments: 1}})
	assert.Contains(t, table, `| A\|B | 1 | 1 |`)
	assert.Empty(t, StatsTable(nil))
}

func TestLoadTemplate(t *testing.T) {
	tmpl, err := LoadTemplate("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTemplate, tmpl)

	path := filepath.Join(t.TempDir(), "note.md")
	require.NoError(t, os.WriteFile(path, []byte("# {{title}}"), 0o644))
	tmpl, err = LoadTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, "# {{title}}", tmpl)

	_, err = LoadTemplate(filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
}
