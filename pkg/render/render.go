package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/krisp-import/pkg/enrichment/analytics"
	"github.com/otherjamesbrown/krisp-import/pkg/importer"
	"github.com/otherjamesbrown/krisp-import/pkg/ingest/meeting"
)

// Frontmatter is the YAML header of every rendered note. KrispSource is
// what duplicate detection matches on.
type Frontmatter struct {
	Title        string   `yaml:"title"`
	Date         string   `yaml:"date,omitempty"`
	Time         string   `yaml:"time,omitempty"`
	Duration     string   `yaml:"duration,omitempty"`
	Participants []string `yaml:"participants"`
	MeetingType  string   `yaml:"meeting_type,omitempty"`
	Sentiment    string   `yaml:"sentiment,omitempty"`
	EnergyLevel  string   `yaml:"energy_level,omitempty"`
	MostEngaged  string   `yaml:"most_engaged,omitempty"`
	WordCount    int      `yaml:"word_count"`
	Tags         []string `yaml:"tags"`
	AudioFile    string   `yaml:"audio_file,omitempty"`
	Truncated    bool     `yaml:"truncated,omitempty"`
	KrispSource  string   `yaml:"krisp_source"`
	KrispID      string   `yaml:"krisp_id"`
	Imported     string   `yaml:"imported"`
}

// Renderer fills a note template from parsed records. It is safe for
// concurrent use.
type Renderer struct {
	template string
}

// NewRenderer returns a renderer for tmpl; an empty template selects
// DefaultTemplate.
func NewRenderer(tmpl string) *Renderer {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultTemplate
	}
	return &Renderer{template: tmpl}
}

// Template returns the template in use.
func (r *Renderer) Template() string {
	return r.template
}

// Render produces the note content for rec. Frontmatter is placed where
// the template says, or prepended when the template does not mention it.
func (r *Renderer) Render(rec *importer.ParsedMeetingRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("render: nil record")
	}
	values, err := Values(rec)
	if err != nil {
		return "", err
	}

	tmpl := r.template
	if !hasPlaceholder(tmpl, PlaceholderFrontmatter) {
		tmpl = "{{" + PlaceholderFrontmatter + "}}\n" + tmpl
	}
	return trimTrailingSpace(Substitute(tmpl, values)), nil
}

// BuildFrontmatter derives the note header from rec.
func BuildFrontmatter(rec *importer.ParsedMeetingRecord) Frontmatter {
	fm := Frontmatter{
		Title:        rec.Title,
		Date:         rec.Date,
		Duration:     rec.Duration,
		Participants: nonNil(rec.Participants),
		MostEngaged:  rec.MostEngaged,
		WordCount:    rec.WordCount,
		Tags:         nonNil(rec.Tags),
		AudioFile:    rec.AudioFile,
		Truncated:    rec.Truncated,
		KrispSource:  rec.Source,
		KrispID:      rec.ID,
		Imported:     rec.ImportedAt.UTC().Format(time.RFC3339),
	}
	if rec.Time != meeting.UnknownTime {
		fm.Time = rec.Time
	}
	if rec.MostEngaged == analytics.NoSpeaker {
		fm.MostEngaged = ""
	}
	if a := rec.Analytics; a != nil {
		fm.MeetingType = string(a.MeetingType)
		fm.Sentiment = string(a.Sentiment)
		fm.EnergyLevel = string(a.EnergyLevel)
	}
	return fm
}

// MarshalFrontmatter renders fm between "---" fences.
func MarshalFrontmatter(fm Frontmatter) (string, error) {
	data, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("marshal frontmatter: %w", err)
	}
	return "---\n" + string(data) + "---", nil
}

// Values computes the value of every known placeholder for rec.
func Values(rec *importer.ParsedMeetingRecord) (map[string]string, error) {
	fm, err := MarshalFrontmatter(BuildFrontmatter(rec))
	if err != nil {
		return nil, err
	}

	v := map[string]string{
		PlaceholderFrontmatter:         fm,
		PlaceholderID:                  rec.ID,
		PlaceholderSource:              rec.Source,
		PlaceholderTitle:               rec.Title,
		PlaceholderDate:                rec.Date,
		PlaceholderTime:                rec.Time,
		PlaceholderDuration:            rec.Duration,
		PlaceholderParticipants:        strings.Join(rec.Participants, ", "),
		PlaceholderParticipantsList:    bulletList(rec.Participants, "- "),
		PlaceholderParticipantsStats:   StatsTable(rec.ParticipantStats),
		PlaceholderMostEngaged:         rec.MostEngaged,
		PlaceholderSummary:             Summary(rec.Summary),
		PlaceholderActionItems:         bulletList(rec.ActionItems, "- [ ] "),
		PlaceholderKeyPoints:           bulletList(rec.KeyPoints, "- "),
		PlaceholderTranscript:          rec.FormattedTranscript,
		PlaceholderFormattedTranscript: rec.FormattedTranscript,
		PlaceholderRawTranscript:       rec.RawTranscript,
		PlaceholderWordCount:           strconv.Itoa(rec.WordCount),
		PlaceholderEntities:            rec.Entities,
		PlaceholderTags:                hashTags(rec.Tags),
		PlaceholderRelatedLinks:        strings.Join(rec.RelatedLinks, " "),
		PlaceholderAudioFile:           rec.AudioFile,
		PlaceholderAudioEmbed:          "",
		PlaceholderImportedAt:          rec.ImportedAt.UTC().Format(time.RFC3339),
		PlaceholderTruncated:           strconv.FormatBool(rec.Truncated),
		PlaceholderMeetingType:         "",
		PlaceholderSentiment:           "",
		PlaceholderEnergyLevel:         "",
		PlaceholderDecisionCount:       "0",
		PlaceholderQuestionCount:       "0",
	}
	if rec.AudioFile != "" {
		v[PlaceholderAudioEmbed] = "![[" + rec.AudioFile + "]]"
	}
	if a := rec.Analytics; a != nil {
		v[PlaceholderMeetingType] = string(a.MeetingType)
		v[PlaceholderSentiment] = string(a.Sentiment)
		v[PlaceholderEnergyLevel] = string(a.EnergyLevel)
		v[PlaceholderDecisionCount] = strconv.Itoa(a.DecisionCount)
		v[PlaceholderQuestionCount] = strconv.Itoa(a.QuestionCount)
	}
	return v, nil
}

// Summary renders captured Summary lines: sub-headings become "###"
// headings, bullets stay bullets, paragraphs are kept as written.
func Summary(lines []string) string {
	classified := meeting.ClassifySummaryLines(lines)
	out := make([]string, 0, len(classified))
	for _, l := range classified {
		switch l.Kind {
		case meeting.SummaryHeading:
			out = append(out, "### "+strings.TrimSuffix(l.Text, ":"))
		case meeting.SummaryBullet:
			out = append(out, "- "+l.Text)
		case meeting.SummaryParagraph:
			out = append(out, l.Text)
		default:
			out = append(out, "")
		}
	}
	return strings.Join(out, "\n")
}

// StatsTable renders participant statistics as a Markdown table, or ""
// when there are none.
func StatsTable(stats []analytics.ParticipantStats) string {
	if len(stats) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("| Participant | Words | Segments | Avg words/segment | First | Last | Engagement |\n")
	b.WriteString("|---|---:|---:|---:|---|---|---:|")
	for _, s := range stats {
		fmt.Fprintf(&b, "\n| %s | %d | %d | %d | %s | %s | %d |",
			escapeCell(s.Speaker), s.Words, s.Segments, s.AverageSegmentLength,
			s.FirstAppearance, s.LastAppearance, s.EngagementScore)
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func bulletList(items []string, prefix string) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			lines = append(lines, prefix+item)
		}
	}
	return strings.Join(lines, "\n")
}

func hashTags(tags []string) string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, "#"+t)
	}
	return strings.Join(out, " ")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
