// Package render turns a parsed meeting into a Markdown note with YAML
// frontmatter by substituting {{placeholder}} names into a template.
package render

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Placeholder names understood by the renderer.
const (
	PlaceholderFrontmatter         = "frontmatter"
	PlaceholderID                  = "id"
	PlaceholderSource              = "source"
	PlaceholderTitle               = "title"
	PlaceholderDate                = "date"
	PlaceholderTime                = "time"
	PlaceholderDuration            = "duration"
	PlaceholderParticipants        = "participants"
	PlaceholderParticipantsList    = "participantsList"
	PlaceholderParticipantsStats   = "participantsStats"
	PlaceholderMostEngaged         = "mostEngaged"
	PlaceholderSummary             = "summary"
	PlaceholderActionItems         = "actionItems"
	PlaceholderKeyPoints           = "keyPoints"
	PlaceholderTranscript          = "transcript"
	PlaceholderFormattedTranscript = "formattedTranscript"
	PlaceholderRawTranscript       = "rawTranscript"
	PlaceholderWordCount           = "wordCount"
	PlaceholderMeetingType         = "meetingType"
	PlaceholderSentiment           = "sentiment"
	PlaceholderEnergyLevel         = "energyLevel"
	PlaceholderDecisionCount       = "decisionCount"
	PlaceholderQuestionCount       = "questionCount"
	PlaceholderEntities            = "entities"
	PlaceholderTags                = "tags"
	PlaceholderRelatedLinks        = "relatedLinks"
	PlaceholderAudioFile           = "audioFile"
	PlaceholderAudioEmbed          = "audioEmbed"
	PlaceholderImportedAt          = "importedAt"
	PlaceholderTruncated           = "truncated"
)

// {{name}} with optional inner spaces.
var placeholderRegex = regexp.MustCompile(`\{\{\s*([A-Za-z][A-Za-z0-9_]*)\s*\}\}`)

// DefaultTemplate is used when no template file is configured.
const DefaultTemplate = `{{frontmatter}}
# {{title}}

**Date:** {{date}} {{time}} | **Duration:** {{duration}} | **Words:** {{wordCount}}
**Participants:** {{participants}}

## Summary
{{summary}}

## Action Items
{{actionItems}}

## Key Points
{{keyPoints}}

## Meeting Analytics
- **Type:** {{meetingType}}
- **Sentiment:** {{sentiment}}
- **Energy:** {{energyLevel}}
- **Decisions:** {{decisionCount}}
- **Questions:** {{questionCount}}
- **Most engaged:** {{mostEngaged}}

{{participantsStats}}

## Entities
{{entities}}

## Related
{{relatedLinks}}

## Recording
{{audioEmbed}}

## Transcript
{{formattedTranscript}}
`

// LoadTemplate reads a template file. An empty path yields DefaultTemplate.
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return DefaultTemplate, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	return string(data), nil
}

// Substitute replaces every known {{name}} in tmpl with its value in one
// pass, so values are never themselves scanned for placeholders. Unknown
// names are left as written.
func Substitute(tmpl string, values map[string]string) string {
	return placeholderRegex.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholderRegex.FindStringSubmatch(m)[1]
		if v, ok := values[name]; ok {
			return v
		}
		return m
	})
}

// Placeholders lists the distinct placeholder names used in tmpl, in order
// of first appearance.
func Placeholders(tmpl string) []string {
	seen := make(map[string]bool)
	names := make([]string, 0)
	for _, m := range placeholderRegex.FindAllStringSubmatch(tmpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// UnknownPlaceholders lists placeholder names in tmpl that the renderer
// does not fill.
func UnknownPlaceholders(tmpl string) []string {
	known := knownPlaceholders()
	var unknown []string
	for _, name := range Placeholders(tmpl) {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

func knownPlaceholders() map[string]bool {
	names := []string{
		PlaceholderFrontmatter, PlaceholderID, PlaceholderSource, PlaceholderTitle,
		PlaceholderDate, PlaceholderTime, PlaceholderDuration, PlaceholderParticipants,
		PlaceholderParticipantsList, PlaceholderParticipantsStats, PlaceholderMostEngaged,
		PlaceholderSummary, PlaceholderActionItems, PlaceholderKeyPoints, PlaceholderTranscript,
		PlaceholderFormattedTranscript, PlaceholderRawTranscript, PlaceholderWordCount,
		PlaceholderMeetingType, PlaceholderSentiment, PlaceholderEnergyLevel,
		PlaceholderDecisionCount, PlaceholderQuestionCount, PlaceholderEntities, PlaceholderTags,
		PlaceholderRelatedLinks, PlaceholderAudioFile, PlaceholderAudioEmbed,
		PlaceholderImportedAt, PlaceholderTruncated,
	}
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}
	return known
}

func hasPlaceholder(tmpl, name string) bool {
	for _, n := range Placeholders(tmpl) {
		if n == name {
			return true
		}
	}
	return false
}

// trimTrailingSpace removes trailing spaces on each line.
func trimTrailingSpace(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.Join(lines, "\n")
}
