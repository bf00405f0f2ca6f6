package extraction

import (
	"regexp"
	"strings"

	"github.com/otherjamesbrown/krisp-import/pkg/enrichment/analytics"
)

// Base and conditional tag names.
const (
	TagMeeting       = "meeting"
	TagManyDecisions = "many-decisions"
	TagManyQuestions = "many-questions"
	TagSmallGroup    = "small-group"
	TagMediumGroup   = "medium-group"
	TagLargeGroup    = "large-group"
)

// Tag thresholds.
const (
	ManyDecisionsAbove = 5
	ManyQuestionsAbove = 10
	SmallGroupMax      = 2
	MediumGroupMax     = 5
)

// TagRule adds Tag when any keyword starts a word in the analysed text.
// Keywords are lowercase word prefixes, so stems match inflected forms.
type TagRule struct {
	Tag      string
	Keywords []string
}

// DefaultDomainRules is the English/Russian topic dictionary.
func DefaultDomainRules() []TagRule {
	return []TagRule{
		{"project", []string{"проект", "project"}},
		{"planning", []string{"планирован", "план ", "roadmap", "planning", "plan "}},
		{"development", []string{"разработ", "development", "develop", "код", "code"}},
		{"discussion", []string{"обсужд", "discuss"}},
		{"analysis", []string{"анализ", "analys", "analyz"}},
		{"strategy", []string{"стратег", "strateg"}},
		{"implementation", []string{"внедрен", "реализац", "implement"}},
		{"testing", []string{"тестир", "тест", "testing", "test "}},
		{"review", []string{"ревью", "обзор", "review"}},
		{"budget", []string{"бюджет", "budget"}},
		{"deadline", []string{"дедлайн", "срок", "deadline"}},
		{"hr", []string{"найм", "ваканси", "собеседован", "hiring", "recruit", "interview"}},
		{"integration", []string{"интеграц", "integrat"}},
		{"technical", []string{"техническ", "архитектур", "technical", "architecture"}},
		{"system", []string{"систем", "system"}},
		{"security", []string{"безопасн", "security", "secure"}},
		{"support", []string{"поддержк", "support"}},
	}
}

// DefaultRoleRules tags meetings by the roles mentioned in them.
func DefaultRoleRules() []TagRule {
	return []TagRule{
		{"management", []string{"менеджер", "руководител", "директор", "manager", "director", "management"}},
		{"technical", []string{"разработчик", "инженер", "архитектор", "developer", "engineer", "devops"}},
		{"design", []string{"дизайн", "designer", "design", "ux "}},
	}
}

// TagInput is everything tag generation looks at.
type TagInput struct {
	Analytics  *analytics.MeetingAnalytics
	Notes      string
	Transcript string
	Title      string
}

// GenerateTags returns ordered, de-duplicated smart tags: base tags, the
// analytics classifications, group size, conditional counters, then
// keyword-triggered domain and role tags.
func (e *Extractor) GenerateTags(in TagInput) []string {
	a := in.Analytics
	if a == nil {
		a = &analytics.MeetingAnalytics{}
	}

	tags := []string{TagMeeting, e.sourceTag}
	if a.MeetingType != "" {
		tags = append(tags, string(a.MeetingType))
	}
	if a.Sentiment != "" {
		tags = append(tags, string(a.Sentiment))
	}
	if a.EnergyLevel != "" {
		tags = append(tags, string(a.EnergyLevel)+"-energy")
	}

	tags = append(tags, groupSizeTag(len(a.Participants)))

	if a.DecisionCount > ManyDecisionsAbove {
		tags = append(tags, TagManyDecisions)
	}
	if a.QuestionCount > ManyQuestionsAbove {
		tags = append(tags, TagManyQuestions)
	}

	text := " " + strings.ToLower(in.Title+"\n"+AnalysisText(in.Notes, in.Transcript, e.analysisLimit)) + " "
	tags = append(tags, matchRules(text, e.domainRules)...)
	tags = append(tags, matchRules(text, e.roleRules)...)

	return uniqueTags(tags)
}

func groupSizeTag(participants int) string {
	switch {
	case participants <= SmallGroupMax:
		return TagSmallGroup
	case participants <= MediumGroupMax:
		return TagMediumGroup
	default:
		return TagLargeGroup
	}
}

var nonLetterRegex = regexp.MustCompile(`[^\p{L}\p{N} ]+`)

// matchRules checks each keyword at word starts. Keywords ending in a space
// must match a whole word.
func matchRules(text string, rules []TagRule) []string {
	normalized := nonLetterRegex.ReplaceAllString(text, " ")
	var tags []string
	for _, r := range rules {
		for _, k := range r.Keywords {
			if strings.Contains(normalized, " "+k) {
				tags = append(tags, r.Tag)
				break
			}
		}
	}
	return tags
}

func uniqueTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
