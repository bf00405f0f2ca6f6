package analytics

import (
	"fmt"
	"strings"

	kerrors "github.com/otherjamesbrown/krisp-import/pkg/errors"
)

// Supported lexicon locales.
const (
	LocaleRussian = "ru"
	LocaleEnglish = "en"
	LocaleAuto    = "auto"
)

// Lexicon holds the keyword sets the aggregator matches against lowercased
// text. Entries are substrings unless noted.
type Lexicon struct {
	Locale string

	// QuestionWords are matched against the first word of a line.
	QuestionWords []string

	DecisionStems []string
	PositiveWords []string
	NegativeWords []string

	// TypeKeywords mark keyword-classified meeting types.
	TypeKeywords map[MeetingType][]string
}

// RussianLexicon returns the Russian keyword set.
func RussianLexicon() Lexicon {
	return Lexicon{
		Locale: LocaleRussian,
		QuestionWords: []string{
			"как", "что", "почему", "зачем", "когда", "где", "кто", "куда", "откуда",
			"какой", "какая", "какое", "какие", "сколько", "разве", "неужели",
		},
		DecisionStems: []string{"решили", "решение", "принято", "утверждено", "согласовали", "определили"},
		PositiveWords: []string{
			"отлично", "хорошо", "супер", "согласен", "спасибо", "прекрасно",
			"успешно", "молодцы", "здорово", "нравится",
		},
		NegativeWords: []string{
			"проблема", "плохо", "ошибка", "сложно", "не получается",
			"задержка", "риск", "срыв", "к сожалению", "не работает",
		},
		TypeKeywords: map[MeetingType][]string{
			MeetingTypeRetrospective: {"ретро"},
			MeetingTypeStandup:       {"планерка", "планёрка"},
			MeetingTypePresentation:  {"презентация", "демо"},
		},
	}
}

// EnglishLexicon returns the English keyword set.
func EnglishLexicon() Lexicon {
	return Lexicon{
		Locale: LocaleEnglish,
		QuestionWords: []string{
			"what", "why", "how", "when", "where", "who", "which",
			"can", "could", "should", "would", "is", "are", "does",
		},
		DecisionStems: []string{"decided", "decision", "agreed", "approved", "we will go with"},
		PositiveWords: []string{
			"great", "good", "excellent", "thanks", "thank you", "awesome",
			"agree", "perfect", "success", "love",
		},
		NegativeWords: []string{
			"problem", "issue", "bad", "error", "difficult", "blocked",
			"delay", "risk", "unfortunately", "broken",
		},
		TypeKeywords: map[MeetingType][]string{
			MeetingTypeRetrospective: {"retrospective"},
			MeetingTypeStandup:       {"standup", "stand-up"},
			MeetingTypePresentation:  {"presentation", "demo"},
		},
	}
}

// MergeLexicons combines lexicons, keeping first-seen order and dropping
// duplicate entries.
func MergeLexicons(locale string, lexicons ...Lexicon) Lexicon {
	merged := Lexicon{
		Locale:       locale,
		TypeKeywords: make(map[MeetingType][]string),
	}
	for _, l := range lexicons {
		merged.QuestionWords = appendUnique(merged.QuestionWords, l.QuestionWords...)
		merged.DecisionStems = appendUnique(merged.DecisionStems, l.DecisionStems...)
		merged.PositiveWords = appendUnique(merged.PositiveWords, l.PositiveWords...)
		merged.NegativeWords = appendUnique(merged.NegativeWords, l.NegativeWords...)
		for t, words := range l.TypeKeywords {
			merged.TypeKeywords[t] = appendUnique(merged.TypeKeywords[t], words...)
		}
	}
	return merged
}

// DefaultLexicon matches Russian and English keywords together.
func DefaultLexicon() Lexicon {
	return MergeLexicons(LocaleAuto, RussianLexicon(), EnglishLexicon())
}

// LexiconFor resolves a configured locale name. An empty name selects the
// default mixed lexicon.
func LexiconFor(locale string) (Lexicon, error) {
	switch strings.ToLower(strings.TrimSpace(locale)) {
	case "", LocaleAuto:
		return DefaultLexicon(), nil
	case LocaleRussian:
		return RussianLexicon(), nil
	case LocaleEnglish:
		return EnglishLexicon(), nil
	default:
		return Lexicon{}, fmt.Errorf("unknown locale %q: %w", locale, kerrors.ErrValidation)
	}
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		v = strings.ToLower(v)
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
