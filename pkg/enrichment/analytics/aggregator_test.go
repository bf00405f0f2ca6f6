package analytics

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/krisp-import/pkg/ingest/meeting"
)

const tenWords = "one two three four five six seven eight nine ten"

type turn struct {
	speaker string
	lines   []string
}

// buildTranscript renders turns one second apart.
func buildTranscript(turns ...turn) string {
	var b strings.Builder
	for i, t := range turns {
		fmt.Fprintf(&b, "%s | 00:%02d:%02d\n", t.speaker, i/60, i%60)
		for _, l := range t.lines {
			b.WriteString(l)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func alternating(n int, line string) []turn {
	turns := make([]turn, 0, n)
	for i := 0; i < n; i++ {
		speaker := "Alice"
		if i%2 == 1 {
			speaker = "Bob"
		}
		turns = append(turns, turn{speaker, []string{line}})
	}
	return turns
}

func analyze(text string) *MeetingAnalytics {
	a, _ := Analyze(text, DefaultLexicon(), DefaultThresholds())
	return a
}

func TestAggregator_DominantSpeakerIsMoreEngaged(t *testing.T) {
	turns := make([]turn, 0, 10)
	for i := 0; i < 9; i++ {
		turns = append(turns, turn{"Alice", []string{tenWords}})
	}
	turns = append(turns, turn{"Bob", []string{tenWords}})

	a := analyze(buildTranscript(turns...))

	alice := a.ParticipantStats["Alice"]
	bob := a.ParticipantStats["Bob"]
	assert.Equal(t, 90, alice.Words)
	assert.Equal(t, 10, bob.Words)
	assert.Greater(t, alice.EngagementScore, bob.EngagementScore)
	// 0.9*60 + (10/90)*30 + 0.9*10 = 66.33
	assert.Equal(t, 66, alice.EngagementScore)
	// 0.1*60 + (10/10)*30 + 0.1*10 = 37
	assert.Equal(t, 37, bob.EngagementScore)
	assert.Equal(t, "Alice", a.MostEngaged)
}

func TestAggregator_ParticipantStats(t *testing.T) {
	text := "Alice | 00:00:05\nHello there team\nBob | 00:00:30\nHi\nAlice | 00:01:10\nLet us begin"

	a := analyze(text)

	assert.Equal(t, []string{"Alice", "Bob"}, a.Participants)
	assert.Equal(t, "00:01:10", a.Duration)
	assert.Equal(t, 3, a.TotalSegments)
	assert.Equal(t, 7, a.TotalWords)

	alice := a.ParticipantStats["Alice"]
	assert.Equal(t, "Alice", alice.Speaker)
	assert.Equal(t, 6, alice.Words)
	assert.Equal(t, 2, alice.Segments)
	assert.Equal(t, 3, alice.AverageSegmentLength)
	assert.Equal(t, "00:00:05", alice.FirstAppearance)
	assert.Equal(t, "00:01:10", alice.LastAppearance)

	bob := a.ParticipantStats["Bob"]
	assert.Equal(t, "00:00:30", bob.FirstAppearance)
	assert.Equal(t, "00:00:30", bob.LastAppearance)
}

func TestAggregator_AverageSegmentLengthRoundsHalfUp(t *testing.T) {
	a := analyze("Alice | 00:00:01\none two three\nAlice | 00:00:02\nfour five")

	assert.Equal(t, 3, a.ParticipantStats["Alice"].AverageSegmentLength)
}

func TestAggregator_WordSumMatchesTranscript(t *testing.T) {
	tests := map[string]string{
		"plain":        buildTranscript(alternating(7, "Привет, как дела? It's fine.")...),
		"continuation": "Alice | 00:00:01\nFirst part\nПродолжение следует...\nBob | 00:00:02\nok",
		"denied label": "Alice | 00:00:01\nHi\nSystem | 00:00:02\nstill Alice",
	}

	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			a := analyze(text)
			sum := 0
			for _, s := range a.ParticipantStats {
				sum += s.Words
			}
			assert.Equal(t, meeting.CountTranscriptWords(text), sum)
			assert.Equal(t, sum, a.TotalWords)
		})
	}
}

func TestAggregator_PreambleWordsAreNotAttributed(t *testing.T) {
	text := "Intro words here\nAlice | 00:00:01\nHello there"

	a := analyze(text)

	assert.Equal(t, 2, a.TotalWords)
	assert.Less(t, a.TotalWords, meeting.CountTranscriptWords(text))
}

func TestAggregator_EmptyTranscript(t *testing.T) {
	a := analyze("")

	require.NotNil(t, a.Participants)
	assert.Empty(t, a.Participants)
	assert.Empty(t, a.ParticipantStats)
	assert.Equal(t, meeting.NoDuration, a.Duration)
	assert.Equal(t, NoSpeaker, a.MostEngaged)
	assert.Equal(t, EnergyLow, a.EnergyLevel)
	assert.Equal(t, SentimentNeutral, a.Sentiment)
	assert.Equal(t, MeetingTypeWorking, a.MeetingType)
}

func TestAggregator_MostEngagedTieKeepsFirstSeen(t *testing.T) {
	a := analyze(buildTranscript(turn{"Bob", []string{"same words"}}, turn{"Alice", []string{"same words"}}))

	require.Equal(t, a.ParticipantStats["Bob"].EngagementScore, a.ParticipantStats["Alice"].EngagementScore)
	assert.Equal(t, "Bob", a.MostEngaged)
}

func TestAggregator_ScoresStayInRange(t *testing.T) {
	transcripts := []string{
		"Alice | 00:00:01",
		"Alice | 00:00:01\nword",
		buildTranscript(alternating(40, tenWords)...),
		buildTranscript(turn{"Solo", []string{strings.Repeat("word ", 500)}}),
	}

	for _, text := range transcripts {
		a := analyze(text)
		for _, s := range a.ParticipantStats {
			assert.GreaterOrEqual(t, s.EngagementScore, 0)
			assert.LessOrEqual(t, s.EngagementScore, 100)
		}
	}
}

func TestEngagementScore(t *testing.T) {
	th := DefaultThresholds()

	assert.Equal(t, 91, EngagementScore(10, 1, 10, 10, th))
	assert.Equal(t, 73, EngagementScore(100, 10, 10, 100, th))
	assert.Equal(t, 71, EngagementScore(100, 25, 4, 100, th), "frequency saturates at ten turns")
	assert.Equal(t, 1, EngagementScore(0, 1, 0, 0, th), "no words")

	half := Thresholds{WordShareWeight: 1, FrequencySegments: 10}
	assert.Equal(t, 1, EngagementScore(1, 1, 1, 2, half), "0.5 rounds up")
}

func TestAggregator_MeetingType(t *testing.T) {
	repeat := func(n int, line string) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = line
		}
		return out
	}

	tests := []struct {
		name     string
		text     string
		expected MeetingType
	}{
		{
			"retrospective keyword",
			buildTranscript(turn{"Alice", append([]string{"Начинаем ретро"}, repeat(5, "Мы решили так")...)}),
			MeetingTypeRetrospective,
		},
		{
			"retrospective beats standup",
			buildTranscript(turn{"Alice", []string{"Standup and retrospective together"}}),
			MeetingTypeRetrospective,
		},
		{
			"standup keyword in preamble",
			"Ежедневная планерка\n" + buildTranscript(turn{"Alice", []string{"Привет"}}),
			MeetingTypeStandup,
		},
		{
			"standup keyword in speaker name",
			buildTranscript(turn{"Standup Bot", []string{"Hello"}}),
			MeetingTypeStandup,
		},
		{
			"presentation",
			buildTranscript(turn{"Alice", []string{"Покажу демо нового экрана"}}),
			MeetingTypePresentation,
		},
		{
			"decision making",
			buildTranscript(turn{"Alice", repeat(4, "Мы решили перенести релиз")}),
			MeetingTypeDecisionMaking,
		},
		{
			"decisions at threshold",
			buildTranscript(turn{"Alice", repeat(3, "Мы решили перенести релиз")}),
			MeetingTypeWorking,
		},
		{
			"discussion",
			buildTranscript(turn{"Alice", repeat(6, "Когда релиз")}),
			MeetingTypeDiscussion,
		},
		{
			"questions at threshold",
			buildTranscript(turn{"Alice", repeat(5, "Ready?")}),
			MeetingTypeWorking,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, analyze(tt.text).MeetingType)
		})
	}
}

func TestAggregator_QuestionAndDecisionCounts(t *testing.T) {
	text := buildTranscript(turn{"Alice", []string{
		"What is the plan",
		"Это готово?",
		"We agreed on the scope.",
		"Решение принято.",
		"Just a statement.",
	}})

	a := analyze(text)

	assert.Equal(t, 2, a.QuestionCount)
	assert.Equal(t, 2, a.DecisionCount)
}

func TestAggregator_Sentiment(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		expected Sentiment
	}{
		{"positive", []string{"Отлично, спасибо!", "Прекрасно и успешно"}, SentimentPositive},
		{"negative", []string{"Проблема и ошибка", "Плохо, риск срыва"}, SentimentNegative},
		{"boundary stays neutral", []string{"Хорошо"}, SentimentNeutral},
		{"mixed", []string{"Отлично, спасибо!", "Проблема и ошибка"}, SentimentNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, analyze(buildTranscript(turn{"Alice", tt.lines})).Sentiment)
		})
	}
}

func TestAggregator_EnergyLevel(t *testing.T) {
	tests := []struct {
		turns    int
		expected EnergyLevel
	}{
		{34, EnergyHigh},
		{30, EnergyMedium},
		{18, EnergyMedium},
		{16, EnergyLow},
		{2, EnergyLow},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d turns", tt.turns), func(t *testing.T) {
			a := analyze(buildTranscript(alternating(tt.turns, "ok")...))
			assert.Equal(t, tt.expected, a.EnergyLevel)
		})
	}
}

func TestAggregator_ThresholdsAreConfigurable(t *testing.T) {
	th := DefaultThresholds()
	th.HighEnergyAbove = 0

	a, _ := Analyze(buildTranscript(alternating(2, "ok")...), DefaultLexicon(), th)

	assert.Equal(t, EnergyHigh, a.EnergyLevel)
}

func TestAggregator_ResultIsFinal(t *testing.T) {
	agg := NewAggregator(DefaultLexicon(), DefaultThresholds())
	meeting.Segment(scenario, agg)

	first := agg.Result()
	second := agg.Result()

	assert.Same(t, first, second)
}

func TestAnalyze_ReturnsSegmentation(t *testing.T) {
	a, seg := Analyze(scenario, DefaultLexicon(), DefaultThresholds())

	assert.Equal(t, seg.Participants, a.Participants)
	assert.Equal(t, seg.Duration, a.Duration)
	assert.Equal(t, "00:01:10", a.Duration)
}

func TestSortedStats(t *testing.T) {
	a := &MeetingAnalytics{
		Participants: []string{"Alice", "Bob", "Carol"},
		ParticipantStats: map[string]ParticipantStats{
			"Alice": {Speaker: "Alice", EngagementScore: 40},
			"Bob":   {Speaker: "Bob", EngagementScore: 70},
			"Carol": {Speaker: "Carol", EngagementScore: 40},
		},
	}

	got := a.SortedStats()

	require.Len(t, got, 3)
	assert.Equal(t, "Bob", got[0].Speaker)
	assert.Equal(t, "Alice", got[1].Speaker)
	assert.Equal(t, "Carol", got[2].Speaker)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, a.Participants, "participants keep first-seen order")
}

const scenario = "Alice | 00:00:05\nHello team.\n\nBob | 00:01:10\nHi Alice!"
