package analytics

import (
	"math"
	"regexp"
	"strings"

	"github.com/otherjamesbrown/krisp-import/pkg/ingest/meeting"
)

var firstWordRegex = regexp.MustCompile(`[\p{L}\p{N}_]+`)

var _ meeting.TurnObserver = (*Aggregator)(nil)

// Aggregator accumulates MeetingAnalytics from segmenter events. Register it
// as an observer on meeting.Segment or meeting.SegmentStream and call Result
// once the pass is complete.
type Aggregator struct {
	lexicon    Lexicon
	thresholds Thresholds

	stats    map[string]*ParticipantStats
	order    []string
	duration string

	questions    int
	decisions    int
	sentimentSum float64
	scoredLines  int
	typeHits     map[MeetingType]bool

	result *MeetingAnalytics
}

// NewAggregator creates an aggregator using the given keyword sets and
// classifier constants.
func NewAggregator(lexicon Lexicon, thresholds Thresholds) *Aggregator {
	return &Aggregator{
		lexicon:    lexicon,
		thresholds: thresholds,
		stats:      make(map[string]*ParticipantStats),
		order:      make([]string, 0),
		duration:   meeting.NoDuration,
		typeHits:   make(map[MeetingType]bool),
	}
}

// OnTurn records the start of a speaker turn.
func (a *Aggregator) OnTurn(speaker, timestamp string) {
	a.scanTypeKeywords(strings.ToLower(speaker))
	a.duration = timestamp

	s, ok := a.stats[speaker]
	if !ok {
		s = &ParticipantStats{Speaker: speaker, FirstAppearance: timestamp}
		a.stats[speaker] = s
		a.order = append(a.order, speaker)
	}
	s.Segments++
	s.LastAppearance = timestamp
}

// OnLine scores one dialogue line. Lines without a speaker only feed the
// meeting-type keyword scan.
func (a *Aggregator) OnLine(speaker, line string) {
	lower := strings.ToLower(line)
	a.scanTypeKeywords(lower)

	s, ok := a.stats[speaker]
	if speaker == "" || !ok {
		return
	}

	s.Words += meeting.CountWords(line)
	if a.isQuestion(lower) {
		a.questions++
	}
	if containsAny(lower, a.lexicon.DecisionStems) {
		a.decisions++
	}

	a.sentimentSum += a.thresholds.BaseSentiment +
		float64(countHits(lower, a.lexicon.PositiveWords)) -
		float64(countHits(lower, a.lexicon.NegativeWords))
	a.scoredLines++
}

func (a *Aggregator) isQuestion(lower string) bool {
	if strings.Contains(lower, "?") {
		return true
	}
	first := firstWordRegex.FindString(lower)
	for _, w := range a.lexicon.QuestionWords {
		if first == w {
			return true
		}
	}
	return false
}

func (a *Aggregator) scanTypeKeywords(lower string) {
	for t, words := range a.lexicon.TypeKeywords {
		if !a.typeHits[t] && containsAny(lower, words) {
			a.typeHits[t] = true
		}
	}
}

// Result finalizes the pass. Engagement scores need the total word count, so
// they are computed here. Later calls return the same result.
func (a *Aggregator) Result() *MeetingAnalytics {
	if a.result != nil {
		return a.result
	}

	totalWords, totalSegments := 0, 0
	for _, name := range a.order {
		totalWords += a.stats[name].Words
		totalSegments += a.stats[name].Segments
	}

	res := &MeetingAnalytics{
		Duration:         a.duration,
		Participants:     append(make([]string, 0, len(a.order)), a.order...),
		ParticipantStats: make(map[string]ParticipantStats, len(a.order)),
		DecisionCount:    a.decisions,
		QuestionCount:    a.questions,
		TotalWords:       totalWords,
		TotalSegments:    totalSegments,
		MostEngaged:      NoSpeaker,
	}

	best := -1
	for _, name := range a.order {
		s := *a.stats[name]
		s.AverageSegmentLength = roundHalfUp(float64(s.Words) / float64(s.Segments))
		s.EngagementScore = EngagementScore(s.Words, s.Segments, s.AverageSegmentLength, totalWords, a.thresholds)
		res.ParticipantStats[name] = s

		if s.EngagementScore > best {
			best = s.EngagementScore
			res.MostEngaged = name
		}
	}

	res.MeetingType = a.classifyMeetingType()
	res.Sentiment = a.classifySentiment()
	res.EnergyLevel = classifyEnergy(totalSegments, len(a.order), a.thresholds)

	a.result = res
	return res
}

// EngagementScore blends share of voice, turn consistency and turn
// frequency into a 0-100 score:
//
//	round(wordShare*60 + avgSegment/max(words,1)*30 + min(segments/10, 1)*10)
func EngagementScore(words, segments, avgSegmentLength, totalWords int, th Thresholds) int {
	wordShare := 0.0
	if totalWords > 0 {
		wordShare = float64(words) / float64(totalWords)
	}
	consistency := float64(avgSegmentLength) / float64(max(words, 1))
	frequency := math.Min(float64(segments)/th.FrequencySegments, 1)

	score := roundHalfUp(wordShare*th.WordShareWeight + consistency*th.ConsistencyWeight + frequency*th.FrequencyWeight)
	return min(max(score, 0), 100)
}

type meetingTypeRule struct {
	meetingType MeetingType
	matches     func(a *Aggregator) bool
}

// meetingTypeRules are evaluated in priority order; the first match wins.
var meetingTypeRules = []meetingTypeRule{
	{MeetingTypeRetrospective, func(a *Aggregator) bool { return a.typeHits[MeetingTypeRetrospective] }},
	{MeetingTypeStandup, func(a *Aggregator) bool { return a.typeHits[MeetingTypeStandup] }},
	{MeetingTypePresentation, func(a *Aggregator) bool { return a.typeHits[MeetingTypePresentation] }},
	{MeetingTypeDecisionMaking, func(a *Aggregator) bool {
		return a.decisions > a.questions && a.decisions > a.thresholds.DecisionMeetingMin
	}},
	{MeetingTypeDiscussion, func(a *Aggregator) bool {
		return a.questions > a.decisions && a.questions > a.thresholds.DiscussionMin
	}},
}

func (a *Aggregator) classifyMeetingType() MeetingType {
	for _, rule := range meetingTypeRules {
		if rule.matches(a) {
			return rule.meetingType
		}
	}
	return MeetingTypeWorking
}

func (a *Aggregator) classifySentiment() Sentiment {
	avg := a.thresholds.BaseSentiment
	if a.scoredLines > 0 {
		avg = a.sentimentSum / float64(a.scoredLines)
	}
	switch {
	case avg > a.thresholds.PositiveAbove:
		return SentimentPositive
	case avg < a.thresholds.NegativeBelow:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

func classifyEnergy(totalSegments, participants int, th Thresholds) EnergyLevel {
	if participants == 0 {
		return EnergyLow
	}
	avg := float64(totalSegments) / float64(participants)
	switch {
	case avg > th.HighEnergyAbove:
		return EnergyHigh
	case avg > th.MediumEnergyAbove:
		return EnergyMedium
	default:
		return EnergyLow
	}
}

// Analyze segments text and aggregates it in a single pass.
func Analyze(text string, lexicon Lexicon, thresholds Thresholds) (*MeetingAnalytics, *meeting.SegmentResult) {
	agg := NewAggregator(lexicon, thresholds)
	seg := meeting.Segment(text, agg)
	return agg.Result(), seg
}

func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func countHits(s string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(s, k) {
			n++
		}
	}
	return n
}
