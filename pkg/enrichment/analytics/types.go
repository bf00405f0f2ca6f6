// Package analytics computes per-participant engagement and whole-meeting
// classification from a segmented transcript in the same pass that
// segments it.
package analytics

import (
	"sort"
)

// MeetingType is the closed set of meeting classifications.
type MeetingType string

const (
	MeetingTypeRetrospective  MeetingType = "retrospective"
	MeetingTypeStandup        MeetingType = "standup"
	MeetingTypePresentation   MeetingType = "presentation"
	MeetingTypeDecisionMaking MeetingType = "decision-making"
	MeetingTypeDiscussion     MeetingType = "discussion"
	MeetingTypeWorking        MeetingType = "working-meeting"
)

// Sentiment is the overall tone of a meeting.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// EnergyLevel reflects how much turn-taking happened.
type EnergyLevel string

const (
	EnergyHigh   EnergyLevel = "high"
	EnergyMedium EnergyLevel = "medium"
	EnergyLow    EnergyLevel = "low"
)

// NoSpeaker is reported as MostEngaged when nobody spoke.
const NoSpeaker = "N/A"

// ParticipantStats aggregates one speaker's contribution.
type ParticipantStats struct {
	Speaker              string `json:"speaker" yaml:"speaker"`
	Words                int    `json:"words" yaml:"words"`
	Segments             int    `json:"segments" yaml:"segments"`
	AverageSegmentLength int    `json:"average_segment_length" yaml:"average_segment_length"`
	FirstAppearance      string `json:"first_appearance" yaml:"first_appearance"`
	LastAppearance       string `json:"last_appearance" yaml:"last_appearance"`
	EngagementScore      int    `json:"engagement_score" yaml:"engagement_score"`
}

// MeetingAnalytics is the whole-meeting aggregate. It is not modified after
// the aggregator that produced it finishes.
type MeetingAnalytics struct {
	Duration         string                      `json:"duration" yaml:"duration"`
	Participants     []string                    `json:"participants" yaml:"participants"`
	ParticipantStats map[string]ParticipantStats `json:"participant_stats" yaml:"participant_stats"`
	MeetingType      MeetingType                 `json:"meeting_type" yaml:"meeting_type"`
	Sentiment        Sentiment                   `json:"sentiment" yaml:"sentiment"`
	EnergyLevel      EnergyLevel                 `json:"energy_level" yaml:"energy_level"`
	DecisionCount    int                         `json:"decision_count" yaml:"decision_count"`
	QuestionCount    int                         `json:"question_count" yaml:"question_count"`
	TotalWords       int                         `json:"total_words" yaml:"total_words"`
	TotalSegments    int                         `json:"total_segments" yaml:"total_segments"`
	MostEngaged      string                      `json:"most_engaged" yaml:"most_engaged"`
}

// SortedStats lists participant stats by engagement score, highest first.
// Equal scores keep first-seen order.
func (a *MeetingAnalytics) SortedStats() []ParticipantStats {
	out := make([]ParticipantStats, 0, len(a.Participants))
	for _, name := range a.Participants {
		if s, ok := a.ParticipantStats[name]; ok {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EngagementScore > out[j].EngagementScore
	})
	return out
}

// Clone returns a deep copy.
func (a *MeetingAnalytics) Clone() *MeetingAnalytics {
	if a == nil {
		return nil
	}
	c := *a
	c.Participants = append(make([]string, 0, len(a.Participants)), a.Participants...)
	c.ParticipantStats = make(map[string]ParticipantStats, len(a.ParticipantStats))
	for k, v := range a.ParticipantStats {
		c.ParticipantStats[k] = v
	}
	return &c
}
