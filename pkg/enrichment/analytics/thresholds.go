package analytics

// Thresholds are the tuning constants of the classifiers and the engagement
// formula. DefaultThresholds reproduces the established behaviour; tests
// probe boundaries by adjusting individual fields.
type Thresholds struct {
	// Sentiment: each scored line starts at BaseSentiment and moves one
	// point per keyword hit. Averages above PositiveAbove are positive,
	// below NegativeBelow negative.
	BaseSentiment float64
	PositiveAbove float64
	NegativeBelow float64

	// Meeting type: more decisions than questions and over DecisionMeetingMin
	// is decision-making; more questions than decisions and over
	// DiscussionMin is a discussion.
	DecisionMeetingMin int
	DiscussionMin      int

	// Energy: average turns per participant.
	HighEnergyAbove   float64
	MediumEnergyAbove float64

	// Engagement weights. FrequencySegments is the turn count at which the
	// frequency component saturates.
	WordShareWeight   float64
	ConsistencyWeight float64
	FrequencyWeight   float64
	FrequencySegments float64
}

// DefaultThresholds returns the standard classifier constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		BaseSentiment:      5,
		PositiveAbove:      6,
		NegativeBelow:      4,
		DecisionMeetingMin: 3,
		DiscussionMin:      5,
		HighEnergyAbove:    15,
		MediumEnergyAbove:  8,
		WordShareWeight:    60,
		ConsistencyWeight:  30,
		FrequencyWeight:    10,
		FrequencySegments:  10,
	}
}
