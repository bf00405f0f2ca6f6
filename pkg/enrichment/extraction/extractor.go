// Package extraction finds project, company and date mentions in meeting
// text and derives smart tags from keywords and analytics.
package extraction

import (
	"strings"
)

// Defaults for the extractor.
const (
	DefaultAnalysisLimit = 5000
	DefaultMaxPerKind    = 5
	DefaultSourceTag     = "krisp"
)

// Extractor runs the entity and tag heuristics. The zero value is not
// usable; create one with NewExtractor.
type Extractor struct {
	analysisLimit int
	maxPerKind    int
	sourceTag     string
	domainRules   []TagRule
	roleRules     []TagRule
}

// Option configures the extractor.
type Option func(*Extractor)

// WithAnalysisLimit bounds the text scanned by every regex, in runes.
func WithAnalysisLimit(limit int) Option {
	return func(e *Extractor) {
		if limit > 0 {
			e.analysisLimit = limit
		}
	}
}

// WithMaxPerKind caps the number of entities listed per block.
func WithMaxPerKind(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxPerKind = n
		}
	}
}

// WithSourceTag sets the tag naming the recording tool.
func WithSourceTag(tag string) Option {
	return func(e *Extractor) {
		if tag = strings.TrimSpace(tag); tag != "" {
			e.sourceTag = tag
		}
	}
}

// WithTagRules replaces the keyword-triggered domain and role tag rules.
func WithTagRules(domain, roles []TagRule) Option {
	return func(e *Extractor) {
		e.domainRules = domain
		e.roleRules = roles
	}
}

// NewExtractor creates an extractor with the default keyword dictionaries.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		analysisLimit: DefaultAnalysisLimit,
		maxPerKind:    DefaultMaxPerKind,
		sourceTag:     DefaultSourceTag,
		domainRules:   DefaultDomainRules(),
		roleRules:     DefaultRoleRules(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AnalysisText joins notes and transcript and truncates the result to at
// most limit runes. Every regex runs on this bounded text only.
func AnalysisText(notes, transcript string, limit int) string {
	if limit > 0 {
		// Bound each part first so a huge transcript is never copied.
		notes = truncateRunes(notes, limit)
		transcript = truncateRunes(transcript, limit)
	}
	text := notes
	if notes != "" && transcript != "" {
		text += "\n\n"
	}
	text += transcript
	return truncateRunes(text, limit)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
