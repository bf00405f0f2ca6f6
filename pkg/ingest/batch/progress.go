// Package batch imports one or more Krisp exports into a vault and tracks
// progress across them.
package batch

import (
	"sync"
	"time"
)

// Progress statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Progress tracks a batch import. Sources are archives or folders; each
// source holds one or more meetings.
type Progress struct {
	mu sync.RWMutex

	TotalSources     int
	ProcessedSources int

	ImportedMeetings int
	SkippedMeetings  int
	FailedMeetings   int

	CurrentSource string
	Status        string

	StartedAt time.Time
	UpdatedAt time.Time

	onUpdate func(ProgressSnapshot)
}

// NewProgress creates a tracker for totalSources sources.
func NewProgress(totalSources int) *Progress {
	now := time.Now()
	return &Progress{
		TotalSources: totalSources,
		Status:       StatusPending,
		StartedAt:    now,
		UpdatedAt:    now,
	}
}

// SetOnUpdate sets a callback invoked with a snapshot after each change.
// The callback runs on the goroutine making the change.
func (p *Progress) SetOnUpdate(fn func(ProgressSnapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onUpdate = fn
}

// Start marks the batch as running.
func (p *Progress) Start() {
	p.update(func() {
		p.Status = StatusRunning
		p.StartedAt = time.Now()
	})
}

// SetCurrentSource records the source being processed.
func (p *Progress) SetCurrentSource(path string) {
	p.update(func() { p.CurrentSource = path })
}

// RecordImported counts an imported meeting.
func (p *Progress) RecordImported() {
	p.update(func() { p.ImportedMeetings++ })
}

// RecordSkipped counts a meeting skipped as a duplicate.
func (p *Progress) RecordSkipped() {
	p.update(func() { p.SkippedMeetings++ })
}

// RecordFailed counts a failed meeting.
func (p *Progress) RecordFailed() {
	p.update(func() { p.FailedMeetings++ })
}

// SourceDone counts a finished source.
func (p *Progress) SourceDone() {
	p.update(func() { p.ProcessedSources++ })
}

// Complete marks the batch finished.
func (p *Progress) Complete(success bool) {
	p.update(func() {
		if success {
			p.Status = StatusCompleted
		} else {
			p.Status = StatusFailed
		}
	})
}

// Cancel marks the batch cancelled.
func (p *Progress) Cancel() {
	p.update(func() { p.Status = StatusCancelled })
}

func (p *Progress) update(fn func()) {
	p.mu.Lock()
	fn()
	p.UpdatedAt = time.Now()
	cb := p.onUpdate
	snap := p.snapshotLocked()
	p.mu.Unlock()

	if cb != nil {
		cb(snap)
	}
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked()
}

func (p *Progress) snapshotLocked() ProgressSnapshot {
	elapsed := time.Since(p.StartedAt).Seconds()
	var remaining *float64
	if p.ProcessedSources > 0 {
		est := elapsed / float64(p.ProcessedSources) * float64(p.TotalSources-p.ProcessedSources)
		remaining = &est
	}
	return ProgressSnapshot{
		TotalSources:              p.TotalSources,
		ProcessedSources:          p.ProcessedSources,
		ImportedMeetings:          p.ImportedMeetings,
		SkippedMeetings:           p.SkippedMeetings,
		FailedMeetings:            p.FailedMeetings,
		CurrentSource:             p.CurrentSource,
		Status:                    p.Status,
		StartedAt:                 p.StartedAt,
		ElapsedSeconds:            elapsed,
		EstimatedRemainingSeconds: remaining,
	}
}

// ProgressSnapshot is an immutable view of Progress.
type ProgressSnapshot struct {
	TotalSources              int
	ProcessedSources          int
	ImportedMeetings          int
	SkippedMeetings           int
	FailedMeetings            int
	CurrentSource             string
	Status                    string
	StartedAt                 time.Time
	ElapsedSeconds            float64
	EstimatedRemainingSeconds *float64
}

// PercentComplete is the share of sources processed.
func (s ProgressSnapshot) PercentComplete() float64 {
	if s.TotalSources == 0 {
		return 0
	}
	return float64(s.ProcessedSources) / float64(s.TotalSources) * 100
}

// IsComplete reports whether every source has been processed.
func (s ProgressSnapshot) IsComplete() bool {
	return s.ProcessedSources >= s.TotalSources
}

// IsSuccess reports a completed batch without failed meetings.
func (s ProgressSnapshot) IsSuccess() bool {
	return s.Status == StatusCompleted && s.FailedMeetings == 0
}
