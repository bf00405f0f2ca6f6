package batch

import (
	"sync/atomic"
	"testing"
)

func TestProgress(t *testing.T) {
	p := NewProgress(3)

	if p.TotalSources != 3 {
		t.Errorf("unexpected total sources: %d", p.TotalSources)
	}
	if p.Status != StatusPending {
		t.Errorf("unexpected status: %s", p.Status)
	}

	p.Start()
	if p.Status != StatusRunning {
		t.Errorf("expected running status, got: %s", p.Status)
	}

	p.SetCurrentSource("/exports/sync.zip")
	if p.CurrentSource != "/exports/sync.zip" {
		t.Errorf("unexpected current source: %s", p.CurrentSource)
	}

	p.RecordImported()
	p.RecordImported()
	p.RecordSkipped()
	p.RecordFailed()
	p.SourceDone()

	s := p.Snapshot()
	if s.ImportedMeetings != 2 || s.SkippedMeetings != 1 || s.FailedMeetings != 1 {
		t.Errorf("unexpected meeting counts: imported=%d skipped=%d failed=%d",
			s.ImportedMeetings, s.SkippedMeetings, s.FailedMeetings)
	}
	if s.ProcessedSources != 1 {
		t.Errorf("unexpected processed sources: %d", s.ProcessedSources)
	}

	p.Complete(true)
	if p.Status != StatusCompleted {
		t.Errorf("expected completed status, got: %s", p.Status)
	}
}

func TestProgressSnapshot(t *testing.T) {
	p := NewProgress(4)
	p.Start()
	p.SourceDone()

	s := p.Snapshot()
	if pct := s.PercentComplete(); pct != 25 {
		t.Errorf("unexpected percent complete: %f", pct)
	}
	if s.IsComplete() {
		t.Error("should not be complete yet")
	}
	if s.EstimatedRemainingSeconds == nil {
		t.Fatal("expected estimated remaining to be calculated")
	}
	if *s.EstimatedRemainingSeconds < 0 {
		t.Error("estimated remaining should not be negative")
	}

	if NewProgress(0).Snapshot().PercentComplete() != 0 {
		t.Error("empty batch should report 0 percent")
	}
}

func TestProgressCancel(t *testing.T) {
	p := NewProgress(1)
	p.Start()
	p.Cancel()

	if p.Status != StatusCancelled {
		t.Errorf("expected cancelled status, got: %s", p.Status)
	}
}

func TestProgressCallback(t *testing.T) {
	p := NewProgress(10)

	var calls int32
	var last atomic.Value
	p.SetOnUpdate(func(s ProgressSnapshot) {
		atomic.AddInt32(&calls, 1)
		last.Store(s)
	})

	p.Start()
	p.RecordImported()

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected 2 callbacks, got: %d", got)
	}
	if s := last.Load().(ProgressSnapshot); s.ImportedMeetings != 1 {
		t.Errorf("callback saw stale snapshot: %+v", s)
	}
}

func TestProgressSnapshotIsSuccess(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*Progress)
		expected bool
	}{
		{
			name: "completed with no failures",
			setup: func(p *Progress) {
				p.Start()
				p.RecordImported()
				p.Complete(true)
			},
			expected: true,
		},
		{
			name: "completed with failures",
			setup: func(p *Progress) {
				p.Start()
				p.RecordFailed()
				p.Complete(false)
			},
			expected: false,
		},
		{
			name: "not completed",
			setup: func(p *Progress) {
				p.Start()
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgress(10)
			tt.setup(p)
			if got := p.Snapshot().IsSuccess(); got != tt.expected {
				t.Errorf("expected IsSuccess=%v, got %v", tt.expected, got)
			}
		})
	}
}
