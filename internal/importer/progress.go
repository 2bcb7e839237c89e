package importer

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/chartbagapp/chartbag-server/internal/domain"
)

// ProgressFunc receives status updates during an import.
type ProgressFunc func(domain.ImportStatus)

// CompletionFunc receives the single terminal summary of an import.
type CompletionFunc func(domain.ImportSummary)

// defaultEmitInterval bounds how often coalesced updates go out.
const defaultEmitInterval = 100 * time.Millisecond

// Tracker assembles progress updates from concurrent workers into an
// ordered, rate-bounded stream. Percent never decreases across emitted
// updates, and only the terminal update of a successful import reports
// 100: regular steps are capped below it.
type Tracker struct {
	mu     sync.Mutex
	status domain.ImportStatus

	emitMu   sync.Mutex
	lastStep int

	limiter  *rate.Limiter
	onStatus ProgressFunc
	onDone   CompletionFunc
	done     sync.Once
}

// NewTracker creates a tracker for an import of totalSteps units.
func NewTracker(totalSteps int, onStatus ProgressFunc, onDone CompletionFunc) *Tracker {
	if totalSteps < 1 {
		totalSteps = 1
	}
	return &Tracker{
		status:   domain.ImportStatus{TotalSteps: totalSteps},
		limiter:  rate.NewLimiter(rate.Every(defaultEmitInterval), 1),
		onStatus: onStatus,
		onDone:   onDone,
	}
}

// SetTotal fixes the unit count once it is known.
func (t *Tracker) SetTotal(total int) {
	if total < 1 {
		total = 1
	}
	t.mu.Lock()
	t.status.TotalSteps = total
	t.status.Percent = boundedPercent(t.status.Step, total)
	s := t.status
	t.mu.Unlock()

	t.emit(s, true)
}

// SetStage names the current phase and always emits.
func (t *Tracker) SetStage(stepName string) {
	t.mu.Lock()
	t.status.StepName = stepName
	t.status.Detail = ""
	s := t.status
	t.mu.Unlock()

	t.emit(s, true)
}

// Advance records one completed unit. Updates may be coalesced under load;
// the underlying count is exact either way.
func (t *Tracker) Advance(detail string) {
	t.mu.Lock()
	t.status.Step++
	t.status.Detail = detail
	t.status.Percent = boundedPercent(t.status.Step, t.status.TotalSteps)
	s := t.status
	t.mu.Unlock()

	t.emit(s, false)
}

// Status returns the current progress.
func (t *Tracker) Status() domain.ImportStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Complete emits the terminal 100% update and the success summary.
// Subsequent terminal calls are ignored.
func (t *Tracker) Complete(summary domain.ImportSummary) {
	t.done.Do(func() {
		t.mu.Lock()
		t.status.Step = t.status.TotalSteps
		t.status.Percent = 100
		t.status.StepName = "completed"
		t.status.Detail = summary.Message
		s := t.status
		t.mu.Unlock()

		t.emit(s, true)
		summary.Success = true
		if t.onDone != nil {
			t.onDone(summary)
		}
	})
}

// Fail emits the failure summary. The progress stream ends below 100.
func (t *Tracker) Fail(message string, errorCount int) {
	t.done.Do(func() {
		t.mu.Lock()
		t.status.StepName = "failed"
		t.status.Detail = message
		s := t.status
		t.mu.Unlock()

		t.emit(s, true)
		if t.onDone != nil {
			t.onDone(domain.ImportSummary{
				Success:    false,
				Message:    message,
				ErrorCount: errorCount,
			})
		}
	})
}

// emit pushes one update through the rate bound. Emission is serialized,
// and an update that lost the race to a newer one is dropped so observers
// never see the step count go backwards.
func (t *Tracker) emit(s domain.ImportStatus, forced bool) {
	if t.onStatus == nil {
		return
	}
	if !forced && !t.limiter.Allow() {
		return
	}

	t.emitMu.Lock()
	defer t.emitMu.Unlock()
	if s.Step < t.lastStep {
		return
	}
	t.lastStep = s.Step
	t.onStatus(s)
}

// boundedPercent floors completed/total to a percentage, held below 100
// so the terminal update is the only one that reports it.
func boundedPercent(step, total int) int {
	pct := step * 100 / total
	if pct > 99 {
		pct = 99
	}
	return pct
}
