// Package progress applies entity-creation outcomes to a session's progress
// record: success marks and GUID capture, failure bookkeeping, and the
// bounded retry queue.
package progress

import (
	"log/slog"
	"time"

	"registrar/internal/registration/models"
)

// DefaultMaxRetries is the per-entity retry budget.
const DefaultMaxRetries = 3

// Tracker mutates a Progress record one outcome at a time. It holds no state
// of its own besides configuration; the record it operates on lives inside
// the session.
type Tracker struct {
	MaxRetries int
	Logger     *slog.Logger
}

// NewTracker returns a tracker with the default retry budget.
func NewTracker(logger *slog.Logger) *Tracker {
	return &Tracker{MaxRetries: DefaultMaxRetries, Logger: logger}
}

// RecordSuccess marks the entity created. The account's GUID is stashed on
// the progress record itself, since every dependent entity needs it for
// parent linkage.
func (t *Tracker) RecordSuccess(p *models.Progress, entity models.EntityType, id, guid string, now time.Time) {
	row := p.Entity(entity)
	if row == nil {
		t.Logger.Warn("success reported for unplanned entity", "entity", entity)
		return
	}
	stamp(row, now)
	row.Success = true
	row.EntityID = id
	row.EntityGUID = guid
	row.Error = ""

	if entity == models.EntityAccount {
		p.AccountGUID = guid
	}
	p.DequeueRetry(entity)
	p.Recompute()
}

// RecordFailure books a failed attempt. While the retry budget lasts the
// entity goes (back) on the retry queue; once spent it drops off for good
// and only shows up in ExhaustedRetries. TotalRetryCount never decreases.
func (t *Tracker) RecordFailure(p *models.Progress, entity models.EntityType, cause error, now time.Time) {
	row := p.Entity(entity)
	if row == nil {
		t.Logger.Warn("failure reported for unplanned entity", "entity", entity, "error", cause)
		return
	}
	if row.RetryCount >= t.MaxRetries {
		// Budget already spent; the counter stays pinned at the maximum.
		t.Logger.Warn("failure reported for exhausted entity", "entity", entity, "error", cause)
		return
	}
	stamp(row, now)
	row.Success = false
	row.RetryCount++
	if cause != nil {
		row.Error = cause.Error()
	}
	p.TotalRetryCount++

	if row.RetryCount < t.MaxRetries {
		p.EnqueueRetry(entity)
	} else {
		p.DequeueRetry(entity)
		t.Logger.Warn("entity retry budget exhausted",
			"entity", entity, "retry_count", row.RetryCount)
	}
	p.Recompute()
}

// RecordSkip closes an entity step that has nothing to create. The step
// counts as complete so a skipped branch never blocks workflow completion.
func (t *Tracker) RecordSkip(p *models.Progress, entity models.EntityType, reason string, now time.Time) {
	row := p.Entity(entity)
	if row == nil {
		return
	}
	stamp(row, now)
	row.Success = true
	row.Skipped = true
	row.Error = ""
	p.DequeueRetry(entity)
	p.Recompute()
	t.Logger.Info("entity step skipped", "entity", entity, "reason", reason)
}

// NextRetry pops the head of the retry queue, or ok=false when empty.
func (t *Tracker) NextRetry(p *models.Progress) (models.EntityType, bool) {
	if len(p.RetryQueue) == 0 {
		return "", false
	}
	entity := p.RetryQueue[0]
	p.DequeueRetry(entity)
	return entity, true
}

// Exhausted reports whether any planned entity has spent its retry budget.
func (t *Tracker) Exhausted(p *models.Progress) bool {
	return len(p.ExhaustedRetries(t.MaxRetries)) > 0
}

func stamp(row *models.EntityStatus, now time.Time) {
	attempt := now
	if !row.Attempted {
		row.FirstAttemptAt = &attempt
	}
	row.Attempted = true
	row.LastAttemptAt = &attempt
}
