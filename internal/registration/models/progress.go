package models

import (
	"math"
	"time"
)

// EntityStatus is one row of the creation plan: the persisted attempt state
// for a single entity type.
type EntityStatus struct {
	EntityType EntityType `json:"entity_type"`
	Attempted  bool       `json:"attempted"`
	Success    bool       `json:"success"`
	// Skipped marks a step that completed by doing nothing (education branch
	// with no data for the group-selected side).
	Skipped        bool       `json:"skipped,omitempty"`
	EntityID       string     `json:"entity_id,omitempty"`
	EntityGUID     string     `json:"entity_guid,omitempty"`
	RetryCount     int        `json:"retry_count"`
	Error          string     `json:"error,omitempty"`
	FirstAttemptAt *time.Time `json:"first_attempt_at,omitempty"`
	LastAttemptAt  *time.Time `json:"last_attempt_at,omitempty"`
}

// Progress is the derived creation-progress record embedded in a session.
// Entities keeps one row per planned entity type in dependency order; the
// completed/failed/pending sets and the percentage are recomputed from it on
// every change.
//
// Invariants:
//   - an entity type appears in exactly one of completed/failed/pending
//   - TotalRetryCount is monotonic non-decreasing
//   - AccountGUID is set iff the account row succeeded
type Progress struct {
	Entities []EntityStatus `json:"entities"`

	// AccountGUID is stashed here specifically because every dependent
	// entity needs it for parent linkage; other GUIDs live only in their rows.
	AccountGUID  string       `json:"account_guid,omitempty"`
	AccountGroup AccountGroup `json:"account_group,omitempty"`

	RetryQueue      []EntityType `json:"retry_queue,omitempty"`
	TotalRetryCount int          `json:"total_retry_count"`
	Percentage      int          `json:"progress_percentage"`
	CurrentStep     EntityType   `json:"current_step,omitempty"`
}

// NewProgress builds the initial progress record for a creation plan.
func NewProgress(plan []EntityType) Progress {
	entities := make([]EntityStatus, 0, len(plan))
	for _, entity := range plan {
		entities = append(entities, EntityStatus{EntityType: entity})
	}
	p := Progress{Entities: entities}
	p.Recompute()
	return p
}

// Entity returns the row for the given entity type, or nil if not planned.
func (p *Progress) Entity(entity EntityType) *EntityStatus {
	for i := range p.Entities {
		if p.Entities[i].EntityType == entity {
			return &p.Entities[i]
		}
	}
	return nil
}

// Completed lists entity types that have been created successfully.
func (p *Progress) Completed() []EntityType {
	return p.filter(func(e *EntityStatus) bool { return e.Success })
}

// Failed lists entity types that failed at least once and are neither
// completed nor exhausted.
func (p *Progress) Failed(maxRetries int) []EntityType {
	return p.filter(func(e *EntityStatus) bool {
		return e.Attempted && !e.Success && e.RetryCount < maxRetries
	})
}

// Pending lists entity types never attempted.
func (p *Progress) Pending() []EntityType {
	return p.filter(func(e *EntityStatus) bool { return !e.Attempted })
}

// ExhaustedRetries lists entity types whose retry budget is spent.
func (p *Progress) ExhaustedRetries(maxRetries int) []EntityType {
	return p.filter(func(e *EntityStatus) bool {
		return e.Attempted && !e.Success && e.RetryCount >= maxRetries
	})
}

func (p *Progress) filter(keep func(*EntityStatus) bool) []EntityType {
	out := make([]EntityType, 0, len(p.Entities))
	for i := range p.Entities {
		if keep(&p.Entities[i]) {
			out = append(out, p.Entities[i].EntityType)
		}
	}
	return out
}

// Recompute refreshes the percentage and current step from the entity rows.
func (p *Progress) Recompute() {
	total := len(p.Entities)
	if total == 0 {
		p.Percentage = 0
		p.CurrentStep = ""
		return
	}
	completed := 0
	for i := range p.Entities {
		if p.Entities[i].Success {
			completed++
		}
	}
	p.Percentage = int(math.Round(float64(completed) / float64(total) * 100))

	// Next pending or retryable entity; if none remain, the last attempted one.
	p.CurrentStep = ""
	for i := range p.Entities {
		e := &p.Entities[i]
		if !e.Success {
			p.CurrentStep = e.EntityType
			return
		}
	}
	if total > 0 {
		p.CurrentStep = p.Entities[total-1].EntityType
	}
}

// InRetryQueue reports whether the entity is currently queued for retry.
func (p *Progress) InRetryQueue(entity EntityType) bool {
	for _, queued := range p.RetryQueue {
		if queued == entity {
			return true
		}
	}
	return false
}

// EnqueueRetry appends the entity to the retry queue if absent.
func (p *Progress) EnqueueRetry(entity EntityType) {
	if !p.InRetryQueue(entity) {
		p.RetryQueue = append(p.RetryQueue, entity)
	}
}

// DequeueRetry removes the entity from the retry queue.
func (p *Progress) DequeueRetry(entity EntityType) {
	out := p.RetryQueue[:0]
	for _, queued := range p.RetryQueue {
		if queued != entity {
			out = append(out, queued)
		}
	}
	p.RetryQueue = out
}
