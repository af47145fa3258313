package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fullPlanProgress() Progress {
	return NewProgress(AllEntityTypes)
}

func TestProgress_InitialState(t *testing.T) {
	p := fullPlanProgress()

	assert.Equal(t, 0, p.Percentage)
	assert.Equal(t, EntityAccount, p.CurrentStep)
	assert.Len(t, p.Pending(), 6)
	assert.Empty(t, p.Completed())
	assert.Empty(t, p.Failed(3))
}

func TestProgress_PercentageRounds(t *testing.T) {
	p := fullPlanProgress()

	p.Entity(EntityAccount).Success = true
	p.Entity(EntityAccount).Attempted = true
	p.Recompute()
	// 1/6 = 16.66 -> 17
	assert.Equal(t, 17, p.Percentage)

	p.Entity(EntityAddress).Success = true
	p.Entity(EntityAddress).Attempted = true
	p.Recompute()
	// 2/6 = 33.33 -> 33
	assert.Equal(t, 33, p.Percentage)
}

func TestProgress_EntityInExactlyOneSet(t *testing.T) {
	p := fullPlanProgress()

	acct := p.Entity(EntityAccount)
	acct.Attempted, acct.Success = true, true

	addr := p.Entity(EntityAddress)
	addr.Attempted = true
	addr.RetryCount = 1

	contact := p.Entity(EntityContact)
	contact.Attempted = true
	contact.RetryCount = 3

	const maxRetries = 3
	completed := p.Completed()
	failed := p.Failed(maxRetries)
	pending := p.Pending()
	exhausted := p.ExhaustedRetries(maxRetries)

	assert.Equal(t, []EntityType{EntityAccount}, completed)
	assert.Equal(t, []EntityType{EntityAddress}, failed)
	assert.Equal(t, []EntityType{EntityContact}, exhausted)
	assert.Equal(t, []EntityType{EntityIdentity, EntityEducation, EntityManagement}, pending)

	seen := map[EntityType]int{}
	for _, e := range completed {
		seen[e]++
	}
	for _, e := range failed {
		seen[e]++
	}
	for _, e := range pending {
		seen[e]++
	}
	for _, count := range seen {
		assert.Equal(t, 1, count)
	}
}

func TestProgress_CurrentStepAdvances(t *testing.T) {
	p := fullPlanProgress()

	acct := p.Entity(EntityAccount)
	acct.Attempted, acct.Success = true, true
	p.Recompute()
	assert.Equal(t, EntityAddress, p.CurrentStep)

	for _, entity := range AllEntityTypes {
		row := p.Entity(entity)
		row.Attempted, row.Success = true, true
	}
	p.Recompute()
	assert.Equal(t, 100, p.Percentage)
	assert.Equal(t, EntityManagement, p.CurrentStep)
}

func TestProgress_RetryQueue(t *testing.T) {
	p := fullPlanProgress()

	p.EnqueueRetry(EntityContact)
	p.EnqueueRetry(EntityContact)
	assert.Equal(t, []EntityType{EntityContact}, p.RetryQueue)
	assert.True(t, p.InRetryQueue(EntityContact))

	p.DequeueRetry(EntityContact)
	assert.False(t, p.InRetryQueue(EntityContact))
	assert.Empty(t, p.RetryQueue)
}
