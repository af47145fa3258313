package org

import (
	"context"
	"fmt"
	"strings"
	"sync"

	id "registrar/pkg/domain"
	"registrar/pkg/platform/sentinel"
)

// Store persists organizations. Lookups return sentinel.ErrNotFound wrapped
// when no organization matches.
type Store interface {
	Create(ctx context.Context, o *Org) error
	FindBySlug(ctx context.Context, slug string) (*Org, error)
	FindByID(ctx context.Context, orgID id.OrgID) (*Org, error)
}

// InMemoryStore backs development and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	bySlug map[string]*Org
	byID   map[id.OrgID]*Org
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		bySlug: make(map[string]*Org),
		byID:   make(map[id.OrgID]*Org),
	}
}

func (s *InMemoryStore) Create(_ context.Context, o *Org) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bySlug[o.Slug]; exists {
		return fmt.Errorf("organization slug %q: %w", o.Slug, sentinel.ErrAlreadyUsed)
	}
	cp := *o
	s.bySlug[o.Slug] = &cp
	s.byID[o.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindBySlug(_ context.Context, slug string) (*Org, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.bySlug[strings.ToLower(slug)]
	if !ok {
		return nil, fmt.Errorf("organization %q: %w", slug, sentinel.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, orgID id.OrgID) (*Org, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.byID[orgID]
	if !ok {
		return nil, fmt.Errorf("organization %s: %w", orgID, sentinel.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}
