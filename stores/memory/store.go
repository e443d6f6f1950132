package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"xbanner/core"
)

// memStore keeps templates in process memory. It is the default store and
// the one tests run against.
type memStore struct {
	mu        sync.RWMutex
	templates map[string]*core.SavedTemplate
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{templates: make(map[string]*core.SavedTemplate)}
}

func (s *memStore) List(ctx context.Context) ([]*core.SavedTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	templates := make([]*core.SavedTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		templates = append(templates, t)
	}
	return core.CapTemplates(templates), nil
}

func (s *memStore) Get(ctx context.Context, id string) (*core.SavedTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.templates[id]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("template with id %s not found", id)
}

func (s *memStore) Put(ctx context.Context, template *core.SavedTemplate) error {
	if template == nil || template.ID == "" {
		return fmt.Errorf("template ID cannot be empty for put operation")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.templates[template.ID] = template
	s.evictLocked()
	logrus.WithField("template_id", template.ID).Info("Template saved")
	return nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.templates, id)
	logrus.WithField("template_id", id).Info("Template deleted")
	return nil
}

func (s *memStore) Replace(ctx context.Context, templates []*core.SavedTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.templates = make(map[string]*core.SavedTemplate, len(templates))
	for _, t := range core.CapTemplates(templates) {
		if t != nil && t.ID != "" {
			s.templates[t.ID] = t
		}
	}
	logrus.WithField("count", len(s.templates)).Info("Template collection replaced")
	return nil
}

// evictLocked drops the oldest records beyond the cap. Caller holds the
// write lock.
func (s *memStore) evictLocked() {
	if len(s.templates) <= core.MaxTemplates {
		return
	}
	all := make([]*core.SavedTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		all = append(all, t)
	}
	kept := core.CapTemplates(all)
	s.templates = make(map[string]*core.SavedTemplate, len(kept))
	for _, t := range kept {
		s.templates[t.ID] = t
	}
}
