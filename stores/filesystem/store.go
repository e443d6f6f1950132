package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"xbanner/core"
)

// templatesFile is the single JSON document holding the whole collection,
// mirroring how the browser editor kept everything under one storage key.
const templatesFile = "templates.json"

type fsStore struct {
	mu       sync.Mutex
	basePath string
}

// NewStore creates a new filesystem-based store rooted at basePath.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

func (s *fsStore) path() string {
	return filepath.Join(s.basePath, templatesFile)
}

// load reads the collection. A missing file is an empty collection.
func (s *fsStore) load() ([]*core.SavedTemplate, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read templates: %w", err)
	}
	var templates []*core.SavedTemplate
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return templates, nil
}

func (s *fsStore) save(templates []*core.SavedTemplate) error {
	data, err := json.MarshalIndent(templates, "", "  ")
	if err != nil {
		return fmt.Errorf("encode templates: %w", err)
	}
	if err := os.WriteFile(s.path(), data, 0644); err != nil {
		return fmt.Errorf("write templates: %w", err)
	}
	return nil
}

func (s *fsStore) List(ctx context.Context) ([]*core.SavedTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	templates, err := s.load()
	if err != nil {
		return nil, err
	}
	return core.CapTemplates(templates), nil
}

func (s *fsStore) Get(ctx context.Context, id string) (*core.SavedTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	templates, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, t := range templates {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("template with id %s not found", id)
}

func (s *fsStore) Put(ctx context.Context, template *core.SavedTemplate) error {
	if template == nil || template.ID == "" {
		return fmt.Errorf("template ID cannot be empty for put operation")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	templates, err := s.load()
	if err != nil {
		return err
	}
	replaced := false
	for i, t := range templates {
		if t.ID == template.ID {
			templates[i] = template
			replaced = true
			break
		}
	}
	if !replaced {
		templates = append(templates, template)
	}
	if err := s.save(core.CapTemplates(templates)); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"template_id": template.ID,
		"path":        s.path(),
	}).Info("Template saved")
	return nil
}

func (s *fsStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	templates, err := s.load()
	if err != nil {
		return err
	}
	kept := templates[:0]
	for _, t := range templates {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	if err := s.save(kept); err != nil {
		return err
	}
	logrus.WithField("template_id", id).Info("Template deleted")
	return nil
}

func (s *fsStore) Replace(ctx context.Context, templates []*core.SavedTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if templates == nil {
		templates = []*core.SavedTemplate{}
	}
	if err := s.save(core.CapTemplates(templates)); err != nil {
		return err
	}
	logrus.WithField("count", len(templates)).Info("Template collection replaced")
	return nil
}
