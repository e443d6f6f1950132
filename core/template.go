package core

import (
	"context"
	"sort"
)

// MaxTemplates is how many saved templates any store retains. Older records
// (by CreatedAt) are evicted on overflow.
const MaxTemplates = 20

type (
	// TemplateText is the flattened, persisted form of a TextObject.
	// FontWeight and Fill are always strings on the wire.
	TemplateText struct {
		Text       string  `json:"text"`
		FontFamily string  `json:"fontFamily"`
		FontSize   float64 `json:"fontSize"`
		FontWeight string  `json:"fontWeight"`
		Fill       string  `json:"fill"`
		Left       float64 `json:"left"`
		Top        float64 `json:"top"`
		TextAlign  string  `json:"textAlign"`
	}

	// TemplateImage is the flattened, persisted form of an ImageObject.
	TemplateImage struct {
		URL    string  `json:"url"`
		Left   float64 `json:"left"`
		Top    float64 `json:"top"`
		ScaleX float64 `json:"scaleX"`
		ScaleY float64 `json:"scaleY"`
	}

	// SavedTemplate is the lossy, persisted projection of a Scene.
	// Background is the textual fill form (hex color or linear-gradient
	// string), Thumbnail a small encoded preview (data URL). Timestamps
	// are epoch milliseconds, matching existing persisted records.
	SavedTemplate struct {
		ID          string          `json:"id" validate:"required"`
		Name        string          `json:"name" validate:"required"`
		Description string          `json:"description,omitempty"`
		Background  string          `json:"background" validate:"required"`
		Thumbnail   string          `json:"thumbnail,omitempty"`
		TextObjects []TemplateText  `json:"textObjects"`
		Images      []TemplateImage `json:"images"`
		CreatedAt   int64           `json:"createdAt"`
		UpdatedAt   int64           `json:"updatedAt"`
	}

	// TemplateStore is the local persistence gateway for saved templates.
	// Implementations enforce the MaxTemplates cap on write.
	TemplateStore interface {
		// List returns all templates, newest first by CreatedAt.
		List(ctx context.Context) ([]*SavedTemplate, error)

		// Get returns a single template by ID.
		Get(ctx context.Context, id string) (*SavedTemplate, error)

		// Put creates or replaces a template, evicting the oldest records
		// beyond the cap.
		Put(ctx context.Context, template *SavedTemplate) error

		// Delete removes a template. Deleting an unknown ID is not an
		// error.
		Delete(ctx context.Context, id string) error

		// Replace swaps the entire collection, applying the cap policy.
		Replace(ctx context.Context, templates []*SavedTemplate) error
	}

	// RemoteStore is the best-effort cloud side of template persistence.
	RemoteStore interface {
		// EnsureConfigured provisions the remote container if needed. It
		// is idempotent and safe to call before every push.
		EnsureConfigured(ctx context.Context) error

		// Pull fetches the full remote template set.
		Pull(ctx context.Context) ([]*SavedTemplate, error)

		// Push replaces the full remote template set.
		Push(ctx context.Context, templates []*SavedTemplate) error
	}
)

// MergeTemplates combines two template sets, deduplicating by ID with
// primary winning, then sorts newest first and truncates to MaxTemplates.
func MergeTemplates(primary, secondary []*SavedTemplate) []*SavedTemplate {
	merged := make([]*SavedTemplate, 0, len(primary)+len(secondary))
	seen := make(map[string]bool, len(primary))
	for _, t := range primary {
		if t == nil || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		merged = append(merged, t)
	}
	for _, t := range secondary {
		if t == nil || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		merged = append(merged, t)
	}
	return CapTemplates(merged)
}

// CapTemplates sorts newest first by CreatedAt and truncates to
// MaxTemplates.
func CapTemplates(templates []*SavedTemplate) []*SavedTemplate {
	sort.SliceStable(templates, func(i, j int) bool {
		return templates[i].CreatedAt > templates[j].CreatedAt
	})
	if len(templates) > MaxTemplates {
		templates = templates[:MaxTemplates]
	}
	return templates
}
