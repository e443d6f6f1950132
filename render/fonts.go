package render

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// Catalog maps font family names to parsed truetype fonts. The embedded Go
// fonts are always present; additional families come from TTF files in an
// optional font directory, keyed by file base name. Unknown families fall
// back to the default faces so text always renders.
type Catalog struct {
	mu       sync.RWMutex
	families map[string]*truetype.Font
	regular  *truetype.Font
	bold     *truetype.Font
	missing  map[string]bool
}

// NewCatalog builds a catalog from the embedded Go fonts plus any *.ttf
// files found under fontDir (empty means embedded fonts only).
func NewCatalog(fontDir string) (*Catalog, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		families: make(map[string]*truetype.Font),
		regular:  regular,
		bold:     bold,
		missing:  make(map[string]bool),
	}
	c.families["go"] = regular
	c.families["go bold"] = bold
	if italic, err := truetype.Parse(goitalic.TTF); err == nil {
		c.families["go italic"] = italic
	}
	if mono, err := truetype.Parse(gomono.TTF); err == nil {
		c.families["go mono"] = mono
	}

	if fontDir != "" {
		if err := c.loadDir(fontDir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".ttf") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logrus.WithError(err).WithField("font_file", name).Warn("Skipping unreadable font file")
			continue
		}
		parsed, err := truetype.Parse(data)
		if err != nil {
			logrus.WithError(err).WithField("font_file", name).Warn("Skipping unparsable font file")
			continue
		}
		family := strings.TrimSuffix(name, filepath.Ext(name))
		c.families[strings.ToLower(family)] = parsed
		logrus.WithField("family", family).Debug("Loaded font family")
	}
	return nil
}

// Ensure resolves font readiness for a family. Families missing from the
// catalog are logged once and resolved with the fallback face; text is
// still measured and rendered, just not in the requested font.
func (c *Catalog) Ensure(ctx context.Context, family string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := strings.ToLower(family)

	c.mu.RLock()
	_, known := c.families[key]
	warned := c.missing[key]
	c.mu.RUnlock()
	if known || warned {
		return nil
	}

	c.mu.Lock()
	if !c.missing[key] {
		c.missing[key] = true
		logrus.WithField("family", family).Warn("Font family not in catalog, using fallback")
	}
	c.mu.Unlock()
	return nil
}

// Face returns a sized face for the family and weight. Weights of 600 and
// above (or "bold") select the bold fallback when the family itself is
// unknown.
func (c *Catalog) Face(family, weight string, size float64) font.Face {
	c.mu.RLock()
	parsed, ok := c.families[strings.ToLower(family)]
	c.mu.RUnlock()

	if !ok {
		parsed = c.regular
		if boldWeight(weight) {
			parsed = c.bold
		}
	}
	if size <= 0 {
		size = 12
	}
	return truetype.NewFace(parsed, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

func boldWeight(weight string) bool {
	if strings.EqualFold(weight, "bold") {
		return true
	}
	if n, err := strconv.Atoi(weight); err == nil {
		return n >= 600
	}
	return false
}
