// Package catalog loads roadmap templates from YAML files.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wms-platform/roadmap-service/internal/domain"
)

//go:embed default_templates.yaml
var defaultCatalog []byte

type file struct {
	Templates []templateEntry `yaml:"templates"`
}

type templateEntry struct {
	TemplateID string                  `yaml:"templateId"`
	Name       string                  `yaml:"name"`
	Category   string                  `yaml:"category"`
	Steps      []domain.StepDefinition `yaml:"steps"`
}

// InvalidTemplateError reports the first template of a catalog that failed
// validation
type InvalidTemplateError struct {
	Position   int
	TemplateID string
	Err        error
}

func (e *InvalidTemplateError) Error() string {
	return fmt.Sprintf("template #%d (%s): %v", e.Position, e.TemplateID, e.Err)
}

func (e *InvalidTemplateError) Unwrap() error { return e.Err }

// Parse decodes a catalog and validates every template. It stops at the
// first invalid one.
func Parse(r io.Reader, now time.Time) ([]*domain.RoadmapTemplate, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("catalog is empty")
		}
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(f.Templates) == 0 {
		return nil, fmt.Errorf("catalog defines no templates")
	}

	seen := make(map[string]bool, len(f.Templates))
	templates := make([]*domain.RoadmapTemplate, 0, len(f.Templates))
	for i, entry := range f.Templates {
		tmpl, err := domain.NewRoadmapTemplate(entry.TemplateID, entry.Name, entry.Category, entry.Steps, now)
		if err != nil {
			return nil, &InvalidTemplateError{Position: i, TemplateID: entry.TemplateID, Err: err}
		}
		if seen[tmpl.TemplateID] {
			return nil, &InvalidTemplateError{Position: i, TemplateID: entry.TemplateID, Err: errors.New("duplicate templateId")}
		}
		seen[tmpl.TemplateID] = true
		templates = append(templates, tmpl)
	}
	return templates, nil
}

// LoadFile parses the catalog at path
func LoadFile(path string, now time.Time) ([]*domain.RoadmapTemplate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f, now)
}

// Default returns the built-in catalog
func Default(now time.Time) ([]*domain.RoadmapTemplate, error) {
	return Parse(bytes.NewReader(defaultCatalog), now)
}

// Load reads path, or the built-in catalog when path is empty
func Load(path string, now time.Time) ([]*domain.RoadmapTemplate, error) {
	if path == "" {
		return Default(now)
	}
	return LoadFile(path, now)
}
