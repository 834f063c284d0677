// Package sampling implements tag-weighted, density-biased note selection.
package sampling

import (
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/jera/internal/statefile"
)

// DefaultKey is the reserved schema key used when a note has no weighted tag.
const DefaultKey = "_default"

// conservativeDefault replaces a missing reserved key in an existing file.
const conservativeDefault = 0.1

// Schema maps tags to sampling weights and lists tags that exclude a note
// from candidate pools entirely.
type Schema struct {
	Weights  map[string]float64 `json:"weights"`
	Excluded []string           `json:"excluded"`
}

// DefaultSchema returns the uniform schema used when no file exists.
func DefaultSchema() *Schema {
	return &Schema{
		Weights:  map[string]float64{DefaultKey: 1.0},
		Excluded: []string{},
	}
}

// LoadSchema reads the tag schema at path. Sampling must never abort on a
// bad schema, so every failure degrades to a usable fallback with a warning.
func LoadSchema(path string) *Schema {
	s := &Schema{}
	if err := statefile.Load(path, s); err != nil {
		slog.Warn("tag schema unavailable, sampling with uniform weights",
			slog.String("path", path), slog.String("error", err.Error()))
		return DefaultSchema()
	}
	if s.Weights == nil {
		s.Weights = map[string]float64{}
	}
	if s.Excluded == nil {
		s.Excluded = []string{}
	}
	if _, ok := s.Weights[DefaultKey]; !ok {
		slog.Warn("tag schema has no reserved default weight, substituting fallback",
			slog.String("path", path), slog.Float64("fallback", conservativeDefault))
		s.Weights[DefaultKey] = conservativeDefault
	}
	return s
}

// Save persists the schema wholesale.
func (s *Schema) Save(path string) error {
	return statefile.Save(path, s)
}

// Validate checks that every weight is non-negative and the reserved key exists.
func (s *Schema) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Weights, validation.Required, validation.By(checkWeights)),
	)
}

func checkWeights(value any) error {
	m, _ := value.(map[string]float64)
	if _, ok := m[DefaultKey]; !ok {
		return fmt.Errorf("missing reserved key %q", DefaultKey)
	}
	for tag, w := range m {
		if w < 0 {
			return fmt.Errorf("weight for %q is negative", tag)
		}
	}
	return nil
}

// DefaultWeight returns the reserved fallback weight.
func (s *Schema) DefaultWeight() float64 {
	if w, ok := s.Weights[DefaultKey]; ok {
		return w
	}
	return conservativeDefault
}

// TagWeight resolves a note's tag weight: the maximum among matching
// schema tags, or the default when nothing matches. Max, not sum: one
// strong tag must not be diluted by co-occurring weak ones. Schema keys
// are bare names; incoming tags may carry the vault's # prefix.
func (s *Schema) TagWeight(tags []string) float64 {
	best := 0.0
	matched := false
	for _, t := range tags {
		t = strings.TrimPrefix(t, "#")
		if t == DefaultKey {
			continue
		}
		w, ok := s.Weights[t]
		if !ok {
			continue
		}
		if !matched || w > best {
			best = w
			matched = true
		}
	}
	if !matched {
		return s.DefaultWeight()
	}
	return best
}

// IsExcluded reports whether any of the tags is on the exclusion list.
func (s *Schema) IsExcluded(tags []string) bool {
	for _, t := range tags {
		t = strings.TrimPrefix(t, "#")
		for _, ex := range s.Excluded {
			if t == ex {
				return true
			}
		}
	}
	return false
}

// SetWeight assigns a weight to a tag.
func (s *Schema) SetWeight(tag string, weight float64) {
	if s.Weights == nil {
		s.Weights = map[string]float64{}
	}
	s.Weights[tag] = weight
}

// RemoveWeight drops a tag's weight and reports whether it existed.
// The reserved default key cannot be removed.
func (s *Schema) RemoveWeight(tag string) bool {
	if tag == DefaultKey {
		return false
	}
	if _, ok := s.Weights[tag]; !ok {
		return false
	}
	delete(s.Weights, tag)
	return true
}

// Exclude adds a tag to the exclusion list.
func (s *Schema) Exclude(tag string) {
	for _, ex := range s.Excluded {
		if ex == tag {
			return
		}
	}
	s.Excluded = append(s.Excluded, tag)
}

// Include removes a tag from the exclusion list and reports whether it was there.
func (s *Schema) Include(tag string) bool {
	for i, ex := range s.Excluded {
		if ex == tag {
			s.Excluded = append(s.Excluded[:i], s.Excluded[i+1:]...)
			return true
		}
	}
	return false
}
