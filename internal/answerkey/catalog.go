// Package answerkey supplies the fixed answer key for each test variant.
package answerkey

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/stemsi/ielts-mock/internal/model"
	"github.com/stemsi/ielts-mock/internal/scoring"
)

// Provider looks up the key for a section and test variant.
type Provider interface {
	AnswerKey(ctx context.Context, section model.Section, testID int) (scoring.AnswerKey, error)
}

// Variant is one test of a section.
type Variant struct {
	ID        int               `yaml:"id" json:"id"`
	Title     string            `yaml:"title" json:"title"`
	Answers   map[string]string `yaml:"answers" json:"-"`
	Questions int               `yaml:"-" json:"questions"`
}

type catalogFile struct {
	Listening []Variant `yaml:"listening"`
	Reading   []Variant `yaml:"reading"`
}

// Catalog is an immutable in-memory set of answer keys.
type Catalog struct {
	variants map[model.Section]map[int]Variant
}

//go:embed catalog.yaml
var builtinCatalog []byte

var defaultCatalog = mustParse(builtinCatalog)

// Default returns the built-in catalog of ten listening and ten reading tests.
func Default() *Catalog {
	return defaultCatalog
}

// LoadFile reads a YAML catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answer key file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode answer keys: %w", err)
	}

	c := &Catalog{variants: make(map[model.Section]map[int]Variant, 2)}
	if err := c.add(model.SectionListening, f.Listening); err != nil {
		return nil, err
	}
	if err := c.add(model.SectionReading, f.Reading); err != nil {
		return nil, err
	}
	return c, nil
}

func mustParse(data []byte) *Catalog {
	c, err := Parse(data)
	if err != nil {
		panic("answerkey: built-in catalog: " + err.Error())
	}
	return c
}

func (c *Catalog) add(section model.Section, vs []Variant) error {
	byID := make(map[int]Variant, len(vs))
	for _, v := range vs {
		if v.ID < 1 {
			return fmt.Errorf("%s: test id %d must be positive", section, v.ID)
		}
		if _, dup := byID[v.ID]; dup {
			return fmt.Errorf("%s: duplicate test id %d", section, v.ID)
		}
		key := scoring.AnswerKey(v.Answers)
		v.Questions = key.Len()
		if v.Questions == 0 {
			return fmt.Errorf("%s test %d: no valid answers", section, v.ID)
		}
		byID[v.ID] = v
	}
	c.variants[section] = byID
	return nil
}

// AnswerKey implements Provider. The returned key is a copy.
func (c *Catalog) AnswerKey(_ context.Context, section model.Section, testID int) (scoring.AnswerKey, error) {
	v, ok := c.variants[section][testID]
	if !ok {
		return nil, &UnknownTestVariantError{Section: section, TestID: testID}
	}
	key := make(scoring.AnswerKey, len(v.Answers))
	for q, a := range v.Answers {
		key[q] = a
	}
	return key, nil
}

// HasVariant reports whether a key exists for the pair.
func (c *Catalog) HasVariant(section model.Section, testID int) bool {
	_, ok := c.variants[section][testID]
	return ok
}

// Variants lists a section's tests ordered by id.
func (c *Catalog) Variants(section model.Section) []Variant {
	out := make([]Variant, 0, len(c.variants[section]))
	for _, v := range c.variants[section] {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
