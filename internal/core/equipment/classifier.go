package equipment

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
)

//go:embed rules.yaml
var rulesYAML []byte

// Rule is one entry of the ordered classification table.
type Rule struct {
	Category  domain.EquipmentCategory `yaml:"category"`
	Canonical string                   `yaml:"canonical"`
	AllOf     []string                 `yaml:"all_of"`
	AnyOf     []string                 `yaml:"any_of"`
	Aliases   []string                 `yaml:"aliases"`
}

func (r Rule) matches(text string) bool {
	for _, kw := range r.AllOf {
		if !strings.Contains(text, kw) {
			return false
		}
	}
	if len(r.AnyOf) == 0 {
		return true
	}
	for _, kw := range r.AnyOf {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Classification is the inferred category and the equipment names to OR into the search filter.
// Unknown carries no aliases, so no equipment filter is applied.
type Classification struct {
	Category domain.EquipmentCategory
	Aliases  []string
}

// Classifier is a pure function from normalized text to equipment category.
type Classifier struct {
	rules []Rule
}

// NewClassifier loads the embedded rule table.
func NewClassifier() *Classifier {
	c, err := NewClassifierFromYAML(rulesYAML)
	if err != nil {
		panic(fmt.Sprintf("load rules.yaml: %v", err))
	}
	return c
}

func NewClassifierFromYAML(data []byte) (*Classifier, error) {
	var table struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse equipment rules: %w", err)
	}
	if len(table.Rules) == 0 {
		return nil, fmt.Errorf("equipment rules: table is empty")
	}

	seen := make(map[domain.EquipmentCategory]struct{}, len(table.Rules))
	for i := range table.Rules {
		r := &table.Rules[i]
		if r.Category == "" || r.Category == domain.EquipmentUnknown {
			return nil, fmt.Errorf("equipment rules: rule %d has invalid category %q", i, r.Category)
		}
		if _, dup := seen[r.Category]; dup {
			return nil, fmt.Errorf("equipment rules: duplicate category %s", r.Category)
		}
		seen[r.Category] = struct{}{}
		if len(r.AllOf) == 0 && len(r.AnyOf) == 0 {
			return nil, fmt.Errorf("equipment rules: %s has no keywords", r.Category)
		}
		r.AllOf = lowerAll(r.AllOf)
		r.AnyOf = lowerAll(r.AnyOf)
		r.Canonical = strings.ToLower(strings.TrimSpace(r.Canonical))
	}
	return &Classifier{rules: table.Rules}, nil
}

// Classify returns the first rule in priority order that matches text.
func (c *Classifier) Classify(text string) Classification {
	text = strings.ToLower(text)
	for _, r := range c.rules {
		if r.matches(text) {
			return Classification{
				Category: r.Category,
				Aliases:  append([]string(nil), r.Aliases...),
			}
		}
	}
	return Classification{Category: domain.EquipmentUnknown}
}

// CanonicalKeyword returns the text that classifies as category, or "" for Unknown.
func (c *Classifier) CanonicalKeyword(category domain.EquipmentCategory) string {
	for _, r := range c.rules {
		if r.Category == category {
			return r.Canonical
		}
	}
	return ""
}

// Categories lists the known categories in priority order.
func (c *Classifier) Categories() []domain.EquipmentCategory {
	out := make([]domain.EquipmentCategory, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, r.Category)
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
