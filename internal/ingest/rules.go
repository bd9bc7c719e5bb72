package ingest

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/clahage/my-clever-crm-sub012/internal/contact"
	"github.com/clahage/my-clever-crm-sub012/internal/model"
)

// SourceRule maps a signal source to the category and roles a new contact
// receives.
type SourceRule struct {
	Category string   `yaml:"category"`
	Roles    []string `yaml:"roles"`
}

// Rules is the caller-supplied classification policy for new contacts.
type Rules struct {
	DefaultCategory string                `yaml:"default_category"`
	BaselineRoles   []string              `yaml:"baseline_roles"`
	Sources         map[string]SourceRule `yaml:"sources"`
}

// DefaultRules returns the built-in classification: every inbound signal
// creates a lead carrying the baseline contact role.
func DefaultRules() *Rules {
	return &Rules{
		DefaultCategory: string(contact.CategoryLead),
		BaselineRoles:   []string{contact.RoleContact},
		Sources: map[string]SourceRule{
			string(model.SourceAIReceptionist): {Category: string(contact.CategoryLead), Roles: []string{"lead"}},
			string(model.SourceWebForm):        {Category: string(contact.CategoryLead), Roles: []string{"lead"}},
			string(model.SourceManualEntry):    {Category: string(contact.CategoryLead)},
		},
	}
}

// LoadRules reads a YAML rules file, falling back to defaults for any
// section it omits.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read rules %s", path)
	}

	r := &Rules{}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, eris.Wrapf(err, "ingest: parse rules %s", path)
	}

	defaults := DefaultRules()
	if r.DefaultCategory == "" {
		r.DefaultCategory = defaults.DefaultCategory
	}
	if len(r.BaselineRoles) == 0 {
		r.BaselineRoles = defaults.BaselineRoles
	}
	if r.Sources == nil {
		r.Sources = defaults.Sources
	}
	return r, nil
}

// Classify returns the category and seed roles for a contact created from
// the given source. Unknown sources fall back to the default category.
func (r *Rules) Classify(st model.SourceType) (contact.Category, []string) {
	category := r.DefaultCategory
	var roles []string

	if rule, ok := r.Sources[string(st)]; ok {
		if rule.Category != "" {
			category = rule.Category
		}
		roles = rule.Roles
	} else {
		zap.L().Debug("ingest: unknown source type, using default category",
			zap.String("source_type", string(st)),
		)
	}

	return contact.Category(category), contact.UnionStrings(r.BaselineRoles, roles)
}
