package authz

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/pushkit/pkg/notification"
)

// yamlPolicy mirrors the on-disk rule file layout.
//
//	categories:
//	  admin:
//	    allow: [admin]
//	  user:
//	    allow: [user, moderator, admin]
type yamlPolicy struct {
	Categories map[string]struct {
		Allow []string `yaml:"allow"`
	} `yaml:"categories"`
}

// YAMLSource loads the rule table from a YAML policy file, allowing the
// category/role matrix to be changed without a rebuild.
type YAMLSource struct {
	path string
}

// NewYAMLSource creates a RuleSource reading the given policy file.
func NewYAMLSource(path string) *YAMLSource {
	return &YAMLSource{path: path}
}

func (s *YAMLSource) Load(ctx context.Context) (RuleTable, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Join(ErrPolicyLoad, err)
	}

	var policy yamlPolicy
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return nil, errors.Join(ErrPolicyLoad, err)
	}

	table := make(RuleTable, len(policy.Categories))
	for name, entry := range policy.Categories {
		category := notification.Category(name)
		if !category.Valid() {
			return nil, fmt.Errorf("%w: unknown category %q", ErrPolicyLoad, name)
		}

		roles := make(map[notification.Role]bool, len(entry.Allow))
		for _, r := range entry.Allow {
			role := notification.Role(r)
			if !role.Valid() {
				return nil, fmt.Errorf("%w: unknown role %q in category %q", ErrPolicyLoad, r, name)
			}
			roles[role] = true
		}
		table[category] = roles
	}

	return table, nil
}
