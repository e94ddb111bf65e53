// Package ruleset loads the entity type declaration file (spec.md §6
// "Ruleset loader"): type name -> default property map, with a parents
// list for the inheritance entity.TypeDescriptor carries. Grounded on the
// teacher's internal/data/npc.go struct-tag/wrapper-type idiom.
package ruleset

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/worldforge/worldcore/internal/entity"
)

// TypeDef is one declared entity type, as it appears in the ruleset file.
type TypeDef struct {
	Name       string         `yaml:"name"`
	Parents    []string       `yaml:"parents"`
	Properties map[string]any `yaml:"properties"`
}

type rulesetFile struct {
	Types []TypeDef `yaml:"types"`
}

// Loader is the narrow contract the core consumes (spec.md §6); the
// concrete implementation is Load below.
type Loader interface {
	Load(path string) (map[string]*entity.TypeDescriptor, error)
}

// YAMLLoader is the default Loader, backed by gopkg.in/yaml.v3.
type YAMLLoader struct{}

func (YAMLLoader) Load(path string) (map[string]*entity.TypeDescriptor, error) {
	return Load(path)
}

// Load reads a ruleset file and returns every declared type as a
// TypeDescriptor the entity factory can use to seed new entities'
// property stores (spec.md §6: "new(type_name, args, routing) -> Entity").
func Load(path string) (map[string]*entity.TypeDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ruleset %s: %w", path, err)
	}
	var f rulesetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse ruleset %s: %w", path, err)
	}

	out := make(map[string]*entity.TypeDescriptor, len(f.Types))
	for _, t := range f.Types {
		out[t.Name] = &entity.TypeDescriptor{
			Name:     t.Name,
			Parents:  t.Parents,
			Defaults: t.Properties,
		}
	}

	// Resolve parent-declared defaults into children that don't override
	// them, one pass (the ruleset file is expected to list parents before
	// children; a parent referencing an undeclared type is left as-is —
	// the factory simply sees fewer inherited defaults for that branch).
	for _, td := range f.Types {
		t := out[td.Name]
		for _, parentName := range t.Parents {
			parent, ok := out[parentName]
			if !ok {
				continue
			}
			for k, v := range parent.Defaults {
				if _, overridden := t.Defaults[k]; !overridden {
					if t.Defaults == nil {
						t.Defaults = make(map[string]any)
					}
					t.Defaults[k] = v
				}
			}
		}
	}

	return out, nil
}
