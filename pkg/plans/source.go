package plans

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"

	"gopkg.in/yaml.v3"
)

// Source defines how plans are loaded into the catalog.
type Source interface {
	Load(ctx context.Context) (map[string]Plan, error)
}

// inMemSource serves a fixed plan map.
type inMemSource struct {
	plans map[string]Plan
}

// NewInMemSource returns a Source backed by a copy of the given plans.
func NewInMemSource(plans map[string]Plan) Source {
	return &inMemSource{plans: maps.Clone(plans)}
}

func (s *inMemSource) Load(ctx context.Context) (map[string]Plan, error) {
	return maps.Clone(s.plans), nil
}

// yamlSource loads plans from a YAML file on every Load call, so a catalog
// rebuild picks up edited plan definitions.
type yamlSource struct {
	path string
}

// NewYAMLSource returns a Source that reads plan definitions from a YAML file.
// The file holds a list of plan documents:
//
//	- id: hobby
//	  name: Hobby
//	  max_projects: 1
//	  monthly_message_cap: 2000
//	  monthly_upload_char_cap: 500000
//	  annual_available: true
func NewYAMLSource(path string) Source {
	return &yamlSource{path: path}
}

func (s *yamlSource) Load(ctx context.Context) (map[string]Plan, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	var list []Plan
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	plans := make(map[string]Plan, len(list))
	for _, p := range list {
		if _, exists := plans[p.ID]; exists {
			return nil, errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("duplicate plan ID %q in %s", p.ID, s.path))
		}
		plans[p.ID] = p
	}
	return plans, nil
}
