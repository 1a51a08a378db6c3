package plans

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Catalog is the read-only plan lookup service.
//
// The plans map is treated as immutable after construction; thread-safety
// depends on this immutability assumption (no runtime modifications).
type Catalog struct {
	plans map[string]Plan
}

// NewCatalog loads plans from the given Source and validates them.
func NewCatalog(ctx context.Context, src Source) (*Catalog, error) {
	if src == nil {
		panic("plans: Source is required")
	}

	loaded, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	if loaded == nil {
		loaded = make(map[string]Plan)
	}

	for id, p := range loaded {
		if err := p.validate(); err != nil {
			return nil, errors.Join(err, fmt.Errorf("plan %q", id))
		}
	}

	return &Catalog{plans: loaded}, nil
}

// Get returns the plan with the given ID or ErrPlanNotFound.
func (c *Catalog) Get(planID string) (Plan, error) {
	plan, exists := c.plans[planID]
	if !exists {
		return Plan{}, ErrPlanNotFound
	}
	return plan, nil
}

// List returns all plans sorted by ID for stable iteration.
func (c *Catalog) List() []Plan {
	list := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		list = append(list, p)
	}
	slices.SortFunc(list, func(a, b Plan) int {
		return strings.Compare(a.ID, b.ID)
	})
	return list
}
