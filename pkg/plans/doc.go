// Package plans provides the read-only subscription plan catalog.
//
// Plans define the per-billing-period caps that the quota enforcer applies:
// maximum live projects, messages per period, and uploaded characters per
// period. The catalog is loaded once at startup from a Source (in-memory map
// or YAML file) and is immutable afterwards, which makes concurrent reads
// safe without locking.
//
// # Usage
//
//	catalog, err := plans.NewCatalog(ctx, plans.NewInMemSource(plans.DefaultPlans()))
//	if err != nil {
//	    // handle error, probably terminate the application
//	}
//
//	plan, err := catalog.Get("hobby")
//	if errors.Is(err, plans.ErrPlanNotFound) {
//	    // unknown plan ID is a client error, not a system fault
//	}
package plans
