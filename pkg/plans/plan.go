package plans

// Unlimited indicates no cap for a resource (-1 chosen for SQL compatibility).
const Unlimited int64 = -1

// Plan describes a subscription plan tier and its usage caps.
// Plans are immutable once referenced by a live subscription.
type Plan struct {
	ID                   string `yaml:"id"`
	Name                 string `yaml:"name"`
	MaxProjects          int64  `yaml:"max_projects"`
	MonthlyMessageCap    int64  `yaml:"monthly_message_cap"`
	MonthlyUploadCharCap int64  `yaml:"monthly_upload_char_cap"`
	AnnualAvailable      bool   `yaml:"annual_available"`
}

// validate checks that every cap is either non-negative or Unlimited.
func (p Plan) validate() error {
	if p.ID == "" {
		return ErrInvalidPlanConfiguration
	}
	for _, limit := range []int64{p.MaxProjects, p.MonthlyMessageCap, p.MonthlyUploadCharCap} {
		if limit < 0 && limit != Unlimited {
			return ErrInvalidPlanConfiguration
		}
	}
	return nil
}

// DefaultPlans returns the built-in plan tiers, used when no YAML plan
// file is configured.
func DefaultPlans() map[string]Plan {
	return map[string]Plan{
		"hobby": {
			ID:                   "hobby",
			Name:                 "Hobby",
			MaxProjects:          1,
			MonthlyMessageCap:    2000,
			MonthlyUploadCharCap: 500_000,
			AnnualAvailable:      true,
		},
		"pro": {
			ID:                   "pro",
			Name:                 "Pro",
			MaxProjects:          5,
			MonthlyMessageCap:    10_000,
			MonthlyUploadCharCap: 2_000_000,
			AnnualAvailable:      true,
		},
		"business": {
			ID:                   "business",
			Name:                 "Business",
			MaxProjects:          20,
			MonthlyMessageCap:    50_000,
			MonthlyUploadCharCap: 10_000_000,
			AnnualAvailable:      true,
		},
	}
}
