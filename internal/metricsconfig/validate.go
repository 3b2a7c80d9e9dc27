package metricsconfig

import (
	"fmt"
)

// ValidationError points at the offending field
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the catalog structure
func Validate(cat *Catalog) error {
	if len(cat.Categories) == 0 {
		return ValidationError{"categories", "at least one category required"}
	}

	names := make(map[string]bool)
	for i, c := range cat.Categories {
		field := fmt.Sprintf("categories[%d]", i)
		if c.Name == "" {
			return ValidationError{field + ".name", "required"}
		}
		if names[c.Name] {
			return ValidationError{field + ".name", fmt.Sprintf("duplicate category %q", c.Name)}
		}
		names[c.Name] = true

		if len(c.Metrics) == 0 {
			return ValidationError{field + ".metrics", "must not be empty"}
		}

		seen := make(map[string]bool)
		for j, m := range c.Metrics {
			mfield := fmt.Sprintf("%s.metrics[%d]", field, j)
			if err := validateSpec(mfield, m); err != nil {
				return err
			}
			if seen[m.ID()] {
				return ValidationError{mfield, fmt.Sprintf("duplicate metric %s in category", m.ID())}
			}
			seen[m.ID()] = true
		}
	}

	ranges := make(map[string]bool)
	for i, r := range cat.Ranges {
		field := fmt.Sprintf("ranges[%d]", i)
		if r.Metric == "" || r.Entity == "" {
			return ValidationError{field, "metric and entity required"}
		}
		if r.Min > r.Max {
			return ValidationError{field, "min must not exceed max"}
		}
		key := r.Metric + "/" + r.Entity
		if ranges[key] {
			return ValidationError{field, fmt.Sprintf("duplicate range for %s", key)}
		}
		ranges[key] = true
	}

	return nil
}

func validateSpec(field string, m MetricSpec) error {
	if m.Metric == "" {
		return ValidationError{field + ".metric", "required"}
	}
	if m.Entity == "" {
		return ValidationError{field + ".entity", "required"}
	}
	if !m.Conversion.valid() {
		return ValidationError{field + ".conversion", fmt.Sprintf("unknown conversion %q", m.Conversion)}
	}
	if m.HistoryDays <= 0 {
		return ValidationError{field + ".history_days", "must be > 0"}
	}
	if m.BatchDays <= 0 {
		return ValidationError{field + ".batch_days", "must be > 0"}
	}
	if len(m.Resources) > 0 && m.ResourceType != "" {
		return ValidationError{field, "resources and resource_type are exclusive"}
	}
	return nil
}
