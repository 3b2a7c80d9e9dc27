package metricsconfig

import "strings"

// Conversion names how raw XM values become a stored daily value
type Conversion string

const (
	// HoursToDaily sums Hour01..Hour24 (kWh) and scales to GWh
	HoursToDaily Conversion = "hours_to_daily"
	// HoursSum sums the hour columns without scaling
	HoursSum Conversion = "hours_sum"
	// HoursMean averages the hour columns (prices)
	HoursMean Conversion = "hours_mean"
	// HoursMeanMW averages the hour columns and scales kW to MW
	HoursMeanMW Conversion = "hours_mean_mw"
	// KWhToGWh scales a daily value from kWh
	KWhToGWh Conversion = "kwh_to_gwh"
	// None stores the daily value as delivered
	None Conversion = "none"
)

// Hourly reports whether the conversion reads hour columns
func (c Conversion) Hourly() bool {
	switch c {
	case HoursToDaily, HoursSum, HoursMean, HoursMeanMW:
		return true
	}
	return false
}

func (c Conversion) valid() bool {
	switch c {
	case HoursToDaily, HoursSum, HoursMean, HoursMeanMW, KWhToGWh, None:
		return true
	}
	return false
}

// Catalog is the validated metric configuration
type Catalog struct {
	Version    int        `yaml:"version" json:"version"`
	Categories []Category `yaml:"categories" json:"categories"`
	Ranges     []Range    `yaml:"ranges" json:"ranges"`
}

// Category is a named, ordered list of metrics
type Category struct {
	Name    string       `yaml:"name" json:"name"`
	Metrics []MetricSpec `yaml:"metrics" json:"metrics"`
}

// MetricSpec configures ingestion of one metric/entity pair
type MetricSpec struct {
	Metric      string     `yaml:"metric" json:"metric"`
	Entity      string     `yaml:"entity" json:"entity"`
	Conversion  Conversion `yaml:"conversion" json:"conversion"`
	Unit        string     `yaml:"unit,omitempty" json:"unit,omitempty"`
	HistoryDays int        `yaml:"history_days" json:"history_days"`
	BatchDays   int        `yaml:"batch_days" json:"batch_days"`
	Incremental bool       `yaml:"incremental,omitempty" json:"incremental,omitempty"`

	// Resources pins the resource codes fetched one by one. Empty means a
	// single request for the whole entity.
	Resources []string `yaml:"resources,omitempty" json:"resources,omitempty"`
	// ResourceType selects resource codes from ListadoRecursos by tipo
	ResourceType string `yaml:"resource_type,omitempty" json:"resource_type,omitempty"`
}

// ID is "metric/entity"
func (m MetricSpec) ID() string {
	return m.Metric + "/" + m.Entity
}

// Range bounds plausible values of a metric/entity pair
type Range struct {
	Metric string  `yaml:"metric" json:"metric"`
	Entity string  `yaml:"entity" json:"entity"`
	Min    float64 `yaml:"min" json:"min"`
	Max    float64 `yaml:"max" json:"max"`
}

// Contains reports whether v is inside [Min, Max]
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// All returns every metric spec in category order
func (c *Catalog) All() []MetricSpec {
	var out []MetricSpec
	for _, cat := range c.Categories {
		out = append(out, cat.Metrics...)
	}
	return out
}

// Incremental returns the specs refreshed by the recurring ingestion job
func (c *Catalog) Incremental() []MetricSpec {
	var out []MetricSpec
	for _, spec := range c.All() {
		if spec.Incremental {
			out = append(out, spec)
		}
	}
	return out
}

// Category returns the named category
func (c *Catalog) Category(name string) (Category, bool) {
	for _, cat := range c.Categories {
		if cat.Name == name {
			return cat, true
		}
	}
	return Category{}, false
}

// Select returns the specs matching metric (and entity when not empty)
func (c *Catalog) Select(metric, entity string) []MetricSpec {
	var out []MetricSpec
	for _, spec := range c.All() {
		if spec.Metric != metric {
			continue
		}
		if entity != "" && spec.Entity != entity {
			continue
		}
		out = append(out, spec)
	}
	return out
}

// RangeFor returns the validation range of metric/entity
func (c *Catalog) RangeFor(metric, entity string) (Range, bool) {
	for _, r := range c.Ranges {
		if r.Metric == metric && r.Entity == entity {
			return r, true
		}
	}
	return Range{}, false
}

// UnitFor returns the stored unit of a spec
func UnitFor(spec MetricSpec) string {
	if spec.Unit != "" {
		return spec.Unit
	}
	switch {
	case strings.HasPrefix(spec.Metric, "Prec"), strings.HasPrefix(spec.Metric, "Cost"):
		return "$/kWh"
	case strings.HasPrefix(spec.Metric, "Dispo"):
		return "MW"
	default:
		return "GWh"
	}
}
