package metricsconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	cat := Default()

	ids := make([]string, 0)
	for _, spec := range cat.Incremental() {
		ids = append(ids, spec.ID())
	}
	assert.Equal(t, []string{
		"Gene/Sistema",
		"Gene/Recurso",
		"AporEner/Sistema",
		"DemaCome/Sistema",
		"PerdidasEner/Sistema",
		"PrecBolsNaci/Sistema",
	}, ids)

	gen, ok := cat.Category("generacion")
	require.True(t, ok)
	assert.Len(t, gen.Metrics, 2)

	r, ok := cat.RangeFor("DemaCome", "Sistema")
	require.True(t, ok)
	assert.False(t, r.Contains(5))
	assert.True(t, r.Contains(200))

	assert.Len(t, cat.Select("Gene", ""), 2)
	assert.Len(t, cat.Select("Gene", "Recurso"), 1)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: 1
categories:
  - name: precios
    metrics:
      - metric: PrecBolsNaci
        entity: Sistema
        conversion: hours_mean
        history_days: 30
        batch_days: 10
        incremental: true
`), 0o644))

	cat, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.Version)
	require.Len(t, cat.All(), 1)
	assert.Equal(t, HoursMean, cat.All()[0].Conversion)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: `
categories:
  - name: a
    metrics:
      - {metric: Gene, entity: Sistema, conversion: none, history_days: 1, batch_days: 1, dias: 3}
`,
			want: "field dias not found",
		},
		{
			name: "unknown conversion",
			yaml: `
categories:
  - name: a
    metrics:
      - {metric: Gene, entity: Sistema, conversion: kWh_a_GWh, history_days: 1, batch_days: 1}
`,
			want: "unknown conversion",
		},
		{
			name: "duplicate category",
			yaml: `
categories:
  - name: a
    metrics:
      - {metric: Gene, entity: Sistema, conversion: none, history_days: 1, batch_days: 1}
  - name: a
    metrics:
      - {metric: DemaCome, entity: Sistema, conversion: none, history_days: 1, batch_days: 1}
`,
			want: "duplicate category",
		},
		{
			name: "duplicate metric in category",
			yaml: `
categories:
  - name: a
    metrics:
      - {metric: Gene, entity: Sistema, conversion: none, history_days: 1, batch_days: 1}
      - {metric: Gene, entity: Sistema, conversion: none, history_days: 2, batch_days: 1}
`,
			want: "duplicate metric",
		},
		{
			name: "zero batch",
			yaml: `
categories:
  - name: a
    metrics:
      - {metric: Gene, entity: Sistema, conversion: none, history_days: 1, batch_days: 0}
`,
			want: "batch_days",
		},
		{
			name: "inverted range",
			yaml: `
categories:
  - name: a
    metrics:
      - {metric: Gene, entity: Sistema, conversion: none, history_days: 1, batch_days: 1}
ranges:
  - {metric: Gene, entity: Sistema, min: 10, max: 1}
`,
			want: "min must not exceed max",
		},
		{
			name: "no categories",
			yaml: `version: 1`,
			want: "at least one category",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestUnitFor(t *testing.T) {
	assert.Equal(t, "$/kWh", UnitFor(MetricSpec{Metric: "PrecBolsNaci"}))
	assert.Equal(t, "$/kWh", UnitFor(MetricSpec{Metric: "CostMargDesp"}))
	assert.Equal(t, "MW", UnitFor(MetricSpec{Metric: "DispoReal"}))
	assert.Equal(t, "GWh", UnitFor(MetricSpec{Metric: "Gene"}))
	assert.Equal(t, "m³/s", UnitFor(MetricSpec{Metric: "AporCaudal", Unit: "m³/s"}))
}

func TestConversion_Hourly(t *testing.T) {
	assert.True(t, HoursToDaily.Hourly())
	assert.True(t, HoursMeanMW.Hourly())
	assert.False(t, KWhToGWh.Hourly())
	assert.False(t, None.Hourly())
}
