package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Pipeline decoding tests
// -----------------------------------------------------------------------------
//
// These tests check that pipeline files in both supported encodings decode into
// the intended Go struct graph, and that fields the file leaves out keep their
// Default() values.

func TestDecode_JSON(t *testing.T) {
	t.Parallel()

	const js = `{
	  "job": "po_weekly",
	  "source": {
	    "kind": "file",
	    "file": { "path": "testdata/po.csv" },
	    "format": "csv",
	    "options": { "comma": ";", "expected_fields": 9, "header_map": { "Vendor": "VENDOR NAME" } }
	  },
	  "output": { "kind": "xlsx", "path": "out.xlsx", "options": { "sheet": "Clean" } },
	  "address": { "provinces": ["ON", "QC"], "default_country": "US" },
	  "dedup": { "policy": "keep-last" },
	  "runtime": { "workers": 4 }
	}`

	p := Default()
	require.NoError(t, Decode("p.json", []byte(js), &p))

	assert.Equal(t, "po_weekly", p.Job)
	assert.Equal(t, "testdata/po.csv", p.Source.File.Path)
	assert.Equal(t, ';', p.Source.Options.Rune("comma", ','))
	assert.Equal(t, 9, p.Source.Options.Int("expected_fields", 0))
	assert.Equal(t, map[string]string{"Vendor": "VENDOR NAME"}, p.Source.Options.StringMap("header_map"))
	assert.Equal(t, "xlsx", p.Output.Kind)
	assert.Equal(t, "Clean", p.Output.Options.String("sheet", ""))
	assert.Equal(t, []string{"ON", "QC"}, p.Address.Provinces)
	assert.Equal(t, "US", p.Address.DefaultCountry)
	assert.Equal(t, "keep-last", p.Dedup.Policy)
	assert.Equal(t, 4, p.Runtime.Workers)

	// untouched sections keep defaults
	assert.Equal(t, "info", p.Logging.Level)
	assert.Equal(t, "none", p.Metrics.Backend)
}

func TestDecode_YAML(t *testing.T) {
	t.Parallel()

	const y = `
job: po_yaml
source:
  kind: http
  http:
    url: https://erp.example.com/po.csv
    headers: { Authorization: "Bearer x" }
  options:
    header_map:
      Vendor: VENDOR NAME
    expected_fields: 22
output:
  kind: csv
  path: cleaned.csv
metrics:
  backend: pushgateway
  pushgateway_url: http://pushgateway:9091
`
	p := Default()
	require.NoError(t, Decode("p.yaml", []byte(y), &p))

	assert.Equal(t, "http", p.Source.Kind)
	assert.Equal(t, "https://erp.example.com/po.csv", p.Source.HTTP.URL)
	assert.Equal(t, "Bearer x", p.Source.HTTP.Headers["Authorization"])
	assert.Equal(t, map[string]string{"Vendor": "VENDOR NAME"}, p.Source.Options.StringMap("header_map"))
	assert.Equal(t, 22, p.Source.Options.Int("expected_fields", 0))
	assert.Equal(t, "cleaned.csv", p.Output.Path)
	assert.Equal(t, "pushgateway", p.Metrics.Backend)
	assert.Equal(t, 1, p.Runtime.Workers)
}

func TestDecode_UnknownFields(t *testing.T) {
	t.Parallel()

	p := Default()
	assert.ErrorContains(t, Decode("p.json", []byte(`{"jobb":"x"}`), &p), "decode json")
	assert.ErrorContains(t, Decode("p.yml", []byte("jobb: x\n"), &p), "decode yaml")
}

func TestLoad(t *testing.T) {
	t.Parallel()

	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), p)

	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("job: from_file\n"), 0o644))
	p, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from_file", p.Job)
	assert.Equal(t, DefaultOutputPath, p.Output.Path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "read config")
}

/*
TestLoadEnv_Precedence checks flag over env over file: overrides applied later
win, and empty overrides change nothing.
*/
func TestLoadEnv_Precedence(t *testing.T) {
	t.Setenv("POCLEAN_INPUT", "env.csv")
	t.Setenv("POCLEAN_WORKERS", "3")
	t.Setenv("POCLEAN_LOG_LEVEL", "debug")
	t.Setenv("POCLEAN_METRICS_BACKEND", "datadog")

	env, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "env.csv", env.Input)
	assert.Equal(t, 3, env.Workers)

	p := Default()
	p.Source.File.Path = "file.csv"
	p.Apply(env)
	p.Apply(Overrides{Input: "flag.csv"})

	assert.Equal(t, "flag.csv", p.Source.File.Path)
	assert.Equal(t, 3, p.Runtime.Workers)
	assert.Equal(t, "debug", p.Logging.Level)
	assert.Equal(t, "datadog", p.Metrics.Backend)
	assert.Equal(t, DefaultOutputPath, p.Output.Path)
}

func TestLoadEnv_BadValue(t *testing.T) {
	t.Setenv("POCLEAN_WORKERS", "many")
	_, err := LoadEnv()
	assert.ErrorContains(t, err, "environment")
}

func TestApply_InputAndOutputKinds(t *testing.T) {
	t.Parallel()

	p := Default()
	p.Apply(Overrides{Input: "HTTPS://erp.example.com/po.xlsx", Output: "clean.xlsx"})
	assert.Equal(t, "http", p.Source.Kind)
	assert.Equal(t, "HTTPS://erp.example.com/po.xlsx", p.InputName())
	assert.Equal(t, "xlsx", p.Output.Kind)

	p.Apply(Overrides{Input: "local.csv", OutFormat: "csv", Format: "csv", Trace: true})
	assert.Equal(t, "file", p.Source.Kind)
	assert.Equal(t, "local.csv", p.InputName())
	assert.Equal(t, "csv", p.Output.Kind)
	assert.Equal(t, "csv", p.Source.Format)
	assert.True(t, p.Tracing.Enabled)
}

// -----------------------------------------------------------------------------
// Options helper tests
// -----------------------------------------------------------------------------

func TestOptions_Accessors(t *testing.T) {
	t.Parallel()

	o := Options{
		"s":      "x",
		"b":      true,
		"f":      float64(7),
		"i":      int(8),
		"r":      "|",
		"map":    map[string]any{"a": "b", "n": 1},
		"slice":  []any{"a", 1, "b"},
		"strs":   []string{"c"},
		"wrongs": 1,
	}
	assert.Equal(t, "x", o.String("s", "d"))
	assert.Equal(t, "d", o.String("wrongs", "d"))
	assert.True(t, o.Bool("b", false))
	assert.False(t, o.Bool("s", false))
	assert.Equal(t, 7, o.Int("f", 0))
	assert.Equal(t, 8, o.Int("i", 0))
	assert.Equal(t, 5, o.Int("missing", 5))
	assert.Equal(t, '|', o.Rune("r", ','))
	assert.Equal(t, ',', o.Rune("missing", ','))
	assert.Equal(t, map[string]string{"a": "b"}, o.StringMap("map"))
	assert.Empty(t, o.StringMap("missing"))
	assert.Equal(t, []string{"a", "b"}, o.StringSlice("slice"))
	assert.Equal(t, []string{"c"}, o.StringSlice("strs"))
	assert.Nil(t, o.StringSlice("missing"))
}

func TestOptions_NullDecodesEmpty(t *testing.T) {
	t.Parallel()

	p := Default()
	require.NoError(t, Decode("p.json", []byte(`{"source":{"kind":"file","options":null}}`), &p))
	assert.NotNil(t, p.Source.Options)
	assert.Empty(t, p.Source.Options)
}

func TestLoad_ShippedPipelines(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"purchase_orders.yaml", "purchase_orders_http.json"} {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			p, err := Load(filepath.Join("..", "..", "configs", "pipelines", name))
			require.NoError(t, err)
			assert.NoError(t, Check(p))
		})
	}
}
