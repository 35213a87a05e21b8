// Package config defines the pipeline configuration model for poclean.
//
// A pipeline file is JSON (configs/pipelines/*.json) or YAML (*.yaml, *.yml)
// and mirrors the Go structure below. Values are resolved in order of
// precedence: command-line flags, then POCLEAN_* environment variables, then
// the file, then Default().
//
// Example (trimmed):
//
//	job: purchase_orders
//	source:
//	  kind: file
//	  file: { path: data/po_export.csv }
//	output:
//	  kind: csv
//	  path: clean_data.csv
//	runtime: { workers: 4 }
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"poclean/internal/address"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "POCLEAN"

// DefaultOutputPath is where the cleaned table goes when nothing else says.
const DefaultOutputPath = "clean_data.csv"

// Pipeline describes a full cleansing run. It is the top-level object decoded
// from a pipeline file.
type Pipeline struct {
	// Job labels logs and metrics for this run.
	Job string `json:"job" yaml:"job" validate:"required"`

	Source Source `json:"source" yaml:"source"`
	Output Output `json:"output" yaml:"output"`

	// Address overrides the disambiguation tables. Empty fields keep the
	// built-in values.
	Address address.Config `json:"address" yaml:"address"`

	Dedup   Dedup   `json:"dedup" yaml:"dedup"`
	Runtime Runtime `json:"runtime" yaml:"runtime"`
	Logging Logging `json:"logging" yaml:"logging"`
	Metrics Metrics `json:"metrics" yaml:"metrics"`
	Tracing Tracing `json:"tracing" yaml:"tracing"`
}

// Source identifies the input table.
type Source struct {
	// Kind selects the source implementation: "file" or "http".
	Kind string     `json:"kind" yaml:"kind" validate:"required,oneof=file http"`
	File SourceFile `json:"file" yaml:"file"`
	HTTP SourceHTTP `json:"http" yaml:"http"`

	// Format is "csv", "xlsx" or "auto" (sniffed from name and content).
	Format string `json:"format" yaml:"format" validate:"omitempty,oneof=auto csv xlsx"`

	// Options is interpreted by the selected parser. For CSV:
	//   comma (string), encoding (string), lazy_quotes (bool),
	//   expected_fields (int), header_map (object)
	// For XLSX:
	//   sheet (string), header_map (object)
	Options Options `json:"options" yaml:"options"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	Path string `json:"path" yaml:"path"`
}

// SourceHTTP holds configuration for the "http" source kind.
type SourceHTTP struct {
	URL            string            `json:"url" yaml:"url" validate:"omitempty,url"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds" validate:"gte=0"`
	MaxRetries     int               `json:"max_retries" yaml:"max_retries" validate:"gte=0"`
}

// Output selects the writer for the cleaned table.
type Output struct {
	Kind string `json:"kind" yaml:"kind" validate:"required,oneof=csv xlsx"`
	Path string `json:"path" yaml:"path" validate:"required"`

	// Options: comma (string) for csv, sheet (string) for xlsx.
	Options Options `json:"options" yaml:"options"`
}

// Dedup controls duplicate removal.
type Dedup struct {
	Keys         []string `json:"keys" yaml:"keys"`
	Policy       string   `json:"policy" yaml:"policy" validate:"omitempty,oneof=keep-first keep-last most-complete"`
	PreferFields []string `json:"prefer_fields" yaml:"prefer_fields"`
}

// Runtime controls concurrency.
type Runtime struct {
	// Workers > 1 maps rows in parallel inside the per-row stages.
	Workers int `json:"workers" yaml:"workers" validate:"gte=0"`
}

// Logging configures the process logger.
type Logging struct {
	Level    string `json:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format   string `json:"format" yaml:"format" validate:"omitempty,oneof=json text"`
	Output   string `json:"output" yaml:"output" validate:"omitempty,oneof=stdout stderr file both"`
	FilePath string `json:"file_path" yaml:"file_path"`
}

// Metrics selects a metrics backend.
type Metrics struct {
	Backend        string `json:"backend" yaml:"backend" validate:"omitempty,oneof=none pushgateway datadog"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url" validate:"omitempty,url"`
	DatadogAddr    string `json:"datadog_addr" yaml:"datadog_addr"`
	Namespace      string `json:"namespace" yaml:"namespace"`
}

// Tracing enables stage spans.
type Tracing struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Output is "stdout", "stderr" or a file path.
	Output string `json:"output" yaml:"output"`
}

// Default returns the pipeline for the standard purchase-order export:
// CSV in, CSV out, single worker.
func Default() Pipeline {
	return Pipeline{
		Job:     "purchase_orders",
		Source:  Source{Kind: "file", Format: "auto", Options: Options{}},
		Output:  Output{Kind: "csv", Path: DefaultOutputPath, Options: Options{}},
		Dedup:   Dedup{Policy: "keep-first"},
		Runtime: Runtime{Workers: 1},
		Logging: Logging{Level: "info", Format: "text", Output: "stderr"},
		Metrics: Metrics{Backend: "none", Namespace: "poclean"},
		Tracing: Tracing{Output: "stderr"},
	}
}

// Load decodes the pipeline file at path over Default(). An empty path
// returns Default().
func Load(path string) (Pipeline, error) {
	p := Default()
	if path == "" {
		return p, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := Decode(path, b, &p); err != nil {
		return p, err
	}
	return p, nil
}

// Decode unmarshals b into p, choosing YAML or JSON by the extension of name.
func Decode(name string, b []byte, p *Pipeline) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.UnmarshalStrict(b, p); err != nil {
			return fmt.Errorf("decode yaml %s: %w", name, err)
		}
	default:
		dec := json.NewDecoder(strings.NewReader(string(b)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(p); err != nil {
			return fmt.Errorf("decode json %s: %w", name, err)
		}
	}
	return nil
}

// Overrides are the values a user may set without a pipeline file. The same
// struct is filled from POCLEAN_* variables and from command-line flags.
// Empty fields leave the pipeline untouched.
type Overrides struct {
	Input          string `envconfig:"INPUT"`
	Output         string `envconfig:"OUTPUT"`
	Format         string `envconfig:"FORMAT"`
	OutFormat      string `envconfig:"OUT_FORMAT"`
	Workers        int    `envconfig:"WORKERS"`
	LogLevel       string `envconfig:"LOG_LEVEL"`
	LogFormat      string `envconfig:"LOG_FORMAT"`
	MetricsBackend string `envconfig:"METRICS_BACKEND"`
	PushgatewayURL string `envconfig:"PUSHGATEWAY_URL"`
	DatadogAddr    string `envconfig:"DATADOG_ADDR"`
	Trace          bool   `envconfig:"TRACE"`
}

// LoadEnv reads POCLEAN_* environment overrides.
func LoadEnv() (Overrides, error) {
	var o Overrides
	if err := envconfig.Process(EnvPrefix, &o); err != nil {
		return o, fmt.Errorf("environment: %w", err)
	}
	return o, nil
}

// Apply copies every non-empty override into p. An input that looks like a
// URL switches the source to http.
func (p *Pipeline) Apply(o Overrides) {
	if o.Input != "" {
		if isURL(o.Input) {
			p.Source.Kind = "http"
			p.Source.HTTP.URL = o.Input
		} else {
			p.Source.Kind = "file"
			p.Source.File.Path = o.Input
		}
	}
	if o.Output != "" {
		p.Output.Path = o.Output
		switch strings.ToLower(filepath.Ext(o.Output)) {
		case ".xlsx":
			p.Output.Kind = "xlsx"
		case ".csv":
			p.Output.Kind = "csv"
		}
	}
	if o.Format != "" {
		p.Source.Format = o.Format
	}
	if o.OutFormat != "" {
		p.Output.Kind = o.OutFormat
	}
	if o.Workers != 0 {
		p.Runtime.Workers = o.Workers
	}
	if o.LogLevel != "" {
		p.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		p.Logging.Format = o.LogFormat
	}
	if o.MetricsBackend != "" {
		p.Metrics.Backend = o.MetricsBackend
	}
	if o.PushgatewayURL != "" {
		p.Metrics.PushgatewayURL = o.PushgatewayURL
	}
	if o.DatadogAddr != "" {
		p.Metrics.DatadogAddr = o.DatadogAddr
	}
	if o.Trace {
		p.Tracing.Enabled = true
	}
}

// InputName returns the path or URL the source reads from.
func (p Pipeline) InputName() string {
	if p.Source.Kind == "http" {
		return p.Source.HTTP.URL
	}
	return p.Source.File.Path
}

func isURL(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// Options is a small helper to fetch typed values from free-form option maps.
// It performs only minimal type coercion and returns the provided default when
// a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers arrive as float64,
// YAML integers as int.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns the string values of an object under key. Non-string
// values are ignored.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// StringSlice returns the string elements of an array under key, or nil.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// UnmarshalJSON decodes a missing or null "options" object to an empty,
// non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}

// UnmarshalYAML converts the map[interface{}]interface{} nodes produced by
// yaml.v2 into the map[string]any shape the accessors expect.
func (o *Options) UnmarshalYAML(unmarshal func(any) error) error {
	var tmp map[string]any
	if err := unmarshal(&tmp); err != nil {
		return err
	}
	out := make(Options, len(tmp))
	for k, v := range tmp {
		out[k] = stringKeys(v)
	}
	*o = out
	return nil
}

func stringKeys(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[fmt.Sprint(k)] = stringKeys(vv)
		}
		return m
	case []any:
		for i := range t {
			t[i] = stringKeys(t[i])
		}
		return t
	default:
		return v
	}
}
