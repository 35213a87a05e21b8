// Package config provides configuration models and helpers for cleansing
// pipelines.
//
// This file adds a linter for Pipeline values. Struct tags are checked with
// go-playground/validator and the hand-written rules below cover what tags
// cannot express. Both produce a flat list of issues that callers surface in
// the CLI or tests.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is returned by Check when a pipeline has error-severity issues.
var ErrInvalid = errors.New("invalid pipeline config")

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "output.kind",
// "source.http.url"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

var (
	validateOnce sync.Once
	structCheck  *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		structCheck = v
	})
	return structCheck
}

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline. Callers decide whether warnings are fatal.
//
// Example:
//
//	p, err := config.Load("configs/pipelines/purchase_orders.yaml")
//	if err != nil { ... }
//	for _, iss := range config.ValidatePipeline(p) {
//	    fmt.Printf("%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
//	}
func ValidatePipeline(p Pipeline) []Issue {
	issues := structIssues(p)
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateOutput(p)...)
	issues = append(issues, validateAddress(p)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	return issues
}

// Check returns nil when p has no error-severity issues. Otherwise it wraps
// ErrInvalid with every error message.
func Check(p Pipeline) error {
	var msgs []string
	for _, iss := range ValidatePipeline(p) {
		if iss.Severity == SeverityError {
			msgs = append(msgs, iss.Path+": "+iss.Message)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// structIssues translates validator field errors into Issues.
func structIssues(p Pipeline) []Issue {
	err := structValidator().Struct(p)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []Issue{{Severity: SeverityError, Path: "", Message: err.Error()}}
	}
	issues := make([]Issue, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		path := fe.Namespace()
		if i := strings.IndexByte(path, '.'); i >= 0 {
			path = path[i+1:]
		}
		issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: tagMessage(fe)})
	}
	return issues
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "oneof":
		return fmt.Sprintf("%q is not one of: %s", fmt.Sprint(fe.Value()), fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "url":
		return fmt.Sprintf("%q is not a valid URL", fmt.Sprint(fe.Value()))
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// validateSource checks the fields that depend on the source kind.
func validateSource(s Source) []Issue {
	var issues []Issue
	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.file.path",
				Message:  "file source requires a non-empty path",
			})
		}
	case "http":
		if strings.TrimSpace(s.HTTP.URL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.http.url",
				Message:  "http source requires a url",
			})
		}
	}

	if s.Options.Int("expected_fields", 0) < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.options.expected_fields",
			Message:  "expected_fields must not be negative",
		})
	}
	if c := s.Options.String("comma", ""); len([]rune(c)) > 1 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "source.options.comma",
			Message:  fmt.Sprintf("comma %q has more than one character; only the first is used", c),
		})
	}
	return issues
}

// validateOutput rejects writing over the input file.
func validateOutput(p Pipeline) []Issue {
	if p.Source.Kind == "file" && p.Output.Path != "" && p.Output.Path == p.Source.File.Path {
		return []Issue{{
			Severity: SeverityError,
			Path:     "output.path",
			Message:  "output path must differ from the input path",
		}}
	}
	return nil
}

// validateAddress compiles the effective address tables so that a bad
// pattern fails before any input is read.
func validateAddress(p Pipeline) []Issue {
	if _, err := p.Address.WithDefaults().Compile(); err != nil {
		return []Issue{{Severity: SeverityError, Path: "address", Message: err.Error()}}
	}
	return nil
}

func validateRuntime(r Runtime) []Issue {
	if r.Workers > 4*runtime.NumCPU() {
		return []Issue{{
			Severity: SeverityWarning,
			Path:     "runtime.workers",
			Message:  fmt.Sprintf("workers=%d is far above the %d available CPUs", r.Workers, runtime.NumCPU()),
		}}
	}
	return nil
}

func validateMetrics(m Metrics) []Issue {
	if m.Backend == "pushgateway" && strings.TrimSpace(m.PushgatewayURL) == "" {
		return []Issue{{
			Severity: SeverityError,
			Path:     "metrics.pushgateway_url",
			Message:  "pushgateway backend requires pushgateway_url",
		}}
	}
	return nil
}
