// Package pipeline runs one cleansing pass over a purchase-order export:
// read, validate, normalize, disambiguate addresses, de-duplicate, write.
//
// The Driver owns the record set for the duration of Run. Every stage gets
// the previous stage's output and returns a new set; nothing is shared with
// the caller until the writer receives the final table.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"poclean/internal/address"
	"poclean/internal/datasource"
	"poclean/internal/logging"
	"poclean/internal/metrics"
	"poclean/internal/parser"
	"poclean/internal/schema"
	"poclean/internal/storage"
	"poclean/internal/tracing"
	"poclean/internal/transformer"
	"poclean/internal/transformer/builtin"
	"poclean/pkg/records"
)

// ErrEmptyResult is returned when no record survives the pipeline. Nothing
// is written in that case.
var ErrEmptyResult = errors.New("cleaned data is empty")

// Stage names used for logs, metrics and spans.
const (
	StageRead         = "read"
	StageValidate     = "validate"
	StageNormalize    = "normalize"
	StageDisambiguate = "disambiguate"
	StageDedup        = "dedup"
	StageWrite        = "write"
)

// violationLogLimit caps how many individual violations are logged.
const violationLogLimit = 20

// Summary describes a finished run.
type Summary struct {
	Job               string
	Read              int
	ParseErrors       int
	Violations        int
	DuplicatesDropped int
	Written           int
	Report            builtin.Report
	AddressHits       map[string]int
	Duration          time.Duration
}

// LogValue renders the summary as a single structured log group.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("read", s.Read),
		slog.Int("parse_errors", s.ParseErrors),
		slog.Int("violations", s.Violations),
		slog.Int("duplicates_dropped", s.DuplicatesDropped),
		slog.Int("written", s.Written),
		slog.Duration("duration", s.Duration),
	)
}

// Driver wires a source, a parser per format, the cleansing stages and a
// writer. Build constructs one from a config.Pipeline.
type Driver struct {
	Job      string
	Registry *schema.Registry

	Source datasource.Source
	// Input names the source for format detection (path or URL).
	Input string
	// Format is "csv", "xlsx" or "auto".
	Format  string
	Parsers map[string]parser.Parser

	Rules *address.Rules
	Dedup builtin.DeDup

	Writer storage.Writer

	Workers int
	Logger  *slog.Logger
	Tracer  trace.Tracer
}

// Run executes every stage in order. Validation findings never fail a run;
// a failing source, parser or writer does. When the cleaned set is empty Run
// returns ErrEmptyResult and writes nothing.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	sum := Summary{Job: d.Job}
	log := d.logger().With("job", d.Job)

	var tbl records.Table
	err := d.stage(ctx, StageRead, func(ctx context.Context) error {
		var err error
		tbl, sum.ParseErrors, err = d.read(ctx)
		sum.Read = len(tbl.Rows)
		return err
	})
	if err != nil {
		return sum, err
	}
	metrics.RecordRow(d.Job, "read", int64(sum.Read))
	metrics.RecordRow(d.Job, "parse_errors", int64(sum.ParseErrors))
	log.InfoContext(ctx, "input read", "rows", sum.Read, "parse_errors", sum.ParseErrors, "columns", len(tbl.Columns))

	rows := tbl.Rows
	_ = d.stage(ctx, StageValidate, func(ctx context.Context) error {
		v := builtin.Validate{Registry: d.Registry, Report: func(r builtin.Report) { sum.Report = r }}
		rows = v.Apply(rows)
		return nil
	})
	sum.Violations = sum.Report.Total()
	d.logReport(ctx, log, sum.Report)

	_ = d.stage(ctx, StageNormalize, func(ctx context.Context) error {
		rows = d.normalizer().Apply(rows)
		return nil
	})

	if d.Rules != nil {
		if country := d.Rules.Fields().Country; !tbl.HasColumn(country) {
			tbl.Columns = append(tbl.Columns, country)
		}
	}
	_ = d.stage(ctx, StageDisambiguate, func(ctx context.Context) error {
		da := address.Disambiguator{Rules: d.Rules, Workers: d.Workers, Hits: func(h map[string]int) { sum.AddressHits = h }}
		rows = da.Apply(rows)
		return nil
	})
	log.DebugContext(ctx, "address rules applied", "hits", hitsAttr(sum.AddressHits))

	_ = d.stage(ctx, StageDedup, func(ctx context.Context) error {
		dd := d.Dedup
		dd.Dropped = func(n int) { sum.DuplicatesDropped = n }
		rows = dd.Apply(rows)
		return nil
	})
	metrics.RecordRow(d.Job, "duplicates_dropped", int64(sum.DuplicatesDropped))

	if err := ctx.Err(); err != nil {
		return sum, err
	}
	if len(rows) == 0 {
		sum.Duration = time.Since(start)
		return sum, ErrEmptyResult
	}

	tbl.Rows = rows
	err = d.stage(ctx, StageWrite, func(ctx context.Context) error {
		if err := d.Writer.Write(ctx, tbl); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return nil
	})
	if err != nil {
		return sum, err
	}
	sum.Written = len(rows)
	metrics.RecordRow(d.Job, "written", int64(sum.Written))

	sum.Duration = time.Since(start)
	log.InfoContext(ctx, "run complete", "summary", sum)
	return sum, nil
}

// read opens the source, picks a parser and parses the whole table.
func (d *Driver) read(ctx context.Context) (records.Table, int, error) {
	format := d.Format
	if format == "" || format == parser.FormatAuto {
		var head []byte
		if s, ok := d.Source.(datasource.Sniffer); ok {
			h, err := s.Peek(ctx, parser.SniffLen)
			if err != nil {
				return records.Table{}, 0, fmt.Errorf("sniff %s: %w", d.Input, err)
			}
			head = h
		}
		format = parser.Detect(d.Input, head)
	}
	p, ok := d.Parsers[format]
	if !ok {
		return records.Table{}, 0, fmt.Errorf("no parser for format %q", format)
	}

	rc, err := d.Source.Open(ctx)
	if err != nil {
		return records.Table{}, 0, fmt.Errorf("open input: %w", err)
	}
	defer rc.Close()

	tbl, skipped, err := p.Parse(rc)
	if err != nil {
		return records.Table{}, skipped, fmt.Errorf("parse %s as %s: %w", d.Input, format, err)
	}
	// drain so http keep-alive connections can be reused
	_, _ = io.Copy(io.Discard, rc)
	return tbl, skipped, nil
}

// normalizer is the field normalization chain in its fixed order.
func (d *Driver) normalizer() transformer.Chain {
	return transformer.Chain{
		builtin.Normalize{Workers: d.Workers},
		builtin.Fill{Defaults: d.Registry.Defaults},
		builtin.Coerce{Registry: d.Registry, Workers: d.Workers},
		builtin.EnumScrub{Registry: d.Registry, Workers: d.Workers},
		builtin.StripChars{Columns: d.Registry.StripCommas, Chars: ","},
	}
}

// stage runs fn inside a span, records its duration and outcome, and stops
// early when ctx is done.
func (d *Driver) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := d.tracer().Start(ctx, name, trace.WithAttributes(
		attribute.String("job", d.Job),
		attribute.String("run_id", logging.RunID(ctx)),
	))
	t0 := time.Now()
	err := fn(ctx)
	el := time.Since(t0)
	metrics.RecordStep(d.Job, name, err, el)
	tracing.End(span, err)
	d.logger().DebugContext(ctx, "stage done", "job", d.Job, "stage", name, "elapsed", el, "err", err)
	return err
}

// logReport writes the validation summary and the first violations.
func (d *Driver) logReport(ctx context.Context, log *slog.Logger, rep builtin.Report) {
	counts := rep.Counts()
	cats := make([]string, 0, len(counts))
	for c := range counts {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		metrics.RecordViolations(d.Job, c, int64(counts[c]))
	}
	if rep.Total() == 0 {
		log.InfoContext(ctx, "validation passed")
		return
	}
	log.WarnContext(ctx, "validation found problems", "violations", rep.Total(), "by_category", counts)

	agg := newErrAgg(violationLogLimit)
	for _, c := range cats {
		for _, v := range rep.Violations(c) {
			agg.add(fmt.Sprintf("%s: row %d id %q column %s value %q", c, v.Row, v.ID, v.Column, v.Value))
		}
	}
	for i, msg := range agg.first {
		log.DebugContext(ctx, "violation", "n", i+1, "detail", msg)
	}
	if agg.count > len(agg.first) {
		log.DebugContext(ctx, "violations not shown", "count", agg.count-len(agg.first))
	}
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d *Driver) tracer() trace.Tracer {
	if d.Tracer == nil {
		return noop.NewTracerProvider().Tracer(tracing.ServiceName)
	}
	return d.Tracer
}

func hitsAttr(h map[string]int) slog.Value {
	names := make([]string, 0, len(h))
	for n := range h {
		names = append(names, n)
	}
	sort.Strings(names)
	attrs := make([]slog.Attr, 0, len(names))
	for _, n := range names {
		attrs = append(attrs, slog.Int(n, h[n]))
	}
	return slog.GroupValue(attrs...)
}
