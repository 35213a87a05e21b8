// Command poclean cleans a purchase-order export: it validates the raw table,
// normalizes fields, repairs vendor addresses, drops duplicate records and
// writes the result as CSV or XLSX.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"poclean/internal/config"
	"poclean/internal/logging"
	"poclean/internal/metrics"
	"poclean/internal/metrics/datadog"
	"poclean/internal/metrics/prompush"
	"poclean/internal/pipeline"
	"poclean/internal/probe"
	"poclean/internal/schema"
	"poclean/internal/tracing"

	// register every output writer with the storage factory.
	_ "poclean/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run is main without the process exit, so tests can drive it.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) (code int) {
	fs := flag.NewFlagSet("poclean", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		cfgPath  string
		validate bool
		probeIn  bool
		verbose  bool
		flags    config.Overrides
	)
	fs.StringVar(&cfgPath, "config", "", "pipeline config path (.json, .yaml or .yml)")
	fs.StringVar(&flags.Input, "input", "", "input file path or http(s) URL")
	fs.StringVar(&flags.Output, "output", "", "output file path (default "+config.DefaultOutputPath+")")
	fs.StringVar(&flags.Format, "format", "", "input format: csv, xlsx or auto")
	fs.StringVar(&flags.OutFormat, "out-format", "", "output format: csv or xlsx")
	fs.IntVar(&flags.Workers, "workers", 0, "parallel workers for per-row stages")
	fs.StringVar(&flags.MetricsBackend, "metrics-backend", "", "metrics backend: pushgateway, datadog or none")
	fs.StringVar(&flags.PushgatewayURL, "pushgateway-url", "", "Pushgateway base URL")
	fs.StringVar(&flags.DatadogAddr, "datadog-addr", "", "DogStatsD address")
	fs.BoolVar(&flags.Trace, "trace", false, "export stage spans")
	fs.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	fs.BoolVar(&probeIn, "probe", false, "match the input header row against the purchase-order columns and exit")
	fs.BoolVar(&verbose, "v", false, "enable debug logs")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 1 && flags.Input == "" {
		flags.Input = fs.Arg(0)
	}
	if verbose {
		flags.LogLevel = "debug"
	}

	p, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	p.Apply(env)
	p.Apply(flags)

	hasError := false
	for _, iss := range config.ValidatePipeline(p) {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		fmt.Fprintf(stderr, "configuration is invalid\n")
		return 1
	}
	if validate {
		fmt.Fprintf(stdout, "configuration is valid\n")
		return 0
	}
	if probeIn {
		return runProbe(ctx, p, stdout, stderr)
	}

	log, closer, err := logging.New(p.Logging, nil)
	if err != nil {
		fmt.Fprintf(stderr, "logging: %v\n", err)
		return 1
	}
	defer closer.Close()
	slog.SetDefault(log)

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "panic", "panic", r, "stack", string(debug.Stack()))
			code = 1
		}
	}()

	flush := setupMetrics(ctx, log, p)
	defer flush()

	tr, shutdown, err := tracing.Setup(p.Tracing)
	if err != nil {
		log.ErrorContext(ctx, "tracing setup failed", "err", err)
		return 1
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.WarnContext(ctx, "tracing shutdown", "err", err)
		}
	}()

	log.InfoContext(ctx, "run start", "job", p.Job, "input", p.InputName(), "output", p.Output.Path, "workers", p.Runtime.Workers)

	d, err := pipeline.Build(ctx, p, log, tr)
	if err != nil {
		log.ErrorContext(ctx, "pipeline setup failed", "err", err)
		return 1
	}
	sum, err := d.Run(ctx)
	switch {
	case errors.Is(err, pipeline.ErrEmptyResult):
		fmt.Fprintln(stdout, sum.Report.Summary())
		fmt.Fprintln(stdout, "cleaned data is empty")
		return 0
	case err != nil:
		log.ErrorContext(ctx, "run failed", "job", p.Job, "err", err)
		return 1
	}

	fmt.Fprintln(stdout, sum.Report.Summary())
	fmt.Fprintf(stdout, "read=%d parse_errors=%d duplicates_dropped=%d written=%d output=%s\n",
		sum.Read, sum.ParseErrors, sum.DuplicatesDropped, sum.Written, p.Output.Path)
	return 0
}

// runProbe prints the header report for the configured input together with
// the source section that maps its near-miss headers. It fails when a
// required column is missing.
func runProbe(ctx context.Context, p config.Pipeline, stdout, stderr io.Writer) int {
	src, err := pipeline.BuildSource(p.Source)
	if err != nil {
		fmt.Fprintf(stderr, "probe: %v\n", err)
		return 1
	}
	res, err := probe.Probe(ctx, src, schema.PurchaseOrders(), probe.Options{
		Name:   p.InputName(),
		Format: p.Source.Format,
		Comma:  p.Source.Options.Rune("comma", ','),
		Sheet:  p.Source.Options.String("sheet", ""),
	})
	if err != nil {
		fmt.Fprintf(stderr, "probe: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(struct {
		probe.Result
		Source config.Source `json:"suggested_source"`
	}{res, probe.Suggest(p, res).Source}); err != nil {
		fmt.Fprintf(stderr, "probe: %v\n", err)
		return 1
	}
	if !res.OK() {
		fmt.Fprintf(stderr, "missing required columns: %s\n", strings.Join(res.MissingRequired, ", "))
		return 1
	}
	return 0
}

// setupMetrics installs the configured backend and returns its flush. An
// unusable backend is logged and metrics stay disabled.
func setupMetrics(ctx context.Context, log *slog.Logger, p config.Pipeline) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch p.Metrics.Backend {
	case "pushgateway":
		b, err = prompush.NewBackend(p.Job, p.Metrics.PushgatewayURL)
	case "datadog":
		addr := p.Metrics.DatadogAddr
		if addr == "" {
			addr = "127.0.0.1:8125"
		}
		ns := p.Metrics.Namespace
		if ns != "" {
			ns += "."
		}
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       addr,
			Namespace:  ns,
			GlobalTags: []string{"job:" + p.Job},
		})
	case "", "none":
		log.DebugContext(ctx, "metrics disabled")
		return func() {}
	default:
		err = fmt.Errorf("unknown backend %q", p.Metrics.Backend)
	}
	if err != nil {
		log.WarnContext(ctx, "metrics disabled", "backend", p.Metrics.Backend, "err", err)
		return func() {}
	}

	prev := metrics.SetBackend(b)
	log.DebugContext(ctx, "metrics enabled", "backend", p.Metrics.Backend)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.WarnContext(ctx, "metrics flush", "err", err)
		}
		metrics.SetBackend(prev)
	}
}
