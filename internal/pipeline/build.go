package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"go.opentelemetry.io/otel/trace"

	"poclean/internal/config"
	"poclean/internal/datasource"
	"poclean/internal/datasource/file"
	"poclean/internal/datasource/httpds"
	"poclean/internal/parser"
	csvparser "poclean/internal/parser/csv"
	xlsxparser "poclean/internal/parser/xlsx"
	"poclean/internal/schema"
	"poclean/internal/storage"
	"poclean/internal/transformer/builtin"
)

// Build resolves every component named by p. Output writers must already be
// registered (see storage/all).
func Build(ctx context.Context, p config.Pipeline, log *slog.Logger, tr trace.Tracer) (*Driver, error) {
	reg := schema.PurchaseOrders()

	src, err := BuildSource(p.Source)
	if err != nil {
		return nil, err
	}

	acfg := p.Address.WithDefaults()
	acfg.Fields = reg.Address
	rules, err := acfg.Compile()
	if err != nil {
		return nil, err
	}

	keys := p.Dedup.Keys
	if len(keys) == 0 {
		keys = []string{reg.ID}
	}

	w, err := storage.New(ctx, storage.Config{
		Kind:  p.Output.Kind,
		Path:  p.Output.Path,
		Money: reg.Money,
		Comma: p.Output.Options.Rune("comma", 0),
		Sheet: p.Output.Options.String("sheet", ""),
	})
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}

	return &Driver{
		Job:      p.Job,
		Registry: reg,
		Source:   src,
		Input:    p.InputName(),
		Format:   p.Source.Format,
		Parsers:  buildParsers(p.Source.Options, log),
		Rules:    rules,
		Dedup:    builtin.DeDup{Keys: keys, Policy: p.Dedup.Policy, PreferFields: p.Dedup.PreferFields},
		Writer:   w,
		Workers:  p.Runtime.Workers,
		Logger:   log,
		Tracer:   tr,
	}, nil
}

// BuildSource returns the datasource named by s.
func BuildSource(s config.Source) (datasource.Source, error) {
	switch s.Kind {
	case "file":
		return file.NewLocal(s.File.Path), nil
	case "http":
		hdr := http.Header{}
		for k, v := range s.HTTP.Headers {
			hdr.Set(k, v)
		}
		c := httpds.NewClient(httpds.Config{
			Timeout:     time.Duration(s.HTTP.TimeoutSeconds) * time.Second,
			MaxRetries:  s.HTTP.MaxRetries,
			BaseHeaders: hdr,
		})
		return httpds.NewSource(c, s.HTTP.URL), nil
	default:
		return nil, fmt.Errorf("unsupported source.kind=%s", s.Kind)
	}
}

// buildParsers returns one parser per supported format, both configured from
// the same option bag so that "auto" can pick either.
func buildParsers(o config.Options, log *slog.Logger) map[string]parser.Parser {
	headerMap := o.StringMap("header_map")
	scrub := o.StringMap("scrub")
	from := make([]string, 0, len(scrub))
	for k := range scrub {
		from = append(from, k)
	}
	sort.Strings(from)
	repl := make([]csvparser.Replacement, 0, len(from))
	for _, f := range from {
		repl = append(repl, csvparser.Replacement{From: f, To: scrub[f]})
	}

	return map[string]parser.Parser{
		parser.FormatCSV: csvparser.NewParser(csvparser.Options{
			Comma:          o.Rune("comma", ','),
			Encoding:       o.String("encoding", ""),
			TrimSpace:      o.Bool("trim_space", false),
			LazyQuotes:     o.Bool("lazy_quotes", false),
			ExpectedFields: o.Int("expected_fields", 0),
			HeaderMap:      headerMap,
			Scrub:          repl,
			LogLimit:       o.Int("log_limit", 0),
			Logger:         log,
		}),
		parser.FormatXLSX: xlsxparser.NewParser(xlsxparser.Options{
			Sheet:     o.String("sheet", ""),
			HeaderMap: headerMap,
			Logger:    log,
		}),
	}
}
