package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/loadforge/loadforge/internal/core/domain"
	"github.com/loadforge/loadforge/internal/core/errs"
)

// toDocument wraps a single benchmark.Report as a one-model Document, so
// every writer persists the same §6 shape regardless of how many models a
// given run evaluated.
func toDocument(r *domain.Report) *Document {
	agg := NewAggregator()
	agg.Add(r.Provider, r.Target, r)
	return agg.Build()
}

// ensureDir makes path's parent directory, mirroring the "results/<type>/"
// layout §6 documents.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// JSONWriter persists a Document as indented JSON.
type JSONWriter struct{}

func NewJSONWriter() *JSONWriter { return &JSONWriter{} }

func (w *JSONWriter) Format() string { return "json" }

func (w *JSONWriter) Write(ctx context.Context, path string, r *domain.Report) error {
	if err := ensureDir(path); err != nil {
		return errs.New(errs.KindData, fmt.Errorf("creating output directory: %w", err))
	}

	body, err := json.MarshalIndent(toDocument(r), "", "  ")
	if err != nil {
		return errs.New(errs.KindData, fmt.Errorf("encoding json report: %w", err))
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return errs.New(errs.KindData, fmt.Errorf("writing report %q: %w", path, err))
	}
	return nil
}

// XMLWriter persists a Document as indented XML.
type XMLWriter struct{}

func NewXMLWriter() *XMLWriter { return &XMLWriter{} }

func (w *XMLWriter) Format() string { return "xml" }

func (w *XMLWriter) Write(ctx context.Context, path string, r *domain.Report) error {
	if err := ensureDir(path); err != nil {
		return errs.New(errs.KindData, fmt.Errorf("creating output directory: %w", err))
	}

	body, err := xml.MarshalIndent(toDocument(r), "", "  ")
	if err != nil {
		return errs.New(errs.KindData, fmt.Errorf("encoding xml report: %w", err))
	}
	out := append([]byte(xml.Header), body...)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return errs.New(errs.KindData, fmt.Errorf("writing report %q: %w", path, err))
	}
	return nil
}

// CSVWriter persists the flattened per-model summary rows a spreadsheet
// user would want: one row per model with its headline metrics, dropping
// the nested per-round detail the json/xml writers keep.
type CSVWriter struct{}

func NewCSVWriter() *CSVWriter { return &CSVWriter{} }

func (w *CSVWriter) Format() string { return "csv" }

var csvHeader = []string{
	"report_id", "generated_at", "model", "provider", "target",
	"total", "succeeded", "failed", "timed_out", "success_rate",
	"mean_latency_ms", "p95_latency_ms", "p99_latency_ms",
	"requests_per_second", "tokens_per_second",
}

func (w *CSVWriter) Write(ctx context.Context, path string, r *domain.Report) error {
	if err := ensureDir(path); err != nil {
		return errs.New(errs.KindData, fmt.Errorf("creating output directory: %w", err))
	}

	f, err := os.Create(path)
	if err != nil {
		return errs.New(errs.KindData, fmt.Errorf("writing report %q: %w", path, err))
	}
	defer f.Close()

	doc := toDocument(r)
	cw := csv.NewWriter(f)
	if err := cw.Write(csvHeader); err != nil {
		return errs.New(errs.KindData, err)
	}

	for _, m := range doc.Models {
		o := m.Benchmark.Overall
		row := []string{
			doc.ReportID,
			doc.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
			m.Model,
			m.Provider,
			m.Target,
			strconv.Itoa(o.Total),
			strconv.Itoa(o.Succeeded),
			strconv.Itoa(o.Failed),
			strconv.Itoa(o.TimedOut),
			strconv.FormatFloat(m.SuccessRate, 'f', 4, 64),
			strconv.FormatFloat(float64(o.Latency.Avg.Milliseconds()), 'f', 2, 64),
			strconv.FormatFloat(float64(o.Latency.P95.Milliseconds()), 'f', 2, 64),
			strconv.FormatFloat(float64(o.Latency.P99.Milliseconds()), 'f', 2, 64),
			strconv.FormatFloat(m.Benchmark.Throughput, 'f', 2, 64),
			strconv.FormatFloat(m.Benchmark.TokensPerS, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return errs.New(errs.KindData, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return errs.New(errs.KindData, err)
	}
	return nil
}
