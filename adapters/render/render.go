// Package render turns fit reports into user-facing documents. Every format
// is a pure function over the report; nothing here refits or touches storage.
package render

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"incuba/domain/results"
	"incuba/internal/report"
	"incuba/ports"
)

// Format selects a report output encoding
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatCSV      Format = "csv"
)

// ParseFormat maps a user-facing format name to a Format
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt", "plain":
		return FormatText, nil
	case "html":
		return FormatHTML, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unknown format %q (use text, markdown, html or csv)", name)
}

// Render writes the report to w in the requested format.
func Render(w io.Writer, rep *results.FitReport, format Format) error {
	switch format {
	case FormatText:
		return Text(w, rep)
	case FormatMarkdown:
		return Markdown(w, rep)
	case FormatHTML:
		return HTML(w, rep)
	case FormatCSV:
		return CSV(w, rep)
	}
	return fmt.Errorf("unknown format %q", format)
}

// intervalLabel is the column heading for interval bounds, derived from the
// reporting level so the document never disagrees with the numbers.
func intervalLabel(bound string) string {
	return fmt.Sprintf("%s %g%%", bound, report.Level*100)
}

// uncertaintyLine describes where a result's intervals came from.
func uncertaintyLine(res results.FitResult) string {
	if res.Method == results.MethodMCMC {
		return fmt.Sprintf("%d posterior draws retained of %d", res.Used, res.Requested)
	}
	return fmt.Sprintf("%d/%d bootstrap replicates", res.Used, res.Requested)
}

// sortedFailures returns failure entries in family order for stable output.
func sortedFailures(failures map[string]string) []string {
	keys := make([]string, 0, len(failures))
	for family := range failures {
		keys = append(keys, family)
	}
	sort.Strings(keys)
	return keys
}

// Text renders a fixed-width table per family, suitable for terminals.
func Text(w io.Writer, rep *results.FitReport) error {
	var b strings.Builder

	b.WriteString("Incubation period estimates\n")
	b.WriteString(fmt.Sprintf("run %s  seed %d  epoch %s\n",
		rep.Manifest.RunID, rep.Manifest.Seed, rep.Manifest.Epoch))

	for _, res := range rep.Results {
		b.WriteString(fmt.Sprintf("\n%s (%s)  n=%d  log-lik=%.3f  %s\n",
			res.Family, res.Method, res.SampleSize, res.LogLik, uncertaintyLine(res)))
		b.WriteString(fmt.Sprintf("  %-10s %12s %12s %12s\n",
			"estimate", "point", intervalLabel("lo"), intervalLabel("hi")))
		for _, row := range append(append([]results.EstimateRow{}, res.Params...), res.Rows...) {
			b.WriteString(fmt.Sprintf("  %-10s %12.3f %12.3f %12.3f\n",
				row.Name, row.Point, row.Lo, row.Hi))
		}
	}

	if len(rep.Failures) > 0 {
		b.WriteString("\nFailed families:\n")
		for _, family := range sortedFailures(rep.Failures) {
			b.WriteString(fmt.Sprintf("  %-10s %s\n", family, rep.Failures[family]))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Markdown renders the report as a markdown document with one pipe table per
// family. This is the canonical document; HTML is derived from it.
func Markdown(w io.Writer, rep *results.FitReport) error {
	var b strings.Builder

	b.WriteString("# Incubation period estimates\n\n")
	b.WriteString(fmt.Sprintf("- Run: `%s`\n", rep.Manifest.RunID))
	b.WriteString(fmt.Sprintf("- Seed: %d\n", rep.Manifest.Seed))
	b.WriteString(fmt.Sprintf("- Reference epoch: %s\n", rep.Manifest.Epoch))
	b.WriteString(fmt.Sprintf("- Fingerprint: `%s`\n", rep.Manifest.Fingerprint))

	for _, res := range rep.Results {
		b.WriteString(fmt.Sprintf("\n## %s\n\n", res.Family))
		b.WriteString(fmt.Sprintf("Fitted by %s to %d records, log-likelihood %.3f, %s.\n\n",
			res.Method, res.SampleSize, res.LogLik, uncertaintyLine(res)))
		b.WriteString(fmt.Sprintf("| Estimate | Point | %s | %s |\n",
			intervalLabel("Lo"), intervalLabel("Hi")))
		b.WriteString("|---|---:|---:|---:|\n")
		for _, row := range append(append([]results.EstimateRow{}, res.Params...), res.Rows...) {
			b.WriteString(fmt.Sprintf("| %s | %.3f | %.3f | %.3f |\n",
				row.Name, row.Point, row.Lo, row.Hi))
		}
	}

	if len(rep.Failures) > 0 {
		b.WriteString("\n## Failed families\n\n")
		for _, family := range sortedFailures(rep.Failures) {
			b.WriteString(fmt.Sprintf("- %s: %s\n", family, rep.Failures[family]))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// HTML renders the markdown document to a complete HTML page.
func HTML(w io.Writer, rep *results.FitReport) error {
	var buf bytes.Buffer
	if err := Markdown(&buf, rep); err != nil {
		return err
	}

	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse(buf.Bytes())
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: "Incubation period estimates",
	})

	_, err := w.Write(markdown.Render(doc, renderer))
	return err
}

// CSV renders one machine-readable row per estimate across all families.
// Floats keep full precision; the layout matches the persisted estimate rows.
func CSV(w io.Writer, rep *results.FitReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"run_id", "family", "method", "kind", "name", "point", "lo", "hi"}); err != nil {
		return err
	}

	for _, record := range ports.FlattenEstimates(rep.Manifest.RunID, rep) {
		row := []string{
			record.RunID.String(),
			record.Family.String(),
			string(record.Method),
			string(record.Kind),
			record.Name,
			strconv.FormatFloat(record.Point, 'g', -1, 64),
			strconv.FormatFloat(record.Lo, 'g', -1, 64),
			strconv.FormatFloat(record.Hi, 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
