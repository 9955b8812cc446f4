package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	ruleforge "github.com/ruleforge/ruleforge-go"
)

// reportPayload is the shape the service usually returns. The SDK keeps
// the report opaque; this decode is best-effort presentation only.
type reportPayload struct {
	Verdict string    `json:"verdict"`
	Summary string    `json:"summary"`
	Rules   []ruleRow `json:"rules"`
}

type ruleRow struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Severity    string  `json:"severity"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

// writeReport renders the analysis result in the requested format. A
// payload that does not decode into the rule-bundle shape falls back to
// pretty-printed JSON rather than failing a finished analysis.
func writeReport(w io.Writer, report *ruleforge.Report, format string) error {
	switch strings.ToLower(format) {
	case "json":
		return writeReportJSON(w, report)
	case "", "table":
		var payload reportPayload
		if err := report.Decode(&payload); err != nil || len(payload.Rules) == 0 {
			return writeReportJSON(w, report)
		}
		writeRuleTable(w, payload)
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writeReportJSON(w io.Writer, report *ruleforge.Report) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, report.Raw, "", "  "); err != nil {
		_, werr := fmt.Fprintln(w, report.String())
		return werr
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

func writeRuleTable(w io.Writer, payload reportPayload) {
	if payload.Verdict != "" {
		fmt.Fprintf(w, "Verdict: %s\n", payload.Verdict)
	}
	if payload.Summary != "" {
		fmt.Fprintf(w, "%s\n", payload.Summary)
	}
	if payload.Verdict != "" || payload.Summary != "" {
		fmt.Fprintln(w)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignCenter, WidthMax: 40},
		{Number: 3, Align: text.AlignCenter, AlignHeader: text.AlignCenter},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 5, Align: text.AlignLeft, AlignHeader: text.AlignCenter, WidthMax: 60},
	})

	tw.AppendHeader(table.Row{"ID", "Title", "Severity", "Confidence", "Description"})
	for _, rule := range payload.Rules {
		tw.AppendRow(table.Row{
			rule.ID,
			rule.Title,
			rule.Severity,
			formatConfidence(rule.Confidence),
			rule.Description,
		})
	}

	tw.Render()
}

// formatConfidence accepts both ratio (0..1) and percentage encodings.
func formatConfidence(c float64) string {
	if c <= 0 {
		return "-"
	}
	if c <= 1 {
		return fmt.Sprintf("%.0f%%", c*100)
	}
	return fmt.Sprintf("%.0f%%", c)
}
