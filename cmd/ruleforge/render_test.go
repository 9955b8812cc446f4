package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	ruleforge "github.com/ruleforge/ruleforge-go"
)

func ruleReport(raw string) *ruleforge.Report {
	return &ruleforge.Report{Raw: json.RawMessage(raw)}
}

func TestWriteReportTable(t *testing.T) {
	report := ruleReport(`{
		"verdict": "malicious",
		"summary": "Credential phishing page impersonating a bank.",
		"rules": [
			{"id": "R-001", "title": "Brand impersonation", "severity": "high", "confidence": 0.85},
			{"id": "R-002", "title": "Credential form posts offsite", "severity": "critical", "confidence": 0.92}
		]
	}`)

	var buf bytes.Buffer
	if err := writeReport(&buf, report, "table"); err != nil {
		t.Fatalf("writeReport failed: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "Verdict: malicious") {
		t.Errorf("verdict missing:\n%s", out)
	}
	if !strings.Contains(out, "Credential phishing page") {
		t.Errorf("summary missing:\n%s", out)
	}
	for _, want := range []string{"R-001", "R-002", "Brand impersonation", "critical", "85%", "92%"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestWriteReportTableFallsBackToJSON(t *testing.T) {
	// A payload without rules is not our shape; dump it instead of
	// rendering an empty table.
	report := ruleReport(`{"observations":{"x":1}}`)

	var buf bytes.Buffer
	if err := writeReport(&buf, report, "table"); err != nil {
		t.Fatalf("writeReport failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"x": 1`) {
		t.Errorf("expected indented JSON fallback, got:\n%s", buf.String())
	}
}

func TestWriteReportJSON(t *testing.T) {
	report := ruleReport(`{"rules":[{"id":"r1"}]}`)

	var buf bytes.Buffer
	if err := writeReport(&buf, report, "json"); err != nil {
		t.Fatalf("writeReport failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "\"id\": \"r1\"") {
		t.Errorf("expected indented JSON, got:\n%s", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("JSON output should end with a newline")
	}
}

func TestWriteReportUnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := writeReport(&buf, ruleReport(`{}`), "yaml"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestFormatConfidence(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "-"},
		{0.85, "85%"},
		{1, "100%"},
		{92, "92%"},
	}
	for _, c := range cases {
		if got := formatConfidence(c.in); got != c.want {
			t.Errorf("formatConfidence(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
