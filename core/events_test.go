package core

import (
	"encoding/json"
	"testing"
)

func TestStageTerminal(t *testing.T) {
	for _, s := range []Stage{StageQueued, StageFetching, StageAnalyzing, Stage("future_stage")} {
		if s.Terminal() {
			t.Fatalf("stage %q should not be terminal", s)
		}
	}
	if !StageComplete.Terminal() || !StageError.Terminal() {
		t.Fatalf("terminal sentinels misclassified")
	}
}

func TestProgressEventUnknownStage(t *testing.T) {
	var ev ProgressEvent
	line := `{"stage":"quantum_scan","progress":42,"message":"scanning"}`
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Stage != "quantum_scan" || ev.Progress != 42 {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Terminal() {
		t.Fatalf("unknown stage must not be terminal")
	}
}

func TestReportDecode(t *testing.T) {
	rep := &Report{Raw: json.RawMessage(`{"rules":[{"name":"r1"}],"score":88}`)}
	var out struct {
		Rules []struct {
			Name string `json:"name"`
		} `json:"rules"`
		Score int `json:"score"`
	}
	if err := rep.Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Rules) != 1 || out.Rules[0].Name != "r1" || out.Score != 88 {
		t.Fatalf("unexpected decode result %+v", out)
	}
}

func TestReportDecodeEmpty(t *testing.T) {
	var empty *Report
	if err := empty.Decode(&struct{}{}); err == nil {
		t.Fatalf("expected error for nil report")
	}
	if err := (&Report{}).Decode(&struct{}{}); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}
