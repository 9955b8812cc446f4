package core

import (
	"testing"
	"time"
)

func TestAnalysisRequestValidate(t *testing.T) {
	ok := AnalysisRequest{InputURL: "https://example.com", Provider: "openai", Model: "gpt-4o"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid request: %v", err)
	}

	if err := (AnalysisRequest{}).Validate(); err == nil {
		t.Fatalf("expected error for empty request")
	}

	both := AnalysisRequest{
		InputURL: "https://example.com",
		Document: &Document{Name: "a.pdf", Data: []byte("x")},
	}
	if err := both.Validate(); err == nil {
		t.Fatalf("expected error for URL and document together")
	}

	noData := AnalysisRequest{Document: &Document{Name: "a.pdf"}}
	if err := noData.Validate(); err == nil {
		t.Fatalf("expected error for empty document payload")
	}

	doc := AnalysisRequest{Document: &Document{Name: "a.pdf", MediaType: "application/pdf", Data: []byte("%PDF")}}
	if err := doc.Validate(); err != nil {
		t.Fatalf("expected valid document request: %v", err)
	}
}

func TestCredentialValid(t *testing.T) {
	now := time.Now()
	if (Credential{}).Valid(now) {
		t.Fatalf("empty credential should be invalid")
	}
	if !(Credential{Token: "tok"}).Valid(now) {
		t.Fatalf("credential without expiry should be valid")
	}
	if !(Credential{Token: "tok", ExpiresAt: now.Add(time.Hour)}).Valid(now) {
		t.Fatalf("future expiry should be valid")
	}
	if (Credential{Token: "tok", ExpiresAt: now.Add(-time.Second)}).Valid(now) {
		t.Fatalf("past expiry should be invalid")
	}
}
