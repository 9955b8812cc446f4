package core

import "fmt"

// Document is a file uploaded for analysis in place of a URL.
type Document struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type,omitempty"`
	Data      []byte `json:"-"`
}

// MaxDocumentSize bounds uploaded documents. The service rejects larger
// bodies anyway; failing locally avoids streaming megabytes to a 413.
const MaxDocumentSize = 32 << 20

// AnalysisRequest describes one analysis to run.
type AnalysisRequest struct {
	// InputURL is the page to analyze. Empty when Document is set.
	InputURL string `json:"input,omitempty"`

	// Document uploads a file instead of fetching a URL. Exactly one of
	// InputURL and Document must be set.
	Document *Document `json:"-"`

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	// APIKey is the fallback auth mode, sent only on attempts that find no
	// valid credential in the session store. It is never sent alongside a
	// session token.
	APIKey string `json:"api_key,omitempty"`
}

// Validate checks the request shape before any network work happens.
func (r AnalysisRequest) Validate() error {
	switch {
	case r.InputURL == "" && r.Document == nil:
		return NewError(ErrClientError, "analysis request needs a URL or a document")
	case r.InputURL != "" && r.Document != nil:
		return NewError(ErrClientError, "analysis request cannot carry both a URL and a document")
	}
	if d := r.Document; d != nil {
		if d.Name == "" {
			return NewError(ErrClientError, "document name is required")
		}
		if len(d.Data) == 0 {
			return NewError(ErrClientError, "document payload is empty")
		}
		if len(d.Data) > MaxDocumentSize {
			return NewError(ErrClientError, fmt.Sprintf("document %q exceeds %d bytes", d.Name, MaxDocumentSize))
		}
	}
	return nil
}
