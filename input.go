package ruleforge

import "github.com/ruleforge/ruleforge-go/core"

// Input selects what one analysis operates on: a URL to fetch or a document
// to upload. Provider, Model and APIKey override the client defaults for
// this run only.
type Input struct {
	URL      string
	Document *core.Document

	Provider string
	Model    string
	APIKey   string
}

// URLInput analyzes a remote page.
func URLInput(url string) Input {
	return Input{URL: url}
}

// DocumentInput analyzes an uploaded file.
func DocumentInput(name, mediaType string, data []byte) Input {
	return Input{Document: &core.Document{Name: name, MediaType: mediaType, Data: data}}
}

func (in Input) kind() string {
	if in.Document != nil {
		return "document"
	}
	return "url"
}
