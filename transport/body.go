package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/ruleforge/ruleforge-go/core"
)

// analysesPath is the single endpoint this client drives.
const analysesPath = "/v1/analyses"

// NewAnalysisRequest encodes an analysis submission. URL analyses post JSON;
// document analyses post a multipart form carrying the same scalar fields
// plus the file part. The primary payload never carries the api_key: when
// the request holds one, a second payload is encoded with it, and the
// transport picks per attempt based on whether the store yields a
// credential. Session token and api_key are mutually exclusive on the wire.
func NewAnalysisRequest(req core.AnalysisRequest) (Request, error) {
	if err := req.Validate(); err != nil {
		return Request{}, err
	}

	apiKey := req.APIKey
	req.APIKey = ""
	body, contentType, err := encodePayload(req)
	if err != nil {
		return Request{}, err
	}
	out := Request{
		Method:      http.MethodPost,
		Path:        analysesPath,
		ContentType: contentType,
		Body:        body,
		Stream:      true,
	}
	if apiKey != "" {
		req.APIKey = apiKey
		fallback, fallbackType, err := encodePayload(req)
		if err != nil {
			return Request{}, err
		}
		out.FallbackBody = fallback
		out.FallbackContentType = fallbackType
	}
	return out, nil
}

func encodePayload(req core.AnalysisRequest) ([]byte, string, error) {
	if req.Document == nil {
		body, err := json.Marshal(req)
		if err != nil {
			return nil, "", core.WrapError(err, core.ErrInternal)
		}
		return body, "application/json", nil
	}
	return encodeMultipart(req)
}

func encodeMultipart(req core.AnalysisRequest) ([]byte, string, error) {
	buf := &bytes.Buffer{}
	form := multipart.NewWriter(buf)

	fields := []struct{ name, value string }{
		{"provider", req.Provider},
		{"model", req.Model},
		{"api_key", req.APIKey},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := form.WriteField(f.name, f.value); err != nil {
			return nil, "", core.WrapError(err, core.ErrInternal)
		}
	}

	doc := req.Document
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="document"; filename=%q`, doc.Name))
	if doc.MediaType != "" {
		header.Set("Content-Type", doc.MediaType)
	}
	part, err := form.CreatePart(header)
	if err != nil {
		return nil, "", core.WrapError(err, core.ErrInternal)
	}
	if _, err := part.Write(doc.Data); err != nil {
		return nil, "", core.WrapError(err, core.ErrInternal)
	}
	if err := form.Close(); err != nil {
		return nil, "", core.WrapError(err, core.ErrInternal)
	}

	return buf.Bytes(), form.FormDataContentType(), nil
}
