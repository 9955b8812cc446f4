package core

import "encoding/json"

// Report is the terminal payload of a successful analysis. The client keeps
// it opaque; consumers decode it into their own shapes.
type Report struct {
	Raw json.RawMessage
}

// Decode unmarshals the raw payload into v.
func (r *Report) Decode(v any) error {
	if r == nil || len(r.Raw) == 0 {
		return NewError(ErrInternal, "empty report payload")
	}
	return json.Unmarshal(r.Raw, v)
}

func (r *Report) String() string {
	if r == nil {
		return ""
	}
	return string(r.Raw)
}
