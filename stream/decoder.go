// Package stream decodes the incremental progress stream emitted by the
// analysis service. The wire format is line-delimited: each frame is one
// line prefixed with "data: " carrying a JSON-encoded progress event, and
// lines without the marker are ignored.
package stream

import (
	"bytes"
	"encoding/json"

	"github.com/ruleforge/ruleforge-go/core"
)

// marker prefixes every frame-carrying line.
const marker = "data:"

// maxPartial bounds the carry-over buffer between Decode calls. A line that
// grows past it is dropped up to its next newline and counted as skipped.
const maxPartial = 4 << 20

// Decoder turns raw stream chunks into progress events. Network reads may
// split a frame at any byte offset, so the trailing incomplete line is kept
// between calls. Not safe for concurrent use; each stream owns one Decoder.
type Decoder struct {
	buf         []byte
	skipped     int
	sawTerminal bool
	discarding  bool
	warnf       func(format string, args ...any)
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithWarnFunc routes skipped-frame diagnostics. The default discards them.
func WithWarnFunc(fn func(format string, args ...any)) Option {
	return func(d *Decoder) {
		if fn != nil {
			d.warnf = fn
		}
	}
}

// NewDecoder returns a ready Decoder.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{warnf: func(string, ...any) {}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode appends chunk to the internal buffer and returns every event whose
// frame completed with this chunk, in wire order. An empty chunk is a no-op.
// Malformed frames are skipped and counted, never fatal: unknown stages and
// unknown frame shapes must not abort an otherwise healthy stream.
func (d *Decoder) Decode(chunk []byte) []core.ProgressEvent {
	if len(chunk) == 0 {
		return nil
	}
	d.buf = append(d.buf, chunk...)

	var events []core.ProgressEvent
	data := d.buf
	start := 0
	for {
		nl := bytes.IndexByte(data[start:], '\n')
		if nl < 0 {
			break
		}
		line := data[start : start+nl]
		start += nl + 1
		if d.discarding {
			d.discarding = false
			continue
		}
		ev, ok := d.decodeLine(line)
		if !ok {
			continue
		}
		events = append(events, ev)
		if ev.Terminal() {
			d.sawTerminal = true
		}
	}
	d.buf = append(d.buf[:0], data[start:]...)

	if d.discarding {
		d.buf = d.buf[:0]
	} else if len(d.buf) > maxPartial {
		d.warnf("stream: dropping oversized frame (%d buffered bytes)", len(d.buf))
		d.skipped++
		d.buf = d.buf[:0]
		d.discarding = true
	}
	return events
}

func (d *Decoder) decodeLine(line []byte) (core.ProgressEvent, bool) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if !bytes.HasPrefix(line, []byte(marker)) {
		return core.ProgressEvent{}, false
	}
	payload := bytes.TrimLeft(line[len(marker):], " ")
	if len(payload) == 0 {
		return core.ProgressEvent{}, false
	}
	var ev core.ProgressEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		if salvaged, ok := errorFrame(payload); ok {
			return salvaged, true
		}
		d.skipped++
		d.warnf("stream: skipping malformed frame %q: %v", payload, err)
		return core.ProgressEvent{}, false
	}
	return ev, true
}

// errorFrame salvages a declared error sentinel from a frame that failed the
// strict decode. A stream legitimately reporting failure must still settle
// the operation even when the frame's other fields are mangled.
func errorFrame(payload []byte) (core.ProgressEvent, bool) {
	var probe struct {
		Stage   core.Stage `json:"stage"`
		Message string     `json:"message"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil || probe.Stage != core.StageError {
		return core.ProgressEvent{}, false
	}
	return core.ProgressEvent{Stage: core.StageError, Message: probe.Message}, true
}

// Skipped returns how many malformed frames were dropped so far.
func (d *Decoder) Skipped() int { return d.skipped }

// SawTerminal reports whether a terminal sentinel frame was decoded. The
// session controller uses it at end of stream to tell a finished stream
// from a truncated one.
func (d *Decoder) SawTerminal() bool { return d.sawTerminal }

// Buffered returns the number of bytes held from an incomplete trailing line.
func (d *Decoder) Buffered() int { return len(d.buf) }
