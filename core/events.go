package core

import "encoding/json"

// Stage names the phase of a remote analysis reported by a progress frame.
// The set is open: servers introduce stages this client has never seen and
// unknown values flow through untouched. Only the two terminal sentinels
// carry protocol meaning.
type Stage string

const (
	StageQueued     Stage = "queued"
	StageFetching   Stage = "fetching"
	StageRendering  Stage = "rendering"
	StageExtracting Stage = "extracting"
	StageAnalyzing  Stage = "analyzing"
	StageGenerating Stage = "generating"

	// StageComplete ends a stream successfully. The frame must carry the
	// report payload in its data field.
	StageComplete Stage = "complete"
	// StageError ends a stream with a server-reported failure.
	StageError Stage = "error"
)

// Terminal reports whether the stage settles the operation.
func (s Stage) Terminal() bool { return s == StageComplete || s == StageError }

// ProgressEvent is one decoded frame of the analysis progress stream.
// Events are immutable once decoded and belong to exactly one operation.
type ProgressEvent struct {
	Stage    Stage           `json:"stage"`
	Progress int             `json:"progress"`
	Message  string          `json:"message,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Terminal reports whether the event settles the operation.
func (e ProgressEvent) Terminal() bool { return e.Stage.Terminal() }
