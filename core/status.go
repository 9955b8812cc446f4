package core

// Status is the lifecycle state of an analysis operation.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Terminal reports whether the status is final for the operation.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Outcome is the single terminal settlement of an operation. Exactly one of
// Report and Err is set once the operation leaves StatusRunning. Canceled
// operations carry a canceled-coded error that presentation layers suppress
// rather than render.
type Outcome struct {
	Status Status
	Report *Report
	Err    error
}
