package ruleforge

import "github.com/ruleforge/ruleforge-go/core"

// Core data types re-exported so most programs only import this package.
type (
	// Credential is the short-lived session token used to authenticate
	// requests.
	Credential = core.Credential

	// ProgressEvent is one decoded frame of the progress stream.
	ProgressEvent = core.ProgressEvent

	// Stage names the phase of a remote analysis.
	Stage = core.Stage

	// Report is the terminal payload of a successful analysis.
	Report = core.Report

	// Outcome is the single terminal settlement of an operation.
	Outcome = core.Outcome

	// Status is the lifecycle state of an operation.
	Status = core.Status

	// Document is a file uploaded for analysis in place of a URL.
	Document = core.Document
)

// Stage constants.
const (
	StageQueued     = core.StageQueued
	StageFetching   = core.StageFetching
	StageRendering  = core.StageRendering
	StageExtracting = core.StageExtracting
	StageAnalyzing  = core.StageAnalyzing
	StageGenerating = core.StageGenerating
	StageComplete   = core.StageComplete
	StageError      = core.StageError
)

// Status constants.
const (
	StatusIdle      = core.StatusIdle
	StatusRunning   = core.StatusRunning
	StatusSucceeded = core.StatusSucceeded
	StatusFailed    = core.StatusFailed
	StatusCanceled  = core.StatusCanceled
)
