package ruleforge

import "github.com/ruleforge/ruleforge-go/core"

// AnalysisError is the typed error carried by failed outcomes.
type AnalysisError = core.AnalysisError

// ErrorCode categorizes failures.
type ErrorCode = core.ErrorCode

// Error codes.
const (
	ErrAuthExpired      = core.ErrAuthExpired
	ErrRateLimited      = core.ErrRateLimited
	ErrServerError      = core.ErrServerError
	ErrClientError      = core.ErrClientError
	ErrTransportFailure = core.ErrTransportFailure
	ErrStreamTruncated  = core.ErrStreamTruncated
	ErrAnalysisFailed   = core.ErrAnalysisFailed
	ErrCanceled         = core.ErrCanceled
	ErrInternal         = core.ErrInternal
)

// Classification predicates. Typical handling: IsAuthExpired prompts for
// re-authentication, IsCanceled is suppressed entirely, IsStreamTruncated
// suggests trying again, and everything else surfaces the error message.
var (
	IsAuthExpired      = core.IsAuthExpired
	IsRateLimited      = core.IsRateLimited
	IsServerError      = core.IsServerError
	IsClientError      = core.IsClientError
	IsTransportFailure = core.IsTransportFailure
	IsStreamTruncated  = core.IsStreamTruncated
	IsAnalysisFailed   = core.IsAnalysisFailed
	IsCanceled         = core.IsCanceled

	// GetRetryAfter extracts the server-provided retry hint from a
	// rate-limited error, or zero.
	GetRetryAfter = core.GetRetryAfter
)
