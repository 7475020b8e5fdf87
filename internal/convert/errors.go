// Package convert hosts the public Convert entry point, the error
// taxonomy and retry policy that govern external-I/O stages, and the
// notionapi wire serialization and orchestration logic that sit above the
// pure DOM-walking pipeline.
package convert

import "fmt"

// ErrorCategory classifies an external-I/O failure for retry eligibility
// and metrics, the same five-or-six-way split used for Notion API errors
// elsewhere in this ecosystem.
type ErrorCategory string

const (
	CategoryAuth        ErrorCategory = "auth"
	CategoryAccess      ErrorCategory = "access"
	CategoryRateLimited ErrorCategory = "rate_limited"
	CategoryValidation  ErrorCategory = "validation"
	CategoryNetwork     ErrorCategory = "network"
	CategoryTimeout     ErrorCategory = "timeout"
)

// Retryable reports whether an error in this category is worth retrying
// at all; validation and auth failures never succeed on retry.
func (c ErrorCategory) Retryable() bool {
	switch c {
	case CategoryRateLimited, CategoryNetwork, CategoryTimeout:
		return true
	default:
		return false
	}
}

// ConvertError is the typed error every external-I/O stage (image upload,
// page creation, append, rich-text rewrite) returns. Pure transformation
// stages never return one of these; they degrade in place instead.
type ConvertError struct {
	Op         string // the operation that failed: "upload_image", "create_page", "append_children", "update_rich_text"
	Category   ErrorCategory
	StatusCode int // 0 when not an HTTP failure
	Cause      error
}

func (e *ConvertError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (http %d): %v", e.Op, e.Category, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Category, e.Cause)
}

func (e *ConvertError) Unwrap() error { return e.Cause }

// InputParseError reports that the HTML could not be tokenized at all,
// which a permissive parser makes vanishingly rare.
type InputParseError struct {
	Cause error
}

func (e *InputParseError) Error() string { return fmt.Sprintf("input parse error: %v", e.Cause) }
func (e *InputParseError) Unwrap() error { return e.Cause }

// ImageUploadFailed is recovered locally: the caller falls back to an
// External(url) image source and records the fallback in diagnostics.
type ImageUploadFailed struct {
	URL   string
	Cause error
}

func (e *ImageUploadFailed) Error() string {
	return fmt.Sprintf("image upload failed for %s: %v", e.URL, e.Cause)
}
func (e *ImageUploadFailed) Unwrap() error { return e.Cause }

// NotionLimitExceeded should never surface at run time; the splitting
// logic in richtext and blocks is supposed to prevent it. Surfacing one
// is a fatal invariant violation, not a transient failure.
type NotionLimitExceeded struct {
	Limit         string
	ObservedValue int
}

func (e *NotionLimitExceeded) Error() string {
	return fmt.Sprintf("invariant violation: %s exceeded (observed %d)", e.Limit, e.ObservedValue)
}

// OrchestrationAppendFailed reports a partially recovered failure: the
// marker token stays in the host block's rich text, other markers still
// proceed, and this failure is recorded in diagnostics rather than
// aborting the whole orchestration pass.
type OrchestrationAppendFailed struct {
	HostID string
	Marker string
	Cause  error
}

func (e *OrchestrationAppendFailed) Error() string {
	return fmt.Sprintf("orchestration append failed for host %s marker %s: %v", e.HostID, e.Marker, e.Cause)
}
func (e *OrchestrationAppendFailed) Unwrap() error { return e.Cause }

// CancelledOrTimeout wraps a context cancellation or deadline expiry
// observed at a named pipeline stage, propagated straight to the caller.
type CancelledOrTimeout struct {
	Stage string
	Cause error
}

func (e *CancelledOrTimeout) Error() string {
	return fmt.Sprintf("%s: cancelled or timed out: %v", e.Stage, e.Cause)
}
func (e *CancelledOrTimeout) Unwrap() error { return e.Cause }

// ConfigError is fatal at startup: the process cannot proceed with an
// invalid or incomplete configuration.
type ConfigError struct {
	Field string
	Cause error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %v", e.Field, e.Cause)
}
func (e *ConfigError) Unwrap() error { return e.Cause }

// CategorizeHTTPStatus assigns an ErrorCategory from an HTTP status code,
// the same status-range split used for Notion API error classification
// elsewhere in this ecosystem. The single home for that mapping; BlockStore
// implementations call this from their own error-wrapping rather than
// keeping a local copy.
func CategorizeHTTPStatus(status int) ErrorCategory {
	switch {
	case status == 401:
		return CategoryAuth
	case status == 403:
		return CategoryAccess
	case status == 429:
		return CategoryRateLimited
	case status >= 400 && status < 500:
		return CategoryValidation
	case status >= 500:
		return CategoryNetwork
	default:
		return CategoryNetwork
	}
}
