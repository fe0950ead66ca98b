package reliability

import (
	"errors"
	"fmt"
)

// Kind categorizes a workflow step failure.
type Kind string

const (
	// KindMissingCredential means a capability is not configured; the entry
	// transition is refused and no resource is allocated.
	KindMissingCredential Kind = "missing_credential"
	// KindUpstreamFailure means an external client returned non-success.
	KindUpstreamFailure Kind = "upstream_failure"
	// KindInvalidInput means the event kind does not match the current state.
	KindInvalidInput Kind = "invalid_input"
	// KindAssetIO means a download/save/delete error. Surfaced to users the
	// same way as an upstream failure.
	KindAssetIO Kind = "asset_io"
)

// StepError tags an error with its failure kind.
type StepError struct {
	Kind Kind
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Mark wraps err with the given failure kind.
func Mark(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Kind: kind, Err: err}
}

// Classify returns the failure kind of err. Untagged errors count as
// upstream failures: every unexpected error is terminal for the current step
// and scoped to one user's workflow.
func Classify(err error) Kind {
	var step *StepError
	if errors.As(err, &step) {
		return step.Kind
	}
	return KindUpstreamFailure
}

// IsRetryableHTTPStatus classifies retryable HTTP status codes. Kept for
// upstream clients even though workflow steps never retry automatically.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
