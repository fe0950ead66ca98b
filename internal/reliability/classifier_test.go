package reliability

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyTagged(t *testing.T) {
	err := Mark(KindMissingCredential, errors.New("no api key"))
	if got := Classify(err); got != KindMissingCredential {
		t.Fatalf("Classify() = %q, want %q", got, KindMissingCredential)
	}
}

func TestClassifyWrapped(t *testing.T) {
	inner := Mark(KindAssetIO, errors.New("disk full"))
	err := fmt.Errorf("save sample: %w", inner)
	if got := Classify(err); got != KindAssetIO {
		t.Fatalf("Classify() = %q, want %q", got, KindAssetIO)
	}
}

func TestClassifyUntaggedDefaultsToUpstream(t *testing.T) {
	if got := Classify(errors.New("boom")); got != KindUpstreamFailure {
		t.Fatalf("Classify() = %q, want %q", got, KindUpstreamFailure)
	}
}

func TestMarkNil(t *testing.T) {
	if Mark(KindUpstreamFailure, nil) != nil {
		t.Fatalf("Mark(nil) should stay nil")
	}
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !IsRetryableHTTPStatus(code) {
			t.Fatalf("status %d should be retryable", code)
		}
	}
	for _, code := range []int{200, 400, 401, 404} {
		if IsRetryableHTTPStatus(code) {
			t.Fatalf("status %d should not be retryable", code)
		}
	}
}
