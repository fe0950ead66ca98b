package videoclip

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ent0n29/musebot/internal/reliability"
)

func TestGenerateReportsNotAvailable(t *testing.T) {
	c := NewClient(zerolog.Nop())
	ref, err := c.Generate(context.Background(), "/tmp/photo.jpg", "melancholy")
	if ref != "" {
		t.Fatalf("ref = %q, want empty", ref)
	}
	if !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("err = %v, want ErrNotAvailable", err)
	}
	if got := reliability.Classify(err); got != reliability.KindUpstreamFailure {
		t.Fatalf("failure kind = %q, want %q", got, reliability.KindUpstreamFailure)
	}
}
