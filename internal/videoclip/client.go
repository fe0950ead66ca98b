package videoclip

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/ent0n29/musebot/internal/reliability"
)

// ErrNotAvailable is the stub's standing answer. The photo workflow treats it
// as a normal upstream failure, not a defect.
var ErrNotAvailable = errors.New("video generation is not available yet")

// Client turns a photo and a mood into a video reference. The current
// implementation is a stub; a real backend slots in behind the same contract.
type Client struct {
	log zerolog.Logger
}

func NewClient(log zerolog.Logger) *Client {
	return &Client{log: log.With().Str("component", "videoclip").Logger()}
}

// Generate reports not-available for every request.
func (c *Client) Generate(_ context.Context, photoPath, mood string) (string, error) {
	c.log.Info().Str("photo", photoPath).Str("mood", mood).Msg("video generation requested")
	return "", reliability.Mark(reliability.KindUpstreamFailure, ErrNotAvailable)
}
