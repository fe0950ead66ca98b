package voiceclone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ent0n29/musebot/internal/asset"
	"github.com/ent0n29/musebot/internal/reliability"
)

// Config holds upstream settings for the voice clone client.
type Config struct {
	APIKey  string
	BaseURL string
	ModelID string
}

// Client clones a voice from a sample and synthesizes speech with it. The
// upstream protocol is two-phase (register a voice, then text-to-speech), but
// callers see a single Synthesize operation.
type Client struct {
	cfg    Config
	httpc  *http.Client
	assets *asset.Manager
	log    zerolog.Logger
}

func NewClient(cfg Config, assets *asset.Manager, log zerolog.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = "eleven_multilingual_v2"
	}
	return &Client{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: 120 * time.Second},
		assets: assets,
		log:    log.With().Str("component", "voiceclone").Logger(),
	}
}

// Configured reports whether the voice clone credential is present.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.cfg.APIKey) != ""
}

// Synthesize registers a voice from the sample file and renders text with it,
// returning the generated audio as a new asset owned by the caller.
func (c *Client) Synthesize(ctx context.Context, samplePath, text string) (asset.Asset, error) {
	if !c.Configured() {
		return asset.Asset{}, reliability.Mark(reliability.KindMissingCredential,
			fmt.Errorf("voice clone credential not configured"))
	}

	voiceID, err := c.registerVoice(ctx, samplePath)
	if err != nil {
		return asset.Asset{}, err
	}

	audio, err := c.textToSpeech(ctx, voiceID, text)
	if err != nil {
		return asset.Asset{}, err
	}

	out, err := c.assets.Save(asset.KindGeneratedOutput, ".mp3", audio)
	if err != nil {
		return asset.Asset{}, err
	}
	return out, nil
}

func (c *Client) registerVoice(ctx context.Context, samplePath string) (string, error) {
	sample, err := os.ReadFile(samplePath)
	if err != nil {
		return "", reliability.Mark(reliability.KindAssetIO, fmt.Errorf("read sample: %w", err))
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("name", "voice_"+uuid.NewString()[:8]); err != nil {
		return "", reliability.Mark(reliability.KindUpstreamFailure, err)
	}
	part, err := form.CreateFormFile("files", "sample.mp3")
	if err != nil {
		return "", reliability.Mark(reliability.KindUpstreamFailure, err)
	}
	if _, err := part.Write(sample); err != nil {
		return "", reliability.Mark(reliability.KindUpstreamFailure, err)
	}
	if err := form.Close(); err != nil {
		return "", reliability.Mark(reliability.KindUpstreamFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/v1/voices/add", &body)
	if err != nil {
		return "", reliability.Mark(reliability.KindUpstreamFailure, err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", form.FormDataContentType())

	res, err := c.httpc.Do(req)
	if err != nil {
		return "", reliability.Mark(reliability.KindUpstreamFailure, fmt.Errorf("register voice: %w", err))
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", reliability.Mark(reliability.KindUpstreamFailure,
			fmt.Errorf("register voice status %d: %s", res.StatusCode, string(snippet)))
	}

	var parsed struct {
		VoiceID string `json:"voice_id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", reliability.Mark(reliability.KindUpstreamFailure, fmt.Errorf("decode voice response: %w", err))
	}
	if parsed.VoiceID == "" {
		return "", reliability.Mark(reliability.KindUpstreamFailure, fmt.Errorf("no voice_id in response"))
	}
	return parsed.VoiceID, nil
}

func (c *Client) textToSpeech(ctx context.Context, voiceID, text string) ([]byte, error) {
	payload, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": c.cfg.ModelID,
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	})
	if err != nil {
		return nil, reliability.Mark(reliability.KindUpstreamFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/v1/text-to-speech/"+url.PathEscape(voiceID),
		bytes.NewReader(payload))
	if err != nil {
		return nil, reliability.Mark(reliability.KindUpstreamFailure, err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpc.Do(req)
	if err != nil {
		return nil, reliability.Mark(reliability.KindUpstreamFailure, fmt.Errorf("text to speech: %w", err))
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, reliability.Mark(reliability.KindUpstreamFailure,
			fmt.Errorf("text to speech status %d: %s", res.StatusCode, string(snippet)))
	}

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, reliability.Mark(reliability.KindUpstreamFailure, fmt.Errorf("read audio: %w", err))
	}
	return audio, nil
}
