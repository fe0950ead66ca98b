package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ent0n29/musebot/internal/asset"
	"github.com/ent0n29/musebot/internal/bot"
	"github.com/ent0n29/musebot/internal/config"
	"github.com/ent0n29/musebot/internal/history"
	"github.com/ent0n29/musebot/internal/httpapi"
	"github.com/ent0n29/musebot/internal/lyrics"
	"github.com/ent0n29/musebot/internal/observability"
	"github.com/ent0n29/musebot/internal/session"
	"github.com/ent0n29/musebot/internal/telegram"
	"github.com/ent0n29/musebot/internal/videoclip"
	"github.com/ent0n29/musebot/internal/voiceclone"
)

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Sessions     *session.Store
	Orchestrator *bot.Orchestrator
	Telegram     *telegram.Client
	Metrics      *observability.Metrics

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, log zerolog.Logger) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	assets, err := asset.NewManager(cfg.AssetDir, log)
	if err != nil {
		return nil, fmt.Errorf("asset manager init failed: %w", err)
	}

	hist, err := history.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("history store init failed: %w", err)
	}

	tg := telegram.NewClient(cfg.BotToken, cfg.TelegramAPIBaseURL, log)
	lyricsClient := lyrics.NewClient(lyrics.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	}, log)
	voiceClient := voiceclone.NewClient(voiceclone.Config{
		APIKey:  cfg.ElevenLabsAPIKey,
		BaseURL: cfg.ElevenLabsBaseURL,
	}, assets, log)
	videoClient := videoclip.NewClient(log)

	sessions := session.NewStore(cfg.SessionIdleTimeout)
	sessions.SetEvictHook(func(s session.Session) {
		// Workflows evicted mid-flight leave collected files behind.
		assets.ReleasePath(s.Data[session.DataVoiceSamplePath])
		assets.ReleasePath(s.Data[session.DataPhotoPath])
		metrics.WorkflowEvents.WithLabelValues("any", "evicted").Inc()
		metrics.ActiveWorkflows.Set(float64(sessions.ActiveCount()))
	})

	orchestrator := bot.New(
		sessions,
		assets,
		tg,
		lyricsClient,
		voiceClient,
		videoClient,
		hist,
		tg,
		metrics,
		log,
	)

	api := httpapi.New(cfg, orchestrator, sessions, hist, metrics, httpapi.Capabilities{
		Lyrics:     lyricsClient.Configured(),
		VoiceClone: voiceClient.Configured(),
		PhotoClip:  false,
	}, log)

	cleanup := func() error {
		return hist.Close()
	}

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Sessions:     sessions,
		Orchestrator: orchestrator,
		Telegram:     tg,
		Metrics:      metrics,
		Cleanup:      cleanup,
	}, nil
}
