package bot

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/musebot/internal/asset"
	"github.com/ent0n29/musebot/internal/history"
	"github.com/ent0n29/musebot/internal/observability"
	"github.com/ent0n29/musebot/internal/protocol"
	"github.com/ent0n29/musebot/internal/reliability"
	"github.com/ent0n29/musebot/internal/session"
)

// Workflow names used in metrics and history records.
const (
	workflowLyrics = "lyrics"
	workflowVoice  = "voice_clone"
	workflowClip   = "photo_clip"
)

const recordTimeout = 2 * time.Second

// FileSource resolves a platform file reference into its content.
type FileSource interface {
	OpenFile(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// LyricsClient generates song lyrics. Failures come back as marked fallback
// strings, never errors.
type LyricsClient interface {
	Configured() bool
	Generate(ctx context.Context, topic string) string
}

// VoiceClient clones a voice from a sample and speaks the given text.
type VoiceClient interface {
	Configured() bool
	Synthesize(ctx context.Context, samplePath, text string) (asset.Asset, error)
}

// VideoClient turns a photo and a mood into a video reference.
type VideoClient interface {
	Generate(ctx context.Context, photoPath, mood string) (string, error)
}

// Emitter delivers outbound messages to the user's chat.
type Emitter interface {
	Send(ctx context.Context, msg protocol.Outbound) error
}

// Orchestrator routes inbound events to the active workflow for each user,
// applies the resulting state transition and emits the outbound messages.
type Orchestrator struct {
	sessions *session.Store
	assets   *asset.Manager
	files    FileSource
	lyrics   LyricsClient
	voice    VoiceClient
	video    VideoClient
	hist     history.Store
	emitter  Emitter
	metrics  *observability.Metrics
	log      zerolog.Logger
}

func New(
	sessions *session.Store,
	assets *asset.Manager,
	files FileSource,
	lyrics LyricsClient,
	voice VoiceClient,
	video VideoClient,
	hist history.Store,
	emitter Emitter,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		sessions: sessions,
		assets:   assets,
		files:    files,
		lyrics:   lyrics,
		voice:    voice,
		video:    video,
		hist:     hist,
		emitter:  emitter,
		metrics:  metrics,
		log:      log.With().Str("component", "orchestrator").Logger(),
	}
}

// Handle processes one inbound event and returns the messages produced.
// Events for the same user are serialized; generated assets are released only
// after the messages referencing them were handed to the emitter.
func (o *Orchestrator) Handle(ctx context.Context, ev protocol.Inbound) []protocol.Outbound {
	var msgs []protocol.Outbound
	o.sessions.Dispatch(ev.UserID, func() {
		var scope *asset.Scope
		msgs, scope = o.step(ctx, ev)
		o.deliver(ctx, msgs)
		if scope != nil {
			scope.Close()
		}
	})
	o.metrics.ActiveWorkflows.Set(float64(o.sessions.ActiveCount()))
	return msgs
}

func (o *Orchestrator) step(ctx context.Context, ev protocol.Inbound) ([]protocol.Outbound, *asset.Scope) {
	sess := o.sessions.Get(ev.UserID)

	if ev.Kind == protocol.KindCommand {
		return o.handleCommand(sess, ev), nil
	}

	// Idle routing and active-state routing are mutually exclusive: an event
	// is never interpreted both as a menu selection and as workflow input.
	if sess.State == session.StateIdle {
		return o.handleIdle(ev), nil
	}

	switch sess.State {
	case session.StateAwaitingTopic:
		return o.stepLyricsTopic(ctx, sess, ev)
	case session.StateAwaitingVoiceSample:
		return o.stepVoiceSample(ctx, sess, ev)
	case session.StateAwaitingVoiceTopic:
		return o.stepVoiceTopic(ctx, sess, ev)
	case session.StateAwaitingPhoto:
		return o.stepPhoto(ctx, sess, ev)
	case session.StateAwaitingPhotoTopic:
		return o.stepPhotoTopic(ctx, sess, ev)
	default:
		o.log.Error().Str("state", string(sess.State)).Msg("unmodeled session state")
		return o.fallback(ev), nil
	}
}

func (o *Orchestrator) handleCommand(sess session.Session, ev protocol.Inbound) []protocol.Outbound {
	if ev.Text != "start" {
		return o.fallback(ev)
	}

	// /start abandons any in-progress workflow and frees its artifacts.
	if sess.State != session.StateIdle {
		o.releaseCollected(sess)
		o.metrics.WorkflowEvents.WithLabelValues(workflowFor(sess.State), "abandoned").Inc()
	}
	o.sessions.Clear(ev.UserID)

	return []protocol.Outbound{{
		Kind:     protocol.OutboundText,
		UserID:   ev.UserID,
		Text:     greeting(o.lyrics.Configured(), o.voice.Configured()),
		WithMenu: true,
	}}
}

func (o *Orchestrator) handleIdle(ev protocol.Inbound) []protocol.Outbound {
	if ev.Kind != protocol.KindMenuText {
		return o.fallback(ev)
	}

	switch ev.Text {
	case protocol.MenuLyrics:
		return o.enterLyrics(ev)
	case protocol.MenuVoice:
		return o.enterVoiceClone(ev)
	case protocol.MenuClip:
		return o.enterPhotoClip(ev)
	default:
		return o.fallback(ev)
	}
}

func (o *Orchestrator) fallback(ev protocol.Inbound) []protocol.Outbound {
	return []protocol.Outbound{{
		Kind:     protocol.OutboundText,
		UserID:   ev.UserID,
		Text:     msgUnrecognized,
		WithMenu: true,
	}}
}

func (o *Orchestrator) deliver(ctx context.Context, msgs []protocol.Outbound) {
	if o.emitter == nil {
		return
	}
	for _, msg := range msgs {
		if err := o.emitter.Send(ctx, msg); err != nil {
			o.log.Warn().Err(err).Str("user", msg.UserID).Str("kind", string(msg.Kind)).Msg("outbound delivery failed")
		}
	}
}

// releaseCollected frees artifacts recorded in the session's collected data.
func (o *Orchestrator) releaseCollected(sess session.Session) {
	if p := sess.Data[session.DataVoiceSamplePath]; p != "" {
		o.assets.ReleasePath(p)
	}
	if p := sess.Data[session.DataPhotoPath]; p != "" {
		o.assets.ReleasePath(p)
	}
}

func (o *Orchestrator) record(userID, workflow, topic, outcome, detail string) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	err := o.hist.SaveRecord(ctx, history.Record{
		UserID:   userID,
		Workflow: workflow,
		Topic:    topic,
		Outcome:  outcome,
		Detail:   detail,
	})
	if err != nil {
		o.log.Warn().Err(err).Str("workflow", workflow).Msg("history record failed")
	}
}

func (o *Orchestrator) failStep(workflow string, kind reliability.Kind) {
	o.metrics.WorkflowEvents.WithLabelValues(workflow, "failed").Inc()
	o.metrics.ClientErrors.WithLabelValues(workflow, string(kind)).Inc()
}

func workflowFor(state session.State) string {
	switch state {
	case session.StateAwaitingTopic:
		return workflowLyrics
	case session.StateAwaitingVoiceSample, session.StateAwaitingVoiceTopic:
		return workflowVoice
	case session.StateAwaitingPhoto, session.StateAwaitingPhotoTopic:
		return workflowClip
	default:
		return "none"
	}
}
