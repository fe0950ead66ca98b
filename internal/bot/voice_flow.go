package bot

import (
	"context"
	"time"

	"github.com/ent0n29/musebot/internal/asset"
	"github.com/ent0n29/musebot/internal/history"
	"github.com/ent0n29/musebot/internal/protocol"
	"github.com/ent0n29/musebot/internal/reliability"
	"github.com/ent0n29/musebot/internal/session"
)

// VoiceCloneWorkflow: Idle -> AwaitingVoiceSample -> AwaitingVoiceTopic ->
// (clone + synthesize) -> Idle. Entry is gated on the credential; the sample
// and the generated output are both released on every terminal path.

func (o *Orchestrator) enterVoiceClone(ev protocol.Inbound) []protocol.Outbound {
	if !o.voice.Configured() {
		// Refused entry: no state change, no resource allocated.
		o.metrics.ClientErrors.WithLabelValues(workflowVoice, string(reliability.KindMissingCredential)).Inc()
		return []protocol.Outbound{{
			Kind:   protocol.OutboundText,
			UserID: ev.UserID,
			Text:   msgVoiceNotConfigured,
		}}
	}

	o.sessions.Update(ev.UserID, func(s *session.Session) {
		s.State = session.StateAwaitingVoiceSample
	})
	o.metrics.WorkflowEvents.WithLabelValues(workflowVoice, "started").Inc()

	return []protocol.Outbound{{
		Kind:   protocol.OutboundText,
		UserID: ev.UserID,
		Text:   msgVoicePrompt,
	}}
}

func (o *Orchestrator) stepVoiceSample(ctx context.Context, sess session.Session, ev protocol.Inbound) ([]protocol.Outbound, *asset.Scope) {
	if ev.Kind != protocol.KindAudio {
		o.metrics.WorkflowEvents.WithLabelValues(workflowVoice, "invalid_input").Inc()
		return []protocol.Outbound{{
			Kind:   protocol.OutboundText,
			UserID: ev.UserID,
			Text:   msgVoiceNeedAudio,
		}}, nil
	}

	rev := sess.Rev
	src, err := o.files.OpenFile(ctx, ev.FileID)
	if err != nil {
		return o.failVoice(ev, "", err)
	}
	sample, err := o.assets.Materialize(ctx, asset.KindInputSample, ".ogg", src)
	src.Close()
	if err != nil {
		return o.failVoice(ev, "", err)
	}
	o.metrics.AssetEvents.WithLabelValues(string(asset.KindInputSample), "materialized").Inc()

	applied := o.sessions.ApplyIf(ev.UserID, rev, func(s *session.Session) {
		if s.Data == nil {
			s.Data = make(map[string]string)
		}
		s.Data[session.DataVoiceSamplePath] = sample.Path
		s.State = session.StateAwaitingVoiceTopic
	})
	if !applied {
		// Session moved on while we were downloading; drop the sample.
		o.metrics.WorkflowEvents.WithLabelValues(workflowVoice, "abandoned").Inc()
		scope := o.assets.NewScope()
		scope.Track(sample)
		return nil, scope
	}

	return []protocol.Outbound{{
		Kind:   protocol.OutboundText,
		UserID: ev.UserID,
		Text:   msgVoiceSampleReceived,
	}}, nil
}

func (o *Orchestrator) stepVoiceTopic(ctx context.Context, sess session.Session, ev protocol.Inbound) ([]protocol.Outbound, *asset.Scope) {
	if ev.Kind != protocol.KindFreeText && ev.Kind != protocol.KindMenuText {
		o.metrics.WorkflowEvents.WithLabelValues(workflowVoice, "invalid_input").Inc()
		return []protocol.Outbound{{
			Kind:   protocol.OutboundText,
			UserID: ev.UserID,
			Text:   msgVoiceSampleReceived,
		}}, nil
	}

	samplePath := sess.Data[session.DataVoiceSamplePath]
	if samplePath == "" {
		o.metrics.WorkflowEvents.WithLabelValues(workflowVoice, "failed").Inc()
		o.sessions.Clear(ev.UserID)
		return []protocol.Outbound{
			{Kind: protocol.OutboundText, UserID: ev.UserID, Text: msgVoiceSampleLost},
			{Kind: protocol.OutboundText, UserID: ev.UserID, Text: msgMenuReminder, WithMenu: true},
		}, nil
	}

	rev := sess.Rev
	start := time.Now()
	out, err := o.voice.Synthesize(ctx, samplePath, ev.Text)
	o.metrics.ObserveGenerationLatency(workflowVoice, time.Since(start))

	scope := o.assets.NewScope()
	scope.TrackPath(asset.KindInputSample, samplePath)
	if err == nil {
		scope.Track(out)
	}

	applied := o.sessions.ApplyIf(ev.UserID, rev, func(s *session.Session) {
		s.State = session.StateIdle
		s.Data = nil
	})
	if !applied {
		o.metrics.WorkflowEvents.WithLabelValues(workflowVoice, "abandoned").Inc()
		return nil, scope
	}

	if err != nil {
		o.failStep(workflowVoice, reliability.Classify(err))
		o.record(ev.UserID, workflowVoice, ev.Text, history.OutcomeFailure, err.Error())
		o.log.Warn().Err(err).Str("user", ev.UserID).Msg("voice clone failed")
		return []protocol.Outbound{
			{Kind: protocol.OutboundText, UserID: ev.UserID, Text: msgVoiceFailed},
			{Kind: protocol.OutboundText, UserID: ev.UserID, Text: msgMenuReminder, WithMenu: true},
		}, scope
	}

	o.metrics.WorkflowEvents.WithLabelValues(workflowVoice, "completed").Inc()
	o.metrics.AssetEvents.WithLabelValues(string(asset.KindGeneratedOutput), "materialized").Inc()
	o.record(ev.UserID, workflowVoice, ev.Text, history.OutcomeSuccess, "")

	return []protocol.Outbound{
		{Kind: protocol.OutboundAudio, UserID: ev.UserID, AudioPath: out.Path, Text: voiceCaption(ev.Text)},
		{Kind: protocol.OutboundText, UserID: ev.UserID, Text: msgMenuReminder, WithMenu: true},
	}, scope
}

// failVoice reports a failed sample acquisition: the session clears to idle
// and whatever was collected so far is freed.
func (o *Orchestrator) failVoice(ev protocol.Inbound, samplePath string, err error) ([]protocol.Outbound, *asset.Scope) {
	o.failStep(workflowVoice, reliability.Classify(err))
	o.log.Warn().Err(err).Str("user", ev.UserID).Msg("voice sample acquisition failed")

	scope := o.assets.NewScope()
	scope.TrackPath(asset.KindInputSample, samplePath)
	o.sessions.Clear(ev.UserID)

	return []protocol.Outbound{
		{Kind: protocol.OutboundText, UserID: ev.UserID, Text: msgDownloadFailed},
		{Kind: protocol.OutboundText, UserID: ev.UserID, Text: msgMenuReminder, WithMenu: true},
	}, scope
}
