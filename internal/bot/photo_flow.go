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

// PhotoClipWorkflow: Idle -> AwaitingPhoto -> AwaitingPhotoTopic ->
// (clip generation) -> Idle. The collected photo is released on every
// terminal path, success or not.

func (o *Orchestrator) enterPhotoClip(ev protocol.Inbound) []protocol.Outbound {
	o.sessions.Update(ev.UserID, func(s *session.Session) {
		s.State = session.StateAwaitingPhoto
	})
	o.metrics.WorkflowEvents.WithLabelValues(workflowClip, "started").Inc()

	return []protocol.Outbound{{
		Kind:   protocol.OutboundText,
		UserID: ev.UserID,
		Text:   msgClipPrompt,
	}}
}

func (o *Orchestrator) stepPhoto(ctx context.Context, sess session.Session, ev protocol.Inbound) ([]protocol.Outbound, *asset.Scope) {
	if ev.Kind != protocol.KindPhoto {
		o.metrics.WorkflowEvents.WithLabelValues(workflowClip, "invalid_input").Inc()
		return []protocol.Outbound{{
			Kind:   protocol.OutboundText,
			UserID: ev.UserID,
			Text:   msgClipNeedPhoto,
		}}, nil
	}

	rev := sess.Rev
	src, err := o.files.OpenFile(ctx, ev.FileID)
	if err != nil {
		return o.failPhotoAcquire(ev, err)
	}
	photo, err := o.assets.Materialize(ctx, asset.KindInputPhoto, ".jpg", src)
	src.Close()
	if err != nil {
		return o.failPhotoAcquire(ev, err)
	}
	o.metrics.AssetEvents.WithLabelValues(string(asset.KindInputPhoto), "materialized").Inc()

	applied := o.sessions.ApplyIf(ev.UserID, rev, func(s *session.Session) {
		if s.Data == nil {
			s.Data = make(map[string]string)
		}
		s.Data[session.DataPhotoPath] = photo.Path
		s.State = session.StateAwaitingPhotoTopic
	})
	if !applied {
		o.metrics.WorkflowEvents.WithLabelValues(workflowClip, "abandoned").Inc()
		scope := o.assets.NewScope()
		scope.Track(photo)
		return nil, scope
	}

	return []protocol.Outbound{{
		Kind:   protocol.OutboundText,
		UserID: ev.UserID,
		Text:   msgClipPhotoReceived,
	}}, nil
}

func (o *Orchestrator) stepPhotoTopic(ctx context.Context, sess session.Session, ev protocol.Inbound) ([]protocol.Outbound, *asset.Scope) {
	if ev.Kind != protocol.KindFreeText && ev.Kind != protocol.KindMenuText {
		o.metrics.WorkflowEvents.WithLabelValues(workflowClip, "invalid_input").Inc()
		return []protocol.Outbound{{
			Kind:   protocol.OutboundText,
			UserID: ev.UserID,
			Text:   msgClipPhotoReceived,
		}}, nil
	}

	photoPath := sess.Data[session.DataPhotoPath]
	rev := sess.Rev

	start := time.Now()
	ref, err := o.video.Generate(ctx, photoPath, ev.Text)
	o.metrics.ObserveGenerationLatency(workflowClip, time.Since(start))

	scope := o.assets.NewScope()
	scope.TrackPath(asset.KindInputPhoto, photoPath)

	applied := o.sessions.ApplyIf(ev.UserID, rev, func(s *session.Session) {
		s.State = session.StateIdle
		s.Data = nil
	})
	if !applied {
		o.metrics.WorkflowEvents.WithLabelValues(workflowClip, "abandoned").Inc()
		return nil, scope
	}

	if err != nil {
		o.failStep(workflowClip, reliability.Classify(err))
		o.record(ev.UserID, workflowClip, ev.Text, history.OutcomeFailure, err.Error())
		o.log.Warn().Err(err).Str("user", ev.UserID).Msg("clip generation failed")
		return []protocol.Outbound{
			{Kind: protocol.OutboundText, UserID: ev.UserID, Text: msgClipFailed},
			{Kind: protocol.OutboundText, UserID: ev.UserID, Text: msgMenuReminder, WithMenu: true},
		}, scope
	}

	o.metrics.WorkflowEvents.WithLabelValues(workflowClip, "completed").Inc()
	o.record(ev.UserID, workflowClip, ev.Text, history.OutcomeSuccess, "")

	return []protocol.Outbound{
		{Kind: protocol.OutboundVideo, UserID: ev.UserID, VideoRef: ref},
		{Kind: protocol.OutboundText, UserID: ev.UserID, Text: msgMenuReminder, WithMenu: true},
	}, scope
}

func (o *Orchestrator) failPhotoAcquire(ev protocol.Inbound, err error) ([]protocol.Outbound, *asset.Scope) {
	o.failStep(workflowClip, reliability.Classify(err))
	o.log.Warn().Err(err).Str("user", ev.UserID).Msg("photo acquisition failed")
	o.sessions.Clear(ev.UserID)

	return []protocol.Outbound{
		{Kind: protocol.OutboundText, UserID: ev.UserID, Text: msgDownloadFailed},
		{Kind: protocol.OutboundText, UserID: ev.UserID, Text: msgMenuReminder, WithMenu: true},
	}, nil
}
