package bot

import (
	"context"
	"time"

	"github.com/ent0n29/musebot/internal/asset"
	"github.com/ent0n29/musebot/internal/history"
	"github.com/ent0n29/musebot/internal/protocol"
	"github.com/ent0n29/musebot/internal/session"
)

// TextWorkflow: Idle -> AwaitingTopic -> (lyrics call) -> Idle.

func (o *Orchestrator) enterLyrics(ev protocol.Inbound) []protocol.Outbound {
	o.sessions.Update(ev.UserID, func(s *session.Session) {
		s.State = session.StateAwaitingTopic
	})
	o.metrics.WorkflowEvents.WithLabelValues(workflowLyrics, "started").Inc()

	return []protocol.Outbound{{
		Kind:   protocol.OutboundText,
		UserID: ev.UserID,
		Text:   msgLyricsPrompt,
	}}
}

func (o *Orchestrator) stepLyricsTopic(ctx context.Context, sess session.Session, ev protocol.Inbound) ([]protocol.Outbound, *asset.Scope) {
	// Any text works as a topic here, menu labels included.
	if ev.Kind != protocol.KindFreeText && ev.Kind != protocol.KindMenuText {
		o.metrics.WorkflowEvents.WithLabelValues(workflowLyrics, "invalid_input").Inc()
		return []protocol.Outbound{{
			Kind:   protocol.OutboundText,
			UserID: ev.UserID,
			Text:   msgLyricsPrompt,
		}}, nil
	}

	topic := ev.Text
	rev := sess.Rev
	start := time.Now()
	result := o.lyrics.Generate(ctx, topic)
	o.metrics.ObserveGenerationLatency(workflowLyrics, time.Since(start))

	applied := o.sessions.ApplyIf(ev.UserID, rev, func(s *session.Session) {
		s.State = session.StateIdle
		s.Data = nil
	})
	if !applied {
		o.metrics.WorkflowEvents.WithLabelValues(workflowLyrics, "abandoned").Inc()
		return nil, nil
	}

	o.metrics.WorkflowEvents.WithLabelValues(workflowLyrics, "completed").Inc()
	o.record(ev.UserID, workflowLyrics, topic, history.OutcomeSuccess, "")

	return []protocol.Outbound{
		{Kind: protocol.OutboundText, UserID: ev.UserID, Text: result},
		{Kind: protocol.OutboundText, UserID: ev.UserID, Text: msgMenuReminder, WithMenu: true},
	}, nil
}
