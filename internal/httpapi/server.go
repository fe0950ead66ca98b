package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ent0n29/musebot/internal/config"
	"github.com/ent0n29/musebot/internal/history"
	"github.com/ent0n29/musebot/internal/observability"
	"github.com/ent0n29/musebot/internal/protocol"
	"github.com/ent0n29/musebot/internal/session"
	"github.com/ent0n29/musebot/internal/telegram"
)

const maxUpdateBytes = 1 << 20

// Bot handles one parsed inbound event and returns the messages it produced.
type Bot interface {
	Handle(ctx context.Context, ev protocol.Inbound) []protocol.Outbound
}

// Capabilities reports which generation backends are configured.
type Capabilities struct {
	Lyrics     bool `json:"lyrics"`
	VoiceClone bool `json:"voice_clone"`
	PhotoClip  bool `json:"photo_clip"`
}

type Server struct {
	cfg      config.Config
	bot      Bot
	sessions *session.Store
	hist     history.Store
	metrics  *observability.Metrics
	caps     Capabilities
	feed     *Feed
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func New(cfg config.Config, bot Bot, sessions *session.Store, hist history.Store, metrics *observability.Metrics, caps Capabilities, log zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		bot:      bot,
		sessions: sessions,
		hist:     hist,
		metrics:  metrics,
		caps:     caps,
		feed:     NewFeed(),
		log:      log.With().Str("component", "httpapi").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser connections unless explicitly opened
				// up. Non-browser clients omit Origin and pass.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// The token in the path is the shared secret; a wrong token never reaches
	// a handler.
	r.Post(s.cfg.WebhookPath(), s.handleWebhook)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/status", s.handleStatus)
	r.Get("/v1/history", s.handleHistory)
	r.Get("/v1/events/ws", s.handleEventsWS)

	return r
}

// handleWebhook acknowledges the update immediately and processes it in the
// background. The platform retries non-2xx responses; a workflow failure is
// reported to the user, not to the webhook caller.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateBytes))
	if err != nil {
		s.metrics.WebhookUpdates.WithLabelValues("read_error").Inc()
		respondError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	ev, err := telegram.ParseUpdate(body)
	if err != nil {
		if errors.Is(err, telegram.ErrUnsupportedUpdate) {
			s.metrics.WebhookUpdates.WithLabelValues("ignored").Inc()
		} else {
			s.metrics.WebhookUpdates.WithLabelValues("invalid").Inc()
			s.log.Warn().Err(err).Msg("webhook update rejected")
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	s.metrics.WebhookUpdates.WithLabelValues("accepted").Inc()
	go func() {
		msgs := s.bot.Handle(context.Background(), ev)
		for _, msg := range msgs {
			s.feed.Publish(msg)
		}
	}()

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"capabilities": s.caps,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"capabilities":     s.caps,
		"active_workflows": s.sessions.ActiveCount(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "query parameter user_id is required")
		return
	}
	limit := 20
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		if n > 100 {
			n = 100
		}
		limit = n
	}

	records, err := s.hist.Recent(r.Context(), userID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_unavailable", err.Error())
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"records": records})
}

// handleEventsWS streams every outbound message to the observer as JSON. The
// read side exists only to notice the peer going away.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.feed.Subscribe()
	defer s.feed.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		conn.SetReadLimit(1 << 10)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
