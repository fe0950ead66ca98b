package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ent0n29/musebot/internal/config"
	"github.com/ent0n29/musebot/internal/history"
	"github.com/ent0n29/musebot/internal/observability"
	"github.com/ent0n29/musebot/internal/protocol"
	"github.com/ent0n29/musebot/internal/session"
)

type stubBot struct {
	mu      sync.Mutex
	events  []protocol.Inbound
	replies []protocol.Outbound
	handled chan struct{}
}

func (b *stubBot) Handle(_ context.Context, ev protocol.Inbound) []protocol.Outbound {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
	if b.handled != nil {
		b.handled <- struct{}{}
	}
	return b.replies
}

func (b *stubBot) eventCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

var metricsSeq atomic.Int64

func newTestServer(t *testing.T, bot *stubBot) (*Server, config.Config) {
	t.Helper()
	cfg := config.Config{
		BotToken:       "tok-1",
		AllowAnyOrigin: true,
	}
	metrics := observability.NewMetrics(fmt.Sprintf("apitest%d", metricsSeq.Add(1)))
	srv := New(cfg, bot, session.NewStore(time.Minute), history.NewInMemoryStore(), metrics,
		Capabilities{Lyrics: true, PhotoClip: true}, zerolog.Nop())
	return srv, cfg
}

func TestWebhookDispatchesUpdate(t *testing.T) {
	bot := &stubBot{handled: make(chan struct{}, 1)}
	srv, cfg := newTestServer(t, bot)

	update := `{"update_id":1,"message":{"chat":{"id":42},"text":"hello"}}`
	req := httptest.NewRequest(http.MethodPost, cfg.WebhookPath(), strings.NewReader(update))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	select {
	case <-bot.handled:
	case <-time.After(2 * time.Second):
		t.Fatalf("update never reached the bot")
	}
	if bot.events[0].UserID != "42" || bot.events[0].Kind != protocol.KindFreeText {
		t.Fatalf("event = %+v", bot.events[0])
	}
}

func TestWebhookWrongTokenIsNotFound(t *testing.T) {
	bot := &stubBot{}
	srv, _ := newTestServer(t, bot)

	req := httptest.NewRequest(http.MethodPost, "/webhook/wrong-token", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if bot.eventCount() != 0 {
		t.Fatalf("bot received events through wrong token")
	}
}

func TestWebhookIgnoresUnsupportedUpdate(t *testing.T) {
	bot := &stubBot{}
	srv, cfg := newTestServer(t, bot)

	// An edited message has no "message" field, so it parses as unsupported.
	req := httptest.NewRequest(http.MethodPost, cfg.WebhookPath(), strings.NewReader(`{"update_id":2}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if bot.eventCount() != 0 {
		t.Fatalf("unsupported update reached the bot")
	}
}

func TestStatusReportsCapabilities(t *testing.T) {
	srv, _ := newTestServer(t, &stubBot{})

	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Capabilities    Capabilities `json:"capabilities"`
		ActiveWorkflows int          `json:"active_workflows"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Capabilities.Lyrics || body.Capabilities.VoiceClone {
		t.Fatalf("capabilities = %+v", body.Capabilities)
	}
}

func TestHistoryRequiresUserID(t *testing.T) {
	srv, _ := newTestServer(t, &stubBot{})

	req := httptest.NewRequest(http.MethodGet, "/v1/history", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHistoryReturnsRecords(t *testing.T) {
	srv, _ := newTestServer(t, &stubBot{})
	_ = srv.hist.SaveRecord(context.Background(), history.Record{
		UserID:   "42",
		Workflow: "lyrics",
		Topic:    "rain",
		Outcome:  history.OutcomeSuccess,
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/history?user_id=42", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Records []history.Record `json:"records"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Records) != 1 || body.Records[0].Topic != "rain" {
		t.Fatalf("records = %+v", body.Records)
	}
}

func TestEventsFeedStreamsOutbound(t *testing.T) {
	bot := &stubBot{
		handled: make(chan struct{}, 1),
		replies: []protocol.Outbound{{Kind: protocol.OutboundText, UserID: "42", Text: "done"}},
	}
	srv, cfg := newTestServer(t, bot)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Subscription races the webhook goroutine; wait for the hub to see it.
	deadline := time.Now().Add(2 * time.Second)
	for {
		srv.feed.mu.Lock()
		n := len(srv.feed.subs)
		srv.feed.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	update := `{"update_id":3,"message":{"chat":{"id":42},"text":"hello"}}`
	resp, err := http.Post(ts.URL+cfg.WebhookPath(), "application/json", strings.NewReader(update))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg protocol.Outbound
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.UserID != "42" || msg.Text != "done" {
		t.Fatalf("msg = %+v", msg)
	}
}
