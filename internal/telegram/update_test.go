package telegram

import (
	"errors"
	"testing"

	"github.com/ent0n29/musebot/internal/protocol"
)

func TestParseUpdateMenuText(t *testing.T) {
	raw := []byte(`{"update_id":1,"message":{"chat":{"id":42},"text":"` + protocol.MenuLyrics + `"}}`)
	ev, err := ParseUpdate(raw)
	if err != nil {
		t.Fatalf("ParseUpdate() error = %v", err)
	}
	if ev.Kind != protocol.KindMenuText || ev.Text != protocol.MenuLyrics {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.UserID != "42" {
		t.Fatalf("UserID = %q, want %q", ev.UserID, "42")
	}
}

func TestParseUpdateFreeText(t *testing.T) {
	raw := []byte(`{"update_id":1,"message":{"chat":{"id":42},"text":"rainy afternoon"}}`)
	ev, err := ParseUpdate(raw)
	if err != nil {
		t.Fatalf("ParseUpdate() error = %v", err)
	}
	if ev.Kind != protocol.KindFreeText || ev.Text != "rainy afternoon" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestParseUpdateCommand(t *testing.T) {
	raw := []byte(`{"update_id":1,"message":{"chat":{"id":42},"text":"/start now"}}`)
	ev, err := ParseUpdate(raw)
	if err != nil {
		t.Fatalf("ParseUpdate() error = %v", err)
	}
	if ev.Kind != protocol.KindCommand || ev.Text != "start" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestParseUpdateVoice(t *testing.T) {
	raw := []byte(`{"update_id":1,"message":{"chat":{"id":42},"voice":{"file_id":"v-1"}}}`)
	ev, err := ParseUpdate(raw)
	if err != nil {
		t.Fatalf("ParseUpdate() error = %v", err)
	}
	if ev.Kind != protocol.KindAudio || ev.FileID != "v-1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestParseUpdatePicksLargestPhoto(t *testing.T) {
	raw := []byte(`{"update_id":1,"message":{"chat":{"id":42},"photo":[
		{"file_id":"small","width":90,"height":90},
		{"file_id":"large","width":800,"height":800}]}}`)
	ev, err := ParseUpdate(raw)
	if err != nil {
		t.Fatalf("ParseUpdate() error = %v", err)
	}
	if ev.Kind != protocol.KindPhoto || ev.FileID != "large" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestParseUpdateWithoutMessage(t *testing.T) {
	raw := []byte(`{"update_id":1,"edited_message":{"chat":{"id":42},"text":"x"}}`)
	_, err := ParseUpdate(raw)
	if !errors.Is(err, ErrUnsupportedUpdate) {
		t.Fatalf("err = %v, want ErrUnsupportedUpdate", err)
	}
}

func TestParseUpdateInvalidJSON(t *testing.T) {
	if _, err := ParseUpdate([]byte("{")); err == nil {
		t.Fatalf("ParseUpdate() should fail on invalid JSON")
	}
}
