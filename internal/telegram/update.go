package telegram

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ent0n29/musebot/internal/protocol"
)

// ErrUnsupportedUpdate marks updates with no message payload (edits, channel
// posts and other variants this bot does not handle).
var ErrUnsupportedUpdate = errors.New("unsupported update")

// Update mirrors the subset of the Bot API update we consume.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type Message struct {
	Chat  Chat        `json:"chat"`
	Text  string      `json:"text"`
	Voice *File       `json:"voice"`
	Audio *File       `json:"audio"`
	Photo []PhotoSize `json:"photo"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type File struct {
	FileID string `json:"file_id"`
}

type PhotoSize struct {
	FileID string `json:"file_id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ParseUpdate converts a raw Bot API update into a platform-agnostic inbound
// event keyed by the stable chat identity.
func ParseUpdate(raw []byte) (protocol.Inbound, error) {
	var u Update
	if err := json.Unmarshal(raw, &u); err != nil {
		return protocol.Inbound{}, fmt.Errorf("invalid update: %w", err)
	}
	if u.Message == nil {
		return protocol.Inbound{}, ErrUnsupportedUpdate
	}

	msg := u.Message
	ev := protocol.Inbound{UserID: strconv.FormatInt(msg.Chat.ID, 10)}

	switch {
	case msg.Voice != nil:
		ev.Kind = protocol.KindAudio
		ev.FileID = msg.Voice.FileID
	case msg.Audio != nil:
		ev.Kind = protocol.KindAudio
		ev.FileID = msg.Audio.FileID
	case len(msg.Photo) > 0:
		// Photo sizes arrive smallest first; the last entry is the original.
		ev.Kind = protocol.KindPhoto
		ev.FileID = msg.Photo[len(msg.Photo)-1].FileID
	case strings.HasPrefix(msg.Text, "/"):
		ev.Kind = protocol.KindCommand
		ev.Text = strings.TrimPrefix(strings.Fields(msg.Text)[0], "/")
	case isMenuLabel(msg.Text):
		ev.Kind = protocol.KindMenuText
		ev.Text = msg.Text
	default:
		// Covers plain text and unsupported payloads (stickers, documents);
		// the orchestrator decides how to answer.
		ev.Kind = protocol.KindFreeText
		ev.Text = msg.Text
	}

	return ev, nil
}

func isMenuLabel(text string) bool {
	for _, label := range protocol.MenuLabels() {
		if text == label {
			return true
		}
	}
	return false
}
