package protocol

// EventKind identifies inbound event variants delivered by the ingestion
// adapter.
type EventKind string

const (
	KindCommand  EventKind = "command"
	KindMenuText EventKind = "menu_text"
	KindFreeText EventKind = "free_text"
	KindAudio    EventKind = "audio"
	KindPhoto    EventKind = "photo"
)

// Menu labels shown on the reply keyboard. The ingestion adapter tags text
// matching one of these as a menu selection.
const (
	MenuLyrics = "✍️ Write song lyrics"
	MenuVoice  = "🎤 Clone a voice"
	MenuClip   = "🎬 Make a photo clip"
)

// MenuLabels lists the keyboard rows in display order.
func MenuLabels() []string {
	return []string{MenuLyrics, MenuVoice, MenuClip}
}

// Inbound is one platform-agnostic event with a stable user identity.
type Inbound struct {
	Kind   EventKind
	UserID string
	// Text carries menu/free text, or the command name without the slash.
	Text string
	// FileID references a remote audio or photo payload.
	FileID string
}

// OutboundKind identifies outbound message variants.
type OutboundKind string

const (
	OutboundText  OutboundKind = "text"
	OutboundAudio OutboundKind = "audio"
	OutboundVideo OutboundKind = "video"
)

// Outbound is one message for the emitter to deliver.
type Outbound struct {
	Kind   OutboundKind `json:"kind"`
	UserID string       `json:"user_id"`
	Text   string       `json:"text,omitempty"`
	// AudioPath points at a local generated asset to upload.
	AudioPath string `json:"audio_path,omitempty"`
	// VideoRef is a remote video reference to forward.
	VideoRef string `json:"video_ref,omitempty"`
	// WithMenu attaches the reply keyboard reminder.
	WithMenu bool `json:"with_menu,omitempty"`
}
