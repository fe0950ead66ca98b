package bot

import "fmt"

// User-facing copy. Kept in one place so flows stay readable.
const (
	msgUnrecognized = "I don't understand that. Please use the menu buttons below."
	msgMenuReminder = "What shall we do next?"

	msgLyricsPrompt = "Great! Send me the theme for your future song.\n" +
		"For example: 'love on Mars', 'sad rain', 'a programmer and coffee'."

	msgVoiceNotConfigured = "Voice cloning is not configured on this bot.\n" +
		"Ask the operator to set the ELEVENLABS_API_KEY environment variable."
	msgVoicePrompt = "Send me a voice message (or an audio file) with the voice to clone.\n" +
		"10-30 seconds of clean speech works best. Then I'll ask for the text to speak."
	msgVoiceSampleReceived = "Got the voice sample! Now send the text to speak with it."
	msgVoiceNeedAudio      = "Please send a voice message or an audio file."
	msgVoiceSampleLost     = "I lost the voice sample. Please start over from the menu."
	msgVoiceFailed         = "I couldn't generate the cloned speech.\n" +
		"Check the voice sample or try a different one."

	msgClipPrompt        = "Send me a photo, then a theme or mood for the clip."
	msgClipPhotoReceived = "Photo received! Now send a theme or mood for the clip."
	msgClipNeedPhoto     = "Please send a photo first."
	msgClipFailed        = "I couldn't create the clip this time."

	msgDownloadFailed = "I couldn't download that file. Please try again from the menu."
)

func greeting(lyricsConfigured, voiceConfigured bool) string {
	status := "all generation backends are configured"
	if !lyricsConfigured || !voiceConfigured {
		status = "some generation backends are not configured"
	}
	return fmt.Sprintf(
		"Hi! I'm a music bot. Right now %s.\n\n"+
			"I can:\n"+
			"- write song lyrics on a theme\n"+
			"- clone a voice and speak your text with it\n"+
			"- make a clip from a photo\n\n"+
			"Pick an action from the keyboard below.",
		status,
	)
}

func voiceCaption(text string) string {
	const max = 50
	if len(text) > max {
		text = text[:max] + "..."
	}
	return "Done! Spoken text: " + text
}
