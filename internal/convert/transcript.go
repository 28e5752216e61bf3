package convert

import "strings"

// BlankAudioToken is what whisper.cpp emits for audio without speech; the
// silence gate writes the same token.
const BlankAudioToken = "[BLANK_AUDIO]"

func IsBlankTranscript(transcript string) bool {
	trimmed := strings.TrimSpace(transcript)
	if trimmed == "" {
		return true
	}

	return strings.EqualFold(trimmed, BlankAudioToken)
}
