package ai

import (
	"strings"

	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
)

const (
	DefaultTitle   = "Untitled Note"
	maxTitleLength = 50
)

var ErrInvalidAudioData = apperrors.Validation("invalid_audio", "Invalid audio data format")

// CleanTitle strips one leading and one trailing quote and truncates long
// titles to 47 characters plus an ellipsis
func CleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	if title == "" {
		return DefaultTitle
	}

	if strings.HasPrefix(title, `"`) || strings.HasPrefix(title, "'") {
		title = title[1:]
	}
	if strings.HasSuffix(title, `"`) || strings.HasSuffix(title, "'") {
		title = title[:len(title)-1]
	}
	if title == "" {
		return DefaultTitle
	}

	runes := []rune(title)
	if len(runes) > maxTitleLength {
		title = string(runes[:maxTitleLength-3]) + "..."
	}
	return title
}

// ParseDataURI splits "data:<mime>;base64,<payload>" into mime type and payload
func ParseDataURI(uri string) (string, string, error) {
	header, payload, found := strings.Cut(uri, ",")
	if !found || payload == "" {
		return "", "", ErrInvalidAudioData
	}

	mimeType := strings.TrimPrefix(header, "data:")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return mimeType, payload, nil
}
