package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
)

func geminiServer(t *testing.T, status int, response string, check func(generateRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "key-123", r.URL.Query().Get("key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if check != nil {
			check(req)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func candidate(text string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{"content": map[string]interface{}{"parts": []interface{}{map[string]string{"text": text}}}},
		},
	})
	return string(b)
}

func TestTranscribe(t *testing.T) {
	srv := geminiServer(t, http.StatusOK, candidate("  hello world \n"), func(req generateRequest) {
		assert.Equal(t, 0.0, req.GenerationConfig.Temperature)
		assert.Equal(t, 2048, req.GenerationConfig.MaxOutputTokens)
		require.Len(t, req.Contents[0].Parts, 2)
		assert.Equal(t, "audio/webm", req.Contents[0].Parts[1].InlineData.MimeType)
		assert.Equal(t, "QUJD", req.Contents[0].Parts[1].InlineData.Data)
	})

	c := NewClient("key-123", srv.URL, "gemini-test", time.Second, nil)
	text, err := c.Transcribe(context.Background(), "audio/webm", "QUJD")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestTranscribeEmpty(t *testing.T) {
	srv := geminiServer(t, http.StatusOK, `{"candidates":[]}`, nil)

	c := NewClient("key-123", srv.URL, "gemini-test", time.Second, nil)
	_, err := c.Transcribe(context.Background(), "audio/webm", "QUJD")
	assert.ErrorIs(t, err, ErrEmptyTranscription)
	assert.Equal(t, "No transcription received from AI", apperrors.PublicOf(err).Message)
}

func TestTranscribeProviderError(t *testing.T) {
	srv := geminiServer(t, http.StatusBadRequest, `{"error":{"code":400,"message":"bad audio"}}`, nil)

	c := NewClient("key-123", srv.URL, "gemini-test", time.Second, nil)
	_, err := c.Transcribe(context.Background(), "audio/webm", "QUJD")
	require.Error(t, err)
	assert.Equal(t, "AI request failed: bad audio", apperrors.PublicOf(err).Message)
}

func TestNotConfigured(t *testing.T) {
	c := NewClient("", "http://unused", "gemini-test", time.Second, nil)
	_, err := c.GenerateTitle(context.Background(), "text")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestUnreachableIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient("key-123", url, "gemini-test", time.Second, nil)
	_, err := c.Transcribe(context.Background(), "audio/webm", "QUJD")
	assert.True(t, apperrors.IsKind(err, apperrors.KindTransient))
}

func TestGenerateTitle(t *testing.T) {
	srv := geminiServer(t, http.StatusOK, candidate(`"Weekly Grocery Plan"`), func(req generateRequest) {
		assert.Equal(t, 0.2, req.GenerationConfig.Temperature)
		assert.Equal(t, 50, req.GenerationConfig.MaxOutputTokens)
		assert.Contains(t, req.Contents[0].Parts[0].Text, `Text: "buy milk and eggs"`)
	})

	c := NewClient("key-123", srv.URL, "gemini-test", time.Second, nil)
	title, err := c.GenerateTitle(context.Background(), "buy milk and eggs")
	require.NoError(t, err)
	assert.Equal(t, "Weekly Grocery Plan", title)
}

func TestCleanTitle(t *testing.T) {
	long := strings.Repeat("a", 60)

	tests := []struct {
		in, want string
	}{
		{"", DefaultTitle},
		{"   ", DefaultTitle},
		{`"Quoted"`, "Quoted"},
		{"'Single'", "Single"},
		{`""`, DefaultTitle},
		{"Plain title", "Plain title"},
		{long, strings.Repeat("a", 47) + "..."},
		{strings.Repeat("b", 50), strings.Repeat("b", 50)},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanTitle(tt.in), tt.in)
	}
}

func TestParseDataURI(t *testing.T) {
	mime, data, err := ParseDataURI("data:audio/webm;codecs=opus;base64,QUJD")
	require.NoError(t, err)
	assert.Equal(t, "audio/webm", mime)
	assert.Equal(t, "QUJD", data)

	_, _, err = ParseDataURI("data:audio/webm;base64,")
	assert.ErrorIs(t, err, ErrInvalidAudioData)

	_, _, err = ParseDataURI("not a data uri")
	assert.ErrorIs(t, err, ErrInvalidAudioData)
}
