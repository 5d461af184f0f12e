package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/logging"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/tracing"
)

const (
	transcriptionPrompt = "Please transcribe the following audio accurately. Only provide the transcription text, no additional commentary:"
	titlePromptFormat   = `Generate a concise, descriptive title (3-7 words) for the following text. The title should be in the same language as the text. Only provide the title, no extra text or quotes.

Text: "%s"

Title:`
)

var (
	ErrNotConfigured      = apperrors.Configuration("ai_not_configured", "AI API key not configured.")
	ErrEmptyTranscription = apperrors.New(apperrors.KindInternal, "empty_transcription", "No transcription received from AI")
)

// Client calls the Gemini generateContent API
type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
	logger  *logging.Logger
}

// NewClient creates a generative language client
func NewClient(apiKey, baseURL, model string, timeout time.Duration, logger *logging.Logger) *Client {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Transcribe returns the transcription of base64-encoded audio
func (c *Client) Transcribe(ctx context.Context, mimeType, base64Audio string) (string, error) {
	req := generateRequest{
		Contents: []content{{Parts: []part{
			{Text: transcriptionPrompt},
			{InlineData: &inlineData{MimeType: mimeType, Data: base64Audio}},
		}}},
		GenerationConfig: generationConfig{Temperature: 0.0, MaxOutputTokens: 2048},
	}

	text, err := c.generate(ctx, "transcription", req)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrEmptyTranscription
	}
	return text, nil
}

// GenerateTitle returns a short title for a transcription
func (c *Client) GenerateTitle(ctx context.Context, transcription string) (string, error) {
	req := generateRequest{
		Contents:         []content{{Parts: []part{{Text: fmt.Sprintf(titlePromptFormat, transcription)}}}},
		GenerationConfig: generationConfig{Temperature: 0.2, MaxOutputTokens: 50},
	}

	text, err := c.generate(ctx, "title", req)
	if err != nil {
		return "", err
	}
	return CleanTitle(text), nil
}

func (c *Client) generate(ctx context.Context, operation string, body generateRequest) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	span, ctx := tracing.StartSpan(ctx, "ai."+operation)
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "model", c.model)

	start := time.Now()
	text, err := c.post(ctx, body)
	metrics.RecordAIRequest(operation, time.Since(start).Seconds(), err)
	if err != nil {
		tracing.LogError(span, err)
		c.logger.WithField("operation", operation).ErrorWithErr("AI request failed", err)
	}
	return text, err
}

func (c *Client) post(ctx context.Context, body generateRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperrors.Transient(err, "AI service unavailable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.Transient(err, "AI service unavailable")
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", apperrors.Wrap(err, apperrors.KindInternal, "ai_bad_response", "AI request failed: Unknown error")
	}

	if resp.StatusCode != http.StatusOK || out.Error != nil {
		msg := "Unknown error"
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", apperrors.New(apperrors.KindInternal, "ai_failed", "AI request failed: "+msg).
			WithDetails(fmt.Sprintf("status %d", resp.StatusCode))
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text), nil
}
