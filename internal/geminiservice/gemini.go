package geminiservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/yamini7043/HealthCare-MediBotAI/internal/utility"
)

// --- Gemini API Configuration ---
const (
	geminiAPIURLFormat = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key="
	defaultModel       = "gemini-2.5-flash-preview-09-2025"
	maxRetries         = 3
	initialBackoff     = 1 * time.Second
	requestTimeout     = 60 * time.Second
	structuredMimeType = "application/json"
)

// --- Structs for the Gemini API Request/Response ---
// (These are internal to the transport; nothing above this layer sees them.)

type geminiPayload struct {
	Contents          []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType"`
	ResponseSchema   *Schema `json:"responseSchema,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Part is one piece of a rendered prompt: either plain text or an image
// payload supplied as a data URI ("data:<mimetype>;base64,<data>").
type Part struct {
	Text    string
	DataURI string
}

// InvokeRequest is a single structured-generation call handed to a transport.
type InvokeRequest struct {
	// Name identifies the calling stage, for logging only.
	Name string

	// System is the system instruction carrying the stage's persona and
	// safety rules.
	System string

	// Parts is the rendered user prompt.
	Parts []Part

	// Schema is the declared response shape the model must conform to.
	Schema *Schema
}

// Invoker is the generation transport consumed by the Client. An empty
// string with a nil error means the model produced no output at all;
// callers treat both cases as total failure.
type Invoker interface {
	Invoke(ctx context.Context, req InvokeRequest) (string, error)
}

// GeminiTransport calls the Gemini REST API with structured output enabled.
// Retry with exponential backoff and a circuit breaker live here, at the
// transport boundary; the stages above it never retry.
type GeminiTransport struct {
	log     zerolog.Logger
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	apiURL  string
}

// NewGeminiTransport builds a transport using GEMINI_MODEL (or the default
// model) and GEMINI_API_KEY from the environment.
func NewGeminiTransport(logger zerolog.Logger) *GeminiTransport {
	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = defaultModel
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "gemini",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return &GeminiTransport{
		log:     logger,
		client:  &http.Client{Timeout: requestTimeout},
		breaker: breaker,
		apiURL:  fmt.Sprintf(geminiAPIURLFormat, model),
	}
}

// Invoke submits one structured-generation request and returns the raw JSON
// text of the first candidate.
func (t *GeminiTransport) Invoke(ctx context.Context, req InvokeRequest) (string, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.log.Error().Msg("FATAL: GEMINI_API_KEY environment variable is not set.")
		return "", fmt.Errorf("server is not configured for AI generation")
	}

	parts := make([]geminiPart, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.DataURI != "" {
			mime, data, err := utility.ParseDataURI(p.DataURI)
			if err != nil {
				return "", fmt.Errorf("malformed image payload: %w", err)
			}
			parts = append(parts, geminiPart{InlineData: &inlineData{MimeType: mime, Data: data}})
			continue
		}
		parts = append(parts, geminiPart{Text: p.Text})
	}

	payload := geminiPayload{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: req.System}},
		},
		Contents: []geminiContent{{Parts: parts}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: structuredMimeType,
			ResponseSchema:   req.Schema,
		},
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	out, err := t.breaker.Execute(func() (interface{}, error) {
		return t.callWithRetry(ctx, req.Name, apiKey, payloadBytes)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// callWithRetry is the exponential backoff loop around the raw HTTP call.
func (t *GeminiTransport) callWithRetry(ctx context.Context, name, apiKey string, payloadBytes []byte) (string, error) {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, t.apiURL+apiKey, bytes.NewBuffer(payloadBytes))
		if err != nil {
			cancel()
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		t.log.Info().Str("stage", name).Msgf("Attempt %d: Calling Gemini API...", i+1)

		resp, err := t.client.Do(req)
		if err != nil {
			cancel()
			lastErr = fmt.Errorf("request failed: %w", err)
			t.log.Warn().Err(lastErr).Str("stage", name).Msgf("Attempt %d failed", i+1)

			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			time.Sleep(initialBackoff * time.Duration(math.Pow(2, float64(i))))
			continue
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			cancel()
			lastErr = fmt.Errorf("API returned non-200 status: %s, Body: %s", resp.Status, string(body))
			t.log.Warn().Err(lastErr).Str("stage", name).Msgf("Attempt %d failed", i+1)

			time.Sleep(initialBackoff * time.Duration(math.Pow(2, float64(i))))
			continue
		}

		var geminiResp geminiResponse
		if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
			resp.Body.Close()
			cancel()
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		resp.Body.Close()
		cancel()

		if len(geminiResp.Candidates) > 0 && len(geminiResp.Candidates[0].Content.Parts) > 0 {
			// The raw JSON string from the "text" field; validation against
			// the declared schema happens in the Client.
			return geminiResp.Candidates[0].Content.Parts[0].Text, nil
		}

		return "", fmt.Errorf("no content found in Gemini response")
	}

	return "", fmt.Errorf("failed to call Gemini API after %d attempts: %w", maxRetries, lastErr)
}
