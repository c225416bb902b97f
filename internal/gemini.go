package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const generatePath = "/v1beta/models/%s:generateContent"

// Request/response DTOs for the Gemini generateContent REST endpoint.
// Only the first candidate's first text part is consumed.

type GenerateRequest struct {
	Contents []Content `json:"contents"`
}

type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// ErrNoContent means the upstream answered 2xx but carried no candidates.
var ErrNoContent = errors.New("gemini: no content in response")

// UpstreamError is a non-2xx answer from the Gemini API. Body is logged
// server-side only and never forwarded to callers.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("gemini: upstream status %d", e.Status)
}

// FormatError means the model's text was not valid JSON after fence
// stripping.
type FormatError struct {
	Raw string
}

func (e *FormatError) Error() string {
	return "gemini: model output is not valid JSON"
}

// ModelError means the model's decoded answer itself carried a
// top-level "error" key.
type ModelError struct {
	Value any
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("gemini: model signaled error: %v", e.Value)
}

// GeminiClient calls the generateContent REST endpoint directly with
// the key passed as a query parameter.
type GeminiClient struct {
	baseURL string
	model   string
	key     string
	client  *http.Client
}

func NewGeminiClient(baseURL, model, key string) *GeminiClient {
	return &GeminiClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		key:     key,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Generate relays one prompt and returns the model's answer decoded as
// JSON. The answer's schema is whatever the prompt asked for; the only
// inspection done here is the top-level "error" key. Exactly one
// upstream attempt, no retries.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (any, error) {
	body, _ := json.Marshal(GenerateRequest{
		Contents: []Content{{Role: "user", Parts: []Part{{Text: prompt}}}},
	})

	endpoint := g.baseURL + fmt.Sprintf(generatePath, g.model) + "?key=" + url.QueryEscape(g.key)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().
			Int("status", resp.StatusCode).
			Str("body", string(raw)).
			Msg("gemini upstream error")
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(raw)}
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return nil, fmt.Errorf("gemini decode: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, ErrNoContent
	}

	text := gr.Candidates[0].Content.Parts[0].Text

	var out any
	if err := json.Unmarshal([]byte(stripFences(text)), &out); err != nil {
		log.Warn().Str("text", text).Msg("model output failed to parse as JSON")
		return nil, &FormatError{Raw: text}
	}
	if obj, ok := out.(map[string]any); ok {
		if v, ok := obj["error"]; ok {
			return nil, &ModelError{Value: v}
		}
	}
	return out, nil
}

// stripFences removes an optional markdown code-fence wrapper
// (```json ... ```) the model sometimes emits around structured output.
func stripFences(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > 0 && (strings.HasPrefix(lines[0], "```") || strings.HasPrefix(lines[0], "~~~")) {
		lines = lines[1:]
	}
	if len(lines) > 0 && (strings.HasPrefix(lines[len(lines)-1], "```") || strings.HasPrefix(lines[len(lines)-1], "~~~")) {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
