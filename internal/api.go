package internal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

func (rl *Relay) serveAPI(ctx context.Context) error {
	srv := &http.Server{
		Addr:        ":" + rl.cfg.Port,
		Handler:     rl.routes(),
		ReadTimeout: 15 * time.Second,
		// Must outlive the 60s upstream call.
		WriteTimeout: 90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (rl *Relay) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/generate", rl.handleGenerate)
	mux.HandleFunc("GET /api/status", rl.handleStatus)
	mux.HandleFunc("/ws", rl.hub.ServeWS)

	return cors(mux)
}

// handleGenerate is the prompt relay: one request in, one upstream
// call, one response out. The method check is done here rather than in
// the mux pattern so the 405 carries the JSON error body.
func (rl *Relay) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if rl.cfg.GeminiKey == "" {
		jsonErr(w, "API key not configured on the server.", 500)
		return
	}

	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, "Invalid JSON in request body.", 400)
		return
	}
	if req.Prompt == "" {
		jsonErr(w, "Prompt is required.", 400)
		return
	}

	reqID := uuid.New().String()
	start := time.Now()

	log.Info().
		Str("request_id", reqID).
		Int("prompt_chars", len(req.Prompt)).
		Msg("relaying prompt")
	rl.emit(r.Context(), PromptRequested, PromptRequestedPayload{
		RequestID: reqID,
		Model:     rl.cfg.GeminiModel,
		Prompt:    req.Prompt,
	})

	result, err := rl.gemini.Generate(r.Context(), req.Prompt)
	if err != nil {
		status, body := relayFailure(err)
		log.Error().
			Err(err).
			Str("request_id", reqID).
			Int("status", status).
			Dur("elapsed", time.Since(start)).
			Msg("relay failed")
		rl.emit(r.Context(), PromptFailed, PromptFailedPayload{
			RequestID: reqID,
			Status:    status,
			Reason:    failureReason(err),
		})
		jsonOK(w, body, status)
		return
	}

	log.Info().
		Str("request_id", reqID).
		Dur("elapsed", time.Since(start)).
		Msg("relay complete")
	rl.emit(r.Context(), PromptCompleted, PromptCompletedPayload{
		RequestID: reqID,
		Model:     rl.cfg.GeminiModel,
		Status:    200,
		ElapsedMS: time.Since(start).Milliseconds(),
	})
	jsonOK(w, result, 200)
}

// relayFailure maps a Generate error onto the caller-facing status and
// body. Raw upstream detail never crosses this boundary; it is already
// logged where the error originated.
func relayFailure(err error) (int, any) {
	var (
		upErr  *UpstreamError
		fmtErr *FormatError
		modErr *ModelError
	)
	switch {
	case errors.As(err, &upErr):
		return upErr.Status, errBody("Failed to get a response from the AI.")
	case errors.Is(err, ErrNoContent):
		return 500, errBody("No content received from the AI.")
	case errors.As(err, &fmtErr):
		return 500, errBody("AI returned an invalid format.")
	case errors.As(err, &modErr):
		// The model answered with its own error object; forward the value.
		return 500, map[string]any{"error": modErr.Value}
	default:
		return 500, errBody("An unexpected error occurred on the server.")
	}
}

// failureReason is the generic message that goes on the activity feed,
// mirroring what the caller was told.
func failureReason(err error) string {
	_, body := relayFailure(err)
	if m, ok := body.(map[string]any); ok {
		if s, ok := m["error"].(string); ok {
			return s
		}
	}
	return "relay failed"
}

func (rl *Relay) handleStatus(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, map[string]any{
		"status":  "online",
		"model":   rl.cfg.GeminiModel,
		"clients": rl.hub.ClientCount(),
		"version": version,
	}, 200)
}

func errBody(msg string) map[string]any {
	return map[string]any{"error": msg}
}

func jsonOK(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}
