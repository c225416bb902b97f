package internal

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Routing keys on the relay.events topic exchange. The same envelopes
// are broadcast on the WebSocket feed, so browser clients and AMQP
// consumers see an identical contract.
const (
	PromptRequested = "prompt.requested"
	PromptCompleted = "prompt.completed"
	PromptFailed    = "prompt.failed"
)

// Envelope wraps every event.
type Envelope struct {
	ID         string          `json:"id"`
	RoutingKey string          `json:"routing_key"`
	Timestamp  time.Time       `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
}

func Wrap(routingKey string, payload any) ([]byte, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		ID:         uuid.New().String(),
		RoutingKey: routingKey,
		Timestamp:  time.Now(),
		Payload:    p,
	})
}

func Unwrap[T any](raw []byte) (*T, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	var t T
	return &t, json.Unmarshal(env.Payload, &t)
}

func UnwrapEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	return &env, json.Unmarshal(raw, &env)
}

type PromptRequestedPayload struct {
	RequestID string `json:"request_id"`
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
}

type PromptCompletedPayload struct {
	RequestID string `json:"request_id"`
	Model     string `json:"model"`
	Status    int    `json:"status"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

type PromptFailedPayload struct {
	RequestID string `json:"request_id"`
	Status    int    `json:"status"`
	Reason    string `json:"reason"`
}
