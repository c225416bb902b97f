package internal

import "testing"

func TestWrapUnwrap(t *testing.T) {
	in := PromptRequestedPayload{
		RequestID: "r1",
		Model:     "test-model",
		Prompt:    "hello",
	}
	raw, err := Wrap(PromptRequested, in)
	if err != nil {
		t.Fatal(err)
	}

	env, err := UnwrapEnvelope(raw)
	if err != nil {
		t.Fatal(err)
	}
	if env.ID == "" || env.Timestamp.IsZero() {
		t.Errorf("envelope incomplete: %+v", env)
	}
	if env.RoutingKey != PromptRequested {
		t.Errorf("routing key = %q", env.RoutingKey)
	}

	out, err := Unwrap[PromptRequestedPayload](raw)
	if err != nil {
		t.Fatal(err)
	}
	if *out != in {
		t.Errorf("round trip: got %+v, want %+v", *out, in)
	}
}

func TestUnwrapBadEnvelope(t *testing.T) {
	if _, err := Unwrap[PromptFailedPayload]([]byte("not json")); err == nil {
		t.Error("expected error for malformed envelope")
	}
}
