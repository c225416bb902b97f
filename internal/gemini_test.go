package internal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStripFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[1,2]\n```", `[1,2]`},
		{"tilde fence", "~~~\n{\"a\":1}\n~~~", `{"a":1}`},
		{"leading whitespace", "  \n```json\n{}\n```  ", `{}`},
		{"no trailing fence", "```json\n{\"a\":1}", `{"a":1}`},
		{"multiline body", "```json\n{\n  \"a\": 1\n}\n```", "{\n  \"a\": 1\n}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := stripFences(tc.in); got != tc.want {
				t.Errorf("stripFences(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestClientUpstreamErrorType(t *testing.T) {
	srv := upstreamWith(t, 418, "teapot detail")
	g := NewGeminiClient(srv.URL, "m", "k")

	_, err := g.Generate(context.Background(), "hi")
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if upErr.Status != 418 || upErr.Body != "teapot detail" {
		t.Errorf("upErr = %+v", upErr)
	}
}

func TestClientNoContent(t *testing.T) {
	srv := upstreamWith(t, 200, `{"candidates":[]}`)
	g := NewGeminiClient(srv.URL, "m", "k")

	if _, err := g.Generate(context.Background(), "hi"); !errors.Is(err, ErrNoContent) {
		t.Fatalf("err = %v, want ErrNoContent", err)
	}
}

func TestClientPassesThroughNonObjectJSON(t *testing.T) {
	srv := upstreamWith(t, 200, candidatesBody(t, "[1, 2, 3]"))
	g := NewGeminiClient(srv.URL, "m", "k")

	out, err := g.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatal(err)
	}
	arr, ok := out.([]any)
	if !ok || len(arr) != 3 {
		t.Errorf("out = %#v, want 3-element array", out)
	}
}

func TestClientModelErrorValue(t *testing.T) {
	srv := upstreamWith(t, 200, candidatesBody(t, `{"error":{"code":42}}`))
	g := NewGeminiClient(srv.URL, "m", "k")

	_, err := g.Generate(context.Background(), "hi")
	var modErr *ModelError
	if !errors.As(err, &modErr) {
		t.Fatalf("err = %v, want *ModelError", err)
	}
	obj, ok := modErr.Value.(map[string]any)
	if !ok || obj["code"] != float64(42) {
		t.Errorf("value = %#v", modErr.Value)
	}
}

func TestClientKeyIsQueryEscaped(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		w.Write([]byte(candidatesBody(t, `{}`)))
	}))
	defer srv.Close()

	g := NewGeminiClient(srv.URL, "m", "a+b&c")
	if _, err := g.Generate(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}
	if gotKey != "a+b&c" {
		t.Errorf("key = %q, want %q", gotKey, "a+b&c")
	}
}
