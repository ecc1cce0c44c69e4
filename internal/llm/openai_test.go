package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func noSleep() func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error { return ctx.Err() }
}

func TestConvertToOpenAI(t *testing.T) {
	conversation := []Message{
		{Role: "user", Content: "look around"},
		{Role: "model", Content: `{"narrative":"You see a forest."}`},
		{Role: "user", Content: "walk north"},
	}

	msgs := convertToOpenAI("narrate the game", conversation)

	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != "narrate the game" {
		t.Errorf("first message = %+v, want system instructions", msgs[0])
	}
	if msgs[2].Role != "assistant" {
		t.Errorf("model role not mapped to assistant: %q", msgs[2].Role)
	}
}

func TestOpenAIGenerate(t *testing.T) {
	var gotReq openaiRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"narrative":"done"}`}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", nil)
	c.baseURL = srv.URL

	got, err := c.Generate(context.Background(), "instructions", []Message{
		{Role: "user", Content: "hello"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if got != `{"narrative":"done"}` {
		t.Errorf("Generate = %q", got)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.ResponseFormat == nil || gotReq.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format = %+v, want json_object", gotReq.ResponseFormat)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
}

func TestOpenAIGenerateRetriesThenFails(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", nil)
	c.baseURL = srv.URL
	p := DefaultRetryPolicy()
	p.sleep = noSleep()
	c.SetRetryPolicy(p)

	_, err := c.Generate(context.Background(), "instructions", nil)

	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	var ge *GatewayError
	if !errors.As(err, &ge) {
		t.Fatalf("err = %v, want GatewayError", err)
	}
	if ge.Status != http.StatusBadGateway || ge.Backend != "gpt" {
		t.Errorf("GatewayError = %+v", ge)
	}
}

func TestOpenAIGenerateRecovers(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "hiccup", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "{}"}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", nil)
	c.baseURL = srv.URL
	p := DefaultRetryPolicy()
	p.sleep = noSleep()
	c.SetRetryPolicy(p)

	got, err := c.Generate(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "{}" || attempts != 2 {
		t.Errorf("got %q after %d attempts", got, attempts)
	}
}

func TestOpenAIGenerateEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", nil)
	c.baseURL = srv.URL
	p := DefaultRetryPolicy()
	p.sleep = noSleep()
	c.SetRetryPolicy(p)

	if _, err := c.Generate(context.Background(), "", nil); err == nil {
		t.Error("expected error for empty choices")
	}
}
