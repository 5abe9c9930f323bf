package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOpenAIBackendComplete(t *testing.T) {
	var got ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Fatalf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`)
	}))
	defer server.Close()

	backend := NewOpenAIBackend(NewClient(server.URL+"/", "k", time.Second), Params{Model: "gpt", Temperature: 0.1, MaxTokens: 2048})
	resp, err := backend.Complete(context.Background(), []Message{System("sys"), User("hello")})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "hi" || resp.Usage == nil || resp.Usage.TotalTokens != 3 {
		t.Fatalf("unexpected completion: %+v", resp)
	}
	if got.Model != "gpt" || len(got.Messages) != 2 || got.Messages[0].Role != RoleSystem {
		t.Fatalf("unexpected request: %+v", got)
	}
	if got.Temperature == nil || *got.Temperature != 0.1 {
		t.Fatalf("temperature not forwarded: %+v", got.Temperature)
	}
	if got.MaxTokens == nil || *got.MaxTokens != 2048 {
		t.Fatalf("max tokens not forwarded: %+v", got.MaxTokens)
	}
}

func TestOpenAIBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	backend := NewOpenAIBackend(NewClient(server.URL, "", time.Second), Params{Model: "gpt"})
	if _, err := backend.Complete(context.Background(), []Message{User("hello")}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestOpenAIBackendNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"c1","choices":[]}`)
	}))
	defer server.Close()

	backend := NewOpenAIBackend(NewClient(server.URL, "", time.Second), Params{Model: "gpt"})
	if _, err := backend.Complete(context.Background(), []Message{User("hello")}); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

func TestClientListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"object":"list","data":[{"id":"gpt","object":"model","created":1,"owned_by":"me"}]}`)
	}))
	defer server.Close()

	models, err := NewClient(server.URL, "", time.Second).ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if len(models) != 1 || models[0].ID != "gpt" {
		t.Fatalf("unexpected models: %+v", models)
	}
}
