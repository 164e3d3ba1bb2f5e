package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func completion(text string) string {
	return `{"candidates":[{"content":{"parts":[{"text":` + jsonString(text) + `}]}}]}`
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestCompleteFallsBackOnOverload(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		model := modelFromPath(r.URL.Path)
		calls = append(calls, model)
		if model == "primary" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(completion("from fallback")))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, APIKey: "k", Models: []string{"primary", "fallback"}}
	text, err := c.Complete(context.Background(), "sys", []Message{{Role: "user", Parts: []Part{{Text: "hi"}}}})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != "from fallback" {
		t.Fatalf("text = %q", text)
	}
	if len(calls) != 2 || calls[0] != "primary" || calls[1] != "fallback" {
		t.Fatalf("call order = %v", calls)
	}
}

func TestCompleteRateLimitAlsoFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if modelFromPath(r.URL.Path) == "primary" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(completion("ok")))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, APIKey: "k", Models: []string{"primary", "fallback"}}
	text, err := c.Complete(context.Background(), "", []Message{{Role: "user", Parts: []Part{{Text: "hi"}}}})
	if err != nil || text != "ok" {
		t.Fatalf("text=%q err=%v", text, err)
	}
}

func TestCompleteNonOverloadErrorAbortsChain(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, APIKey: "k", Models: []string{"primary", "fallback"}}
	_, err := c.Complete(context.Background(), "", []Message{{Role: "user", Parts: []Part{{Text: "hi"}}}})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Fatalf("a 400 must not cascade to the fallback model, got %d calls", calls)
	}
}

func TestCompleteAllModelsOverloaded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, APIKey: "k", Models: []string{"primary", "fallback"}}
	_, err := c.Complete(context.Background(), "", []Message{{Role: "user", Parts: []Part{{Text: "hi"}}}})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestCompleteSendsSystemInstructionAndKey(t *testing.T) {
	var gotKey string
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(completion("ok")))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, APIKey: "secret", Models: []string{"m"}}
	_, err := c.Complete(context.Background(), "be helpful", []Message{{Role: "user", Parts: []Part{{Text: "hi"}}}})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if gotKey != "secret" {
		t.Fatalf("key = %q", gotKey)
	}
	if gotReq.SystemInstruction == nil || gotReq.SystemInstruction.Parts[0].Text != "be helpful" {
		t.Fatalf("systemInstruction = %+v", gotReq.SystemInstruction)
	}
	if len(gotReq.Contents) != 1 || gotReq.Contents[0].Parts[0].Text != "hi" {
		t.Fatalf("contents = %+v", gotReq.Contents)
	}
}

func TestCompleteNoModels(t *testing.T) {
	c := &Client{BaseURL: "http://127.0.0.1:0", APIKey: "k"}
	if _, err := c.Complete(context.Background(), "", nil); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

// modelFromPath extracts the model name from /v1beta/models/{model}:generateContent.
func modelFromPath(p string) string {
	p = strings.TrimPrefix(p, "/v1beta/models/")
	if i := strings.Index(p, ":"); i >= 0 {
		return p[:i]
	}
	return p
}
