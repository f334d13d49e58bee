package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"chat-relay/internal/domain"
)

func sseChunkBody(deltas []string) string {
	body := ""
	for _, d := range deltas {
		body += fmt.Sprintf(
			`data: {"id":"1","object":"chat.completion.chunk","created":0,"model":"m","choices":[{"index":0,"delta":{"content":%q},"finish_reason":null}]}`+"\n\n",
			d,
		)
	}
	body += "data: [DONE]\n\n"
	return body
}

func TestOpenAIClientStream_DeliversDeltasInOrder(t *testing.T) {
	deltas := []string{"Hel", "lo!"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, sseChunkBody(deltas))
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL, "test-key")
	stream, err := client.Stream(context.Background(), "gpt-4o", []domain.Message{
		{Role: domain.RoleUser, Content: "Hi"},
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer stream.Close()

	var got []string
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		got = append(got, delta)
	}
	if len(got) != len(deltas) {
		t.Fatalf("expected %d deltas, got %d (%v)", len(deltas), len(got), got)
	}
	for i := range deltas {
		if got[i] != deltas[i] {
			t.Fatalf("delta %d: expected %q, got %q", i, deltas[i], got[i])
		}
	}
}

func TestOpenAIClientStream_UpstreamStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL, "test-key")
	_, err := client.Stream(context.Background(), "gpt-4o", []domain.Message{
		{Role: domain.RoleUser, Content: "Hi"},
	})
	if err == nil {
		t.Fatalf("expected error on upstream 500")
	}
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected *UpstreamError, got %T: %v", err, err)
	}
}

func TestOpenAIClientStream_SkipsEmptyChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		body := `data: {"id":"1","object":"chat.completion.chunk","created":0,"model":"m","choices":[{"index":0,"delta":{"role":"assistant"},"finish_reason":null}]}` + "\n\n"
		body += sseChunkBody([]string{"solo"})
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL, "test-key")
	stream, err := client.Stream(context.Background(), "gpt-4o", []domain.Message{
		{Role: domain.RoleUser, Content: "Hi"},
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer stream.Close()

	delta, err := stream.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if delta != "solo" {
		t.Fatalf("expected role-only chunk skipped, got %q", delta)
	}
	if _, err := stream.Recv(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}
