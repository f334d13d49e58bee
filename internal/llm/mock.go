package llm

import (
	"context"
	"io"
	"sync"

	"chat-relay/internal/domain"
)

// MockCompletionClient permite tests sin llamar a un proveedor real.
// Entrega Deltas en orden y termina con io.EOF, o con Err tras agotarlos.
type MockCompletionClient struct {
	Deltas    []string
	Err       error
	CreateErr error
	Models    []ModelInfo

	mu           sync.Mutex
	LastModel    string
	LastMessages []domain.Message
}

func (m *MockCompletionClient) Stream(ctx context.Context, model string, messages []domain.Message) (CompletionStream, error) {
	m.mu.Lock()
	m.LastModel = model
	m.LastMessages = messages
	m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, &UpstreamError{Err: m.CreateErr}
	}
	return &mockStream{ctx: ctx, deltas: m.Deltas, err: m.Err}, nil
}

func (m *MockCompletionClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if m.CreateErr != nil {
		return nil, &UpstreamError{Err: m.CreateErr}
	}
	return m.Models, nil
}

type mockStream struct {
	ctx    context.Context
	deltas []string
	err    error
	pos    int
}

func (s *mockStream) Recv() (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", &UpstreamError{Err: err}
	}
	if s.pos < len(s.deltas) {
		delta := s.deltas[s.pos]
		s.pos++
		return delta, nil
	}
	if s.err != nil {
		return "", &UpstreamError{Err: s.err}
	}
	return "", io.EOF
}

func (s *mockStream) Close() error {
	return nil
}
