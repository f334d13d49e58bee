package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"chat-relay/internal/domain"
	"chat-relay/internal/repository"
)

// Embedder genera el embedding de un texto con un modelo dado.
type Embedder interface {
	Embed(ctx context.Context, model, input string) ([]float32, error)
}

// IndexService mantiene el índice semántico sobre turnos completados y
// resuelve búsquedas de historial. La indexación corre fuera del camino del
// turno: una falla aquí nunca afecta el resultado del relay.
type IndexService struct {
	logger   *zap.Logger
	embedder Embedder
	entries  repository.SearchRepository
	model    string
}

func NewIndexService(logger *zap.Logger, embedder Embedder, entries repository.SearchRepository, model string) *IndexService {
	return &IndexService{
		logger:   logger,
		embedder: embedder,
		entries:  entries,
		model:    model,
	}
}

var ErrIndexNotConfigured = errors.New("index service not configured")

// IndexTurn embebe el contenido de un turno y lo agrega al índice del usuario.
func (s *IndexService) IndexTurn(ctx context.Context, userID, conversationID, content string) error {
	if s == nil || s.embedder == nil || s.entries == nil {
		return ErrIndexNotConfigured
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	vec, err := s.embedder.Embed(ctx, s.model, content)
	if err != nil {
		return err
	}

	return s.entries.Create(ctx, domain.TurnEmbedding{
		ID:             uuid.NewString(),
		UserID:         userID,
		ConversationID: conversationID,
		Content:        content,
		Embedding:      pgvector.NewVector(vec),
		CreatedAt:      time.Now().UTC(),
	})
}

// Search devuelve los k turnos del usuario más cercanos a la consulta.
func (s *IndexService) Search(ctx context.Context, userID, query string, k int) ([]domain.TurnEmbedding, error) {
	if s == nil || s.embedder == nil || s.entries == nil {
		return nil, ErrIndexNotConfigured
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.TurnEmbedding{}, nil
	}

	vec, err := s.embedder.Embed(ctx, s.model, query)
	if err != nil {
		return nil, err
	}
	return s.entries.Search(ctx, userID, pgvector.NewVector(vec), k)
}
