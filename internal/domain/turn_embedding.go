package domain

import (
	"time"

	pgvector "github.com/pgvector/pgvector-go"
)

// TurnEmbedding es la entrada del índice semántico sobre turnos completados.
type TurnEmbedding struct {
	ID             string          `json:"id"`
	UserID         string          `json:"-"`
	ConversationID string          `json:"conversation_id"`
	Content        string          `json:"content"`
	Embedding      pgvector.Vector `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
}
