package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"chat-relay/internal/domain"
)

// SearchRepository define el contrato del índice semántico de turnos.
type SearchRepository interface {
	Create(ctx context.Context, entry domain.TurnEmbedding) error
	Search(ctx context.Context, userID string, query pgvector.Vector, k int) ([]domain.TurnEmbedding, error)
}

// PgSearchRepository implementa SearchRepository sobre pgvector.
type PgSearchRepository struct {
	pool *pgxpool.Pool
}

func NewPgSearchRepository(pool *pgxpool.Pool) *PgSearchRepository {
	return &PgSearchRepository{pool: pool}
}

func (r *PgSearchRepository) Create(ctx context.Context, entry domain.TurnEmbedding) error {
	const query = `
		INSERT INTO turn_embeddings (id, user_id, conversation_id, content, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.ConversationID,
		entry.Content,
		entry.Embedding,
		entry.CreatedAt,
	)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (r *PgSearchRepository) Search(ctx context.Context, userID string, query pgvector.Vector, k int) ([]domain.TurnEmbedding, error) {
	if k <= 0 {
		k = 5
	}
	const sql = `
		SELECT id, user_id, conversation_id, content, embedding, created_at
		FROM turn_embeddings
		WHERE user_id = $1
		ORDER BY embedding <=> $2
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, sql, userID, query, k)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var entries []domain.TurnEmbedding
	for rows.Next() {
		var e domain.TurnEmbedding
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.ConversationID,
			&e.Content,
			&e.Embedding,
			&e.CreatedAt,
		); err != nil {
			return nil, storeErr(err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return entries, nil
}
