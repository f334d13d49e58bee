package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chat-relay/internal/domain"
)

var (
	// ErrStoreUnavailable indica que el medio de almacenamiento no pudo
	// leerse o escribirse. Nunca se traga silenciosamente.
	ErrStoreUnavailable = errors.New("conversation store unavailable")

	// ErrConversationNotFound indica que el registro no existe para ese usuario.
	ErrConversationNotFound = errors.New("conversation not found")
)

// ConversationRepository define el contrato de persistencia para
// conversaciones. Upsert es atómico por registro: una conversación se graba
// completa o queda exactamente como estaba.
type ConversationRepository interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Conversation, error)
	GetByID(ctx context.Context, userID, id string) (domain.Conversation, error)
	Upsert(ctx context.Context, conv domain.Conversation) error
	Delete(ctx context.Context, userID, id string) error
}

// PgConversationRepository implementa ConversationRepository usando pgxpool.
// El log de mensajes se guarda como JSONB en una sola fila, de modo que el
// upsert de una conversación es una única escritura atómica.
type PgConversationRepository struct {
	pool *pgxpool.Pool
}

func NewPgConversationRepository(pool *pgxpool.Pool) *PgConversationRepository {
	return &PgConversationRepository{pool: pool}
}

func (r *PgConversationRepository) ListByUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	const query = `
		SELECT id, user_id, title, updated_at, messages
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var conversations []domain.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		conversations = append(conversations, conv)
	}
	if err = rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return conversations, nil
}

func (r *PgConversationRepository) GetByID(ctx context.Context, userID, id string) (domain.Conversation, error) {
	const query = `
		SELECT id, user_id, title, updated_at, messages
		FROM conversations
		WHERE user_id = $1 AND id = $2
	`
	row := r.pool.QueryRow(ctx, query, userID, id)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return domain.Conversation{}, storeErr(err)
	}
	return conv, nil
}

// Upsert crea la conversación o sobreescribe sus mensajes y updated_at.
// El título solo se fija en la creación; en registros existentes se conserva.
func (r *PgConversationRepository) Upsert(ctx context.Context, conv domain.Conversation) error {
	payload, err := json.Marshal(conv.Messages)
	if err != nil {
		return storeErr(err)
	}
	const query = `
		INSERT INTO conversations (id, user_id, title, updated_at, messages)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, id) DO UPDATE
		SET messages = EXCLUDED.messages, updated_at = EXCLUDED.updated_at
	`
	_, err = r.pool.Exec(ctx, query,
		conv.ID,
		conv.UserID,
		conv.Title,
		conv.UpdatedAt,
		payload,
	)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (r *PgConversationRepository) Delete(ctx context.Context, userID, id string) error {
	const query = `
		DELETE FROM conversations
		WHERE user_id = $1 AND id = $2
	`
	tag, err := r.pool.Exec(ctx, query, userID, id)
	if err != nil {
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func scanConversation(row pgx.Row) (domain.Conversation, error) {
	var conv domain.Conversation
	var payload []byte
	if err := row.Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Title,
		&conv.UpdatedAt,
		&payload,
	); err != nil {
		return domain.Conversation{}, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &conv.Messages); err != nil {
			return domain.Conversation{}, err
		}
	}
	return conv, nil
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
