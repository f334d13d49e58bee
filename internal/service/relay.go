package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chat-relay/internal/domain"
	"chat-relay/internal/llm"
	"chat-relay/internal/repository"
)

var (
	// ErrInvalidTurnInput indica un turno rechazado antes de tocar el upstream.
	ErrInvalidTurnInput = errors.New("invalid turn input")

	// ErrPersistenceFailed indica que la escritura durable del turno falló.
	// El texto ya transmitido al cliente no se retracta.
	ErrPersistenceFailed = errors.New("persistence failed")

	ErrRelayNotConfigured = errors.New("relay not configured")
)

// Sink es el destino en vivo de un turno: la conexión del cliente.
// Begin se invoca una sola vez, con el id resuelto, antes de cualquier delta.
// WriteDelta debe entregar cada fragmento de inmediato, sin buffering ni
// reordenamiento; un error marca al cliente como desconectado. WriteError es
// un diagnóstico terminal, separado del contenido, best effort.
type Sink interface {
	Begin(conversationID string)
	WriteDelta(delta string) error
	WriteError(msg string)
}

// Relay orquesta un turno de chat: abre el stream de completion, reenvía
// cada delta al sink según llega, acumula la respuesta completa y al
// terminar (bien o mal) funde el intercambio en el historial del usuario.
type Relay struct {
	logger         *zap.Logger
	completions    llm.CompletionClient
	conversations  repository.ConversationRepository
	locks          *keyedMutex
	persistTimeout time.Duration
}

func NewRelay(logger *zap.Logger, completions llm.CompletionClient, conversations repository.ConversationRepository) *Relay {
	return &Relay{
		logger:         logger,
		completions:    completions,
		conversations:  conversations,
		locks:          newKeyedMutex(),
		persistTimeout: 10 * time.Second,
	}
}

// Run ejecuta un turno completo. Devuelve error únicamente para entradas
// inválidas (sin efectos parciales); cualquier otro desenlace llega en el
// TurnResult, con falla de stream y falla de persistencia por separado.
func (r *Relay) Run(ctx context.Context, userID string, turn domain.TurnInput, sink Sink) (domain.TurnResult, error) {
	if r == nil || r.completions == nil || r.conversations == nil {
		return domain.TurnResult{}, ErrRelayNotConfigured
	}
	if err := validateTurn(userID, turn); err != nil {
		return domain.TurnResult{}, err
	}

	// El id se resuelve antes de cualquier llamada de red para que el
	// cliente lo conozca aunque el stream falle después.
	conversationID := strings.TrimSpace(turn.ConversationID)
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	sink.Begin(conversationID)

	result := domain.TurnResult{
		ConversationID: conversationID,
		Status:         domain.TurnCompleted,
	}

	var reply strings.Builder
	r.streamTurn(ctx, turn, sink, &reply, &result)

	// Persistencia serializada por (usuario, conversación): los upserts se
	// aplican en el orden en que los turnos terminaron de streamear.
	unlock := r.locks.Lock(userID + "/" + conversationID)
	defer unlock()

	// El contexto del request puede estar muerto si el cliente se fue; la
	// respuesta parcial se persiste igual, con un plazo acotado propio.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.persistTimeout)
	defer cancel()

	merged := make([]domain.Message, 0, len(turn.Messages)+1)
	merged = append(merged, turn.Messages...)
	merged = append(merged, domain.Message{Role: domain.RoleAssistant, Content: reply.String()})

	conv := domain.Conversation{
		ID:        conversationID,
		UserID:    userID,
		Title:     deriveTitle(turn.Messages),
		UpdatedAt: time.Now().UTC(),
		Messages:  merged,
	}
	if err := r.conversations.Upsert(persistCtx, conv); err != nil {
		r.logger.Error("turn persist failed",
			zap.String("user_id", userID),
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		result.PersistErr = fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
		return result, nil
	}

	result.Persisted = true
	r.logger.Info("turn persisted",
		zap.String("user_id", userID),
		zap.String("conversation_id", conversationID),
		zap.String("status", string(result.Status)),
		zap.Int("messages", len(merged)),
	)
	return result, nil
}

// streamTurn consume el stream upstream reenviando y acumulando cada delta
// en estricto orden. Deja en result el estado terminal del streaming.
func (r *Relay) streamTurn(ctx context.Context, turn domain.TurnInput, sink Sink, reply *strings.Builder, result *domain.TurnResult) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := r.completions.Stream(streamCtx, turn.Model, turn.Messages)
	if err != nil {
		result.Status = domain.TurnFailed
		result.StreamErr = err
		sink.WriteError(err.Error())
		return
	}
	defer stream.Close()

	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			result.Status = domain.TurnFailed
			result.StreamErr = err
			sink.WriteError(err.Error())
			r.logger.Warn("upstream stream failed",
				zap.String("conversation_id", result.ConversationID),
				zap.Int("partial_bytes", reply.Len()),
				zap.Error(err),
			)
			return
		}

		if werr := sink.WriteDelta(delta); werr != nil {
			// Cliente desconectado: se cancela el upstream de inmediato y
			// no se escribe más, pero el delta ya producido se conserva.
			reply.WriteString(delta)
			result.Status = domain.TurnFailed
			result.StreamErr = fmt.Errorf("client disconnected: %w", werr)
			r.logger.Warn("client disconnected mid-stream",
				zap.String("conversation_id", result.ConversationID),
				zap.Int("partial_bytes", reply.Len()),
			)
			return
		}
		reply.WriteString(delta)
	}
}

func validateTurn(userID string, turn domain.TurnInput) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: missing user", ErrInvalidTurnInput)
	}
	if strings.TrimSpace(turn.Model) == "" {
		return fmt.Errorf("%w: missing model", ErrInvalidTurnInput)
	}
	if len(turn.Messages) == 0 {
		return fmt.Errorf("%w: empty message sequence", ErrInvalidTurnInput)
	}
	for i, m := range turn.Messages {
		if !domain.ValidRole(m.Role) {
			return fmt.Errorf("%w: message %d has unknown role %q", ErrInvalidTurnInput, i, m.Role)
		}
	}
	return nil
}
