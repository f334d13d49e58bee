package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-relay/internal/domain"
	"chat-relay/internal/llm"
	"chat-relay/internal/repository"
	"chat-relay/internal/service"
)

// ChatHandler mantiene dependencias para los endpoints de chat e historial.
type ChatHandler struct {
	logger        *zap.Logger
	relay         *service.Relay
	conversations repository.ConversationRepository
	completions   llm.CompletionClient
	limiter       service.ChatRateLimiter
	indexer       *service.IndexService
}

// NewChatHandler crea una instancia de ChatHandler con dependencias necesarias.
func NewChatHandler(
	logger *zap.Logger,
	relay *service.Relay,
	conversations repository.ConversationRepository,
	completions llm.CompletionClient,
	limiter service.ChatRateLimiter,
	indexer *service.IndexService,
) *ChatHandler {
	return &ChatHandler{
		logger:        logger,
		relay:         relay,
		conversations: conversations,
		completions:   completions,
		limiter:       limiter,
		indexer:       indexer,
	}
}

// PostChat maneja POST /chat: streamea la respuesta como eventos SSE
// (delta, error, done) y expone el id resuelto en el header X-Chat-ID.
func (h *ChatHandler) PostChat(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req domain.TurnInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if h.limiter != nil && !h.limiter.Allow(claims.UserID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		return
	}

	sink := &sseSink{c: c}
	result, err := h.relay.Run(c.Request.Context(), claims.UserID, req, sink)
	if err != nil {
		// Falla antes de cualquier efecto: todavía se puede responder JSON.
		if errors.Is(err, service.ErrInvalidTurnInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("chat turn failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not run chat turn"})
		return
	}

	sink.writeDone(result)

	// Indexación semántica fuera del camino del turno, como mejor esfuerzo.
	if h.indexer != nil {
		if prompt := lastUserContent(req.Messages); prompt != "" {
			go func(userID, conversationID, prompt string) {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if err := h.indexer.IndexTurn(ctx, userID, conversationID, prompt); err != nil {
					h.logger.Warn("turn indexing failed",
						zap.String("conversation_id", conversationID),
						zap.Error(err),
					)
				}
			}(claims.UserID, result.ConversationID, prompt)
		}
	}
}

// ListHistory maneja GET /history: conversaciones del usuario, más recientes
// primero.
func (h *ChatHandler) ListHistory(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conversations, err := h.conversations.ListByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("list history failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list history"})
		return
	}
	if conversations == nil {
		conversations = []domain.Conversation{}
	}
	c.JSON(http.StatusOK, gin.H{"history": conversations})
}

// DeleteConversation maneja DELETE /history/:id.
func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id := c.Param("id")
	if err := h.conversations.Delete(c.Request.Context(), claims.UserID, id); err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
			return
		}
		h.logger.Error("delete conversation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete chat"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SearchHistory maneja GET /history/search?q=...&k=...
func (h *ChatHandler) SearchHistory(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if h.indexer == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "search not configured"})
		return
	}

	query := c.Query("q")
	k, _ := strconv.Atoi(c.DefaultQuery("k", "5"))
	results, err := h.indexer.Search(c.Request.Context(), claims.UserID, query, k)
	if err != nil {
		h.logger.Error("history search failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not search history"})
		return
	}
	if results == nil {
		results = []domain.TurnEmbedding{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// ListModels maneja GET /models: passthrough del listado del proveedor.
func (h *ChatHandler) ListModels(c *gin.Context) {
	models, err := h.completions.ListModels(c.Request.Context())
	if err != nil {
		h.logger.Error("list models failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to list models", "data": []llm.ModelInfo{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": models})
}

func lastUserContent(messages []domain.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// sseSink adapta la conexión HTTP del cliente al contrato service.Sink.
// Cada evento se flushea de inmediato: el relay no debe bufferear deltas.
type sseSink struct {
	c *gin.Context
}

func (s *sseSink) Begin(conversationID string) {
	s.c.Header("X-Chat-ID", conversationID)
	s.c.Header("Content-Type", "text/event-stream")
	s.c.Header("Cache-Control", "no-cache")
	s.c.Writer.Flush()
}

func (s *sseSink) WriteDelta(delta string) error {
	if err := s.c.Request.Context().Err(); err != nil {
		return err
	}
	if err := sse.Encode(s.c.Writer, sse.Event{Event: "delta", Data: delta}); err != nil {
		return err
	}
	s.c.Writer.Flush()
	return nil
}

func (s *sseSink) WriteError(msg string) {
	if s.c.Request.Context().Err() != nil {
		return
	}
	_ = sse.Encode(s.c.Writer, sse.Event{Event: "error", Data: msg})
	s.c.Writer.Flush()
}

func (s *sseSink) writeDone(result domain.TurnResult) {
	if s.c.Request.Context().Err() != nil {
		return
	}
	payload := map[string]any{
		"conversation_id": result.ConversationID,
		"status":          result.Status,
		"persisted":       result.Persisted,
	}
	if result.PersistErr != nil {
		payload["persist_error"] = "save failed"
	}
	_ = sse.Encode(s.c.Writer, sse.Event{Event: "done", Data: payload})
	s.c.Writer.Flush()
}
