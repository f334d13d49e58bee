package llm

import (
	"context"
	"errors"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"chat-relay/internal/domain"
)

// CompletionClient expone el streaming de completions del proveedor upstream.
type CompletionClient interface {
	Stream(ctx context.Context, model string, messages []domain.Message) (CompletionStream, error)
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// CompletionStream entrega deltas en el orden en que el proveedor los emite.
// Recv devuelve io.EOF al terminar normalmente; cualquier otra falla llega
// envuelta en *UpstreamError. La secuencia no es reiniciable.
type CompletionStream interface {
	Recv() (string, error)
	Close() error
}

// ModelInfo describe un modelo disponible en el proveedor.
type ModelInfo struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// UpstreamError envuelve una falla del proveedor de completions, ya sea
// antes del stream o a mitad de él.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return "upstream: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// OpenAIClient implementa CompletionClient contra una API OpenAI-compatible.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient construye un cliente apuntando a baseURL con bearer apiKey.
func NewOpenAIClient(baseURL, apiKey string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg)}
}

// Stream abre un único intento de completion streaming. Sin reintentos: la
// política de retry, si existe, pertenece a una capa superior.
func (c *OpenAIClient) Stream(ctx context.Context, model string, messages []domain.Message) (CompletionStream, error) {
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertMessages(messages),
		Stream:   true,
	}
	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	return &openaiStream{stream: stream}, nil
}

// ListModels consulta los modelos disponibles en el proveedor.
func (c *OpenAIClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	list, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	models := make([]ModelInfo, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, ModelInfo{ID: m.ID, OwnedBy: m.OwnedBy})
	}
	return models, nil
}

// Embed genera el embedding de un texto con el modelo indicado.
func (c *OpenAIClient) Embed(ctx context.Context, model, input string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{input},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	if len(resp.Data) == 0 {
		return nil, &UpstreamError{Err: errors.New("empty embedding response")}
	}
	return resp.Data[0].Embedding, nil
}

type openaiStream struct {
	stream *openai.ChatCompletionStream
}

func (s *openaiStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", &UpstreamError{Err: err}
		}
		if len(resp.Choices) == 0 {
			continue
		}
		// Chunks sin contenido (rol inicial, finish_reason) se omiten.
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
}

func (s *openaiStream) Close() error {
	return s.stream.Close()
}

func convertMessages(messages []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
	}
	return out
}
