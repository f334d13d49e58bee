package domain

// TurnInput es el prefijo de conversación que envía el cliente para un turno.
// ConversationID puede venir vacío; en ese caso el relay acuña uno nuevo.
type TurnInput struct {
	ConversationID string    `json:"conversation_id"`
	Model          string    `json:"model"`
	Messages       []Message `json:"messages"`
}

// TurnStatus es el estado terminal del streaming de un turno.
type TurnStatus string

const (
	TurnCompleted TurnStatus = "completed"
	TurnFailed    TurnStatus = "failed"
)

// TurnResult reporta el id resuelto y el desenlace de un turno.
// StreamErr y PersistErr se reportan por separado: el texto ya emitido al
// cliente nunca se retracta aunque la persistencia falle.
type TurnResult struct {
	ConversationID string
	Status         TurnStatus
	Persisted      bool
	StreamErr      error
	PersistErr     error
}
