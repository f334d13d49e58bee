package domain

import "time"

// Conversation es el registro persistido del historial de un hilo de chat.
// Pertenece a un único usuario; messages es un log ordenado sin reordenamientos.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}
