package service

import "chat-relay/internal/domain"

const (
	defaultTitle  = "New Chat"
	titleMaxRunes = 25
)

// deriveTitle toma el contenido del primer mensaje de usuario del turno,
// truncado a 25 caracteres más elipsis si es más largo. Sin mensaje de
// usuario, usa el título por defecto.
func deriveTitle(messages []domain.Message) string {
	for _, m := range messages {
		if m.Role != domain.RoleUser {
			continue
		}
		runes := []rune(m.Content)
		if len(runes) > titleMaxRunes {
			return string(runes[:titleMaxRunes]) + "..."
		}
		return m.Content
	}
	return defaultTitle
}
