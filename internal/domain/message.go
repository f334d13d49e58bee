package domain

// Roles permitidos dentro de una conversación.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message es un mensaje inmutable de una conversación.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ValidRole indica si el rol es uno de los soportados.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}
