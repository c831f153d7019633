package model

const (
	TurnRoleUser      = "user"
	TurnRoleAssistant = "assistant"
)

type Turn struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Ctime     int64  `json:"ctime"`
}
