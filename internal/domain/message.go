package domain

import "time"

// Role labels who produced a message. Values match the model API's role names.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}

// Message is one entry of a conversation. Never mutated after creation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	IsError   bool      `json:"isError,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Turn is the role/text projection of a Message forwarded to a provider.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

func (m Message) Turn() Turn {
	return Turn{Role: m.Role, Text: m.Text}
}
