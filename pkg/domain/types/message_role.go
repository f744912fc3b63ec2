package types

import "fmt"

// MessageRole represents who authored a message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// AllMessageRoles returns all valid message roles
func AllMessageRoles() []MessageRole {
	return []MessageRole{
		MessageRoleUser,
		MessageRoleAssistant,
	}
}

// IsValid checks if the message role is valid
func (r MessageRole) IsValid() bool {
	switch r {
	case MessageRoleUser, MessageRoleAssistant:
		return true
	default:
		return false
	}
}

// String returns the string representation of the message role
func (r MessageRole) String() string {
	return string(r)
}

// ParseMessageRole parses a string into a MessageRole
func ParseMessageRole(s string) (MessageRole, error) {
	role := MessageRole(s)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid message role: %s", s)
	}
	return role, nil
}
