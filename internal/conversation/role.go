// ABOUTME: Message roles recognised by the conversation model.
// ABOUTME: Roles map one-to-one onto provider message roles.

package conversation

import "fmt"

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ParseRole validates a stored role string.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidMessage, s)
	}
}
