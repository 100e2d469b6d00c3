// Package model defines data structures for the conversation engine.
package model

// Role represents the role of a message sender.
type Role string

const (
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
	RoleTool  Role = "tool"
)

// Message represents one entry in a conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Name identifies which specialist produced an AI message.
	Name string `json:"name,omitempty"`
}

// HumanMessage builds a human message.
func HumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

// AIMessage builds an AI message attributed to a specialist.
func AIMessage(content, name string) Message {
	return Message{Role: RoleAI, Content: content, Name: name}
}
