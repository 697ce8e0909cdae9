// Package agent implements the reasoning loop that drives one surveillance
// report run: a cyclic state machine in which an LLM decides, turn by turn,
// whether to invoke a registered tool or hand the accumulated conversation
// to the report synthesis step.
package agent

import "encoding/json"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by the model in an assistant turn.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Message is one entry in the conversation log. Only assistant messages
// carry ToolCalls; a tool message answers exactly one requested call and
// carries its correlation (ToolCallID + ToolName).
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	ToolName   string
}

// HumanMessage builds a human turn.
func HumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

// ToolMessage builds a tool result turn correlated to the originating call.
func ToolMessage(call ToolCall, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: call.ID, ToolName: call.Name}
}

// Conversation is the append-only message log of one run. It is exclusively
// owned by the orchestrator's current step; no concurrent writers.
type Conversation struct {
	messages []Message
}

// Append adds messages to the end of the log.
func (c *Conversation) Append(msgs ...Message) {
	c.messages = append(c.messages, msgs...)
}

// Messages returns the ordered log. Callers must not mutate the result.
func (c *Conversation) Messages() []Message {
	return c.messages
}

// Len returns the number of messages in the log.
func (c *Conversation) Len() int { return len(c.messages) }

// Last returns the most recent message and whether one exists.
func (c *Conversation) Last() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// ToolSpec describes a registered tool to the model: the static descriptor
// registered once at startup and immutable for the run.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}
