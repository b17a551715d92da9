// Package llm is the remote planning client: a thin request/response
// wrapper around a tool-calling chat model. Everything the model sends
// back is treated as untrusted data; tool-call arguments are decoded
// but never acted on here.
package llm

import (
	"encoding/json"
	"log/slog"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Roles used in conversation messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of the model input.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a structured mutation request emitted by the model.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the tool name and its decoded arguments.
// RawArguments keeps the provider's original string; ParseError is
// set when that string was not a JSON object, in which case Arguments
// is empty and schema validation will reject the call.
type FunctionCall struct {
	Name         string         `json:"name"`
	Arguments    map[string]any `json:"arguments"`
	RawArguments string         `json:"raw_arguments,omitempty"`
	ParseError   string         `json:"parse_error,omitempty"`
}

// ToolSpec describes a tool offered to the model.
type ToolSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Parameters is a JSON schema, typically a jsonschema.Definition.
	Parameters any `json:"parameters"`
}

// ToolChoiceMode selects how the model may use tools.
type ToolChoiceMode string

// Tool choice modes.
const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceFunction ToolChoiceMode = "function"
)

// ToolChoice is either a mode or a specific forced function.
type ToolChoice struct {
	Mode     ToolChoiceMode `json:"mode"`
	Function string         `json:"function,omitempty"`
}

// Forced returns a choice that requires the named tool.
func Forced(name string) ToolChoice {
	return ToolChoice{Mode: ToolChoiceFunction, Function: name}
}

// Request is one round-trip to the model.
type Request struct {
	Model           string     `json:"model"`
	Input           []Message  `json:"input"`
	Tools           []ToolSpec `json:"tools,omitempty"`
	ToolChoice      ToolChoice `json:"tool_choice"`
	MaxOutputTokens int        `json:"max_output_tokens,omitempty"`
}

// Usage is the token accounting reported by the provider.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Response is the provider-neutral result of one round-trip. Usage is
// nil when the provider did not report token counts.
type Response struct {
	Model   string          `json:"model"`
	Message Message         `json:"message"`
	Usage   *Usage          `json:"usage,omitempty"`
	Raw     json.RawMessage `json:"-"`
}

// DecodeArguments parses a JSON argument string into a map. It never
// fails: malformed input yields an empty map and a parse error string.
func DecodeArguments(raw string) (map[string]any, string) {
	args := map[string]any{}
	if raw == "" {
		return args, ""
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{}, err.Error()
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, ""
}
