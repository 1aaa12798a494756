// Package llmwire speaks the two chat-completion wire dialects this
// module supports behind a single provider-agnostic request/response/
// stream-chunk model: an OpenAI-style dialect (`/chat/completions`, SSE
// streaming, tool_calls), reached through github.com/sashabaranov/go-openai,
// and an Anthropic-style dialect (`/v1/messages`, content blocks,
// tool_use/tool_result blocks), reached through
// github.com/anthropics/anthropic-sdk-go. The rest of the module consumes
// the unified model without caring which dialect produced it.
package llmwire

import "encoding/json"

// Message is a provider-agnostic chat message.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

func UserMessage(content string) Message      { return Message{Role: "user", Content: content} }
func SystemMessage(content string) Message    { return Message{Role: "system", Content: content} }
func AssistantMessage(content string) Message { return Message{Role: "assistant", Content: content} }

func ToolResultMessage(toolCallID, content string) Message {
	return Message{Role: "tool", Content: content, ToolCallID: toolCallID}
}

func AssistantWithToolCalls(calls []ToolCall) Message {
	return Message{Role: "assistant", ToolCalls: calls}
}

// ToolCall is one function-call the model requested.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type,omitempty"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction is the name+arguments payload of a ToolCall.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition is the schema half of a ToolDefinition.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ChatRequest is the provider-agnostic request sent to ModelRunner ->
// dialect adapters.
type ChatRequest struct {
	Model     string           `json:"model"`
	Messages  []Message        `json:"messages"`
	MaxTokens *int             `json:"max_tokens,omitempty"`
	Tools     []ToolDefinition `json:"tools,omitempty"`
}

// Choice is one candidate response.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason *string `json:"finish_reason,omitempty"`
}

// HasToolCalls reports whether this choice includes tool calls.
func (c Choice) HasToolCalls() bool { return len(c.Message.ToolCalls) > 0 }

// Usage is token accounting, tolerant of providers that omit it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the provider-agnostic non-streaming response.
type ChatResponse struct {
	ID      string   `json:"id,omitempty"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// AssistantContent returns the first choice's content, if non-empty.
func (r ChatResponse) AssistantContent() (string, bool) {
	if len(r.Choices) == 0 {
		return "", false
	}
	if r.Choices[0].Message.Content == "" {
		return "", false
	}
	return r.Choices[0].Message.Content, true
}

// HasToolCalls reports whether the first choice carries tool calls.
func (r ChatResponse) HasToolCalls() bool {
	if len(r.Choices) == 0 {
		return false
	}
	return r.Choices[0].HasToolCalls()
}

// ToolCalls returns the first choice's tool calls, if any.
func (r ChatResponse) ToolCalls() []ToolCall {
	if len(r.Choices) == 0 {
		return nil
	}
	return r.Choices[0].Message.ToolCalls
}

// ErrorDetail is the `error` object both dialects roughly agree on.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    any    `json:"code,omitempty"`
}

// ErrorBody wraps an ErrorDetail for non-2xx responses.
type ErrorBody struct {
	Error *ErrorDetail `json:"error,omitempty"`
}

// ChunkKind discriminates the unified StreamChunk union.
type ChunkKind int

const (
	ChunkContent ChunkKind = iota
	ChunkToolCallStart
	ChunkToolCallArgument
	ChunkDone
)

// StreamChunk is the unified streaming event both dialect adapters
// normalize into, consumed by the model runner regardless of which wire
// dialect produced it.
type StreamChunk struct {
	Kind  ChunkKind
	Text  string // ChunkContent text, or ChunkToolCallArgument partial JSON
	Index int    // ChunkToolCallStart / ChunkToolCallArgument: tool call index
	ID    string // ChunkToolCallStart: tool call id
	Name  string // ChunkToolCallStart: function name
}

// MarshalParameters renders a FunctionDefinition's parameters as raw JSON,
// used by dialect adapters that need to reshape it (e.g. Anthropic's
// input_schema).
func (f FunctionDefinition) MarshalParameters() json.RawMessage {
	raw, err := json.Marshal(f.Parameters)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}
