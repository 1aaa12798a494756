package llmwire

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/crabclaw-go/crabclaw/internal/errkind"
)

// toAnthropicParams builds the anthropic-sdk-go request params for one
// chat turn. System messages are concatenated with "\n" and carried
// separately via params.System, matching the Messages API shape.
func toAnthropicParams(req *ChatRequest, model string) (anthropic.MessageNewParams, error) {
	var systemText strings.Builder
	var systemMsgs []Message
	var rest []Message
	for _, m := range req.Messages {
		if m.Role == "system" {
			systemMsgs = append(systemMsgs, m)
			continue
		}
		rest = append(rest, m)
	}
	for i, m := range systemMsgs {
		if i > 0 {
			systemText.WriteString("\n")
		}
		systemText.WriteString(m.Content)
	}

	maxTokens := int64(4096)
	if req.MaxTokens != nil {
		maxTokens = int64(*req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  convertMessagesForAnthropic(rest),
		MaxTokens: maxTokens,
	}
	if systemText.Len() > 0 {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: systemText.String()}}
	}
	if len(req.Tools) > 0 {
		tools, err := toAnthropicTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}
	return params, nil
}

func toAnthropicTools(tools []ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(t.Function.MarshalParameters(), &schema); err != nil {
			return nil, errkind.Wrap(errkind.Serialization, err, "invalid tool schema for %s", t.Function.Name)
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, t.Function.Name)
		if toolParam.OfTool == nil {
			return nil, errkind.New(errkind.Serialization, "invalid tool schema for %s: missing tool definition", t.Function.Name)
		}
		toolParam.OfTool.Description = anthropic.String(t.Function.Description)
		out = append(out, toolParam)
	}
	return out, nil
}

// convertMessagesForAnthropic implements the exact conversion algorithm:
// assistant-with-tool_calls becomes a text block (if any) plus one
// tool_use block per call; consecutive tool-role messages coalesce into a
// single user message of tool_result blocks; everything else passes
// through as plain text, using the SDK's own MessageParam/ContentBlockParam
// constructors rather than hand-rolled wire structs.
func convertMessagesForAnthropic(messages []Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	i := 0
	for i < len(messages) {
		m := messages[i]
		switch {
		case m.Role == "assistant" && len(m.ToolCalls) > 0:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input any = map[string]any{}
				if tc.Function.Arguments != "" {
					var parsed any
					if json.Unmarshal([]byte(tc.Function.Arguments), &parsed) == nil {
						input = parsed
					}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
			i++
		case m.Role == "tool":
			var blocks []anthropic.ContentBlockParamUnion
			for i < len(messages) && messages[i].Role == "tool" {
				blocks = append(blocks, anthropic.NewToolResultBlock(messages[i].ToolCallID, messages[i].Content, false))
				i++
			}
			out = append(out, anthropic.NewUserMessage(blocks...))
		case m.Role == "assistant":
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			i++
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			i++
		}
	}
	return out
}

// fromAnthropicMessage implements the exact response-conversion algorithm:
// concatenate text blocks; every tool_use block becomes a ToolCall with
// JSON-stringified input as arguments.
func fromAnthropicMessage(msg *anthropic.Message) ChatResponse {
	var text strings.Builder
	var toolCalls []ToolCall
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			toolUse := block.AsToolUse()
			args, err := json.Marshal(toolUse.Input)
			if err != nil {
				args = []byte("{}")
			}
			toolCalls = append(toolCalls, ToolCall{
				ID: toolUse.ID, Type: "function",
				Function: ToolCallFunction{Name: toolUse.Name, Arguments: string(args)},
			})
		}
	}

	message := Message{Role: "assistant", Content: text.String(), ToolCalls: toolCalls}

	var choices []Choice
	if message.Content != "" || len(toolCalls) > 0 {
		stopReason := string(msg.StopReason)
		choices = []Choice{{Index: 0, Message: message, FinishReason: &stopReason}}
	}

	return ChatResponse{
		ID:      msg.ID,
		Choices: choices,
		Usage: &Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}

// streamAnthropic drives anthropic-sdk-go's SSE stream and converts its
// typed message-stream events into StreamChunk values. Anthropic streams
// content blocks one at a time, so a single running counter stands in for
// the chat-completions dialect's concurrent tool-call index.
func streamAnthropic(ctx context.Context, cfg Config, req *ChatRequest, model string, out chan<- StreamChunk) error {
	client := anthropicClient(cfg)
	params, err := toAnthropicParams(req, model)
	if err != nil {
		return err
	}
	stream := client.Messages.NewStreaming(ctx, params)

	toolIndex := -1
	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "content_block_start":
			contentBlock := event.AsContentBlockStart().ContentBlock
			if contentBlock.Type == "tool_use" {
				toolUse := contentBlock.AsToolUse()
				toolIndex++
				out <- StreamChunk{Kind: ChunkToolCallStart, Index: toolIndex, ID: toolUse.ID, Name: toolUse.Name}
			}
		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					out <- StreamChunk{Kind: ChunkContent, Text: delta.Text}
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					out <- StreamChunk{Kind: ChunkToolCallArgument, Index: toolIndex, Text: delta.PartialJSON}
				}
			}
		case "message_stop":
			out <- StreamChunk{Kind: ChunkDone}
			return nil
		case "error":
			return errkind.New(errkind.API, "anthropic stream error")
		}
	}
	if err := stream.Err(); err != nil {
		return classifyAnthropicError(err)
	}
	out <- StreamChunk{Kind: ChunkDone}
	return nil
}
