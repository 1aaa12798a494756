// Package modelrunner implements the bounded tool-calling iteration loop
// that drives one model "turn": submit messages, execute any tool calls
// the model requests, feed results back, and repeat until the model
// yields a final answer or the iteration cap is hit.
package modelrunner

import (
	"context"
	"fmt"

	"github.com/crabclaw-go/crabclaw/internal/llmwire"
)

// MaxToolIterations bounds how many tool-calling round trips a single
// turn may take before the runner gives up and reports an error.
const MaxToolIterations = 5

// ToolExecutor executes one tool call by name and returns its textual
// result. It never returns an error to the caller: failures are encoded
// into the result string so the model can observe and adapt.
type ToolExecutor func(ctx context.Context, name, argumentsJSON string) string

// OnToken is invoked with each incremental chunk of assistant text as it
// streams in, in arrival order.
type OnToken func(text string)

// Result is the outcome of one model turn.
type Result struct {
	AssistantText string
	ToolRounds    int
	Err           error
}

// accumulatingToolCall tracks one tool call's id/name/arguments as they
// arrive, possibly incrementally, keyed by the provider's `index`.
type accumulatingToolCall struct {
	id, name, arguments string
}

// RunTurn executes one buffered (non-streaming) turn: submit, execute any
// tool calls, resubmit, up to MaxToolIterations times.
func RunTurn(ctx context.Context, cfg llmwire.Config, model string, messages []llmwire.Message, tools []llmwire.ToolDefinition, exec ToolExecutor) Result {
	return runTurn(ctx, cfg, model, messages, tools, exec, nil)
}

// RunTurnStream executes one turn the same way as RunTurn, but streams
// assistant content chunks to onToken as they arrive from the provider.
func RunTurnStream(ctx context.Context, cfg llmwire.Config, model string, messages []llmwire.Message, tools []llmwire.ToolDefinition, exec ToolExecutor, onToken OnToken) Result {
	return runTurn(ctx, cfg, model, messages, tools, exec, onToken)
}

func runTurn(ctx context.Context, cfg llmwire.Config, model string, messages []llmwire.Message, tools []llmwire.ToolDefinition, exec ToolExecutor, onToken OnToken) Result {
	messages = append([]llmwire.Message(nil), messages...)

	for round := 0; round < MaxToolIterations; round++ {
		req := &llmwire.ChatRequest{Model: model, Messages: messages, Tools: tools}

		var assistantText string
		var calls []llmwire.ToolCall
		var err error

		if onToken != nil {
			assistantText, calls, err = streamOneRound(ctx, cfg, req, onToken)
		} else {
			var resp llmwire.ChatResponse
			resp, err = llmwire.Send(ctx, cfg, req)
			if err == nil {
				assistantText, _ = resp.AssistantContent()
				calls = resp.ToolCalls()
			}
		}

		if err != nil {
			return Result{ToolRounds: round, Err: err}
		}

		if len(calls) == 0 {
			return Result{AssistantText: assistantText, ToolRounds: round}
		}

		messages = append(messages, llmwire.AssistantWithToolCalls(calls))
		for _, call := range calls {
			result := exec(ctx, call.Function.Name, call.Function.Arguments)
			messages = append(messages, llmwire.ToolResultMessage(call.ID, result))
		}
	}

	return Result{ToolRounds: MaxToolIterations, Err: fmt.Errorf("tool iteration limit reached")}
}

func streamOneRound(ctx context.Context, cfg llmwire.Config, req *llmwire.ChatRequest, onToken OnToken) (string, []llmwire.ToolCall, error) {
	out := make(chan llmwire.StreamChunk)
	errCh := make(chan error, 1)

	go func() {
		errCh <- llmwire.Stream(ctx, cfg, req, out)
	}()

	var text string
	calls := map[int]*accumulatingToolCall{}
	var order []int

	for chunk := range out {
		switch chunk.Kind {
		case llmwire.ChunkContent:
			text += chunk.Text
			if onToken != nil {
				onToken(chunk.Text)
			}
		case llmwire.ChunkToolCallStart:
			if _, ok := calls[chunk.Index]; !ok {
				order = append(order, chunk.Index)
			}
			entry := calls[chunk.Index]
			if entry == nil {
				entry = &accumulatingToolCall{}
				calls[chunk.Index] = entry
			}
			if chunk.ID != "" {
				entry.id = chunk.ID
			}
			if chunk.Name != "" {
				entry.name = chunk.Name
			}
		case llmwire.ChunkToolCallArgument:
			entry, ok := calls[chunk.Index]
			if !ok {
				entry = &accumulatingToolCall{}
				calls[chunk.Index] = entry
				order = append(order, chunk.Index)
			}
			entry.arguments += chunk.Text
		case llmwire.ChunkDone:
		}
	}

	if err := <-errCh; err != nil {
		return "", nil, err
	}

	var toolCalls []llmwire.ToolCall
	for _, idx := range order {
		entry := calls[idx]
		toolCalls = append(toolCalls, llmwire.ToolCall{
			ID:   entry.id,
			Type: "function",
			Function: llmwire.ToolCallFunction{
				Name:      entry.name,
				Arguments: entry.arguments,
			},
		})
	}

	return text, toolCalls, nil
}
