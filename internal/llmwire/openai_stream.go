package llmwire

import (
	"context"
	"errors"
	"io"
)

// streamOpenAI drives the go-openai streaming client and converts its
// typed delta events into StreamChunk values, accumulating tool-call
// fragments by the index each delta carries.
func streamOpenAI(ctx context.Context, cfg Config, req *ChatRequest, out chan<- StreamChunk) error {
	client := openaiClient(cfg)
	stream, err := client.CreateChatCompletionStream(ctx, toOpenAIRequest(req, true))
	if err != nil {
		return classifyOpenAIError(err)
	}
	defer stream.Close()

	started := map[int]bool{}
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			out <- StreamChunk{Kind: ChunkDone}
			return nil
		}
		if err != nil {
			return classifyOpenAIError(err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			out <- StreamChunk{Kind: ChunkContent, Text: choice.Delta.Content}
		}
		for _, tc := range choice.Delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			if !started[index] && tc.Function.Name != "" {
				out <- StreamChunk{Kind: ChunkToolCallStart, Index: index, ID: tc.ID, Name: tc.Function.Name}
				started[index] = true
			}
			if tc.Function.Arguments != "" {
				out <- StreamChunk{Kind: ChunkToolCallArgument, Index: index, Text: tc.Function.Arguments}
			}
		}
		if choice.FinishReason != "" {
			out <- StreamChunk{Kind: ChunkDone}
			return nil
		}
	}
}
