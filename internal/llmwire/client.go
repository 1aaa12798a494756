package llmwire

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/crabclaw-go/crabclaw/internal/errkind"
	openai "github.com/sashabaranov/go-openai"
)

// Config carries the connection details needed to reach a provider.
// Model strings of the form "anthropic:<model>" go through the Anthropic
// Messages API; every other model string is sent as an OpenAI-compatible
// chat completion.
type Config struct {
	APIBase string
	APIKey  string
}

const defaultTimeout = 60 * time.Second

// nonStandardError matches the non-standard-200-with-logical-error quirk
// some OpenAI-compatible providers exhibit (HTTP 200 with an error JSON
// body). The official go-openai client has no notion of this, so it's
// caught in a RoundTripper that rewrites the response before the SDK ever
// decodes it.
type nonStandardError struct {
	Code    *int    `json:"code"`
	Msg     *string `json:"msg"`
	Success *bool   `json:"success"`
}

// nonStandardErrorTransport wraps an HTTP round tripper and promotes a
// 200-with-logical-error body into a real error status, so that go-openai's
// own status-code handling turns it into an *openai.APIError.
type nonStandardErrorTransport struct {
	base http.RoundTripper
}

func (t *nonStandardErrorTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	var ns nonStandardError
	if json.Unmarshal(body, &ns) != nil {
		return resp, nil
	}
	if (ns.Success == nil || *ns.Success) && (ns.Code == nil || *ns.Code < 400) {
		return resp, nil
	}

	msg := "unknown API error"
	if ns.Msg != nil {
		msg = *ns.Msg
	}
	code := 0
	if ns.Code != nil {
		code = *ns.Code
	}
	errBody, _ := json.Marshal(map[string]any{
		"error": map[string]any{"message": msg, "code": code},
	})
	resp.StatusCode = http.StatusBadGateway
	resp.Status = "502 Bad Gateway"
	resp.Body = io.NopCloser(bytes.NewReader(errBody))
	return resp, nil
}

func openaiClient(cfg Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIBase != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.APIBase, "/")
	}
	clientCfg.HTTPClient = &http.Client{
		Timeout:   defaultTimeout,
		Transport: &nonStandardErrorTransport{base: http.DefaultTransport},
	}
	return openai.NewClientWithConfig(clientCfg)
}

func anthropicClient(cfg Config) anthropic.Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.APIBase != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.APIBase, "/")))
	}
	opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: defaultTimeout}))
	return anthropic.NewClient(opts...)
}

// Send dispatches a chat completion request to the appropriate dialect
// based on the model prefix.
func Send(ctx context.Context, cfg Config, req *ChatRequest) (ChatResponse, error) {
	if model, ok := strings.CutPrefix(req.Model, "anthropic:"); ok {
		return sendAnthropic(ctx, cfg, req, model)
	}
	return sendOpenAI(ctx, cfg, req)
}

// Stream dispatches a streaming chat completion, pushing unified
// StreamChunk values to out until the stream ends or ctx is cancelled.
// out is closed when Stream returns.
func Stream(ctx context.Context, cfg Config, req *ChatRequest, out chan<- StreamChunk) error {
	defer close(out)
	if model, ok := strings.CutPrefix(req.Model, "anthropic:"); ok {
		return streamAnthropic(ctx, cfg, req, model, out)
	}
	return streamOpenAI(ctx, cfg, req, out)
}

func sendOpenAI(ctx context.Context, cfg Config, req *ChatRequest) (ChatResponse, error) {
	client := openaiClient(cfg)
	resp, err := client.CreateChatCompletion(ctx, toOpenAIRequest(req, false))
	if err != nil {
		return ChatResponse{}, classifyOpenAIError(err)
	}
	return fromOpenAIResponse(resp), nil
}

func sendAnthropic(ctx context.Context, cfg Config, req *ChatRequest, model string) (ChatResponse, error) {
	client := anthropicClient(cfg)
	params, err := toAnthropicParams(req, model)
	if err != nil {
		return ChatResponse{}, err
	}
	msg, err := client.Messages.New(ctx, params)
	if err != nil {
		return ChatResponse{}, classifyAnthropicError(err)
	}
	return fromAnthropicMessage(msg), nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.HTTPStatusCode
		switch {
		case status == 401 || status == 403:
			return errkind.New(errkind.Auth, "HTTP %d: %s", status, apiErr.Message)
		case status == 429:
			return errkind.New(errkind.API, "rate limited (HTTP %d): %s", status, apiErr.Message)
		case status >= 500:
			return errkind.New(errkind.API, "server error (HTTP %d): %s", status, apiErr.Message)
		default:
			return errkind.New(errkind.API, "HTTP %d: %s", status, apiErr.Message)
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return errkind.Wrap(errkind.Network, reqErr.Err, "request failed")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errkind.New(errkind.Network, "request timed out after %ds", int(defaultTimeout.Seconds()))
	}
	return errkind.Wrap(errkind.Network, err, "request failed")
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		switch {
		case status == 401 || status == 403:
			return errkind.New(errkind.Auth, "HTTP %d: %s", status, apiErr.Error())
		case status == 429:
			return errkind.New(errkind.API, "rate limited (HTTP %d): %s", status, apiErr.Error())
		case status >= 500:
			return errkind.New(errkind.API, "server error (HTTP %d): %s", status, apiErr.Error())
		default:
			return errkind.New(errkind.API, "HTTP %d: %s", status, apiErr.Error())
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errkind.New(errkind.Network, "request timed out after %ds", int(defaultTimeout.Seconds()))
	}
	return errkind.Wrap(errkind.Network, err, "request failed")
}
