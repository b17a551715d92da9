package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/BzlZavLed/clubAdmin-sub000/internal/httpkit"
)

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client *openai.Client
	logger *slog.Logger
}

// NewOpenAIClient creates a client. baseURL may be empty for the public
// OpenAI API; timeout bounds each round-trip.
func NewOpenAIClient(apiKey, baseURL string, timeout time.Duration, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	cfg.HTTPClient = httpkit.New(httpkit.Config{
		Timeout:       timeout,
		HeaderTimeout: timeout,
		Retries:       2,
		RetryDelay:    500 * time.Millisecond,
		Logger:        logger,
	})

	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		logger: logger.With("provider", "openai"),
	}
}

// Send implements Client.
func (c *OpenAIClient) Send(ctx context.Context, req *Request) (*Response, error) {
	creq := openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  toOpenAIMessages(req.Input),
		MaxTokens: req.MaxOutputTokens,
	}
	if req.ToolChoice.Mode != ToolChoiceNone && len(req.Tools) > 0 {
		creq.Tools = toOpenAITools(req.Tools)
		creq.ToolChoice = toOpenAIToolChoice(req.ToolChoice)
	}

	c.logger.Debug("sending chat completion",
		"model", req.Model,
		"messages", len(creq.Messages),
		"tools", len(creq.Tools),
		"tool_choice", req.ToolChoice.Mode,
	)
	if c.logger.Enabled(ctx, LevelTrace) {
		if payload, err := json.Marshal(creq); err == nil {
			c.logger.Log(ctx, LevelTrace, "request payload", "json", string(payload))
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	raw, _ := json.Marshal(resp)
	c.logger.Log(ctx, LevelTrace, "response payload", "json", string(raw))

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: response contained no choices")
	}

	out := &Response{
		Model:   resp.Model,
		Message: fromOpenAIMessage(resp.Choices[0].Message),
		Raw:     raw,
	}
	if resp.Usage.TotalTokens > 0 || resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		out.Usage = &Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}
	return out, nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		cm := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			args := tc.Function.RawArguments
			if args == "" {
				b, _ := json.Marshal(tc.Function.Arguments)
				args = string(b)
			}
			cm.ToolCalls = append(cm.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: args,
				},
			})
		}
		out = append(out, cm)
	}
	return out
}

func fromOpenAIMessage(m openai.ChatCompletionMessage) Message {
	msg := Message{
		Role:    RoleAssistant,
		Content: m.Content,
	}
	for _, tc := range m.ToolCalls {
		args, parseErr := DecodeArguments(tc.Function.Arguments)
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID: tc.ID,
			Function: FunctionCall{
				Name:         tc.Function.Name,
				Arguments:    args,
				RawArguments: tc.Function.Arguments,
				ParseError:   parseErr,
			},
		})
	}
	return msg
}

func toOpenAITools(specs []ToolSpec) []openai.Tool {
	out := make([]openai.Tool, 0, len(specs))
	for _, s := range specs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		})
	}
	return out
}

func toOpenAIToolChoice(tc ToolChoice) any {
	if tc.Mode == ToolChoiceFunction && tc.Function != "" {
		return openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: tc.Function},
		}
	}
	return string(ToolChoiceAuto)
}
