package tools

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAICompleter completes chats with the OpenAI Chat Completions API.
type OpenAICompleter struct {
	Client *openai.Client
}

// NewOpenAICompleter returns nil when apiKey is empty.
func NewOpenAICompleter(apiKey string) *OpenAICompleter {
	if apiKey == "" {
		return nil
	}
	return &OpenAICompleter{Client: openai.NewClient(apiKey)}
}

func (o *OpenAICompleter) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case "system":
			role = openai.ChatMessageRoleSystem
		case "assistant":
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	creq := openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  msgs,
		MaxTokens: req.MaxTokens,
		Stop:      req.Stop,
	}
	if req.Temperature != nil {
		creq.Temperature = float32(*req.Temperature)
	}
	if req.TopP != nil {
		creq.TopP = float32(*req.TopP)
	}

	resp, err := o.Client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, fmt.Errorf("%s - openai completion: %w", logPrefix, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s - openai returned no choices", logPrefix)
	}
	return &CompletionResult{
		Provider:     "openai",
		Model:        resp.Model,
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// AnthropicCompleter completes chats with the Anthropic Messages API.
type AnthropicCompleter struct {
	Client *anthropic.Client
}

// NewAnthropicCompleter returns nil when apiKey is empty.
func NewAnthropicCompleter(apiKey string) *AnthropicCompleter {
	if apiKey == "" {
		return nil
	}
	cl := anthropic.NewClient(anthropicopt.WithAPIKey(apiKey))
	return &AnthropicCompleter{Client: &cl}
}

func (a *AnthropicCompleter) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
	}

	var system []string
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n")}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = anthropic.Float(*req.TopP)
	}
	if len(req.Stop) > 0 {
		params.StopSequences = req.Stop
	}

	msg, err := a.Client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s - anthropic completion: %w", logPrefix, err)
	}

	var b strings.Builder
	for _, cb := range msg.Content {
		if tb, ok := cb.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	return &CompletionResult{
		Provider:     "anthropic",
		Model:        string(msg.Model),
		Content:      b.String(),
		FinishReason: string(msg.StopReason),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}
