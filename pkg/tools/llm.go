package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opspawn/agentkit/pkg/catalogue"
)

const logPrefix = "tools:llm"

// LLMCompletionName is the catalogue name of the LLM completion tool.
const LLMCompletionName = "llm_completion"

const defaultMaxTokens = 1024

// ChatMessage is one turn of a completion prompt.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the provider-neutral completion input.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature *float64
	TopP        *float64
	Stop        []string
}

// CompletionResult is the provider-neutral completion output.
type CompletionResult struct {
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
}

// Completer is implemented by each LLM provider.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
}

// LLMCompletion calls a chat model. Models whose name starts with "claude" go to
// Anthropic, everything else to OpenAI.
type LLMCompletion struct {
	openAI    Completer
	anthropic Completer
	timeout   time.Duration
}

// NewLLMCompletionParams holds parameters for NewLLMCompletion.
type NewLLMCompletionParams struct {
	OpenAI    Completer
	Anthropic Completer
	// Timeout bounds one provider call. Zero means no extra bound beyond the caller's context.
	Timeout time.Duration
}

// NewLLMCompletion creates the LLM completion tool. A nil provider makes its models fail
// with a handled error.
func NewLLMCompletion(params NewLLMCompletionParams) *LLMCompletion {
	return &LLMCompletion{
		openAI:    params.OpenAI,
		anthropic: params.Anthropic,
		timeout:   params.Timeout,
	}
}

func (l *LLMCompletion) Definition() catalogue.Definition {
	return catalogue.Definition{
		Name:        LLMCompletionName,
		Description: "Calls a large language model to get a completion for the given messages. Models starting with 'claude' use Anthropic; others use OpenAI.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"model": map[string]any{
					"type":        "string",
					"description": "Model identifier, e.g. 'gpt-4o' or 'claude-3-5-haiku-latest'.",
				},
				"messages": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"role":    map[string]any{"type": "string", "enum": []any{"system", "user", "assistant"}},
							"content": map[string]any{"type": "string"},
						},
						"required": []any{"role", "content"},
					},
				},
				"max_tokens":  map[string]any{"type": "integer"},
				"temperature": map[string]any{"type": "number", "minimum": 0.0, "maximum": 2.0},
				"top_p":       map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
				"stop":        map[string]any{"type": []any{"string", "array"}, "items": map[string]any{"type": "string"}},
			},
			"required": []any{"model", "messages"},
		},
	}
}

// Execute never returns an error; provider failures are reported as handled error results.
func (l *LLMCompletion) Execute(ctx context.Context, arguments, _ map[string]any) (map[string]any, error) {
	req, err := parseCompletionRequest(arguments)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	provider, completer := l.pick(req.Model)
	if completer == nil {
		return errorResult(fmt.Sprintf("LLM provider %s is not configured for model %q.", provider, req.Model)), nil
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	slog.Debug(fmt.Sprintf("%s - completion provider=%s model=%s messages=%d", logPrefix, provider, req.Model, len(req.Messages)))
	res, err := completer.Complete(ctx, req)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - completion failed provider=%s model=%s: %v", logPrefix, provider, req.Model, err))
		return errorResult(fmt.Sprintf("LLM execution failed: %v", err)), nil
	}

	return map[string]any{
		"status": "success",
		"result": map[string]any{
			"provider":      res.Provider,
			"model":         res.Model,
			"content":       res.Content,
			"finish_reason": res.FinishReason,
			"usage": map[string]any{
				"input_tokens":  res.InputTokens,
				"output_tokens": res.OutputTokens,
			},
		},
	}, nil
}

func (l *LLMCompletion) pick(model string) (string, Completer) {
	if strings.HasPrefix(strings.ToLower(model), "claude") {
		return "anthropic", l.anthropic
	}
	return "openai", l.openAI
}

func parseCompletionRequest(args map[string]any) (CompletionRequest, error) {
	model, _ := args["model"].(string)
	rawMessages, _ := args["messages"].([]any)
	if strings.TrimSpace(model) == "" || len(rawMessages) == 0 {
		return CompletionRequest{}, errors.New("Missing required parameters: 'model' and 'messages'.")
	}

	req := CompletionRequest{Model: model, MaxTokens: defaultMaxTokens}
	for i, raw := range rawMessages {
		m, ok := raw.(map[string]any)
		if !ok {
			return CompletionRequest{}, fmt.Errorf("messages[%d] must be an object", i)
		}
		role, _ := m["role"].(string)
		content, _ := m["content"].(string)
		switch role {
		case "system", "user", "assistant":
		default:
			return CompletionRequest{}, fmt.Errorf("messages[%d] has unsupported role %q", i, role)
		}
		req.Messages = append(req.Messages, ChatMessage{Role: role, Content: content})
	}

	if v, ok := number(args["max_tokens"]); ok && v > 0 {
		req.MaxTokens = int(v)
	}
	if v, ok := number(args["temperature"]); ok {
		req.Temperature = &v
	}
	if v, ok := number(args["top_p"]); ok {
		req.TopP = &v
	}
	switch stop := args["stop"].(type) {
	case string:
		req.Stop = []string{stop}
	case []any:
		for _, s := range stop {
			if str, ok := s.(string); ok {
				req.Stop = append(req.Stop, str)
			}
		}
	}
	return req, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func errorResult(msg string) map[string]any {
	return map[string]any{"status": "error", "error_message": msg}
}
