package tools

import (
	"fmt"
	"time"

	"github.com/opspawn/agentkit/pkg/catalogue"
)

// BuiltinParams configures RegisterBuiltins.
type BuiltinParams struct {
	OpenAIAPIKey    string
	AnthropicAPIKey string
	LLMTimeout      time.Duration
}

// RegisterBuiltins registers echo and llm_completion as local tools.
func RegisterBuiltins(cat *catalogue.Catalogue, params BuiltinParams) error {
	llmParams := NewLLMCompletionParams{Timeout: params.LLMTimeout}
	// typed nil pointers must not leak into the Completer interfaces
	if c := NewOpenAICompleter(params.OpenAIAPIKey); c != nil {
		llmParams.OpenAI = c
	}
	if c := NewAnthropicCompleter(params.AnthropicAPIKey); c != nil {
		llmParams.Anthropic = c
	}

	for _, tool := range []catalogue.Tool{NewEcho(), NewLLMCompletion(llmParams)} {
		if err := cat.RegisterLocal(tool); err != nil {
			return fmt.Errorf("%s - register builtin %s: %w", logPrefix, tool.Definition().Name, err)
		}
	}
	return nil
}
