// Package llm adapts the supported chat model providers to the single
// completion call the extraction agents make.
package llm

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docrouter/internal/config"
	"github.com/sells-group/docrouter/internal/model"
	"github.com/sells-group/docrouter/internal/resilience"
	"github.com/sells-group/docrouter/pkg/anthropic"
	"github.com/sells-group/docrouter/pkg/azureopenai"
)

// Provider names.
const (
	ProviderAnthropic   = "anthropic"
	ProviderAzureOpenAI = "azure_openai"
)

// Request is a single-turn completion request.
type Request struct {
	// Agent names the caller for cost attribution and retries.
	Agent string
	// System holds instructions and document text shared by every agent
	// of a document; providers that support prompt caching cache it.
	System      string
	Prompt      string
	MaxTokens   int64
	Temperature float64
	// JSON asks for a JSON object response where the provider supports it.
	JSON bool
}

// Response is the model output.
type Response struct {
	Text  string
	Model string
	Usage model.TokenUsage
}

// Client completes prompts.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Provider() string
}

// New builds the client for the configured provider. guard may be nil.
func New(cfg *config.Config, guard *resilience.Guard) (Client, error) {
	switch cfg.LLM.Provider {
	case ProviderAnthropic, "":
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("llm: anthropic.key is required")
		}
		return NewAnthropic(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model, guard), nil
	case ProviderAzureOpenAI:
		c, err := azureopenai.NewClient(cfg.AzureOpenAI.Endpoint, cfg.AzureOpenAI.Key, cfg.AzureOpenAI.APIVersion, cfg.AzureOpenAI.Deployment)
		if err != nil {
			return nil, eris.Wrap(err, "llm: azure openai")
		}
		return NewAzureOpenAI(c, cfg.AzureOpenAI.Deployment, guard), nil
	default:
		return nil, eris.Errorf("llm: unknown provider %q", cfg.LLM.Provider)
	}
}
