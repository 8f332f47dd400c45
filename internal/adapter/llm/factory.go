package llm

import (
	"fmt"
	"log"

	"github.com/xiaot623/gogo/researchbot/internal/config"
	"github.com/xiaot623/gogo/researchbot/internal/tools"
)

const defaultGroqModel = "qwen/qwen3-32b"

// NewModel creates the model selected by the configuration.
// If GOGO_MODE=MOCK, returns a MockModel regardless of provider.
func NewModel(cfg *config.Config, specs []tools.Spec) (Model, error) {
	if cfg.IsMock() {
		log.Println("GOGO_MODE=MOCK detected, using mock model")
		return NewMockModel(specs), nil
	}

	switch cfg.LLM.Provider {
	case "", "groq", "openai":
		return NewOpenAIModel(cfg.LLM, specs), nil
	case "anthropic":
		llmCfg := cfg.LLM
		if llmCfg.Model == "" || llmCfg.Model == defaultGroqModel {
			llmCfg.Model = DefaultAnthropicModel
		}
		return NewAnthropicModel(llmCfg, specs), nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.LLM.Provider)
	}
}
