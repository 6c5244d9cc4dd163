package registry

import "genprovider/internal/models"

type seedModel struct {
	id, name      string
	provider      models.ProviderType
	context       int
	maxOutput     int
	input, output float64
	vision        bool
	functions     bool
	systemPrompt  bool
	recommended   bool
	available     bool
}

var seedModels = []seedModel{
	{"gpt-4o", "GPT-4o", models.ProviderOpenAI, 128000, 16384, 0.0025, 0.01, true, true, true, true, true},
	{"gpt-4o-mini", "GPT-4o mini", models.ProviderOpenAI, 128000, 16384, 0.00015, 0.0006, true, true, true, true, true},
	{"gpt-4-turbo", "GPT-4 Turbo", models.ProviderOpenAI, 128000, 4096, 0.01, 0.03, true, true, true, false, true},
	{"gpt-3.5-turbo", "GPT-3.5 Turbo", models.ProviderOpenAI, 16385, 4096, 0.0005, 0.0015, false, true, true, false, true},
	{"o1-mini", "o1 mini", models.ProviderOpenAI, 128000, 65536, 0.003, 0.012, false, false, false, false, true},

	{"claude-3-opus", "Claude 3 Opus", models.ProviderAnthropic, 200000, 4096, 0.015, 0.075, true, true, true, true, true},
	{"claude-3-sonnet", "Claude 3 Sonnet", models.ProviderAnthropic, 200000, 4096, 0.003, 0.015, true, true, true, false, true},
	{"claude-3-haiku", "Claude 3 Haiku", models.ProviderAnthropic, 200000, 4096, 0.00025, 0.00125, true, true, true, false, true},
	{"claude-3-5-sonnet", "Claude 3.5 Sonnet", models.ProviderAnthropic, 200000, 8192, 0.003, 0.015, true, true, true, true, true},

	// Local models start unavailable until the runtime is probed.
	{"llama3.1:8b", "Llama 3.1 8B", models.ProviderOllama, 8192, 4096, 0, 0, false, false, true, true, false},
	{"mistral:7b", "Mistral 7B", models.ProviderOllama, 32768, 4096, 0, 0, false, false, true, false, false},
	{"codellama:13b", "Code Llama 13B", models.ProviderOllama, 16384, 4096, 0, 0, false, false, true, false, false},
	{"qwen2.5-coder:7b", "Qwen2.5 Coder 7B", models.ProviderOllama, 32768, 4096, 0, 0, false, false, true, true, false},
}

// SeedCatalog returns the built-in descriptors.
func SeedCatalog() []models.ModelDescriptor {
	out := make([]models.ModelDescriptor, 0, len(seedModels))
	for _, m := range seedModels {
		out = append(out, m.descriptor())
	}
	return out
}

func (m seedModel) descriptor() models.ModelDescriptor {
	formats := []string{"text"}
	if m.vision {
		formats = append(formats, "image")
	}

	constraints := constraintsFor(m.provider, m.maxOutput)
	if m.id == "o1-mini" {
		// Reasoning models only accept the default temperature.
		constraints.Temperature = models.NewRange(1.0, 1.0, 1.0)
	}

	return models.ModelDescriptor{
		ID:              m.id,
		DisplayName:     m.name,
		Provider:        m.provider,
		ContextLength:   m.context,
		InputCostPer1K:  models.Float(m.input),
		OutputCostPer1K: models.Float(m.output),
		Capabilities: models.ModelCapabilities{
			Streaming:       true,
			FunctionCalling: m.functions,
			Vision:          m.vision,
			SystemPrompt:    m.systemPrompt,
			MaxOutputTokens: m.maxOutput,
			ContentFormats:  formats,
		},
		DefaultParams: defaultsFrom(constraints),
		Constraints:   constraints,
		Available:     m.available,
		Recommended:   m.recommended,
	}
}

func constraintsFor(provider models.ProviderType, maxOutput int) models.ParameterConstraints {
	maxTokens := models.NewRange(1, maxOutput, min(4096, maxOutput))
	switch provider {
	case models.ProviderAnthropic:
		return models.ParameterConstraints{
			Temperature: models.NewRange(0.0, 1.0, 0.7),
			MaxTokens:   maxTokens,
			TopP:        models.NewRange(0.0, 1.0, 1.0),
			TopK:        models.NewRange(1, 500, 40),
		}
	case models.ProviderOllama:
		return models.ParameterConstraints{
			Temperature:      models.NewRange(0.0, 2.0, 0.8),
			MaxTokens:        models.NewRange(1, maxOutput, min(2048, maxOutput)),
			TopP:             models.NewRange(0.0, 1.0, 0.9),
			TopK:             models.NewRange(1, 100, 40),
			FrequencyPenalty: models.NewRange(-2.0, 2.0, 0.0),
			PresencePenalty:  models.NewRange(-2.0, 2.0, 0.0),
		}
	default:
		return models.ParameterConstraints{
			Temperature:      models.NewRange(0.0, 2.0, 0.7),
			MaxTokens:        maxTokens,
			TopP:             models.NewRange(0.0, 1.0, 1.0),
			FrequencyPenalty: models.NewRange(-2.0, 2.0, 0.0),
			PresencePenalty:  models.NewRange(-2.0, 2.0, 0.0),
		}
	}
}

func defaultsFrom(c models.ParameterConstraints) models.GenerationParams {
	var p models.GenerationParams
	if c.Temperature != nil {
		p.Temperature = models.Float(c.Temperature.Default)
	}
	if c.MaxTokens != nil {
		p.MaxTokens = models.Int(c.MaxTokens.Default)
	}
	if c.TopP != nil {
		p.TopP = models.Float(c.TopP.Default)
	}
	return p
}

// BasicDescriptor describes a model that is only known by id, such as one
// named in configuration but absent from the seed catalog. Its cost is
// unknown and it carries no constraints.
func BasicDescriptor(provider models.ProviderType, id string) models.ModelDescriptor {
	return models.ModelDescriptor{
		ID:            id,
		DisplayName:   id,
		Provider:      provider,
		ContextLength: 4096,
		Capabilities: models.ModelCapabilities{
			Streaming:       true,
			SystemPrompt:    true,
			MaxOutputTokens: 4096,
			ContentFormats:  []string{"text"},
		},
		Available: provider != models.ProviderOllama,
	}
}

// SeedUseCases returns the ordered preference list per use case.
func SeedUseCases() map[models.UseCase][]string {
	return map[models.UseCase][]string{
		models.UseCaseGeneralChat:         {"gpt-4o-mini", "claude-3-5-sonnet", "llama3.1:8b"},
		models.UseCaseCaseStudyGeneration: {"claude-3-5-sonnet", "gpt-4o", "claude-3-opus"},
		models.UseCaseQuestionGeneration:  {"gpt-4o-mini", "claude-3-haiku", "llama3.1:8b"},
		models.UseCaseContentAnalysis:     {"claude-3-5-sonnet", "gpt-4o", "claude-3-opus"},
		models.UseCaseSummary:             {"claude-3-haiku", "gpt-4o-mini", "mistral:7b"},
		models.UseCaseCodeGeneration:      {"claude-3-5-sonnet", "gpt-4o", "qwen2.5-coder:7b", "codellama:13b"},
		models.UseCaseCreativeWriting:     {"claude-3-opus", "gpt-4o", "claude-3-5-sonnet"},
	}
}
