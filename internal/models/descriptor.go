package models

import (
	"fmt"
	"slices"
	"strings"
)

// Capability names accepted in SelectionCriteria.RequiredCapabilities.
// Any other name is matched against ModelCapabilities.ContentFormats.
const (
	CapabilityStreaming       = "streaming"
	CapabilityFunctionCalling = "function_calling"
	CapabilityVision          = "vision"
	CapabilitySystemPrompt    = "system_prompt"
)

// ModelCapabilities describes what a model or backend supports.
type ModelCapabilities struct {
	Streaming       bool     `json:"streaming"`
	FunctionCalling bool     `json:"function_calling"`
	Vision          bool     `json:"vision"`
	SystemPrompt    bool     `json:"system_prompt"`
	MaxOutputTokens int      `json:"max_output_tokens"`
	ContentFormats  []string `json:"content_formats,omitempty"`
}

// Has reports whether the named capability is supported.
func (c ModelCapabilities) Has(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case CapabilityStreaming:
		return c.Streaming
	case CapabilityFunctionCalling, "function-calling", "functions":
		return c.FunctionCalling
	case CapabilityVision:
		return c.Vision
	case CapabilitySystemPrompt, "system-prompt":
		return c.SystemPrompt
	}
	return slices.ContainsFunc(c.ContentFormats, func(f string) bool {
		return strings.EqualFold(f, name)
	})
}

// Number is the set of parameter value types a range can constrain.
type Number interface {
	~int | ~int64 | ~float64
}

// ParameterRange bounds a single tunable parameter. Min <= Default <= Max.
type ParameterRange[T Number] struct {
	Min     T  `json:"min"`
	Max     T  `json:"max"`
	Default T  `json:"default"`
	Step    *T `json:"step,omitempty"`
}

// NewRange builds a range and panics if the bounds are inconsistent; it is
// meant for static catalog data.
func NewRange[T Number](min, max, def T) *ParameterRange[T] {
	r := &ParameterRange[T]{Min: min, Max: max, Default: def}
	if err := r.Validate(); err != nil {
		panic(err)
	}
	return r
}

// Validate checks min <= default <= max.
func (r ParameterRange[T]) Validate() error {
	if r.Min > r.Max || r.Default < r.Min || r.Default > r.Max {
		return fmt.Errorf("invalid parameter range: min=%v default=%v max=%v", r.Min, r.Default, r.Max)
	}
	return nil
}

// Contains reports whether v lies within [Min, Max].
func (r ParameterRange[T]) Contains(v T) bool {
	return v >= r.Min && v <= r.Max
}

// Clamp coerces v to the nearest bound.
func (r ParameterRange[T]) Clamp(v T) T {
	return min(max(v, r.Min), r.Max)
}

// ParameterConstraints holds the optional range for every tunable parameter.
type ParameterConstraints struct {
	Temperature          *ParameterRange[float64] `json:"temperature,omitempty"`
	MaxTokens            *ParameterRange[int]     `json:"max_tokens,omitempty"`
	TopP                 *ParameterRange[float64] `json:"top_p,omitempty"`
	TopK                 *ParameterRange[int]     `json:"top_k,omitempty"`
	FrequencyPenalty     *ParameterRange[float64] `json:"frequency_penalty,omitempty"`
	PresencePenalty      *ParameterRange[float64] `json:"presence_penalty,omitempty"`
	AllowedStopSequences []string                 `json:"allowed_stop_sequences,omitempty"`
}

// ModelDescriptor is a registry entry, independent of live connectivity.
type ModelDescriptor struct {
	ID              string               `json:"id"`
	DisplayName     string               `json:"display_name"`
	Provider        ProviderType         `json:"provider"`
	ContextLength   int                  `json:"context_length"`
	InputCostPer1K  *float64             `json:"input_cost_per_1k,omitempty"`
	OutputCostPer1K *float64             `json:"output_cost_per_1k,omitempty"`
	Capabilities    ModelCapabilities    `json:"capabilities"`
	DefaultParams   GenerationParams     `json:"default_params"`
	Constraints     ParameterConstraints `json:"constraints"`
	Available       bool                 `json:"available"`
	Recommended     bool                 `json:"recommended"`
}

// EstimateCost applies the linear per-1k pricing. ok is false when either
// price is unknown.
func (d ModelDescriptor) EstimateCost(promptTokens, completionTokens int) (cost float64, ok bool) {
	if d.InputCostPer1K == nil || d.OutputCostPer1K == nil {
		return 0, false
	}
	return float64(promptTokens)/1000*(*d.InputCostPer1K) +
		float64(completionTokens)/1000*(*d.OutputCostPer1K), true
}

// PerformancePriority steers model scoring.
type PerformancePriority int

const (
	PriorityBalanced PerformancePriority = iota
	PrioritySpeed
	PriorityQuality
	PriorityCost
)

func (p PerformancePriority) String() string {
	switch p {
	case PrioritySpeed:
		return "speed"
	case PriorityQuality:
		return "quality"
	case PriorityCost:
		return "cost"
	default:
		return "balanced"
	}
}

// ParsePerformancePriority parses a priority name; empty means balanced.
func ParsePerformancePriority(s string) (PerformancePriority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "balanced":
		return PriorityBalanced, nil
	case "speed", "fast":
		return PrioritySpeed, nil
	case "quality":
		return PriorityQuality, nil
	case "cost", "cheap":
		return PriorityCost, nil
	default:
		return 0, fmt.Errorf("unknown performance priority: %q", s)
	}
}

func (p PerformancePriority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *PerformancePriority) UnmarshalText(text []byte) error {
	v, err := ParsePerformancePriority(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// UseCase names the workload a model is being selected for.
type UseCase int

const (
	UseCaseGeneralChat UseCase = iota
	UseCaseCaseStudyGeneration
	UseCaseQuestionGeneration
	UseCaseContentAnalysis
	UseCaseSummary
	UseCaseCodeGeneration
	UseCaseCreativeWriting
)

var useCaseNames = map[UseCase]string{
	UseCaseGeneralChat:         "general_chat",
	UseCaseCaseStudyGeneration: "case_study_generation",
	UseCaseQuestionGeneration:  "question_generation",
	UseCaseContentAnalysis:     "content_analysis",
	UseCaseSummary:             "summary",
	UseCaseCodeGeneration:      "code_generation",
	UseCaseCreativeWriting:     "creative_writing",
}

func (u UseCase) String() string {
	if name, ok := useCaseNames[u]; ok {
		return name
	}
	return "general_chat"
}

// ParseUseCase parses a use-case name; empty means general chat.
func ParseUseCase(s string) (UseCase, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if normalized == "" {
		return UseCaseGeneralChat, nil
	}
	for u, name := range useCaseNames {
		if name == normalized {
			return u, nil
		}
	}
	return 0, fmt.Errorf("unknown use case: %q", s)
}

func (u UseCase) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

func (u *UseCase) UnmarshalText(text []byte) error {
	v, err := ParseUseCase(string(text))
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// SelectionCriteria is the declarative input to model selection.
type SelectionCriteria struct {
	Provider             *ProviderType       `json:"provider,omitempty"`
	MaxCostPerRequest    *float64            `json:"max_cost_per_request,omitempty"`
	MinContextLength     int                 `json:"min_context_length,omitempty"`
	RequiredCapabilities []string            `json:"required_capabilities,omitempty"`
	Priority             PerformancePriority `json:"priority"`
	UseCase              UseCase             `json:"use_case"`
}
