package models

import (
	"encoding/json"
	"time"
)

// GenerationParams carries tunable sampling parameters. A nil field means
// "use the backend default".
type GenerationParams struct {
	Temperature      *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	TopP             *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	TopK             *int     `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty" yaml:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty" yaml:"presence_penalty,omitempty"`
	StopSequences    []string `json:"stop_sequences,omitempty" yaml:"stop_sequences,omitempty"`
	Seed             *int64   `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// Clone returns a deep copy so callers can adjust parameters without aliasing.
func (p GenerationParams) Clone() GenerationParams {
	out := GenerationParams{
		Temperature:      clonePtr(p.Temperature),
		MaxTokens:        clonePtr(p.MaxTokens),
		TopP:             clonePtr(p.TopP),
		TopK:             clonePtr(p.TopK),
		FrequencyPenalty: clonePtr(p.FrequencyPenalty),
		PresencePenalty:  clonePtr(p.PresencePenalty),
		Seed:             clonePtr(p.Seed),
	}
	if p.StopSequences != nil {
		out.StopSequences = append([]string(nil), p.StopSequences...)
	}
	return out
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// GenerationRequest is the canonical generation call.
type GenerationRequest struct {
	Messages []ChatMessage    `json:"messages"`
	Model    string           `json:"model"`
	Params   GenerationParams `json:"params"`
	Stream   bool             `json:"stream"`
	Metadata map[string]any   `json:"metadata,omitempty"`
}

// TokenUsage records token accounting. The total is always derived.
type TokenUsage struct {
	promptTokens     int
	completionTokens int
}

// NewTokenUsage builds a usage record whose total is prompt+completion.
func NewTokenUsage(prompt, completion int) TokenUsage {
	return TokenUsage{promptTokens: prompt, completionTokens: completion}
}

func (u TokenUsage) PromptTokens() int     { return u.promptTokens }
func (u TokenUsage) CompletionTokens() int { return u.completionTokens }
func (u TokenUsage) TotalTokens() int      { return u.promptTokens + u.completionTokens }

type tokenUsageJSON struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u TokenUsage) MarshalJSON() ([]byte, error) {
	return json.Marshal(tokenUsageJSON{
		PromptTokens:     u.promptTokens,
		CompletionTokens: u.completionTokens,
		TotalTokens:      u.TotalTokens(),
	})
}

// UnmarshalJSON ignores any incoming total_tokens and recomputes it.
func (u *TokenUsage) UnmarshalJSON(data []byte) error {
	var raw tokenUsageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = NewTokenUsage(raw.PromptTokens, raw.CompletionTokens)
	return nil
}

// GenerationResponse is the normalized result of a non-streaming call.
type GenerationResponse struct {
	Content      string         `json:"content"`
	Model        string         `json:"model"`
	Usage        *TokenUsage    `json:"usage,omitempty"`
	FinishReason string         `json:"finish_reason,omitempty"`
	ResponseTime time.Duration  `json:"-"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ResponseTimeMillis reports the elapsed wall time of the call in milliseconds.
func (r GenerationResponse) ResponseTimeMillis() int64 {
	return r.ResponseTime.Milliseconds()
}

type generationResponseJSON struct {
	generationResponseFields
	ResponseTimeMS int64 `json:"response_time_ms"`
}

type generationResponseFields GenerationResponse

// MarshalJSON renders ResponseTime as whole milliseconds.
func (r GenerationResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(generationResponseJSON{
		generationResponseFields: generationResponseFields(r),
		ResponseTimeMS:           r.ResponseTimeMillis(),
	})
}

func (r *GenerationResponse) UnmarshalJSON(data []byte) error {
	var raw generationResponseJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = GenerationResponse(raw.generationResponseFields)
	r.ResponseTime = time.Duration(raw.ResponseTimeMS) * time.Millisecond
	return nil
}

// StreamEventKind tags a StreamEvent.
type StreamEventKind int

const (
	EventChunk StreamEventKind = iota
	EventFinished
)

func (k StreamEventKind) String() string {
	if k == EventFinished {
		return "finished"
	}
	return "chunk"
}

// StreamEvent is one element of a stream: zero or more chunks followed by
// exactly one finished event. FinishReason and Usage are only set on the
// finished event, and only when the backend reported them.
type StreamEvent struct {
	Kind         StreamEventKind
	Delta        string
	FinishReason string
	Usage        *TokenUsage
}

// ChunkEvent creates a partial-output event.
func ChunkEvent(delta string) StreamEvent {
	return StreamEvent{Kind: EventChunk, Delta: delta}
}

// FinishedEvent creates the terminal event.
func FinishedEvent(reason string, usage *TokenUsage) StreamEvent {
	return StreamEvent{Kind: EventFinished, FinishReason: reason, Usage: usage}
}

// IsFinished reports whether e terminates its stream.
func (e StreamEvent) IsFinished() bool {
	return e.Kind == EventFinished
}
