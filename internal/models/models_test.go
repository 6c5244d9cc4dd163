package models

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"
)

func TestTokenUsageTotalIsDerived(t *testing.T) {
	u := NewTokenUsage(120, 30)
	if u.TotalTokens() != 150 {
		t.Fatalf("expected total 150, got %d", u.TotalTokens())
	}

	var decoded TokenUsage
	if err := json.Unmarshal([]byte(`{"prompt_tokens":10,"completion_tokens":5,"total_tokens":999}`), &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.TotalTokens() != 15 {
		t.Fatalf("incoming total must be ignored, got %d", decoded.TotalTokens())
	}

	data, err := json.Marshal(decoded)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}` {
		t.Fatalf("unexpected encoding %s", data)
	}
}

func TestParameterRange(t *testing.T) {
	r := NewRange(0.0, 2.0, 0.7)
	tests := []struct {
		in, want float64
		contains bool
	}{
		{-1, 0, false},
		{0, 0, true},
		{1.3, 1.3, true},
		{2, 2, true},
		{5, 2, false},
	}
	for _, tt := range tests {
		if got := r.Clamp(tt.in); got != tt.want {
			t.Fatalf("Clamp(%v) = %v, want %v", tt.in, got, tt.want)
		}
		if got := r.Contains(tt.in); got != tt.contains {
			t.Fatalf("Contains(%v) = %v, want %v", tt.in, got, tt.contains)
		}
	}

	if err := (ParameterRange[int]{Min: 5, Max: 1, Default: 3}).Validate(); err == nil {
		t.Fatal("inverted range must fail validation")
	}
	defer func() {
		if recover() == nil {
			t.Fatal("NewRange with default outside bounds must panic")
		}
	}()
	NewRange(1, 10, 20)
}

func TestGenerationParamsCloneDoesNotAlias(t *testing.T) {
	p := GenerationParams{Temperature: Float(0.5), StopSequences: []string{"END"}, Seed: Int64(7)}
	c := p.Clone()
	*c.Temperature = 1.5
	c.StopSequences[0] = "STOP"
	*c.Seed = 8

	if *p.Temperature != 0.5 || p.StopSequences[0] != "END" || *p.Seed != 7 {
		t.Fatalf("clone aliases the original: %+v", p)
	}
}

func TestModelDescriptorEstimateCost(t *testing.T) {
	d := ModelDescriptor{InputCostPer1K: Float(0.01), OutputCostPer1K: Float(0.03)}
	cost, ok := d.EstimateCost(1000, 500)
	if !ok || math.Abs(cost-0.025) > 1e-12 {
		t.Fatalf("expected 0.025, got %v %v", cost, ok)
	}
	if _, ok := (ModelDescriptor{InputCostPer1K: Float(0.01)}).EstimateCost(1, 1); ok {
		t.Fatal("missing output price must report unknown cost")
	}
}

func TestCapabilitiesHas(t *testing.T) {
	caps := ModelCapabilities{Streaming: true, Vision: true, ContentFormats: []string{"text", "image"}}
	for name, want := range map[string]bool{
		"streaming":        true,
		"vision":           true,
		"function_calling": false,
		"IMAGE":            true,
		"audio":            false,
	} {
		if got := caps.Has(name); got != want {
			t.Fatalf("Has(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestEnumParsing(t *testing.T) {
	for in, want := range map[string]ProviderType{"OpenAI": ProviderOpenAI, "claude": ProviderAnthropic, " local ": ProviderOllama} {
		got, err := ParseProviderType(in)
		if err != nil || got != want {
			t.Fatalf("ParseProviderType(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseProviderType("gemini"); err == nil {
		t.Fatal("unknown provider must fail")
	}

	var criteria SelectionCriteria
	body := `{"provider":"anthropic","priority":"quality","use_case":"code-generation","min_context_length":8000}`
	if err := json.Unmarshal([]byte(body), &criteria); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if *criteria.Provider != ProviderAnthropic || criteria.Priority != PriorityQuality || criteria.UseCase != UseCaseCodeGeneration {
		t.Fatalf("unexpected criteria %+v", criteria)
	}
	if err := json.Unmarshal([]byte(`{"priority":"fastest"}`), &criteria); err == nil {
		t.Fatal("unknown priority must fail")
	}
}

func TestGenerationResponseCarriesResponseTime(t *testing.T) {
	resp := GenerationResponse{Content: "x", Model: "m", ResponseTime: 1234 * time.Millisecond}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `"response_time_ms":1234`) || strings.Contains(string(data), "ResponseTime") {
		t.Fatalf("unexpected encoding %s", data)
	}

	var decoded GenerationResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.ResponseTime != resp.ResponseTime || decoded.Content != "x" || decoded.Model != "m" {
		t.Fatalf("unexpected decoded response %+v", decoded)
	}
}
