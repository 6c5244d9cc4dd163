package registry

import (
	"fmt"
	"slices"

	"genprovider/internal/models"
)

// ConstraintError reports a parameter outside the model's allowed range.
type ConstraintError struct {
	Model     string
	Parameter string
	Value     any
	Min       any
	Max       any
}

func (e *ConstraintError) Error() string {
	if e.Min == nil && e.Max == nil {
		return fmt.Sprintf("model %s: %s value %v is not allowed", e.Model, e.Parameter, e.Value)
	}
	return fmt.Sprintf("model %s: %s=%v outside [%v, %v]", e.Model, e.Parameter, e.Value, e.Min, e.Max)
}

// ValidateParameters checks every parameter that is both set in params and
// constrained for the model. Unset parameters are not checked.
func (r *Registry) ValidateParameters(modelID string, params models.GenerationParams) error {
	d, ok := r.Get(modelID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}
	return Validate(d, params)
}

// AdjustParameters clamps every constrained parameter into range and drops
// stop sequences outside the allow-list. The input is not modified.
func (r *Registry) AdjustParameters(modelID string, params models.GenerationParams) (models.GenerationParams, error) {
	d, ok := r.Get(modelID)
	if !ok {
		return params, fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}
	return Adjust(d, params), nil
}

// Validate checks params against the constraints of d.
func Validate(d models.ModelDescriptor, params models.GenerationParams) error {
	c := d.Constraints
	if err := check(d.ID, "temperature", c.Temperature, params.Temperature); err != nil {
		return err
	}
	if err := check(d.ID, "max_tokens", c.MaxTokens, params.MaxTokens); err != nil {
		return err
	}
	if err := check(d.ID, "top_p", c.TopP, params.TopP); err != nil {
		return err
	}
	if err := check(d.ID, "top_k", c.TopK, params.TopK); err != nil {
		return err
	}
	if err := check(d.ID, "frequency_penalty", c.FrequencyPenalty, params.FrequencyPenalty); err != nil {
		return err
	}
	if err := check(d.ID, "presence_penalty", c.PresencePenalty, params.PresencePenalty); err != nil {
		return err
	}
	if c.AllowedStopSequences != nil {
		for _, stop := range params.StopSequences {
			if !slices.Contains(c.AllowedStopSequences, stop) {
				return &ConstraintError{Model: d.ID, Parameter: "stop_sequences", Value: stop}
			}
		}
	}
	return nil
}

func check[T models.Number](model, name string, rng *models.ParameterRange[T], value *T) error {
	if rng == nil || value == nil || rng.Contains(*value) {
		return nil
	}
	return &ConstraintError{Model: model, Parameter: name, Value: *value, Min: rng.Min, Max: rng.Max}
}

// Adjust clamps params into the constraints of d. Adjust is idempotent.
func Adjust(d models.ModelDescriptor, params models.GenerationParams) models.GenerationParams {
	out := params.Clone()
	c := d.Constraints
	clamp(c.Temperature, out.Temperature)
	clamp(c.MaxTokens, out.MaxTokens)
	clamp(c.TopP, out.TopP)
	clamp(c.TopK, out.TopK)
	clamp(c.FrequencyPenalty, out.FrequencyPenalty)
	clamp(c.PresencePenalty, out.PresencePenalty)

	if c.AllowedStopSequences != nil && out.StopSequences != nil {
		out.StopSequences = slices.DeleteFunc(out.StopSequences, func(stop string) bool {
			return !slices.Contains(c.AllowedStopSequences, stop)
		})
	}
	return out
}

func clamp[T models.Number](rng *models.ParameterRange[T], value *T) {
	if rng == nil || value == nil {
		return
	}
	*value = rng.Clamp(*value)
}
