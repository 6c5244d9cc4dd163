package registry

import (
	"slices"
	"strings"

	"genprovider/internal/models"
)

// Reference token counts used to compare per-request cost across models.
const (
	ReferenceInputTokens  = 1000
	ReferenceOutputTokens = 500
)

const (
	scoreAvailable     = 10
	scoreRecommended   = 5
	scorePriorityMatch = 8
	scoreBalanced      = 3
	scoreLongContext   = 5
	scoreCodeMatch     = 8
	longContextMinimum = 8000
	costBonusMaximum   = 8.0
	costBonusSteepness = 100.0
)

var (
	fastPatterns    = []string{"mini", "haiku", "3.5-turbo", "flash", "instant", ":7b", ":8b"}
	highEndPatterns = []string{"opus", "gpt-4", "sonnet", "o1", ":70b"}
	codePatterns    = []string{"code", "coder"}
)

// SelectBest filters the available models by the hard criteria and returns
// the highest scoring one. Candidates are ranked in id order so ties always
// resolve to the lexicographically first id.
func (r *Registry) SelectBest(criteria models.SelectionCriteria) (models.ModelDescriptor, error) {
	candidates := r.Candidates(criteria)
	if len(candidates) == 0 {
		return models.ModelDescriptor{}, ErrNoMatch
	}

	best := candidates[0]
	bestScore := Score(best, criteria)
	for _, d := range candidates[1:] {
		if s := Score(d, criteria); s > bestScore {
			best, bestScore = d, s
		}
	}
	return best, nil
}

// Candidates returns the available models passing every hard filter,
// sorted by id.
func (r *Registry) Candidates(criteria models.SelectionCriteria) []models.ModelDescriptor {
	var out []models.ModelDescriptor
	for _, d := range r.List(nil) {
		if criteria.Provider != nil && d.Provider != *criteria.Provider {
			continue
		}
		if d.ContextLength < criteria.MinContextLength {
			continue
		}
		if !hasAll(d.Capabilities, criteria.RequiredCapabilities) {
			continue
		}
		if criteria.MaxCostPerRequest != nil {
			cost, ok := d.EstimateCost(ReferenceInputTokens, ReferenceOutputTokens)
			if !ok || cost > *criteria.MaxCostPerRequest {
				continue
			}
		}
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b models.ModelDescriptor) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func hasAll(caps models.ModelCapabilities, required []string) bool {
	for _, name := range required {
		if !caps.Has(name) {
			return false
		}
	}
	return true
}

// Score is the additive ranking used by SelectBest.
func Score(d models.ModelDescriptor, criteria models.SelectionCriteria) float64 {
	var score float64
	if d.Available {
		score += scoreAvailable
	}
	if d.Recommended {
		score += scoreRecommended
	}

	id := strings.ToLower(d.ID)
	switch criteria.Priority {
	case models.PrioritySpeed:
		if matchesAny(id, fastPatterns) {
			score += scorePriorityMatch
		}
	case models.PriorityQuality:
		if matchesAny(id, highEndPatterns) && !strings.Contains(id, "mini") {
			score += scorePriorityMatch
		}
	case models.PriorityCost:
		if cost, ok := d.EstimateCost(ReferenceInputTokens, ReferenceOutputTokens); ok {
			score += costBonusMaximum / (1 + costBonusSteepness*cost)
		}
	default:
		score += scoreBalanced
	}

	switch criteria.UseCase {
	case models.UseCaseCaseStudyGeneration:
		if d.ContextLength >= longContextMinimum {
			score += scoreLongContext
		}
	case models.UseCaseCodeGeneration:
		if matchesAny(id, codePatterns) {
			score += scoreCodeMatch
		}
	}
	return score
}

func matchesAny(id string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(id, p) {
			return true
		}
	}
	return false
}
