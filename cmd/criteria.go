package cmd

import (
	"github.com/spf13/cobra"

	"genprovider/internal/models"
)

// criteriaFlags binds selection criteria to command flags.
type criteriaFlags struct {
	provider   string
	minContext int
	maxCost    float64
	require    []string
	priority   string
	useCase    string
}

func (f *criteriaFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.provider, "provider", "", "restrict selection to a provider")
	flags.IntVar(&f.minContext, "min-context", 0, "minimum context length in tokens")
	flags.Float64Var(&f.maxCost, "max-cost", 0, "maximum estimated cost per request (USD)")
	flags.StringSliceVar(&f.require, "require", nil, "required capabilities, e.g. streaming,vision")
	flags.StringVar(&f.priority, "priority", "balanced", "speed, quality, cost or balanced")
	flags.StringVar(&f.useCase, "use-case", "general_chat", "workload the model is selected for")
}

func (f *criteriaFlags) criteria(cmd *cobra.Command) (models.SelectionCriteria, error) {
	var c models.SelectionCriteria
	if f.provider != "" {
		pt, err := models.ParseProviderType(f.provider)
		if err != nil {
			return c, err
		}
		c.Provider = &pt
	}
	if cmd.Flags().Changed("max-cost") {
		maxCost := f.maxCost
		c.MaxCostPerRequest = &maxCost
	}

	priority, err := models.ParsePerformancePriority(f.priority)
	if err != nil {
		return c, err
	}
	useCase, err := models.ParseUseCase(f.useCase)
	if err != nil {
		return c, err
	}

	c.MinContextLength = f.minContext
	c.RequiredCapabilities = f.require
	c.Priority = priority
	c.UseCase = useCase
	return c, nil
}
