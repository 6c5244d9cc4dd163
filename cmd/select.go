package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"genprovider/internal/logger"
	"genprovider/internal/provider/factory"
	"genprovider/internal/registry"
)

func newSelectCommand(root *rootOptions) *cobra.Command {
	var criteria criteriaFlags

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Show which model the selector picks for the given criteria",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := criteria.criteria(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			reg := newRegistry(cfg)
			if err := factory.ProbeLocal(cmd.Context(), cfg, factory.Options{Registry: reg}); err != nil {
				logger.NewComponentLogger("cli").Warn("local runtime unavailable", "error", err)
			}

			selected, err := reg.SelectBest(c)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", selected.ID, selected.Provider)
			fmt.Fprintf(out, "  score:   %.2f\n", registry.Score(selected, c))
			fmt.Fprintf(out, "  context: %d\n", selected.ContextLength)
			if cost, ok := registry.EstimateCost(selected, registry.ReferenceInputTokens, registry.ReferenceOutputTokens); ok {
				fmt.Fprintf(out, "  cost:    $%.4f per %d/%d tokens\n", cost, registry.ReferenceInputTokens, registry.ReferenceOutputTokens)
			}
			return nil
		},
	}

	criteria.register(cmd)
	return cmd
}
