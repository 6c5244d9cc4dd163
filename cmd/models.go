package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"genprovider/internal/logger"
	"genprovider/internal/models"
	"genprovider/internal/provider/factory"
	"genprovider/internal/registry"
)

func newModelsCommand(root *rootOptions) *cobra.Command {
	var (
		providerName string
		useCase      string
		all          bool
	)

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the model catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			reg := newRegistry(cfg)
			if err := factory.ProbeLocal(cmd.Context(), cfg, factory.Options{Registry: reg}); err != nil {
				logger.NewComponentLogger("cli").Warn("local runtime unavailable", "error", err)
			}

			var list []models.ModelDescriptor
			switch {
			case useCase != "":
				uc, err := models.ParseUseCase(useCase)
				if err != nil {
					return err
				}
				list = reg.Recommended(uc)
				if providerName != "" {
					pt, err := models.ParseProviderType(providerName)
					if err != nil {
						return err
					}
					list = onlyProvider(list, pt)
				}
			case providerName != "":
				pt, err := models.ParseProviderType(providerName)
				if err != nil {
					return err
				}
				if all {
					list = reg.ForProvider(pt)
				} else {
					list = reg.List(&pt)
				}
			case all:
				list = reg.All()
			default:
				list = reg.List(nil)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MODEL\tPROVIDER\tCONTEXT\tAVAILABLE\tREF COST")
			for _, d := range list {
				cost := "-"
				if v, ok := registry.EstimateCost(d, registry.ReferenceInputTokens, registry.ReferenceOutputTokens); ok {
					cost = fmt.Sprintf("$%.4f", v)
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%s\n", d.ID, d.Provider, d.ContextLength, d.Available, cost)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&providerName, "provider", "", "only list models of this provider")
	cmd.Flags().StringVar(&useCase, "use-case", "", "list the recommended models for a use case, in preference order")
	cmd.Flags().BoolVar(&all, "all", false, "include unavailable models")
	return cmd
}

func onlyProvider(list []models.ModelDescriptor, pt models.ProviderType) []models.ModelDescriptor {
	out := list[:0]
	for _, d := range list {
		if d.Provider == pt {
			out = append(out, d)
		}
	}
	return out
}
