package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"genprovider/internal/models"
	"genprovider/internal/provider"
)

func newGenerateCommand(root *rootOptions) *cobra.Command {
	var (
		prompt      string
		system      string
		model       string
		auto        bool
		stream      bool
		temperature float64
		maxTokens   int
		criteria    criteriaFlags
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run a single generation against the active provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if prompt == "" {
				return errors.New("generate requires --prompt")
			}
			if auto && stream {
				return errors.New("--auto and --stream cannot be combined")
			}

			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			orch, err := newOrchestrator(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			req := models.GenerationRequest{Model: model, Stream: stream}
			if system != "" {
				req.Messages = append(req.Messages, models.SystemMessage(system))
			}
			req.Messages = append(req.Messages, models.UserMessage(prompt))
			if cmd.Flags().Changed("temperature") {
				req.Params.Temperature = models.Float(temperature)
			}
			if cmd.Flags().Changed("max-tokens") {
				req.Params.MaxTokens = models.Int(maxTokens)
			}

			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			switch {
			case auto:
				c, err := criteria.criteria(cmd)
				if err != nil {
					return err
				}
				resp, err := orch.GenerateWithAutoModel(ctx, req, c)
				if err != nil {
					return describe(err)
				}
				return printResponse(out, resp)
			case stream:
				s, err := orch.GenerateStream(ctx, req)
				if err != nil {
					return describe(err)
				}
				defer s.Close()
				for {
					ev, err := s.Recv()
					if errors.Is(err, io.EOF) {
						fmt.Fprintln(out)
						return nil
					}
					if err != nil {
						return describe(err)
					}
					fmt.Fprint(out, ev.Delta)
				}
			default:
				resp, err := orch.Generate(ctx, req)
				if err != nil {
					return describe(err)
				}
				return printResponse(out, resp)
			}
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&prompt, "prompt", "", "user prompt")
	flags.StringVar(&system, "system", "", "optional system prompt")
	flags.StringVar(&model, "model", "", "model id (default: the provider's default model)")
	flags.BoolVar(&auto, "auto", false, "select the model from --priority/--use-case criteria")
	flags.BoolVar(&stream, "stream", false, "stream the response as it is generated")
	flags.Float64Var(&temperature, "temperature", 0, "sampling temperature")
	flags.IntVar(&maxTokens, "max-tokens", 0, "maximum tokens to generate")
	criteria.register(cmd)
	return cmd
}

func printResponse(w io.Writer, resp *models.GenerationResponse) error {
	fmt.Fprintln(w, resp.Content)
	fmt.Fprintf(w, "\n[model=%s finish=%s time=%dms", resp.Model, resp.FinishReason, resp.ResponseTimeMillis())
	if resp.Usage != nil {
		fmt.Fprintf(w, " tokens=%d/%d", resp.Usage.PromptTokens(), resp.Usage.CompletionTokens())
	}
	fmt.Fprintln(w, "]")
	return nil
}

// describe pairs the user-facing message with the underlying error.
func describe(err error) error {
	return fmt.Errorf("%s (%w)", provider.UserMessage(err), err)
}
