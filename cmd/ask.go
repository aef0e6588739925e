package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kaia-labs/researcher/internal/model"
	"github.com/kaia-labs/researcher/internal/pipeline"
)

var (
	askProvider string
	askMax      int
	askModel    string
	askStream   bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Run one research question and print the result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		environment, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer environment.Close()

		req := model.ResearchRequest{
			Question:                 strings.Join(args, " "),
			Provider:                 askProvider,
			MaxHypothesesPerCategory: askMax,
			ModelOverride:            askModel,
		}

		opts := pipeline.RunOptions{}
		if askStream {
			enc := json.NewEncoder(os.Stderr)
			opts.Emit = func(e pipeline.Event) {
				if e.Name == pipeline.EventFinal {
					return
				}
				fmt.Fprintf(os.Stderr, "%s: ", e.Name)
				_ = enc.Encode(e.Data)
			}
		}

		resp, err := environment.Pipeline.Run(cmd.Context(), req, opts)
		if err != nil {
			return eris.Wrap(err, "ask")
		}

		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return eris.Wrap(err, "ask: marshal response")
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askProvider, "provider", "", "LLM provider (anthropic or openai, default from config)")
	askCmd.Flags().IntVar(&askMax, "max-hypotheses", 0, "max hypotheses per category (1-10, default from config)")
	askCmd.Flags().StringVar(&askModel, "model", "", "override the provider's default model")
	askCmd.Flags().BoolVar(&askStream, "progress", false, "print lifecycle events to stderr while running")
	rootCmd.AddCommand(askCmd)
}
