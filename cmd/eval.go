package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kaia-labs/researcher/internal/eval"
)

var (
	evalProviderA string
	evalProviderB string
	evalLimit     int
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run the eval question set against two providers and print scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		environment, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer environment.Close()

		results := eval.Run(cmd.Context(), environment.Pipeline, evalProviderA, evalProviderB, evalLimit)

		for _, res := range results {
			if res.Error != "" {
				fmt.Printf("%-4s %-10s ERROR %s\n", res.QuestionID, res.Provider, res.Error)
				continue
			}
			fmt.Printf("%-4s %-10s score=%-3d drivers=%d citations=%d domains=%d\n",
				res.QuestionID, res.Provider,
				res.Score.Score, res.Score.DriversTotal, res.Score.CitationsTotal, res.Score.UniqueDomains,
			)
		}

		out, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return eris.Wrap(err, "eval: marshal results")
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	evalCmd.Flags().StringVar(&evalProviderA, "provider-a", "openai", "first provider to evaluate")
	evalCmd.Flags().StringVar(&evalProviderB, "provider-b", "anthropic", "second provider to evaluate")
	evalCmd.Flags().IntVar(&evalLimit, "limit", 3, "number of eval questions to run")
	rootCmd.AddCommand(evalCmd)
}
