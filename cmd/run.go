package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shipsmith/shipsmith/internal/model"
	"github.com/shipsmith/shipsmith/internal/pipeline"
)

var (
	runProblemID string
	runFrom      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the pipeline end to end",
	Long:  "Runs discover, define, build, and package in order. Use --from with --problem-id to resume from a later stage.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		opts := pipeline.Options{
			ProblemID: runProblemID,
			StartFrom: model.Stage(runFrom),
		}

		run, err := env.Pipeline.Run(ctx, opts)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		if run.Status == model.StatusSuccess {
			zap.L().Info("run complete",
				zap.String("run_id", run.ID),
				zap.String("product_id", run.ProductID),
				zap.String("listing_id", run.ListingID),
			)
		} else {
			zap.L().Warn("run failed",
				zap.String("run_id", run.ID),
				zap.String("stage", string(run.Stage)),
				zap.String("error", run.ErrorMessage),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	runCmd.Flags().StringVar(&runProblemID, "problem-id", "", "existing problem to run against (required with --from)")
	runCmd.Flags().StringVar(&runFrom, "from", "", "first stage to execute: discover|define|build|package")
	rootCmd.AddCommand(runCmd)
}
