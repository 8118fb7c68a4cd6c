package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shipsmith/shipsmith/internal/discovery"
	"github.com/shipsmith/shipsmith/internal/model"
)

var (
	discoverLimit int
	discoverSave  bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover and rank problems from all configured sources",
	Long:  "Queries Hacker News, GitHub, and Reddit, dedupes and ranks the results, and prints the top problems. Use --save to persist them for later runs.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		agg := discovery.NewAggregator(buildRegistry(), cfg.Pipeline.FrequencyNorm)

		limit := discoverLimit
		if limit <= 0 {
			limit = cfg.Pipeline.DiscoverLimit
		}

		result, err := agg.Discover(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "discover")
		}

		for _, w := range result.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}

		if len(result.Problems) == 0 {
			fmt.Fprintln(os.Stderr, "No problems discovered.")
			return nil
		}

		if discoverSave {
			for _, p := range result.Problems {
				if err := env.Store.SaveProblem(ctx, p); err != nil {
					return eris.Wrap(err, "discover: save problem")
				}
			}
			zap.L().Info("problems saved", zap.Int("count", len(result.Problems)))
		}

		formatProblems(os.Stdout, result.Problems)
		return nil
	},
}

func init() {
	discoverCmd.Flags().IntVar(&discoverLimit, "limit", 0, "max problems to return (default from config)")
	discoverCmd.Flags().BoolVar(&discoverSave, "save", false, "persist discovered problems to the store")
	rootCmd.AddCommand(discoverCmd)
}

func formatProblems(out io.Writer, problems []model.Problem) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tINTENT\tCONF\tFREQ\tRECENCY\tTITLE")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t----\t----\t-------\t-----")

	for _, p := range problems {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\t%.2f\t%s\n",
			shortUUID(p.ID),
			p.Source,
			p.Intent,
			p.ConfidenceScore,
			p.FrequencyScore,
			p.RecencyScore,
			truncate(p.Title, 60),
		)
	}

	_ = w.Flush()
}

func shortUUID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
