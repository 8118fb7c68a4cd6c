package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/shipsmith/shipsmith/internal/model"
	"github.com/shipsmith/shipsmith/internal/store"
)

var problemsCmd = &cobra.Command{
	Use:   "problems",
	Short: "Inspect discovered problems",
}

var problemsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored problems",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		src, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")

		problems, err := st.ListProblems(ctx, store.ProblemFilter{
			Source: model.Source(src),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "problems list")
		}

		if len(problems) == 0 {
			fmt.Fprintln(os.Stderr, "No problems found.")
			return nil
		}

		formatProblems(os.Stdout, problems)
		return nil
	},
}

var problemsShowCmd = &cobra.Command{
	Use:   "show <problem-id>",
	Short: "Show full details of a problem",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		problem, err := st.GetProblem(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "problems show")
		}
		if problem == nil {
			return eris.Errorf("problem not found: %s", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(problem)
	},
}

func init() {
	problemsListCmd.Flags().String("source", "", "filter by source (hackernews|github|reddit)")
	problemsListCmd.Flags().Int("limit", 20, "max problems to list")
	problemsCmd.AddCommand(problemsListCmd)
	problemsCmd.AddCommand(problemsShowCmd)
	rootCmd.AddCommand(problemsCmd)
}
