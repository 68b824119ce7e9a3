package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stemsi/ielts-mock/internal/export"
	"github.com/stemsi/ielts-mock/internal/model"
)

func newResultsCmd(a *app) *cobra.Command {
	results := &cobra.Command{
		Use:   "results",
		Short: "List, score, delete and export stored test results",
	}
	results.AddCommand(
		newResultsListCmd(a),
		newResultsAutoScoreCmd(a),
		newResultsRescoreCmd(a),
		newResultsDeleteCmd(a),
		newResultsExportCmd(a),
	)
	return results
}

func newResultsListCmd(a *app) *cobra.Command {
	var q model.ResultQuery
	var sort string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List results, newest first by default",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q.Sort = model.ResultSort(sort)
			list, err := a.results.List(cmd.Context(), q)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(list))
			for _, r := range list {
				rows = append(rows, []string{
					r.ID.String(), r.CandidateName, r.CandidateNumber, string(r.Status),
					band(r.Listening.Score.Band), band(r.Reading.Score.Band), band(r.OverallBand),
					r.CreatedAt.Format("2006-01-02 15:04"),
				})
			}
			headers := []string{"ID", "CANDIDATE", "NUMBER", "STATUS", "LISTENING", "READING", "OVERALL", "CREATED"}
			return printTable(cmd.OutOrStdout(), headers, rows)
		},
	}
	cmd.Flags().StringVar(&q.Search, "search", "", "match candidate name, number or id")
	cmd.Flags().StringVar(&sort, "sort", string(model.ResultSortNewest), "newest, oldest, candidate, candidate_number or overall")
	return cmd
}

func newResultsAutoScoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "auto-score <id>",
		Short: "Recompute reading and listening scores from the stored answers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseResultID(args[0])
			if err != nil {
				return err
			}
			r, err := a.results.AutoScore(cmd.Context(), id)
			if err != nil {
				return err
			}
			printScores(cmd, r)
			return nil
		},
	}
}

func newResultsRescoreCmd(a *app) *cobra.Command {
	var (
		reading   int
		listening int
		writing   float64
	)

	cmd := &cobra.Command{
		Use:     "rescore <id>",
		Short:   "Set raw scores and the writing band by hand",
		Example: "  ieltsctl results rescore <id> --reading 30 --listening 28 --writing 6.5",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseResultID(args[0])
			if err != nil {
				return err
			}

			var req model.RescoreRequest
			if cmd.Flags().Changed("reading") {
				req.ReadingCorrect = &reading
			}
			if cmd.Flags().Changed("listening") {
				req.ListeningCorrect = &listening
			}
			if cmd.Flags().Changed("writing") {
				req.WritingBand = &writing
			}

			r, err := a.results.Rescore(cmd.Context(), id, req)
			if err != nil {
				return err
			}
			printScores(cmd, r)
			return nil
		},
	}
	cmd.Flags().IntVar(&reading, "reading", 0, "reading raw correct count")
	cmd.Flags().IntVar(&listening, "listening", 0, "listening raw correct count")
	cmd.Flags().Float64Var(&writing, "writing", 0, "writing band, 0 to 9 in steps of 0.5")
	return cmd
}

func printScores(cmd *cobra.Command, r *model.TestResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "listening: %d/%d band %.1f\n", r.Listening.Score.RawCorrectCount, r.Listening.Score.Total, r.Listening.Score.Band)
	fmt.Fprintf(out, "reading:   %d/%d band %.1f\n", r.Reading.Score.RawCorrectCount, r.Reading.Score.Total, r.Reading.Score.Band)
	fmt.Fprintf(out, "writing:   band %.1f\n", r.Writing.Band)
	fmt.Fprintf(out, "overall:   %.1f\n", r.OverallBand)
}

func parseResultID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid result id %q: %w", s, err)
	}
	return id, nil
}

func newResultsDeleteCmd(a *app) *cobra.Command {
	var confirm string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one result; requires --confirm DELETE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseResultID(args[0])
			if err != nil {
				return err
			}
			if err := a.results.Delete(cmd.Context(), id, confirm); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&confirm, "confirm", "", "must be exactly DELETE")
	return cmd
}

func newResultsExportCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every result to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.results.List(cmd.Context(), model.ResultQuery{Sort: model.ResultSortNewest})
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := export.WriteResults(f, list); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d results to %s\n", len(list), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "ielts-results.xlsx", "output file")
	return cmd
}
