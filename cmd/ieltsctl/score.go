package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/stemsi/ielts-mock/internal/model"
	"github.com/stemsi/ielts-mock/internal/scoring"
)

func newScoreCmd(a *app) *cobra.Command {
	var (
		section string
		testID  int
		table   string
		answers string
	)

	cmd := &cobra.Command{
		Use:     "score",
		Short:   "Score a JSON object of answers against a test's key",
		Example: "  echo '{\"1\":\"true\"}' | ieltsctl score --section reading --test 2",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sec, err := model.ParseSection(section)
			if err != nil {
				return err
			}
			bt, err := scoring.ParseBandTable(table)
			if err != nil {
				return err
			}
			given, err := readAnswers(cmd.InOrStdin(), answers)
			if err != nil {
				return err
			}

			res, err := a.eval.EvaluateSection(cmd.Context(), sec, testID, given, bt)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s test %d (%s table)\n", sec, testID, bt)
			fmt.Fprintf(cmd.OutOrStdout(), "correct: %d/%d (%.0f%%)\n", res.RawCorrectCount, res.Total, res.Percentage)
			fmt.Fprintf(cmd.OutOrStdout(), "band:    %.1f\n", res.Band)
			return nil
		},
	}

	cmd.Flags().StringVar(&section, "section", "", "listening or reading")
	cmd.Flags().IntVar(&testID, "test", 1, "test variant id")
	cmd.Flags().StringVar(&table, "table", scoring.BandTableFine.String(), "band table: fine or coarse")
	cmd.Flags().StringVar(&answers, "answers", "-", "answers file, - for stdin")
	_ = cmd.MarkFlagRequired("section")
	return cmd
}

func readAnswers(stdin io.Reader, path string) (scoring.Answers, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open answers: %w", err)
		}
		defer f.Close()
		r = f
	}

	var given scoring.Answers
	if err := json.NewDecoder(r).Decode(&given); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	return given, nil
}
