package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/stemsi/ielts-mock/internal/model"
)

func newKeysCmd(a *app) *cobra.Command {
	keys := &cobra.Command{
		Use:   "keys",
		Short: "Inspect the answer key catalog",
	}

	keys.AddCommand(&cobra.Command{
		Use:       "list [listening|reading]",
		Short:     "List the test variants of one or both sections",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(model.SectionListening), string(model.SectionReading)},
		RunE: func(cmd *cobra.Command, args []string) error {
			sections := []model.Section{model.SectionListening, model.SectionReading}
			if len(args) == 1 {
				sec, err := model.ParseSection(args[0])
				if err != nil {
					return err
				}
				if !sec.Scorable() {
					return fmt.Errorf("%s has no answer key", sec)
				}
				sections = []model.Section{sec}
			}

			var rows [][]string
			for _, sec := range sections {
				for _, v := range a.catalog.Variants(sec) {
					rows = append(rows, []string{string(sec), strconv.Itoa(v.ID), strconv.Itoa(v.Questions), v.Title})
				}
			}
			return printTable(cmd.OutOrStdout(), []string{"SECTION", "ID", "QUESTIONS", "TITLE"}, rows)
		},
	})
	return keys
}
