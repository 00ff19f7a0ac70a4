package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/entity"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/report"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/utils"
)

func newHistoryCmd(root *rootOptions, open opener) *cobra.Command {
	var (
		owner  string
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List an owner's stored summaries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if owner == "" {
				return errors.New("--owner is required")
			}

			ctx := cmd.Context()
			uc, closeFn, err := open(ctx, root.cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			summaries, err := uc.History(ctx, owner, limit)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summaries)
			}
			return printSummaries(cmd, summaries)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner whose history is listed")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum entries (defaults to RETENTION_LIMIT)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printSummaries(cmd *cobra.Command, summaries []entity.DatasetSummary) error {
	if len(summaries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no datasets")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tUPLOADED\tROWS\tFLOWRATE\tPRESSURE\tTEMPERATURE\tTOP CATEGORY")
	for _, s := range summaries {
		top := "-"
		if cats := report.SortedCategories(s.CategoryCounts); len(cats) > 0 {
			top = fmt.Sprintf("%s (%d)", cats[0].Category, cats[0].Count)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%s\n",
			s.ID, s.Label, s.CreatedAt.Format(time.RFC3339), s.RowCount,
			utils.Round2(s.Means.Flowrate), utils.Round2(s.Means.Pressure), utils.Round2(s.Means.Temperature), top)
	}
	return w.Flush()
}
