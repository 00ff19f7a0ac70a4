package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/utils"
)

func newIngestCmd(root *rootOptions, open opener) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "ingest FILE",
		Short: "Ingest a local CSV file on behalf of an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" {
				return errors.New("--owner is required")
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			uc, closeFn, err := open(ctx, root.cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := uc.Ingest(ctx, owner, filepath.Base(args[0]), raw)
			if err != nil {
				return err
			}

			s := res.Summary
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dataset %s stored for %s\n", s.ID, s.Owner)
			fmt.Fprintf(out, "rows: %d  flowrate: %.2f  pressure: %.2f  temperature: %.2f\n",
				s.RowCount, utils.Round2(s.Means.Flowrate), utils.Round2(s.Means.Pressure), utils.Round2(s.Means.Temperature))
			if len(res.Evicted) > 0 {
				fmt.Fprintf(out, "evicted %d older summaries\n", len(res.Evicted))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner the dataset is stored for")
	return cmd
}
