package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/entity"
)

type pruneOptions struct {
	owner  string
	all    bool
	global bool
	limit  int
}

func newPruneCmd(root *rootOptions, open opener) *cobra.Command {
	opts := &pruneOptions{}

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Re-apply the retention window",
		Long: `Deletes summaries beyond the newest --limit entries.

Exactly one scope is required: --owner restricts the window to one owner,
--all applies the per-owner window to every owner, --global keeps only the
newest --limit summaries across all owners.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			limit := opts.limit
			if !cmd.Flags().Changed("limit") {
				limit = root.cfg.RetentionLimit
			}

			ctx := cmd.Context()
			uc, closeFn, err := open(ctx, root.cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			var evicted []entity.DatasetRef
			switch {
			case opts.global:
				evicted, err = uc.PruneGlobal(ctx, limit)
			case opts.all:
				evicted, err = uc.PruneAll(ctx, limit)
			default:
				evicted, err = uc.Prune(ctx, opts.owner, limit)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, ref := range evicted {
				fmt.Fprintf(out, "evicted %s owner=%s\n", ref.ID, ref.Owner)
			}
			fmt.Fprintf(out, "%d summaries evicted (limit %d)\n", len(evicted), limit)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.owner, "owner", "", "prune a single owner")
	cmd.Flags().BoolVar(&opts.all, "all", false, "prune every owner with the per-owner window")
	cmd.Flags().BoolVar(&opts.global, "global", false, "keep only the newest summaries across all owners")
	cmd.Flags().IntVar(&opts.limit, "limit", entity.DefaultRetentionLimit, "summaries to keep (defaults to RETENTION_LIMIT)")
	return cmd
}

func (o *pruneOptions) validate() error {
	scopes := 0
	for _, set := range []bool{o.owner != "", o.all, o.global} {
		if set {
			scopes++
		}
	}
	if scopes != 1 {
		return errors.New("exactly one of --owner, --all or --global is required")
	}
	if o.limit < 0 {
		return fmt.Errorf("--limit must not be negative, got %d", o.limit)
	}
	return nil
}
