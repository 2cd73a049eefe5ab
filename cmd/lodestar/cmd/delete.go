package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lodestar-search/lodestar/internal/output"
)

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id...>",
		Short: "Delete documents by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd.Context(), cmd, args)
		},
	}
	return cmd
}

func runDelete(ctx context.Context, cmd *cobra.Command, ids []string) error {
	out := output.New(cmd.OutOrStdout())

	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.close()

	if err := eng.store.Delete(ctx, ids); err != nil {
		return err
	}
	out.Successf("Deleted %d documents from %q", len(ids), eng.store.IndexName())
	return nil
}
