package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lodestar-search/lodestar/internal/output"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	out := output.New(cmd.OutOrStdout())

	eng, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.close()

	stats, err := eng.store.IndexStats(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		payload := map[string]any{
			"index":          eng.store.IndexName(),
			"document_count": stats.DocumentCount,
			"size_bytes":     stats.SizeBytes,
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	out.Statusf("📊", "Index %q", eng.store.IndexName())
	out.Statusf("", "Documents: %d", stats.DocumentCount)
	out.Statusf("", "Size:      %s", formatBytes(stats.SizeBytes))
	return nil
}

// formatBytes renders a byte count human-readably.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
