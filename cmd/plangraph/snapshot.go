package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/plangraph/internal/config"
	plansync "github.com/alfredjeanlab/plangraph/internal/sync"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Export the edge set as JSONL",
	Long: `Export the edge set as JSONL, reading the store named by the server
configuration (PLANGRAPH_DATABASE_URL or PLANGRAPH_SQLITE_PATH). With --push
the snapshot is sent once to the configured S3 and git destinations instead
of being printed.`,
	GroupID:           "system",
	Args:              cobra.NoArgs,
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := cfg.NewLogger(os.Stderr)

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := context.Background()
		if push, _ := cmd.Flags().GetBool("push"); !push {
			return plansync.ExportJSONL(ctx, st, cmd.OutOrStdout())
		}

		dests := snapshotDestinations(ctx, cfg, logger)
		if len(dests) == 0 {
			return fmt.Errorf("no snapshot destinations configured (set PLANGRAPH_SNAPSHOT_S3_BUCKET or PLANGRAPH_SNAPSHOT_GIT_REPO)")
		}
		return plansync.NewScheduler(st, dests, 0, logger).SyncOnce(ctx)
	},
}

func init() {
	snapshotCmd.Flags().Bool("push", false, "send to the configured destinations")
}
