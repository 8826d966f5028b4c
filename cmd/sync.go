package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reviewpulse/reviewpulse/internal/pipeline"
)

var syncFull bool

var syncCmd = &cobra.Command{
	Use:   "sync [org-id...]",
	Short: "Fetch and ingest reviews for tracked organizations",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		fetcher, err := initFetcher()
		if err != nil {
			return err
		}

		orgIDs, err := resolveOrgIDs(cmd.Context(), st, args)
		if err != nil {
			return err
		}

		reports, syncErr := pipeline.NewSyncer(st, fetcher).SyncAll(cmd.Context(), orgIDs, syncFull)
		for _, r := range reports {
			if r.Err != nil {
				fmt.Printf("%s: FAILED: %v\n", r.OrgID, r.Err)
				continue
			}
			fmt.Printf("%s: %s sync, %d added, %d updated\n", r.OrgID, r.Mode, r.Added, r.Updated)
		}
		return syncErr
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "force a full re-fetch of review history")
	rootCmd.AddCommand(syncCmd)
}
