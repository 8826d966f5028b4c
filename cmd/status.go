package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/reviewpulse/reviewpulse/internal/store"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status [org-id]",
	Short: "Show sync history",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		orgIDs, err := resolveOrgIDs(cmd.Context(), st, args)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ORG ID\tWHEN\tMODE\tSTATUS\tADDED\tUPDATED\tERROR")
		for _, orgID := range orgIDs {
			if len(args) == 1 {
				entries, err := st.ListSyncLog(cmd.Context(), orgID, statusLimit)
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
						e.OrgID, e.FinishedAt.Format("2006-01-02 15:04"),
						e.Mode, e.Status, e.ReviewsAdded, e.ReviewsUpdated, e.ErrorMessage)
				}
				continue
			}

			last, err := st.LastSync(cmd.Context(), orgID)
			if errors.Is(err, store.ErrNoRows) {
				fmt.Fprintf(w, "%s\tnever\t\t\t\t\t\n", orgID)
				continue
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
				last.OrgID, last.FinishedAt.Format("2006-01-02 15:04"),
				last.Mode, last.Status, last.ReviewsAdded, last.ReviewsUpdated, last.ErrorMessage)
		}
		return w.Flush()
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "sync entries to show for one organization")
	rootCmd.AddCommand(statusCmd)
}
