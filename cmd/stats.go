package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats <org-id>",
	Short: "Show ingestion and classification counters for an organization",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		summary, err := st.Stats(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if statsJSON {
			return printJSON(summary)
		}

		name := summary.Name
		if name == "" {
			name = summary.OrgID
		}
		fmt.Printf("%s\n", name)
		fmt.Printf("  reviews:    %d (avg %.1f stars)\n", summary.TotalReviews, summary.AverageStars)
		if summary.EarliestDate != "" {
			fmt.Printf("  date range: %s .. %s\n", summary.EarliestDate, summary.LatestDate)
		}
		for i := len(summary.StarCounts) - 1; i >= 0; i-- {
			fmt.Printf("  %d star:     %d\n", i+1, summary.StarCounts[i])
		}
		fmt.Printf("  responded:  %.0f%%\n", summary.ResponseRate*100)
		fmt.Printf("  embedded:   %d\n", summary.EmbeddedReviews)
		fmt.Printf("  classified: %d\n", summary.ClassifiedReviews)
		if summary.LastSync != nil {
			fmt.Printf("  last sync:  %s (%s, %s)\n",
				summary.LastSync.FinishedAt.Format("2006-01-02 15:04"),
				summary.LastSync.Mode, summary.LastSync.Status)
		} else {
			fmt.Printf("  last sync:  never\n")
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output JSON")
	rootCmd.AddCommand(statsCmd)
}
