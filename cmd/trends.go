package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	trendsGroupBy string
	trendsSince   string
	trendsJSON    bool
)

var trendsCmd = &cobra.Command{
	Use:   "trends <org-id>",
	Short: "Show review volume and rating trends over time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		points, err := st.Trends(cmd.Context(), args[0], trendsGroupBy, trendsSince)
		if err != nil {
			return err
		}
		if trendsJSON {
			return printJSON(points)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PERIOD\tREVIEWS\tAVG STARS")
		for _, p := range points {
			fmt.Fprintf(w, "%s\t%d\t%.2f\n", p.Period, p.ReviewCount, p.AverageStars)
		}
		return w.Flush()
	},
}

func init() {
	trendsCmd.Flags().StringVar(&trendsGroupBy, "group-by", "month", "bucket size: week, month or quarter")
	trendsCmd.Flags().StringVar(&trendsSince, "since", "", "only include reviews on or after this date (YYYY-MM-DD)")
	trendsCmd.Flags().BoolVar(&trendsJSON, "json", false, "output JSON")
	rootCmd.AddCommand(trendsCmd)
}
