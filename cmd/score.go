package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/reviewpulse/reviewpulse/internal/model"
	"github.com/reviewpulse/reviewpulse/internal/scorer"
)

var (
	scoreFull    bool
	scoreCompare bool
	scoreRefresh bool
	scoreJSON    bool
)

var scoreCmd = &cobra.Command{
	Use:   "score <org-id>",
	Short: "Compute per-topic quality scores from classified reviews",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		sc := scorer.New(st)
		orgID := args[0]

		compute := sc.ComputeOrgScore
		if scoreRefresh {
			compute = sc.RefreshStoredScores
		}

		result, err := compute(cmd.Context(), orgID)
		if err != nil {
			return err
		}
		results := []*model.OrgScore{result}

		if scoreCompare {
			rels, err := st.ListRelations(cmd.Context(), orgID)
			if err != nil {
				return err
			}
			for _, rel := range rels {
				compScore, err := compute(cmd.Context(), rel.CompetitorID)
				if err != nil {
					return err
				}
				results = append(results, compScore)
			}
		}

		if scoreJSON {
			if len(results) == 1 {
				return printJSON(results[0])
			}
			return printJSON(results)
		}
		for _, r := range results {
			printScore(r, scoreFull)
		}
		return nil
	},
}

func printScore(s *model.OrgScore, full bool) {
	name := s.Name
	if name == "" {
		name = s.OrgID
	}
	fmt.Printf("%s: %.1f overall (%d reviews)\n", name, s.OverallScore, s.TotalReviews)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, topic := range s.Topics {
		fmt.Fprintf(w, "  %s\t%.1f\t%d reviews\t%s\n",
			topic.Name, topic.Score, topic.ReviewCount, topic.Confidence)
		if full {
			for _, sub := range topic.Subtopics {
				fmt.Fprintf(w, "    %s\t%.1f\t%d reviews\t%s\n",
					sub.Name, sub.Score, sub.ReviewCount, sub.Confidence)
			}
		}
	}
	w.Flush()
	fmt.Println()
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreFull, "full", false, "include subtopic breakdown")
	scoreCmd.Flags().BoolVar(&scoreCompare, "compare", false, "also score linked competitors")
	scoreCmd.Flags().BoolVar(&scoreRefresh, "refresh", false, "write computed scores to the cache table")
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "output JSON")
	rootCmd.AddCommand(scoreCmd)
}
