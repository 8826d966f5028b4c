package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reviewpulse/reviewpulse/internal/model"
	"github.com/reviewpulse/reviewpulse/internal/pipeline"
	"github.com/reviewpulse/reviewpulse/internal/store"
)

var (
	searchSemantic bool
	searchLimit    int
	searchJSON     bool
	searchSince    string
	searchStarsMin float64
	searchStarsMax float64
)

var searchCmd = &cobra.Command{
	Use:   "search <org-id> <query>",
	Short: "Search an organization's reviews by text or meaning",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		orgID, query := args[0], args[1]

		if searchSemantic {
			client, err := initEmbedder()
			if err != nil {
				return err
			}
			hits, err := pipeline.NewSearcher(st, client).SemanticSearch(cmd.Context(), orgID, query, searchLimit)
			if err != nil {
				return err
			}
			if searchJSON {
				return printJSON(hits)
			}
			for _, h := range hits {
				fmt.Printf("[%.3f] %s\n", h.Similarity, reviewLine(h.Review))
			}
			return nil
		}

		reviews, err := st.SearchReviews(cmd.Context(), orgID, query, store.QueryReviewsOpts{
			Since:    searchSince,
			StarsMin: searchStarsMin,
			StarsMax: searchStarsMax,
			Limit:    searchLimit,
		})
		if err != nil {
			return err
		}
		if searchJSON {
			return printJSON(reviews)
		}
		for _, r := range reviews {
			fmt.Println(reviewLine(r))
		}
		return nil
	},
}

func reviewLine(r model.Review) string {
	text := r.Text
	if runes := []rune(text); len(runes) > 120 {
		text = string(runes[:120]) + "..."
	}
	date := r.Date
	if date == "" {
		date = "undated"
	}
	return fmt.Sprintf("%s %.1f* %s", date, r.Stars, text)
}

func init() {
	searchCmd.Flags().BoolVar(&searchSemantic, "semantic", false, "rank by embedding similarity instead of substring match")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output JSON")
	searchCmd.Flags().StringVar(&searchSince, "since", "", "only reviews on or after this date (YYYY-MM-DD)")
	searchCmd.Flags().Float64Var(&searchStarsMin, "stars-min", 0, "minimum star rating")
	searchCmd.Flags().Float64Var(&searchStarsMax, "stars-max", 0, "maximum star rating")
	rootCmd.AddCommand(searchCmd)
}
