package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reviewpulse/reviewpulse/internal/classify"
)

var (
	classifyThreshold float64
	classifyMaxTopics int
)

var classifyCmd = &cobra.Command{
	Use:   "classify [org-id...]",
	Short: "Assign embedded reviews to taxonomy subtopics",
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

		// Flags win over config only when set, so --threshold=0 is a
		// real floor rather than a fallback to the configured value.
		opts := classify.Options{
			Threshold: cfg.Classify.Threshold,
			MaxTopics: cfg.Classify.MaxTopics,
		}
		if cmd.Flags().Changed("threshold") {
			opts.Threshold = classifyThreshold
		}
		if cmd.Flags().Changed("max-topics") {
			opts.MaxTopics = classifyMaxTopics
		}
		classifier := classify.New(st)
		for _, orgID := range orgIDs {
			result, err := classifier.ClassifyOrg(cmd.Context(), orgID, opts)
			if err != nil {
				return err
			}
			if result.Skipped {
				fmt.Printf("%s: skipped (no embedded subtopics)\n", orgID)
				continue
			}
			fmt.Printf("%s: %d of %d reviews classified, %d assignments\n",
				orgID, result.Classified, result.Reviews, result.Assigned)
		}
		return nil
	},
}

func init() {
	classifyCmd.Flags().Float64Var(&classifyThreshold, "threshold", classify.DefaultThreshold, "minimum cosine similarity (default from config)")
	classifyCmd.Flags().IntVar(&classifyMaxTopics, "max-topics", classify.DefaultMaxTopics, "max subtopics per review (default from config)")
	rootCmd.AddCommand(classifyCmd)
}
