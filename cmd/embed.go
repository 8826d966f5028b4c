package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reviewpulse/reviewpulse/internal/pipeline"
)

var embedCmd = &cobra.Command{
	Use:   "embed [org-id...]",
	Short: "Embed review texts and topic labels that lack vectors",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		client, err := initEmbedder()
		if err != nil {
			return err
		}

		orgIDs, err := resolveOrgIDs(cmd.Context(), st, args)
		if err != nil {
			return err
		}

		embedder := pipeline.NewEmbedder(st, client)
		for _, orgID := range orgIDs {
			report, err := embedder.EmbedOrg(cmd.Context(), orgID)
			if err != nil {
				return err
			}
			fmt.Printf("%s: embedded %d reviews, %d topics\n", orgID, report.Reviews, report.Topics)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(embedCmd)
}
