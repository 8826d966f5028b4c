package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reviewpulse/reviewpulse/internal/config"
	"github.com/reviewpulse/reviewpulse/internal/pipeline"
)

var (
	applyFile   string
	applyDryRun bool
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the declarative organizations and topics file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := applyFile
		if path == "" {
			path = cfg.Taxonomy.Path
		}
		tax, err := config.LoadTaxonomy(path)
		if err != nil {
			return err
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		actions, err := pipeline.NewApplier(st).Apply(cmd.Context(), tax, applyDryRun)
		if err != nil {
			return err
		}

		prefix := ""
		if applyDryRun {
			prefix = "[dry-run] "
		}
		for _, a := range actions {
			if a.Detail != "" {
				fmt.Printf("%s%s: %s (%s)\n", prefix, a.OrgID, a.Action, a.Detail)
			} else {
				fmt.Printf("%s%s: %s\n", prefix, a.OrgID, a.Action)
			}
		}
		return nil
	},
}

func init() {
	applyCmd.Flags().StringVarP(&applyFile, "file", "f", "", "taxonomy file (default from config)")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "print planned changes without applying")
	rootCmd.AddCommand(applyCmd)
}
