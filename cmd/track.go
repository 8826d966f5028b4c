package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reviewpulse/reviewpulse/internal/model"
)

var (
	trackRole string
	trackName string
)

var trackCmd = &cobra.Command{
	Use:   "track <org-id>",
	Short: "Start tracking an organization",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := orgRoleFlag(trackRole)
		if err != nil {
			return err
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		update := model.OrganizationUpdate{OrgID: args[0], Role: role}
		if trackName != "" {
			update.Name = &trackName
		}
		if err := st.UpsertOrganization(cmd.Context(), update); err != nil {
			return err
		}
		fmt.Printf("tracking %s (role=%s)\n", args[0], role)
		return nil
	},
}

var untrackCmd = &cobra.Command{
	Use:   "untrack <org-id>",
	Short: "Stop tracking an organization and delete all its data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.RemoveOrganization(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("untracked %s\n", args[0])
		return nil
	},
}

func init() {
	trackCmd.Flags().StringVar(&trackRole, "role", "tracked", "organization role: mine, competitor or tracked")
	trackCmd.Flags().StringVar(&trackName, "name", "", "display name")
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(untrackCmd)
}
