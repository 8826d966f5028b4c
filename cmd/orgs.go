package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/reviewpulse/reviewpulse/internal/model"
)

var (
	orgsRole string
	orgsJSON bool
)

var orgsCmd = &cobra.Command{
	Use:   "orgs",
	Short: "List tracked organizations",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		var role model.Role
		if orgsRole != "" {
			if role, err = orgRoleFlag(orgsRole); err != nil {
				return err
			}
		}

		orgs, err := st.ListOrganizations(cmd.Context(), role)
		if err != nil {
			return err
		}
		if orgsJSON {
			return printJSON(orgs)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ORG ID\tNAME\tROLE\tRATING\tREVIEWS")
		for _, org := range orgs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%d\n",
				org.OrgID, org.Name, org.Role, org.Rating, org.ReviewCount)
		}
		return w.Flush()
	},
}

func init() {
	orgsCmd.Flags().StringVar(&orgsRole, "role", "", "filter by role")
	orgsCmd.Flags().BoolVar(&orgsJSON, "json", false, "output JSON")
	rootCmd.AddCommand(orgsCmd)
}
