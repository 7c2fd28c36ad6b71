package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage an organization's knowledge sources",
	}
	cmd.AddCommand(newSourcesListCmd(), newSourcesDeleteCmd())
	return cmd
}

func newSourcesListCmd() *cobra.Command {
	var scope scopeFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active knowledge sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := scope.scope()
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			sources, err := a.sources.ListByOrg(cmd.Context(), s.OrgID)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				fmt.Println("no sources")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tNAME\tPAGES\tCHANGED\tUPDATED")
			for _, src := range sources {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\n",
					src.ID, src.Kind, src.Name,
					src.PagesScanned, src.PagesChanged,
					src.UpdatedAt.Format("2006-01-02 15:04"))
			}
			fmt.Fprintf(w, "\nindexed chunks (all orgs): %d\n", a.vectors.Count())
			return w.Flush()
		},
	}

	scope.register(cmd)
	return cmd
}

func newSourcesDeleteCmd() *cobra.Command {
	var scope scopeFlags

	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a knowledge source and its indexed chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := scope.scope()
			if err != nil {
				return err
			}

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid source id %q", args[0])
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.ingest.DeleteSource(cmd.Context(), id, s); err != nil {
				return err
			}

			fmt.Printf("source %d deleted\n", id)
			return nil
		},
	}

	scope.register(cmd)
	return cmd
}
