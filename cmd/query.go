package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	var scope scopeFlags

	cmd := &cobra.Command{
		Use:   "query MESSAGE",
		Short: "Retrieve grounding context for a visitor message",
		Args:  cobra.ExactArgs(1),
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

			result, err := a.retrieval.Retrieve(cmd.Context(), args[0], nil, s)
			if err != nil {
				return err
			}

			if result.Empty() {
				fmt.Println("no relevant context found")
				return nil
			}

			fmt.Println(result.Text)
			fmt.Println()
			fmt.Println("sources:")
			for _, ref := range result.Sources {
				line := fmt.Sprintf("  [%d] %s", ref.ID, ref.Name)
				if ref.URL != "" {
					line += " (" + ref.URL + ")"
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	scope.register(cmd)
	return cmd
}
