// Package cmd implements the beacon command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beaconchat/beacon/internal/tenant"
)

// scopeFlags are the tenant identity flags shared by every data command.
type scopeFlags struct {
	org    int64
	widget string
	user   int64
}

func (f *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.org, "org", 0, "organization id (required)")
	cmd.Flags().StringVar(&f.widget, "widget", "", "widget id")
	cmd.Flags().Int64Var(&f.user, "user", 0, "end user id")
	_ = cmd.MarkFlagRequired("org")
}

func (f *scopeFlags) scope() (tenant.Scope, error) {
	s := tenant.Scope{OrgID: f.org, WidgetID: f.widget, UserID: f.user}
	if !s.Valid() {
		return tenant.Scope{}, fmt.Errorf("--org must be a positive organization id")
	}
	return s, nil
}

// NewRootCmd assembles the beacon command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "beacon",
		Short: "Beacon - knowledge ingestion and retrieval for chat widgets",
		Long: `Beacon ingests websites, documents and text snippets into a per-organization
knowledge base and retrieves grounding context for visitor questions.

Configuration lives in ~/.beacon/config.yaml and BEACON_* environment
variables; an OpenAI or Ollama embedding provider must be reachable for
ingestion and querying.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newIngestCmd(),
		newQueryCmd(),
		newSourcesCmd(),
		newVersionCmd(),
	)
	return root
}
