package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the root command for the warrantyhub CLI.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warrantyhub",
		Short: "Multi-tenant vehicle warranty platform",
		Long: `warrantyhub serves the vehicle warranty API over a master database
and one isolated database per dealer. The serve command runs the HTTP
server; derive-schema regenerates the tenant schema artifact from the
master schema sources.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewDeriveSchemaCommand())

	return cmd
}
