package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"warrantyhub/internal/config"
	"warrantyhub/internal/schema"
)

// DeriveSchemaOptions holds flags for the derive-schema command.
type DeriveSchemaOptions struct {
	Source  string
	Out     string
	Exclude []string
}

// NewDeriveSchemaCommand creates the derive-schema command.
func NewDeriveSchemaCommand() *cobra.Command {
	opts := &DeriveSchemaOptions{}

	cmd := &cobra.Command{
		Use:   "derive-schema",
		Short: "Derive the tenant schema artifact from the master schema",
		Long: `Derive the tenant database schema from the master schema sources.

Master-only tables and every column or constraint referring to them are
removed; scalar dealer id columns survive as plain values. The output is
a deterministic DDL artifact applied to each freshly provisioned tenant
database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeriveSchema(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", "db/schema", "directory containing the master schema DDL")
	cmd.Flags().StringVar(&opts.Out, "out", "db/tenant/tenant_schema.sql", "path for the derived tenant schema artifact")
	cmd.Flags().StringSliceVar(&opts.Exclude, "exclude", nil, "additional master-only tables to exclude")

	return cmd
}

func runDeriveSchema(cmd *cobra.Command, opts *DeriveSchemaOptions) error {
	cfg := config.LoadSchema()
	// Flags win over the environment; the defaults mirror SchemaConfig.
	if !cmd.Flags().Changed("source") {
		opts.Source = cfg.SourceDir
	}
	if !cmd.Flags().Changed("out") {
		opts.Out = cfg.ArtifactPath
	}
	excluded := append(cfg.ExcludedEntities, opts.Exclude...)

	deriver := schema.NewDeriver(opts.Source, excluded)
	if err := deriver.WriteArtifact(opts.Out); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote tenant schema to %s\n", opts.Out)
	return nil
}
