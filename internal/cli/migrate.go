package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/perfline/resultdb/pkg/resultdb"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var variantName string
	var locations []string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migration scripts",
		Long: `Open the chosen schema variant, applying its pending migration scripts
in version order, and print each script as it lands. Scripts already
recorded for the target are checksum-verified and skipped.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, rootOpts, variantName, locations)
		},
	}

	cmd.Flags().StringVar(&variantName, "variant", "core", "schema variant (core|extended)")
	cmd.Flags().StringSliceVar(&locations, "locations", nil, "extra migration script locations, applied after the variant's own")

	return cmd
}

func runMigrate(cmd *cobra.Command, rootOpts *RootOptions, variantName string, locations []string) error {
	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return err
	}
	variant, err := variantFor(variantName)
	if err != nil {
		return err
	}
	cfg.Migrations.Locations = append(cfg.Migrations.Locations, locations...)

	out := cmd.OutOrStdout()
	applied := 0
	db, err := resultdb.Open(cmd.Context(), cfg, variant,
		resultdb.WithAppliedHook(func(script string, took time.Duration) {
			applied++
			fmt.Fprintf(out, "applied %s (%v)\n", script, took.Round(time.Millisecond))
		}))
	if err != nil {
		return err
	}
	defer db.Close()

	if applied == 0 {
		fmt.Fprintf(out, "%s schema on %s is up to date, nothing to apply\n", variant.Name(), db.Engine().Target())
		return nil
	}
	fmt.Fprintf(out, "%d script(s) applied to %s\n", applied, db.Engine().Target())
	return nil
}
