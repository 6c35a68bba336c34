package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/perfline/resultdb/internal/core"
	"github.com/perfline/resultdb/internal/engine"
	"github.com/perfline/resultdb/internal/migrate"
	"github.com/perfline/resultdb/pkg/resultdb"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var variantName string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the migration plan without applying it",
		Long: `Print every migration script the chosen variant would run against the
configured database, marking each one applied or pending.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, rootOpts, variantName)
		},
	}

	cmd.Flags().StringVar(&variantName, "variant", "core", "schema variant (core|extended)")

	return cmd
}

func runStatus(cmd *cobra.Command, rootOpts *RootOptions, variantName string) error {
	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return err
	}
	variant, err := variantFor(variantName)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The plan is read-only, so the engine is built directly instead of
	// going through Open, which would run the variant's setup.
	eng, err := engine.Create(engineConfigFor(cfg.Database))
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer eng.Close()

	locations := append(variant.Locations(), cfg.Migrations.Locations...)
	entries, err := migrate.NewRunner().Plan(cmd.Context(), eng, locations)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "variant %s on %s (%s)\n\n", variant.Name(), eng.Target(), eng.Name())
	fmt.Fprint(out, migrate.RenderPlan(entries))
	return nil
}

// engineConfigFor converts the public database section to the engine
// layer's form.
func engineConfigFor(d resultdb.DatabaseConfig) core.EngineConfig {
	return core.EngineConfig{
		Type:            d.Type,
		Host:            d.Host,
		Port:            d.Port,
		Database:        d.Database,
		Username:        d.Username,
		Password:        d.Password,
		Path:            d.Path,
		Params:          d.Params,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
		ConnectTimeout:  d.ConnectTimeout,
	}
}
