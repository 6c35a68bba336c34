// Package cli implements the resultdb command line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/perfline/resultdb/pkg/resultdb"
	"github.com/perfline/resultdb/pkg/resultdb/extended"
)

// RootOptions holds global flags shared by all subcommands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the root command for the resultdb CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "resultdb",
		Short: "Manage the performance result database",
		Long: `resultdb applies schema migrations and reports their status for the
relational store behind the performance result pipeline.

Configuration is read from --config (YAML or JSON) when given, otherwise
built-in defaults apply. RESULTDB_* environment variables override both,
e.g. RESULTDB_DATABASE_TYPE=postgres or RESULTDB_DATABASE_PATH=ci.db.`,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML or JSON config file")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))

	return cmd
}

// loadConfig resolves the effective configuration: defaults, then the
// config file when one is given, then environment overrides.
func loadConfig(opts *RootOptions) (*resultdb.Config, error) {
	cfg := resultdb.DefaultConfig()
	if opts.ConfigPath != "" {
		var err error
		cfg, err = resultdb.LoadConfigFile(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// variantFor maps a --variant flag value to its schema variant.
func variantFor(name string) (resultdb.Variant, error) {
	switch name {
	case "core":
		return resultdb.Core, nil
	case "extended":
		return extended.Extended, nil
	default:
		return resultdb.Variant{}, fmt.Errorf("unknown variant %q: must be \"core\" or \"extended\"", name)
	}
}
