package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/promptledger/PromptLedger/internal/app"
	"github.com/promptledger/PromptLedger/pkg/migration"
)

// NewMigrateCommand creates the migrate command group.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, rootOpts, func(m *migration.Migrator) error { return m.Up() })
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, rootOpts, func(m *migration.Migrator) error { return m.Down() })
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "steps <n>",
		Short: "Apply n migrations, or roll back when n is negative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n == 0 {
				return fmt.Errorf("steps must be a non-zero integer, got %q", args[0])
			}
			return withMigrator(cmd, rootOpts, func(m *migration.Migrator) error { return m.Steps(n) })
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil || version < -1 {
				return fmt.Errorf("version must be an integer >= -1, got %q", args[0])
			}
			return withMigrator(cmd, rootOpts, func(m *migration.Migrator) error { return m.Force(version) })
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, rootOpts, func(m *migration.Migrator) error {
				st, err := m.Status()
				if err != nil {
					return err
				}
				if !st.Applied {
					fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", st.Version, st.Dirty)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(cmd *cobra.Command, rootOpts *RootOptions, fn func(*migration.Migrator) error) error {
	e, err := rootOpts.open(cmd.Context())
	if err != nil {
		return err
	}
	defer e.close()

	level := e.cfg.LogLevel
	if rootOpts.Verbose {
		level = "debug"
	}
	m, err := app.NewMigrator(e.pool, app.MigrationLogger(level))
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}
