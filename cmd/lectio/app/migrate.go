package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/livinlefevreloca/lectio/internal/engine"
	"github.com/livinlefevreloca/lectio/tools/migrator"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending cache schema migrations",
		Long: `Apply every pending schema migration to the cache database and print the
resulting migration status as JSON. With --dry-run nothing is applied and
the current status is printed.`,
		Args: cobra.NoArgs,
		RunE: runMigrate,
	}
	cmd.Flags().Bool("dry-run", false, "Print migration status without applying anything")
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, logCloser, err := newLogger(cmd, cfg, false)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	dbCfg := cfg.Database
	dbCfg.SkipMigrations = true
	database, err := engine.OpenDatabase(cmd.Context(), dbCfg, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	fsys := engine.MigrationsFS(cfg.Database)
	if !dryRun {
		if err := migrator.RunMigrations(cmd.Context(), database.DB, fsys, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	status, err := migrator.Status(database.DB, fsys)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}
	return printJSON(cmd, migrationReport(status))
}

// migrationReportOutput is printed by the migrate command
type migrationReportOutput struct {
	Current    int                        `json:"current_version"`
	Pending    int                        `json:"pending"`
	Migrations []migrator.MigrationStatus `json:"migrations"`
}

func migrationReport(status []migrator.MigrationStatus) migrationReportOutput {
	out := migrationReportOutput{Migrations: status}
	for _, s := range status {
		if s.Applied {
			out.Current = max(out.Current, s.Version)
		} else {
			out.Pending++
		}
	}
	return out
}
