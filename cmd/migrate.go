package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chessticulate/chessticulate-api/internal/config"
	"github.com/chessticulate/chessticulate-api/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply all pending schema migrations to the configured database and
exit. The serve command runs migrations on startup too; this command exists
for deploy pipelines that migrate before rolling the server.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	st, err := store.Open(cmd.Context(), &cfg.Database, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return nil
}
