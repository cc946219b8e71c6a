package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/depmigrate/config"
)

var v = config.NewViper()

var rootCmd = &cobra.Command{
	Use:   "depmigrate",
	Short: "Dependency-ordered schema migrations for PostgreSQL and SQLite",
	Long: `depmigrate applies per-app migration descriptors in dependency order.

Each migration lives in <migrations_dir>/<app>/<name>.yaml, lists the
migrations it depends on and the operations it performs (create_model,
rename_field, alter_unique_together).

Examples:

  depmigrate init
  depmigrate generate analyzers_manager rename_analyzer_name
  depmigrate plan --sql
  depmigrate migrate
`,
	SilenceUsage: true,
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("❌", err)
		os.Exit(1)
	}
}

// Register subcommands
func init() {
	cobra.OnInitialize(func() {
		config.LoadEnv()
	})

	flags := rootCmd.PersistentFlags()
	flags.String("database-url", "", "Database URL (env DATABASE_URL or DEPMIGRATE_DATABASE_URL)")
	flags.String("dialect", "", "Database dialect: postgres or sqlite (inferred from the URL when empty)")
	flags.String("migrations-dir", config.Default().MigrationsDir, "Directory holding one sub-directory of migrations per app")
	flags.String("log-level", config.Default().LogLevel, "Log level for diagnostic output (debug, info, warn, error)")
	flags.String("log-format", config.Default().LogFormat, "Log format (console, json)")
	for key, flag := range map[string]string{
		config.KeyDatabaseURL:   "database-url",
		config.KeyDialect:       "dialect",
		config.KeyMigrationsDir: "migrations-dir",
		config.KeyLogLevel:      "log-level",
		config.KeyLogFormat:     "log-format",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(docsCmd)
}
