package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/depmigrate/runner"
)

var (
	dryRunMigrate bool
	fakeMigrate   bool
	targetMigrate string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	Long: `Apply every pending migration in dependency order, one transaction per
migration. A failing migration is rolled back; migrations applied before it stay.

Examples:
  depmigrate migrate
  depmigrate migrate --dry-run
  depmigrate migrate --target analyzers_manager.0004_analyzerreport_unique
  depmigrate migrate --fake          # record as applied without running SQL
`,
	Run: func(cmd *cobra.Command, args []string) {
		opts := runner.ApplyOptions{
			DryRun: dryRunMigrate,
			Fake:   fakeMigrate,
			Target: parseTarget(targetMigrate),
		}

		ctx := context.Background()
		s := openSession(ctx)
		defer s.Close()

		res, err := s.runner.Apply(ctx, opts)
		if res != nil {
			for _, k := range res.Done {
				fmt.Println("✅ Applied:", k)
			}
		}
		if err != nil {
			fmt.Println("❌ Migration failed:", err)
			s.Close()
			os.Exit(1)
		}

		if len(res.Plan.Unknown) > 0 {
			fmt.Printf("⚠️  %d applied migration(s) are not in %s, run 'depmigrate status'\n", len(res.Plan.Unknown), s.cfg.MigrationsDir)
		}
		if len(res.Plan.Steps) == 0 {
			fmt.Println("✅ No pending migrations.")
			return
		}
		if dryRunMigrate {
			fmt.Println("🔍 Dry run: the following SQL would be executed")
			for _, step := range res.SQL {
				fmt.Printf("\n-- %s\n", step.Migration)
				printStatements(os.Stdout, step)
			}
			return
		}
		if fakeMigrate {
			fmt.Printf("🎭 Marked %d migration(s) as applied without running SQL.\n", len(res.Done))
			return
		}
		fmt.Printf("🎉 Applied %d migration(s).\n", len(res.Done))
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&dryRunMigrate, "dry-run", false, "Preview the SQL that would be executed without applying migrations")
	migrateCmd.Flags().BoolVar(&fakeMigrate, "fake", false, "Record migrations as applied without executing their SQL")
	migrateCmd.Flags().StringVarP(&targetMigrate, "target", "t", "", "Apply only this migration (app.name) and its dependencies")
}
