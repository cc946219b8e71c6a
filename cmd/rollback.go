package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/depmigrate/runner"
)

var (
	steps          int
	dryRunRollback bool
)

func init() {
	rollbackCmd.Flags().IntVarP(&steps, "steps", "s", 1, "Number of migrations to rollback")
	rollbackCmd.Flags().BoolVar(&dryRunRollback, "dry-run", false, "Preview the rollback SQL without executing it")
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Rollback migrations",
	Long: `Rollback the most recently applied migrations, newest first.

Examples:
  depmigrate rollback            # Rollback the last migration
  depmigrate rollback --steps=3  # Rollback the last 3 migrations
  depmigrate rollback -s 5 --dry-run
`,
	Run: func(cmd *cobra.Command, args []string) {
		if steps < 1 {
			fmt.Println("❌ Steps must be at least 1")
			os.Exit(1)
		}

		ctx := context.Background()
		s := openSession(ctx)
		defer s.Close()

		res, err := s.runner.Rollback(ctx, runner.RollbackOptions{Steps: steps, DryRun: dryRunRollback})
		if res != nil {
			for _, k := range res.Done {
				fmt.Println("↩️  Rolled back:", k)
			}
		}
		if err != nil {
			fmt.Println("❌ Rollback failed:", err)
			s.Close()
			os.Exit(1)
		}

		if len(res.Plan.Steps) == 0 {
			fmt.Println("ℹ️  No migrations to rollback.")
			return
		}
		if dryRunRollback {
			fmt.Println("🔍 Dry run: the following SQL would be executed")
			for _, step := range res.SQL {
				fmt.Printf("\n-- %s\n", step.Migration)
				printStatements(os.Stdout, step)
			}
			return
		}

		if len(res.Done) == 1 {
			fmt.Println("✅ Rolled back 1 migration.")
		} else {
			fmt.Printf("✅ Rolled back %d migrations.\n", len(res.Done))
		}
	},
}
