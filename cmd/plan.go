package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/depmigrate/migration"
	"github.com/ridoystarlord/depmigrate/runner"
)

var (
	planShowSQL bool
	planTarget  string
)

func init() {
	planCmd.Flags().BoolVar(&planShowSQL, "sql", false, "Print the SQL of every planned migration")
	planCmd.Flags().StringVarP(&planTarget, "target", "t", "", "Plan only up to this migration (app.name)")
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the migrations migrate would apply, in order",
	Long: `Plan pending migrations against the database without changing it.

Examples:
  depmigrate plan
  depmigrate plan --sql
  depmigrate plan --target api_app.0008_remove_job_runtime_configuration
`,
	Run: func(cmd *cobra.Command, args []string) {
		target := parseTarget(planTarget)

		ctx := context.Background()
		s := openSession(ctx)
		defer s.Close()

		res, err := s.runner.Apply(ctx, runner.ApplyOptions{DryRun: true, Target: target})
		s.exitOnError("Planning failed", err)

		if len(res.Plan.Steps) == 0 {
			fmt.Println("✅ No pending migrations.")
			return
		}
		fmt.Printf("📋 %d migration(s) to apply:\n", len(res.Plan.Steps))
		for i, step := range res.Plan.Steps {
			color.Cyan("\n%d. %s", i+1, step.Key())
			for _, op := range step.Migration.Operations() {
				fmt.Println("   -", op.Describe())
			}
			if planShowSQL {
				printStatements(os.Stdout, res.SQL[i])
			}
		}
	},
}

// parseTarget turns an optional --target flag into a key, exiting on a
// malformed value.
func parseTarget(s string) *migration.Key {
	if s == "" {
		return nil
	}
	k, err := migration.ParseKey(s)
	exitOnError("Invalid target", err)
	return &k
}

// printStatements writes the statements of one step. They already carry
// their terminating semicolon.
func printStatements(w io.Writer, step runner.StepSQL) {
	if len(step.Statements) == 0 {
		fmt.Fprintln(w, "   -- no SQL")
		return
	}
	for _, stmt := range step.Statements {
		fmt.Fprintln(w, "  ", stmt)
	}
}
