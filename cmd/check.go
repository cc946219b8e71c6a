package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/depmigrate/validator"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check migrations, migration status and schema drift",
	Long: `Check the current state of your migrations and database.

This command will:
- Validate every migration descriptor
- Verify database connectivity
- Report pending, failed, edited and unknown migrations
- Compare the database with the schema the applied migrations describe

Examples:
  depmigrate check                  # Check current state
  depmigrate check --timeout 30s    # Set custom timeout
`,
	Run: func(cmd *cobra.Command, args []string) {
		problems, err := checkProject()
		if err != nil {
			fmt.Printf("❌ Check failed: %v\n", err)
			os.Exit(1)
		}
		if problems > 0 {
			color.Red("\n❌ Check found %d problem(s)", problems)
			os.Exit(1)
		}
		color.Green("\n✅ Check completed successfully")
	},
}

var checkTimeout time.Duration

func init() {
	checkCmd.Flags().DurationVarP(&checkTimeout, "timeout", "t", 10*time.Second, "Timeout for the database checks")
}

func checkProject() (int, error) {
	problems := 0

	cfg := loadConfig()
	result := validator.Validate(loadRegistry(cfg))
	if result.Valid {
		fmt.Printf("✅ Migrations valid (%d warning(s))\n", len(result.Warnings))
	} else {
		fmt.Printf("❌ %d migration error(s):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Println("   -", e.Error())
		}
		// Status and drift need a consistent graph.
		return len(result.Errors), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()
	s := openSession(ctx)
	defer s.Close()

	st, err := s.runner.Status(ctx)
	if err != nil {
		return problems, err
	}
	fmt.Printf("📊 %d applied, %d pending\n", len(st.Applied), len(st.Pending))
	for _, f := range st.Failed {
		fmt.Printf("❌ Last attempt of %s failed: %s\n", f.MigrationName, f.Details)
		problems++
	}
	for _, k := range st.Modified {
		fmt.Printf("⚠️  %s changed since it was applied\n", k)
		problems++
	}
	for _, k := range st.Unknown {
		fmt.Printf("⚠️  %s is applied but not in %s\n", k, s.cfg.MigrationsDir)
		problems++
	}
	if len(st.Unknown) > 0 {
		// The expected schema cannot be replayed without those migrations.
		return problems, nil
	}

	drift, err := schemaDrift(ctx, s)
	if err != nil {
		return problems, err
	}
	if len(drift) == 0 {
		fmt.Println("✅ Database schema matches the applied migrations")
	}
	for _, d := range drift {
		fmt.Println("⚠️ ", d)
		problems++
	}
	return problems, nil
}
