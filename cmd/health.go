package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/ridoystarlord/depmigrate/introspect"
	"github.com/ridoystarlord/depmigrate/runner"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check database connectivity",
	Long: `Check if the database is accessible and responsive.

Examples:
  depmigrate health                  # Check default database connection
  depmigrate health --timeout 10s    # Set custom timeout
`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := checkDatabaseHealth(); err != nil {
			fmt.Printf("❌ Database health check failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✅ Database is healthy and accessible")
	},
}

var healthTimeout time.Duration

func init() {
	healthCmd.Flags().DurationVarP(&healthTimeout, "timeout", "t", 5*time.Second, "Timeout for health check")
}

func checkDatabaseHealth() error {
	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()

	s := openSession(ctx)
	defer s.Close()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %v", err)
	}
	fmt.Printf("🔌 Connected (%s)\n", s.db.Dialect)
	if pool := s.db.Pool(); pool != nil {
		stat := pool.Stat()
		fmt.Printf("🏊 Pool: %d total, %d idle, %d max connections\n", stat.TotalConns(), stat.IdleConns(), stat.MaxConns())
	}

	// Inspect first so a health check never creates the tracking tables.
	tables, err := introspect.Inspect(ctx, s.db)
	if err != nil {
		return fmt.Errorf("failed to list tables: %v", err)
	}
	tracked := slices.ContainsFunc(tables, func(t introspect.Table) bool {
		return runner.IsTrackingTable(t.Name)
	})
	if !tracked {
		fmt.Println("⚠️  Database is accessible but schema_migrations table not found")
		fmt.Println("   Run 'depmigrate migrate' to set up the migration tracking tables")
		return nil
	}

	history, err := s.runner.History(ctx, runner.HistoryFilter{})
	if err != nil {
		return fmt.Errorf("failed to count migrations: %v", err)
	}
	fmt.Printf("📊 Found %d applied migrations\n", len(history))
	return nil
}
