package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/depmigrate/runner"
)

var (
	historyLimit    int
	historyApp      string
	historyDetailed bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show detailed migration history",
	Long: `Show applied migrations with timestamps, execution times, and user information.

Examples:
  depmigrate history                  # Show all migration history
  depmigrate history --limit 10       # Show last 10 migrations
  depmigrate history --app api_app    # Show migrations of one app
  depmigrate history --detailed       # Show detailed information
`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openSession(ctx)
		defer s.Close()

		history, err := s.runner.History(ctx, runner.HistoryFilter{Limit: historyLimit, App: historyApp})
		s.exitOnError("Error getting migration history", err)

		if len(history) == 0 {
			fmt.Println("📋 No migration history found")
			return
		}
		showMigrationHistory(history, historyDetailed)
	},
}

func showMigrationHistory(history []runner.Record, detailed bool) {
	fmt.Println("📋 Migration History")
	fmt.Println(strings.Repeat("=", 60))

	if detailed {
		showDetailedHistory(history)
	} else {
		showSummaryHistory(history)
	}
}

func showDetailedHistory(history []runner.Record) {
	blue := color.New(color.FgBlue, color.Bold)
	cyan := color.New(color.FgCyan)

	for i, record := range history {
		fmt.Printf("\n%d. ", i+1)
		blue.Printf("%s\n", record.Key())
		cyan.Printf("   📅 Applied: %s\n", record.AppliedAt.Local().Format("2006-01-02 15:04:05"))
		cyan.Printf("   ⏱️  Duration: %v\n", record.ExecutionTime())
		if record.ExecutedBy != "" {
			cyan.Printf("   👤 User: %s\n", record.ExecutedBy)
		}
		if record.RunID != "" {
			cyan.Printf("   🏃 Run: %s\n", record.RunID)
		}
		if len(record.Checksum) >= 8 {
			cyan.Printf("   🔍 Checksum: %s\n", record.Checksum[:8]+"...")
		}
	}
}

func showSummaryHistory(history []runner.Record) {
	blue := color.New(color.FgBlue, color.Bold)

	fmt.Printf("%-4s %-45s %-12s %-10s %s\n", "#", "Migration", "Duration", "User", "Date")
	fmt.Println(strings.Repeat("-", 90))

	total := time.Duration(0)
	for i, record := range history {
		name := record.Key().String()
		if len(name) > 43 {
			name = name[:40] + "..."
		}
		user := record.ExecutedBy
		if user == "" {
			user = "N/A"
		}
		total += record.ExecutionTime()

		fmt.Printf("%-4d %-45s %-12s %-10s %s\n",
			i+1,
			blue.Sprint(name),
			record.ExecutionTime(),
			user,
			record.AppliedAt.Local().Format("2006-01-02 15:04"),
		)
	}

	fmt.Println(strings.Repeat("-", 90))
	fmt.Printf("📊 Summary: %d applied\n", len(history))
	if total > 0 {
		fmt.Printf("⏱️  Total execution time: %v\n", total)
	}
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 0, "Limit number of records to show (0 = all)")
	historyCmd.Flags().StringVarP(&historyApp, "app", "a", "", "Filter by app")
	historyCmd.Flags().BoolVarP(&historyDetailed, "detailed", "d", false, "Show detailed information")
}
