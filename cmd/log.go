package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridoystarlord/depmigrate/runner"
)

var logLimit int

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent migration activities",
	Long: `Show recent migration activities and logs, newest first.

Examples:
  depmigrate log               # Show recent migration logs
  depmigrate log --limit 20    # Show last 20 log entries
`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openSession(ctx)
		defer s.Close()

		logs, err := s.runner.Logs(ctx, logLimit)
		s.exitOnError("Error getting migration logs", err)

		if len(logs) == 0 {
			fmt.Println("📋 No migration logs found")
			return
		}
		showMigrationLogs(logs)
	},
}

func showMigrationLogs(logs []runner.LogEntry) {
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	blue := color.New(color.FgBlue, color.Bold)
	cyan := color.New(color.FgCyan)

	fmt.Println("📋 Recent Migration Activities")
	fmt.Println(strings.Repeat("=", 60))

	for i, entry := range logs {
		fmt.Printf("\n%d. ", i+1)

		switch entry.Level {
		case runner.LevelInfo:
			blue.Print("ℹ️  ")
		case runner.LevelWarning:
			yellow.Print("⚠️  ")
		case runner.LevelError:
			red.Print("❌ ")
		case runner.LevelSuccess:
			green.Print("✅ ")
		default:
			fmt.Print("📝 ")
		}

		cyan.Printf("[%s] ", entry.LoggedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("%s", entry.Message)
		if entry.User != "" {
			fmt.Printf(" (by %s)", entry.User)
		}
		fmt.Println()

		if entry.Details != "" {
			cyan.Printf("   📄 Details: %s\n", entry.Details)
		}
	}

	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("📊 Showing %d recent log entries\n", len(logs))
}

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "l", 50, "Limit number of log entries to show")
}
