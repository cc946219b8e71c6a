package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openSession(ctx)
		defer s.Close()

		st, err := s.runner.Status(ctx)
		s.exitOnError("Status error", err)

		fmt.Println("✅ Applied migrations:")
		for _, rec := range st.Applied {
			fmt.Printf("   - %s (%s)\n", rec.Key(), rec.AppliedAt.Local().Format("2006-01-02 15:04"))
		}

		if len(st.Failed) > 0 {
			fmt.Println("\n❌ Failed migrations:")
			for _, f := range st.Failed {
				fmt.Printf("   - %s: %s\n", f.MigrationName, f.Details)
			}
		}

		fmt.Println("\n🕒 Pending migrations:")
		for _, k := range st.Pending {
			fmt.Println("   -", k)
		}

		if len(st.Modified) > 0 {
			color.Yellow("\n⚠️  Applied migrations changed since they ran:")
			for _, k := range st.Modified {
				fmt.Println("   -", k)
			}
		}
		if len(st.Unknown) > 0 {
			color.Yellow("\n⚠️  Applied migrations missing from %s:", s.cfg.MigrationsDir)
			for _, k := range st.Unknown {
				fmt.Println("   -", k)
			}
		}
	},
}
