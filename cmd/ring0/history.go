package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mscrnt/ring0/pkg/db"
	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	var (
		limit     int
		sessionID int64
		format    string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded watch sessions or export one",
		Long: `List sessions recorded with "ring0 watch --record", or export the samples of
one session.

Examples:
  # List the last 10 sessions
  ring0 history --limit 10

  # Export session 3 as CSV
  ring0 history --session 3 --format csv --out session3.csv`,
		RunE: func(_ *cobra.Command, _ []string) error {
			database, err := db.Open(cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() { _ = database.Close() }()

			if sessionID != 0 {
				return exportSession(database, sessionID, db.ExportFormat(format), output)
			}

			sessions, err := database.ListSessions(db.SessionFilter{Limit: limit})
			if err != nil {
				return err
			}

			if len(sessions) == 0 {
				fmt.Println("No sessions found")
				return nil
			}

			fmt.Printf("%-6s %-16s %-14s %-12s %-20s %-10s %-8s\n",
				"ID", "Driver", "Vendor", "Kind", "Start Time", "Duration", "Samples")
			fmt.Println(strings.Repeat("-", 92))

			for _, s := range sessions {
				duration := "running"
				if s.Finished() {
					duration = fmt.Sprintf("%.1fs", s.Duration().Seconds())
				}
				fmt.Printf("%-6d %-16s %-14s %-12s %-20s %-10s %-8d\n",
					s.ID,
					s.Driver,
					s.Vendor,
					s.Kind,
					s.StartTime.Format("2006-01-02 15:04:05"),
					duration,
					s.Samples,
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions to show")
	cmd.Flags().Int64Var(&sessionID, "session", 0, "Session ID to export")
	cmd.Flags().StringVar(&format, "format", "csv", "Export format (csv, json)")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output file (default: stdout)")

	return cmd
}

func exportSession(database *db.DB, id int64, format db.ExportFormat, output string) error {
	out := os.Stdout
	if output != "" {
		f, err := os.Create(output) // #nosec G304 -- user-specified output path
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if err := database.Export(out, id, format); err != nil {
		return fmt.Errorf("failed to export session %d: %w", id, err)
	}

	if output != "" {
		fmt.Printf("Exported session %d to %s\n", id, output)
	}
	return nil
}
