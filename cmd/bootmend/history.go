package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sigreer/bootmend/internal/db"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past repair runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to show")
	addJSONFlag(historyCmd.Flags())
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOut, _ := cmd.Flags().GetBool("json")

	journal, err := openJournal()
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer journal.Close()

	runs, err := journal.RecentRuns(limit)
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No repair runs recorded.")
		return nil
	}

	fmt.Printf("%-8s %-16s %-10s %-8s %-16s %s\n", "RUN", "DEVICE", "DISTRO", "STATUS", "STARTED", "DETAIL")
	fmt.Println(strings.Repeat("-", 80))
	for _, r := range runs {
		device := r.Device
		if r.Subvolume != "" {
			device += "[" + r.Subvolume + "]"
		}
		detail := r.ErrorKind
		if r.Error != "" {
			detail = strings.TrimSpace(detail + " " + r.Error)
		}
		fmt.Printf("%-8s %-16s %-10s %s %-16s %s\n",
			truncate(r.ID, 8, ""), device, r.Distribution, statusColumn(r.Status), humanize.Time(r.StartedAt), orDash(truncate(detail, 40, "...")))
	}
	return nil
}

// truncate shortens s to at most n runes, appending suffix when it cut
func truncate(s string, n int, suffix string) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + suffix
}

// statusColumn pads before coloring so escape codes don't break alignment
func statusColumn(status string) string {
	s := fmt.Sprintf("%-8s", strings.ToUpper(status))
	switch status {
	case db.StatusOK:
		return color.GreenString(s)
	case db.StatusFailed:
		return color.RedString(s)
	default:
		return color.YellowString(s)
	}
}
