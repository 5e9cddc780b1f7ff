package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sigreer/bootmend/internal/mount"
	"github.com/sigreer/bootmend/internal/roots"
)

var rootsCmd = &cobra.Command{
	Use:   "roots",
	Short: "List installed root filesystems",
	Long: `Probe every candidate block device and list those holding an
installed system. Each candidate is mounted at the scratch mount point
and unmounted again before the next one is examined.`,
	Args: cobra.NoArgs,
	RunE: runRoots,
}

func init() {
	addJSONFlag(rootsCmd.Flags())
}

func addJSONFlag(fs *pflag.FlagSet) {
	fs.Bool("json", false, "Output as JSON")
}

func newLocator() *roots.Locator {
	return &roots.Locator{
		Runner:       newRunner(),
		Mounter:      mount.SysMounter{},
		ScratchMount: cfg.ScratchMount,
		ReadOnly:     cfg.ProbeReadOnly,
		SkipFSTypes:  cfg.SkipFSTypes,
	}
}

func runRoots(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")

	found, err := newLocator().Discover(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(found)
	}

	if len(found) == 0 {
		fmt.Println("No installed root filesystem found.")
		return nil
	}

	fmt.Printf("%-16s %-10s %-8s %-13s %s\n", "DEVICE", "SUBVOLUME", "FSTYPE", "DISTRIBUTION", "HOSTNAME")
	fmt.Println(strings.Repeat("-", 64))
	for _, r := range found {
		fmt.Printf("%-16s %-10s %-8s %-13s %s\n",
			r.Device, orDash(r.Subvolume), orDash(r.FSType), r.Distribution, orDash(r.Hostname))
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
