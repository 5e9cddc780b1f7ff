package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sigreer/bootmend/internal/chroot"
	"github.com/sigreer/bootmend/internal/db"
	"github.com/sigreer/bootmend/internal/repair"
	"github.com/sigreer/bootmend/internal/roots"
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Reinstall the bootloader and restore its boot entry",
	Long: `Discover the installed root, mount it at the sysimage directory with
/dev, /proc, /run and /sys bound in, reinstall the bootloader packages in
a chroot and add a UEFI boot entry if none points at the loader.

Without --device the last root found is repaired. The chroot mounts are
left in place afterwards; release them with 'bootmend cleanup'.`,
	Args: cobra.NoArgs,
	RunE: runRepair,
}

func init() {
	repairCmd.Flags().StringP("device", "d", "", "device name of the root to repair (e.g. sda3)")
	repairCmd.Flags().Bool("dry-run", false, "only discover the root and the ESP")
}

func openJournal() (*db.DB, error) {
	return db.New(cfg.Journal)
}

func runRepair(cmd *cobra.Command, args []string) error {
	device, _ := cmd.Flags().GetString("device")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	ctx := cmd.Context()

	found, err := newLocator().Discover(ctx)
	if err != nil {
		return err
	}
	root, err := roots.Select(found, device)
	if err != nil {
		return err
	}
	fmt.Printf("Root: %s (%s", root.DevicePath(), root.Distribution)
	if root.Subvolume != "" {
		fmt.Printf(", subvolume %s", root.Subvolume)
	}
	if root.Hostname != "" {
		fmt.Printf(", host %s", root.Hostname)
	}
	fmt.Println(")")

	runner := newRunner()
	r := &repair.Repairer{
		Runner:   runner,
		Preparer: &chroot.Preparer{Runner: runner, MountDir: cfg.Sysimage},
		Helper:   cfg.ReinstallHelper,
	}

	if dryRun {
		plan, err := r.Plan(ctx, root)
		if err != nil {
			return err
		}
		fmt.Printf("ESP: %s\n", plan.ESP)
		fmt.Printf("Would reinstall the bootloader in %s and ensure entry %q -> %s\n", cfg.Sysimage, plan.Label, plan.Loader)
		return nil
	}

	journal, err := openJournal()
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.Journal).Msg("journal unavailable, continuing without it")
	} else {
		defer journal.Close()
		r.Journal = journal
	}

	res, err := r.Fix(ctx, root)
	if err != nil {
		return err
	}

	if res.EntryAdded {
		color.Green("Bootloader reinstalled; boot entry %q created for %s on %s", res.Label, res.Loader, res.ESP)
	} else {
		color.Green("Bootloader reinstalled; boot entry for %s already present", res.Loader)
	}
	color.Yellow("Chroot mounts under %s are still active; run 'bootmend cleanup' when done", cfg.Sysimage)
	return nil
}
