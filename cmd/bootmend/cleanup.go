package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sigreer/bootmend/internal/chroot"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Unmount chroot mounts left by previous repairs",
	Long: `Unmount every chroot mount recorded in the journal that has not been
released yet, most recent first.

With --forget the mounts are only marked as released, for when they were
already unmounted by hand or by a reboot.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().Bool("forget", false, "mark mounts released without unmounting")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	forget, _ := cmd.Flags().GetBool("forget")

	journal, err := openJournal()
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer journal.Close()

	active, err := journal.ActiveMounts()
	if err != nil {
		return err
	}
	if len(active) == 0 {
		fmt.Println("Nothing to clean up.")
		return nil
	}

	runner := newRunner()
	var errs []error
	released := 0
	for _, m := range active {
		if !forget {
			if err := chroot.Release(cmd.Context(), runner, []chroot.Mount{{Source: m.Source, Target: m.Target}}); err != nil {
				color.Red("  %s: %v", m.Target, err)
				errs = append(errs, err)
				continue
			}
		}
		if err := journal.MarkReleased(m.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		released++
		fmt.Printf("  released %s\n", m.Target)
	}

	fmt.Printf("Released %d of %d mounts\n", released, len(active))
	return errors.Join(errs...)
}
