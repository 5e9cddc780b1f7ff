package chroot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/sigreer/bootmend/internal/distro"
	"github.com/sigreer/bootmend/internal/sysexec"
)

// pseudoFilesystems are bind-mounted from the host, in this order.
var pseudoFilesystems = []string{"/dev", "/proc", "/run", "/sys"}

// bootMounts are the fstab mount points mounted into the chroot when the
// installed system declares them. /boot/efi is the ESP the shim lands on.
var bootMounts = []string{"/boot", "/boot/efi"}

// Target is the installed system to enter.
type Target struct {
	Device       string
	Subvolume    string
	Distribution distro.Distribution
}

// Mount is one mount made while preparing the chroot.
type Mount struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Prepared describes a ready chroot. Its mounts stay active until Release.
type Prepared struct {
	Root         string
	Distribution distro.Distribution
	Mounts       []Mount
}

// Preparer mounts an installed system plus the pseudo-filesystems a
// package manager needs to run inside it.
type Preparer struct {
	Runner   sysexec.Runner
	MountDir string
}

// Prepare mounts t at p.MountDir. On failure every mount made so far is
// undone in reverse order; on success the mounts are left in place.
func (p *Preparer) Prepare(ctx context.Context, t Target) (prep *Prepared, err error) {
	if err := os.MkdirAll(p.MountDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", p.MountDir, err)
	}

	var done []Mount
	defer func() {
		if err != nil && len(done) > 0 {
			if rbErr := Release(context.WithoutCancel(ctx), p.Runner, done); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	args := []string{t.Device, p.MountDir}
	if t.Subvolume != "" {
		args = append(args, "-o", "subvol="+t.Subvolume)
	}
	if err := p.Runner.Run(ctx, sysexec.Command("mount", args...)); err != nil {
		return nil, fmt.Errorf("failed to mount root %s: %w", t.Device, err)
	}
	done = append(done, Mount{Source: t.Device, Target: p.MountDir})

	for _, fs := range pseudoFilesystems {
		target := filepath.Join(p.MountDir, fs)
		if err := p.Runner.Run(ctx, sysexec.Command("mount", "--bind", fs, target)); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", fs, err)
		}
		done = append(done, Mount{Source: fs, Target: target})
	}

	entries, err := readMounts(p.MountDir)
	if err != nil {
		return nil, err
	}
	for _, mp := range bootMounts {
		entry, ok := entries[mp]
		if !ok {
			log.Debug().Str("mountpoint", mp).Msg("no fstab entry, nothing to mount")
			continue
		}
		source := ResolveSpec(entry.Spec)
		target := filepath.Join(p.MountDir, mp)
		if err := p.Runner.Run(ctx, sysexec.Command("mount", source, target)); err != nil {
			return nil, fmt.Errorf("failed to mount %s: %w", mp, err)
		}
		done = append(done, Mount{Source: source, Target: target})
	}

	log.Info().Str("root", p.MountDir).Int("mounts", len(done)).Msg("chroot prepared")
	return &Prepared{Root: p.MountDir, Distribution: t.Distribution, Mounts: done}, nil
}

// Release unmounts mounts in reverse order and joins every failure.
func Release(ctx context.Context, r sysexec.Runner, mounts []Mount) error {
	var errs []error
	for i := len(mounts) - 1; i >= 0; i-- {
		if err := r.Run(ctx, sysexec.Command("umount", mounts[i].Target)); err != nil {
			log.Warn().Err(err).Str("target", mounts[i].Target).Msg("failed to unmount")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
