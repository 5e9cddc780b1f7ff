package roots

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/sigreer/bootmend/internal/blockdev"
	"github.com/sigreer/bootmend/internal/distro"
	"github.com/sigreer/bootmend/internal/mount"
	"github.com/sigreer/bootmend/internal/sysexec"
)

// Common errors
var (
	ErrNoRoot             = errors.New("no installed root filesystem found")
	ErrRootNotFound       = errors.New("requested device holds no root filesystem")
	ErrAmbiguousSubvolume = errors.New("more than one btrfs subvolume holds a root filesystem")
)

// DiscoveredRoot is a device holding an installed system.
type DiscoveredRoot struct {
	// Device is the lsblk device name, e.g. "sda2".
	Device string `json:"device"`
	// Subvolume is set when the root lives in a btrfs subvolume rather
	// than at the top of the filesystem.
	Subvolume    string              `json:"subvolume,omitempty"`
	Hostname     string              `json:"hostname"`
	Distribution distro.Distribution `json:"distribution"`
	FSType       string              `json:"fstype,omitempty"`
	UUID         string              `json:"uuid,omitempty"`
}

// DevicePath returns the device node of the root.
func (r DiscoveredRoot) DevicePath() string {
	return filepath.Join("/dev", r.Device)
}

// Locator probes block devices for installed root filesystems.
type Locator struct {
	Runner  sysexec.Runner
	Mounter mount.Mounter
	// ScratchMount is where each candidate is temporarily mounted.
	ScratchMount string
	ReadOnly     bool
	// SkipFSTypes are never probed (swap cannot be mounted).
	SkipFSTypes []string
}

// Discover returns one DiscoveredRoot per device that holds etc/fstab, in
// catalog order. A probe mount failure aborts discovery.
func (l *Locator) Discover(ctx context.Context) ([]DiscoveredRoot, error) {
	devices, err := blockdev.List(ctx, l.Runner)
	if err != nil {
		return nil, fmt.Errorf("failed to list block devices: %w", err)
	}
	return l.DiscoverIn(ctx, devices)
}

// DiscoverIn is Discover over an already parsed catalog.
func (l *Locator) DiscoverIn(ctx context.Context, devices []blockdev.BlockDevice) ([]DiscoveredRoot, error) {
	var found []DiscoveredRoot
	for _, cand := range blockdev.Candidates(devices) {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		if !l.probeable(cand) {
			log.Debug().Str("device", cand.Name).Str("fstype", cand.FSType).Msg("skipping candidate")
			continue
		}

		root, ok, err := l.examine(cand)
		if err != nil {
			return found, err
		}
		if ok {
			log.Info().Str("device", root.Device).Str("subvolume", root.Subvolume).
				Str("distribution", root.Distribution.String()).Str("hostname", root.Hostname).
				Msg("found root filesystem")
			found = append(found, root)
		}
	}
	return found, nil
}

func (l *Locator) probeable(d blockdev.BlockDevice) bool {
	return d.FSType != "" && !slices.Contains(l.SkipFSTypes, d.FSType)
}

// examine mounts one candidate and looks for a root filesystem on it. The
// probe mount is always released before returning.
func (l *Locator) examine(dev blockdev.BlockDevice) (DiscoveredRoot, bool, error) {
	guard, err := mount.Probe(l.Mounter, dev.Path(), l.ScratchMount, dev.FSType, l.ReadOnly)
	if err != nil {
		return DiscoveredRoot{}, false, err
	}
	defer guard.Release()

	mnt := guard.Target()
	subvol := ""
	if !hasFstab(mnt) {
		if dev.FSType != "btrfs" {
			return DiscoveredRoot{}, false, nil
		}
		subvol, err = findSubvolume(mnt)
		if err != nil {
			return DiscoveredRoot{}, false, fmt.Errorf("%s: %w", dev.Name, err)
		}
		if subvol == "" {
			return DiscoveredRoot{}, false, nil
		}
	}

	root := filepath.Join(mnt, subvol)
	return DiscoveredRoot{
		Device:       dev.Name,
		Subvolume:    subvol,
		Hostname:     distro.Hostname(root),
		Distribution: distro.Identify(root),
		FSType:       dev.FSType,
		UUID:         dev.UUID,
	}, true, nil
}

func hasFstab(root string) bool {
	_, err := os.Stat(filepath.Join(root, "etc/fstab"))
	return err == nil
}

// findSubvolume returns the single top-level directory of a btrfs mount
// that contains etc/fstab, or "" if none does.
func findSubvolume(mnt string) (string, error) {
	entries, err := os.ReadDir(mnt)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", mnt, err)
	}

	var matches []string
	for _, e := range entries {
		if e.IsDir() && hasFstab(filepath.Join(mnt, e.Name())) {
			matches = append(matches, e.Name())
		}
	}

	switch len(matches) {
	case 0:
		return "", nil
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %v", ErrAmbiguousSubvolume, matches)
	}
}

// Select picks the root to repair. With an empty device name the last
// discovered root wins; otherwise the root on that device.
func Select(found []DiscoveredRoot, device string) (DiscoveredRoot, error) {
	if len(found) == 0 {
		return DiscoveredRoot{}, ErrNoRoot
	}
	if device == "" {
		return found[len(found)-1], nil
	}

	name := filepath.Base(device)
	for i := len(found) - 1; i >= 0; i-- {
		if found[i].Device == name {
			return found[i], nil
		}
	}
	return DiscoveredRoot{}, fmt.Errorf("%w: %s", ErrRootNotFound, device)
}
