package uefi

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sigreer/bootmend/internal/distro"
	"github.com/sigreer/bootmend/internal/sysexec"
)

// Common errors
var (
	ErrNoESP         = errors.New("no EFI System partition found")
	ErrNoPartitionNo = errors.New("device path has no partition number")
)

// fixedLocale keeps fdisk and efibootmgr output in English. LC_ALL wins
// over LANG and every LC_* variable the rescue shell may export.
const fixedLocale = "LC_ALL=C"

// espRe matches an fdisk -l partition row of type "EFI System":
// /dev/sda1  2048  1050623  1048576  512M EFI System
var espRe = regexp.MustCompile(`(?m)^(/[\w/.-]+)\s+(?:\*\s+)?[0-9]+\s+[0-9]+\s+[0-9]+\s+[0-9.,]+[KMGTPE]?\s+EFI System`)

// loaderPaths maps a distribution to its shim/loader image on the ESP.
var loaderPaths = map[distro.Distribution]string{
	distro.Fedora: "/EFI/fedora/shim.efi",
}

// ParseESP returns the first EFI System partition listed in fdisk output.
func ParseESP(out string) (string, bool) {
	m := espRe.FindStringSubmatch(out)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// LocateESP finds the EFI System partition with `fdisk -l`.
func LocateESP(ctx context.Context, r sysexec.Runner) (string, error) {
	out, err := r.Output(ctx, sysexec.Command("fdisk", "-l").WithEnv(fixedLocale).AsPrivileged())
	if err != nil {
		return "", fmt.Errorf("failed to list partitions: %w", err)
	}
	dev, ok := ParseESP(string(out))
	if !ok {
		return "", ErrNoESP
	}
	log.Debug().Str("esp", dev).Msg("found EFI System partition")
	return dev, nil
}

// LoaderPath returns the firmware path of d's loader image.
func LoaderPath(d distro.Distribution) (string, error) {
	path, ok := loaderPaths[d]
	if !ok {
		return "", fmt.Errorf("%w: no EFI loader known for %s", distro.ErrUnsupported, d)
	}
	return path, nil
}

// normalizeLoader upper-cases a firmware path and turns backslashes into
// slashes; firmware reports paths case-insensitively with backslashes.
func normalizeLoader(s string) string {
	return strings.ReplaceAll(strings.ToUpper(s), `\`, "/")
}

// ContainsLoader reports whether efibootmgr output references path.
func ContainsLoader(out, path string) bool {
	return strings.Contains(normalizeLoader(out), normalizeLoader(path))
}

// HasEntry reports whether an NVRAM boot entry points at path.
func HasEntry(ctx context.Context, r sysexec.Runner, path string) (bool, error) {
	out, err := r.Output(ctx, sysexec.Command("efibootmgr", "-v").WithEnv(fixedLocale).AsPrivileged())
	if err != nil {
		return false, fmt.Errorf("failed to list boot entries: %w", err)
	}
	return ContainsLoader(string(out), path), nil
}

// SplitPartition splits a partition device path into its disk and
// partition number: /dev/sda12 -> /dev/sda, 12 and
// /dev/nvme0n1p3 -> /dev/nvme0n1, 3.
func SplitPartition(dev string) (disk, part string, err error) {
	i := len(dev)
	for i > 0 && dev[i-1] >= '0' && dev[i-1] <= '9' {
		i--
	}
	if i == len(dev) || i == 0 {
		return "", "", fmt.Errorf("%w: %s", ErrNoPartitionNo, dev)
	}
	disk, part = dev[:i], dev[i:]

	// nvme0n1p3, mmcblk0p1, loop0p1: the disk name ends in a digit, so
	// the kernel separates the partition number with a "p"
	if strings.HasSuffix(disk, "p") && len(disk) > 1 && disk[len(disk)-2] >= '0' && disk[len(disk)-2] <= '9' {
		disk = disk[:len(disk)-1]
	}
	return disk, part, nil
}

// AddEntry creates an NVRAM boot entry named name for the loader at path
// on the ESP device esp.
func AddEntry(ctx context.Context, r sysexec.Runner, name, esp, path string) error {
	disk, part, err := SplitPartition(esp)
	if err != nil {
		return err
	}
	cmd := sysexec.Command("efibootmgr", "-c", "-w", "-L", name, "-d", disk, "-p", part, "-l", path).AsPrivileged()
	if err := r.Run(ctx, cmd); err != nil {
		return fmt.Errorf("failed to create boot entry: %w", err)
	}
	log.Info().Str("label", name).Str("disk", disk).Str("partition", part).Str("loader", path).Msg("created boot entry")
	return nil
}
