package reinstall

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"github.com/sigreer/bootmend/internal/distro"
	"github.com/sigreer/bootmend/internal/procerr"
	"github.com/sigreer/bootmend/internal/sysexec"
)

// ErrUsage is returned for a helper invocation without exactly two arguments.
var ErrUsage = errors.New("usage: bootmend-reinstall <chroot-dir> <distribution>")

// Chrooter switches the process root.
type Chrooter interface {
	Chroot(dir string) error
}

// SysChrooter calls chroot(2) and moves the working directory to the new
// root.
type SysChrooter struct{}

func (SysChrooter) Chroot(dir string) error {
	if err := unix.Chroot(dir); err != nil {
		return fmt.Errorf("chroot %s: %w", dir, err)
	}
	if err := os.Chdir("/"); err != nil {
		return fmt.Errorf("chdir into chroot: %w", err)
	}
	return nil
}

// Helper is the child side of the protocol.
type Helper struct {
	Chrooter Chrooter
	Runner   sysexec.Runner
}

// Main runs the helper with its positional arguments and returns the
// process exit status.
func (h *Helper) Main(ctx context.Context, args []string) int {
	err := h.run(ctx, args)
	if err != nil {
		log.Error().Err(err).Msg("bootloader reinstall failed")
	}
	return ExitCode(err)
}

func (h *Helper) run(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return ErrUsage
	}
	dir, name := args[0], args[1]

	if err := h.Chrooter.Chroot(dir); err != nil {
		return &procerr.CallError{Command: "chroot " + dir, Kind: procerr.Classify(err), Err: err}
	}
	d, err := distro.Parse(name)
	if err != nil {
		return err
	}
	return Install(ctx, h.Runner, d)
}

// Install reinstalls the bootloader and shim packages of d. It must run
// inside the target root.
func Install(ctx context.Context, r sysexec.Runner, d distro.Distribution) error {
	switch d {
	case distro.Fedora:
		return r.Run(ctx, sysexec.Command("/usr/bin/dnf", "install", "-y", "grub2-efi", "shim"))
	default:
		return fmt.Errorf("%w: %s", distro.ErrUnsupported, d)
	}
}

// ExitCode encodes err for the parent process. Errors without a
// classification become OtherError.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	k, _ := procerr.KindOf(err)
	return k.ExitCode()
}
