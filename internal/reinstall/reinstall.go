// Package reinstall runs the bootloader package installation inside a
// prepared chroot. The chroot(2) switch cannot be undone within a process,
// so it happens in a separate helper binary that reports its outcome only
// through its exit status: 0 on success, otherwise procerr.Kind.ExitCode().
package reinstall

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/rs/zerolog/log"

	"github.com/sigreer/bootmend/internal/distro"
	"github.com/sigreer/bootmend/internal/procerr"
)

// DefaultHelper is the helper binary looked up on PATH.
const DefaultHelper = "bootmend-reinstall"

// Error is a failure reported by the helper.
type Error struct {
	Kind procerr.Kind
	// Code is the raw exit status, or -1 when the helper did not exit
	// normally.
	Code int
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("bootloader reinstall failed: %s", e.Kind.Error())
	if e.Code >= 0 {
		msg += fmt.Sprintf(" (exit status %d)", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Decode turns a helper exit status into nil or an *Error. exited is false
// when the helper was killed by a signal.
func Decode(code int, exited bool) error {
	if !exited {
		return &Error{Kind: procerr.OtherError, Code: -1}
	}
	if code == 0 {
		return nil
	}
	return &Error{Kind: procerr.KindFromExitCode(code), Code: code}
}

// Run spawns helper with the chroot directory and distribution name and
// waits for it. The helper's output goes to this process's stdout/stderr.
func Run(ctx context.Context, helper, chrootDir string, d distro.Distribution) error {
	if helper == "" {
		helper = DefaultHelper
	}
	cmd := exec.CommandContext(ctx, helper, chrootDir, d.String())
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	log.Info().Str("helper", helper).Str("root", chrootDir).Str("distribution", d.String()).Msg("reinstalling bootloader")
	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Decode(exitErr.ExitCode(), exitErr.Exited())
	}
	return &Error{Kind: procerr.Classify(err), Code: -1, Err: err}
}
