package procerr

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
)

// Kind classifies why an external program failed. The same four values are
// used for commands run in-process and for the exit status of the reinstall
// helper, where they are encoded as ExitCodeBase + ordinal.
type Kind int

const (
	ProgramError Kind = iota
	NotFound
	PermissionDenied
	OtherError
)

// ExitCodeBase is the exit status that encodes ProgramError. NotFound,
// PermissionDenied and OtherError follow it in that order.
const ExitCodeBase = 166

func (k Kind) Error() string {
	switch k {
	case ProgramError:
		return "the program had an error"
	case NotFound:
		return "the program was not found"
	case PermissionDenied:
		return "the user has not enough permissions for this program"
	default:
		return "other error"
	}
}

func (k Kind) String() string {
	switch k {
	case ProgramError:
		return "ProgramError"
	case NotFound:
		return "NotFound"
	case PermissionDenied:
		return "PermissionDenied"
	default:
		return "OtherError"
	}
}

// ExitCode returns the process exit status that encodes k.
func (k Kind) ExitCode() int {
	if k < ProgramError || k > OtherError {
		k = OtherError
	}
	return ExitCodeBase + int(k)
}

// KindFromExitCode decodes an exit status produced by Kind.ExitCode.
// Codes outside the encoded range decode to OtherError.
func KindFromExitCode(code int) Kind {
	if code < ExitCodeBase || code > ExitCodeBase+int(OtherError) {
		return OtherError
	}
	return Kind(code - ExitCodeBase)
}

// CallError describes a failed external command.
type CallError struct {
	Command string
	Kind    Kind
	Stderr  string
	Err     error
}

func (e *CallError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Command, e.Kind.Error())
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	if e.Err != nil {
		msg += " (" + e.Err.Error() + ")"
	}
	return msg
}

// Unwrap exposes both the classification and the underlying cause, so
// errors.Is(err, procerr.NotFound) holds for a wrapped CallError.
func (e *CallError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Classify maps the error returned by exec.Cmd.Run/Output to a Kind.
func Classify(err error) Kind {
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		return ProgramError
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return NotFound
	case errors.Is(err, fs.ErrPermission):
		return PermissionDenied
	default:
		return OtherError
	}
}

// FromRun converts the outcome of running cmdline into nil or a *CallError.
func FromRun(cmdline string, err error) error {
	if err == nil {
		return nil
	}
	ce := &CallError{Command: cmdline, Kind: Classify(err), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		ce.Stderr = strings.TrimSpace(string(exitErr.Stderr))
	}
	return ce
}

// FromOutput is FromRun for commands whose stdout was captured.
func FromOutput(cmdline string, out []byte, err error) ([]byte, error) {
	if err := FromRun(cmdline, err); err != nil {
		return nil, err
	}
	return out, nil
}

// KindOf reports the classification carried anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var k Kind
	if errors.As(err, &k) {
		return k, true
	}
	return OtherError, false
}
