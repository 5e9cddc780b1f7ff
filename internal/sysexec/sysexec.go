package sysexec

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sigreer/bootmend/internal/procerr"
)

// Cmd is one external command invocation.
type Cmd struct {
	Name string
	Args []string
	// Env entries are appended to the inherited environment.
	Env []string
	// Privileged commands are prefixed with the runner's privilege helper.
	Privileged bool
}

// Command builds a Cmd.
func Command(name string, args ...string) Cmd {
	return Cmd{Name: name, Args: args}
}

// WithEnv returns a copy of c with extra environment entries.
func (c Cmd) WithEnv(env ...string) Cmd {
	c.Env = append(append([]string(nil), c.Env...), env...)
	return c
}

// AsPrivileged returns a copy of c marked privileged.
func (c Cmd) AsPrivileged() Cmd {
	c.Privileged = true
	return c
}

// String renders the command line for logs and errors.
func (c Cmd) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner executes external commands. Errors are *procerr.CallError.
type Runner interface {
	Run(ctx context.Context, c Cmd) error
	Output(ctx context.Context, c Cmd) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// PrivilegeHelper is prepended to privileged commands, e.g. "sudo".
	// Empty runs them directly.
	PrivilegeHelper string
	// Stream sends the output of Run to the process stdout/stderr.
	Stream bool
}

func (r *ExecRunner) build(ctx context.Context, c Cmd) *exec.Cmd {
	name, args := c.Name, c.Args
	if c.Privileged && r.PrivilegeHelper != "" {
		name, args = r.PrivilegeHelper, append([]string{c.Name}, c.Args...)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	return cmd
}

// Run executes c and waits for it.
func (r *ExecRunner) Run(ctx context.Context, c Cmd) error {
	cmd := r.build(ctx, c)
	var stderr bytes.Buffer
	if r.Stream {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stderr = &stderr
	}

	log.Debug().Str("cmd", c.String()).Bool("privileged", c.Privileged).Msg("running command")
	err := procerr.FromRun(c.String(), cmd.Run())
	if err != nil {
		if ce, ok := err.(*procerr.CallError); ok && ce.Stderr == "" {
			ce.Stderr = strings.TrimSpace(stderr.String())
		}
		log.Debug().Err(err).Str("cmd", c.String()).Msg("command failed")
	}
	return err
}

// Output executes c and returns its stdout.
func (r *ExecRunner) Output(ctx context.Context, c Cmd) ([]byte, error) {
	cmd := r.build(ctx, c)
	log.Debug().Str("cmd", c.String()).Bool("privileged", c.Privileged).Msg("running command")
	raw, runErr := cmd.Output()
	out, err := procerr.FromOutput(c.String(), raw, runErr)
	if err != nil {
		log.Debug().Err(err).Str("cmd", c.String()).Msg("command failed")
	}
	return out, err
}
