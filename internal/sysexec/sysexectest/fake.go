// Package sysexectest provides a scripted sysexec.Runner for tests.
package sysexectest

import (
	"context"
	"strings"
	"sync"

	"github.com/sigreer/bootmend/internal/sysexec"
)

// Response is the scripted result for a command line prefix.
type Response struct {
	Output []byte
	Err    error
}

// Runner records every command and answers from Responses. A command is
// matched against the longest registered prefix of its command line.
type Runner struct {
	mu        sync.Mutex
	responses map[string]Response
	Calls     []sysexec.Cmd
}

// New returns an empty fake runner; unmatched commands succeed silently.
func New() *Runner {
	return &Runner{responses: make(map[string]Response)}
}

// On scripts the response for commands starting with prefix.
func (r *Runner) On(prefix string, resp Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[prefix] = resp
	return r
}

func (r *Runner) lookup(c sysexec.Cmd) Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, c)

	line := c.String()
	best, found := "", false
	for prefix := range r.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) >= len(best) {
			best, found = prefix, true
		}
	}
	if !found {
		return Response{}
	}
	return r.responses[best]
}

func (r *Runner) Run(_ context.Context, c sysexec.Cmd) error {
	return r.lookup(c).Err
}

func (r *Runner) Output(_ context.Context, c sysexec.Cmd) ([]byte, error) {
	resp := r.lookup(c)
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Output, nil
}

// Lines returns the recorded command lines in call order.
func (r *Runner) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		lines[i] = c.String()
	}
	return lines
}
