package mount

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// Common errors
var (
	ErrMountFailed   = errors.New("mount failed")
	ErrUnmountFailed = errors.New("unmount failed")
)

// Mounter is the mount(2)/umount2(2) pair.
type Mounter interface {
	Mount(source, target, fstype string, flags uintptr, data string) error
	Unmount(target string, flags int) error
}

// SysMounter calls the kernel directly.
type SysMounter struct{}

func (SysMounter) Mount(source, target, fstype string, flags uintptr, data string) error {
	return unix.Mount(source, target, fstype, flags, data)
}

func (SysMounter) Unmount(target string, flags int) error {
	return unix.Unmount(target, flags)
}

// Guard owns one active mount and detaches it on Release. Release is safe
// to call more than once, so it can be deferred right after Probe.
type Guard struct {
	m      Mounter
	source string
	target string
	once   sync.Once
	err    error
}

// Target returns the mount point.
func (g *Guard) Target() string { return g.target }

// Release lazily unmounts the guarded mount.
func (g *Guard) Release() error {
	g.once.Do(func() {
		if err := g.m.Unmount(g.target, unix.MNT_DETACH); err != nil {
			g.err = fmt.Errorf("%w: %s: %w", ErrUnmountFailed, g.target, err)
			log.Warn().Err(err).Str("target", g.target).Msg("failed to release probe mount")
			return
		}
		log.Debug().Str("source", g.source).Str("target", g.target).Msg("released probe mount")
	})
	return g.err
}

// Probe mounts source at target and returns a guard for it. The target
// directory is created if absent.
func Probe(m Mounter, source, target, fstype string, readOnly bool) (*Guard, error) {
	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create mount point %s: %w", target, err)
	}

	var flags uintptr
	if readOnly {
		flags |= unix.MS_RDONLY
	}
	if err := m.Mount(source, target, fstype, flags, ""); err != nil {
		return nil, fmt.Errorf("%w: %s on %s (%s): %w", ErrMountFailed, source, target, fstype, err)
	}
	log.Debug().Str("source", source).Str("target", target).Str("fstype", fstype).Bool("ro", readOnly).Msg("probe mount")

	return &Guard{m: m, source: source, target: target}, nil
}
