// Command bootmend-reinstall is started by bootmend with a chroot directory
// and a distribution name. It enters the chroot, reinstalls the bootloader
// packages and reports the outcome through its exit status only.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sigreer/bootmend/internal/reinstall"
	"github.com/sigreer/bootmend/internal/sysexec"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Str("component", "reinstall").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	h := &reinstall.Helper{
		Chrooter: reinstall.SysChrooter{},
		Runner:   &sysexec.ExecRunner{Stream: true},
	}
	code := h.Main(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
