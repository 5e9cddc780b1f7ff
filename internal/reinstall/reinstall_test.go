package reinstall

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"

	"github.com/sigreer/bootmend/internal/distro"
	"github.com/sigreer/bootmend/internal/procerr"
	"github.com/sigreer/bootmend/internal/sysexec/sysexectest"
	"golang.org/x/sys/unix"
)

type fakeChrooter struct {
	dir string
	err error
}

func (f *fakeChrooter) Chroot(dir string) error {
	f.dir = dir
	return f.err
}

func writeScript(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestDecode(t *testing.T) {
	if err := Decode(0, true); err != nil {
		t.Fatalf("exit 0 must decode to nil, got %v", err)
	}
	if err := Decode(168, true); !errors.Is(err, procerr.PermissionDenied) {
		t.Fatalf("168 must decode to PermissionDenied, got %v", err)
	}
	if err := Decode(999, true); !errors.Is(err, procerr.OtherError) {
		t.Fatalf("999 must decode to OtherError, got %v", err)
	}
	if err := Decode(0, false); !errors.Is(err, procerr.OtherError) {
		t.Fatalf("signal must decode to OtherError, got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, k := range []procerr.Kind{procerr.ProgramError, procerr.NotFound, procerr.PermissionDenied, procerr.OtherError} {
		code := ExitCode(&procerr.CallError{Kind: k})
		if err := Decode(code, true); !errors.Is(err, k) {
			t.Errorf("%s: decoded %v from code %d", k, err, code)
		}
	}
}

func TestHelperFedora(t *testing.T) {
	r := sysexectest.New()
	ch := &fakeChrooter{}
	h := &Helper{Chrooter: ch, Runner: r}

	if code := h.Main(context.Background(), []string{"/mnt/sysimage", "Fedora"}); code != 0 {
		t.Fatalf("exit code %d", code)
	}
	if ch.dir != "/mnt/sysimage" {
		t.Fatalf("chroot into %q", ch.dir)
	}
	want := []string{"/usr/bin/dnf install -y grub2-efi shim"}
	if got := r.Lines(); !slices.Equal(got, want) {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestHelperDnfFailure(t *testing.T) {
	r := sysexectest.New().On("/usr/bin/dnf", sysexectest.Response{Err: &procerr.CallError{Kind: procerr.NotFound}})
	h := &Helper{Chrooter: &fakeChrooter{}, Runner: r}

	if code := h.Main(context.Background(), []string{"/mnt/sysimage", "Fedora"}); code != 167 {
		t.Fatalf("expected NotFound code 167, got %d", code)
	}
}

func TestHelperUnknownDistribution(t *testing.T) {
	r := sysexectest.New()
	h := &Helper{Chrooter: &fakeChrooter{}, Runner: r}

	if code := h.Main(context.Background(), []string{"/mnt/sysimage", "Linux"}); code != 169 {
		t.Fatalf("expected OtherError code 169, got %d", code)
	}
	if len(r.Lines()) != 0 {
		t.Fatalf("no package manager may run for an unknown distribution")
	}
}

func TestHelperChrootDenied(t *testing.T) {
	h := &Helper{Chrooter: &fakeChrooter{err: unix.EPERM}, Runner: sysexectest.New()}
	if code := h.Main(context.Background(), []string{"/mnt/sysimage", "Fedora"}); code != 168 {
		t.Fatalf("expected PermissionDenied code 168, got %d", code)
	}
}

func TestHelperUsage(t *testing.T) {
	h := &Helper{Chrooter: &fakeChrooter{}, Runner: sysexectest.New()}
	if code := h.Main(context.Background(), []string{"/mnt/sysimage"}); code != 169 {
		t.Fatalf("expected OtherError code 169, got %d", code)
	}
}

func TestInstallUnsupported(t *testing.T) {
	if err := Install(context.Background(), sysexectest.New(), distro.Unknown); !errors.Is(err, distro.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestRunMissingHelper(t *testing.T) {
	helper := filepath.Join(t.TempDir(), "missing-helper")
	err := Run(context.Background(), helper, "/mnt/sysimage", distro.Fedora)
	if !errors.Is(err, procerr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestRunDecodesExitStatus(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	script := filepath.Join(t.TempDir(), "helper")
	writeScript(t, script, "#!"+sh+"\nexit 168\n")

	err = Run(context.Background(), script, "/mnt/sysimage", distro.Fedora)
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Code != 168 || rerr.Kind != procerr.PermissionDenied {
		t.Fatalf("unexpected error: %#v", err)
	}
}
