package procerr

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"testing"
)

func TestExitCodeRoundTrip(t *testing.T) {
	if code := PermissionDenied.ExitCode(); code != 168 {
		t.Fatalf("PermissionDenied encodes to %d, want 168", code)
	}
	for _, k := range []Kind{ProgramError, NotFound, PermissionDenied, OtherError} {
		if got := KindFromExitCode(k.ExitCode()); got != k {
			t.Errorf("round trip of %s gave %s", k, got)
		}
	}
}

func TestExitCodeOrder(t *testing.T) {
	want := map[Kind]int{ProgramError: 166, NotFound: 167, PermissionDenied: 168, OtherError: 169}
	for k, code := range want {
		if k.ExitCode() != code {
			t.Errorf("%s: got %d want %d", k, k.ExitCode(), code)
		}
	}
}

func TestKindFromExitCodeOutOfRange(t *testing.T) {
	for _, code := range []int{999, 165, 170, 1, -1} {
		if got := KindFromExitCode(code); got != OtherError {
			t.Errorf("code %d decoded to %s", code, got)
		}
	}
}

func TestFromRunSuccess(t *testing.T) {
	if err := FromRun("true", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := FromOutput("echo", []byte("hi"), nil)
	if err != nil || string(out) != "hi" {
		t.Fatalf("got %q, %v", out, err)
	}
}

func TestFromRunNotFound(t *testing.T) {
	err := FromRun("nope", &exec.Error{Name: "nope", Err: exec.ErrNotFound})
	if !errors.Is(err, NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	err = FromRun("/missing/bin", &fs.PathError{Op: "fork/exec", Path: "/missing/bin", Err: fs.ErrNotExist})
	if !errors.Is(err, NotFound) {
		t.Fatalf("expected NotFound for missing path, got %v", err)
	}
}

func TestFromRunPermissionDenied(t *testing.T) {
	err := FromRun("/root/bin", &fs.PathError{Op: "fork/exec", Path: "/root/bin", Err: os.ErrPermission})
	if !errors.Is(err, PermissionDenied) {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
}

func TestFromRunOther(t *testing.T) {
	err := FromRun("x", errors.New("boom"))
	if !errors.Is(err, OtherError) {
		t.Fatalf("expected OtherError, got %v", err)
	}
}

func TestFromRunNonZeroExit(t *testing.T) {
	path, lookErr := exec.LookPath("false")
	if lookErr != nil {
		t.Skip("false not available")
	}
	_, err := FromOutput("false", nil, exec.Command(path).Run())
	if !errors.Is(err, ProgramError) {
		t.Fatalf("expected ProgramError, got %v", err)
	}
	var ce *CallError
	if !errors.As(err, &ce) || ce.Command != "false" {
		t.Fatalf("expected CallError for false, got %#v", err)
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("stage: %w", FromRun("x", &exec.Error{Name: "x", Err: exec.ErrNotFound}))
	k, ok := KindOf(err)
	if !ok || k != NotFound {
		t.Fatalf("got %s, %v", k, ok)
	}
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatalf("plain error should carry no kind")
	}
}
