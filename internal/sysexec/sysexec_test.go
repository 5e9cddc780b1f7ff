package sysexec

import (
	"context"
	"errors"
	"os/exec"
	"slices"
	"testing"

	"github.com/sigreer/bootmend/internal/procerr"
)

func TestPrivilegedPrefix(t *testing.T) {
	r := &ExecRunner{PrivilegeHelper: "sudo"}
	cmd := r.build(context.Background(), Command("efibootmgr", "-v").AsPrivileged())
	if want := []string{"sudo", "efibootmgr", "-v"}; !slices.Equal(cmd.Args, want) {
		t.Fatalf("args = %v, want %v", cmd.Args, want)
	}

	plain := r.build(context.Background(), Command("lsblk", "-fJ"))
	if want := []string{"lsblk", "-fJ"}; !slices.Equal(plain.Args, want) {
		t.Fatalf("args = %v, want %v", plain.Args, want)
	}
}

func TestNoHelperRunsDirectly(t *testing.T) {
	r := &ExecRunner{}
	cmd := r.build(context.Background(), Command("fdisk", "-l").AsPrivileged())
	if want := []string{"fdisk", "-l"}; !slices.Equal(cmd.Args, want) {
		t.Fatalf("args = %v, want %v", cmd.Args, want)
	}
}

func TestWithEnvDoesNotAlias(t *testing.T) {
	base := Command("fdisk", "-l").WithEnv("LC_ALL=C")
	a := base.WithEnv("A=1")
	b := base.WithEnv("B=2")
	if len(base.Env) != 1 || a.Env[1] != "A=1" || b.Env[1] != "B=2" {
		t.Fatalf("env aliasing: base=%v a=%v b=%v", base.Env, a.Env, b.Env)
	}
	cmd := (&ExecRunner{}).build(context.Background(), a)
	if !slices.Contains(cmd.Env, "LC_ALL=C") || !slices.Contains(cmd.Env, "A=1") {
		t.Fatalf("env not applied: %v", cmd.Env)
	}
}

func TestRunMissingBinary(t *testing.T) {
	err := (&ExecRunner{}).Run(context.Background(), Command("bootmend-definitely-missing-binary"))
	if !errors.Is(err, procerr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestOutputCapturesStdout(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}
	out, err := (&ExecRunner{}).Output(context.Background(), Command("echo", "hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "hello\n" {
		t.Fatalf("got %q", out)
	}
}
