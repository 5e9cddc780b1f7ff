package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "sysimage: /mnt/target\nprivilege_helper: \"\"\nlog_level: \"\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Sysimage != "/mnt/target" {
		t.Fatalf("sysimage = %q", cfg.Sysimage)
	}
	if cfg.PrivilegeHelper != "" {
		t.Fatalf("explicit empty privilege helper must be kept, got %q", cfg.PrivilegeHelper)
	}
	if cfg.LogLevel != "info" || cfg.ScratchMount != "/mnt/bootmend-probe" || !cfg.ProbeReadOnly {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	for _, fstype := range []string{"swap", "LVM2_member", "crypto_LUKS", "linux_raid_member", "BitLocker", "squashfs"} {
		if !slices.Contains(cfg.SkipFSTypes, fstype) {
			t.Fatalf("default skip_fstypes %q lacks %s", cfg.SkipFSTypes, fstype)
		}
	}
}

func TestLoadOverridesList(t *testing.T) {
	path := writeConfig(t, "probe_read_only: false\nskip_fstypes: [swap, crypto_LUKS]\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ProbeReadOnly {
		t.Fatalf("probe_read_only not overridden")
	}
	if !slices.Equal(cfg.SkipFSTypes, []string{"swap", "crypto_LUKS"}) {
		t.Fatalf("skip_fstypes = %q", cfg.SkipFSTypes)
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestLoadRejectsSharedMountPoint(t *testing.T) {
	path := writeConfig(t, "scratch_mount: /mnt/x\nsysimage: /mnt/x/\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error when scratch_mount equals sysimage")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "skip_fstypes: [unterminated\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDefaultIsCopy(t *testing.T) {
	cfg := Default()
	cfg.SkipFSTypes[0] = "ext4"
	if Default().SkipFSTypes[0] != "swap" {
		t.Fatalf("Default must not share the skip list")
	}
}
