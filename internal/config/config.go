package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// ScratchMount is where root candidates are probed
	ScratchMount string `yaml:"scratch_mount"`
	// Sysimage is the chroot mount directory; it stays mounted after a repair
	Sysimage        string `yaml:"sysimage"`
	ReinstallHelper string `yaml:"reinstall_helper"`
	// PrivilegeHelper prefixes fdisk and efibootmgr, empty to run them directly
	PrivilegeHelper string   `yaml:"privilege_helper"`
	Journal         string   `yaml:"journal"`
	LogLevel        string   `yaml:"log_level"`
	ProbeReadOnly   bool     `yaml:"probe_read_only"`
	SkipFSTypes     []string `yaml:"skip_fstypes"`
}

// defaultConfig is used as-is when no config file exists
var defaultConfig = Config{
	ScratchMount:    "/mnt/bootmend-probe",
	Sysimage:        "/mnt/sysimage",
	ReinstallHelper: "bootmend-reinstall",
	PrivilegeHelper: "sudo",
	Journal:         "/var/lib/bootmend/journal.db",
	LogLevel:        "info",
	ProbeReadOnly:   true,
	SkipFSTypes:     unmountableFSTypes,
}

// unmountableFSTypes are lsblk types with no filesystem the kernel can mount
// directly: swap, volume/raid members, encrypted containers and live images
var unmountableFSTypes = []string{"swap", "LVM2_member", "crypto_LUKS", "linux_raid_member", "BitLocker", "squashfs"}

// Default returns a copy of the built-in configuration
func Default() *Config {
	cfg := defaultConfig
	cfg.SkipFSTypes = append([]string(nil), defaultConfig.SkipFSTypes...)
	return &cfg
}

func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		// Try default locations
		candidates := []string{
			"/etc/bootmend/config.yaml",
			filepath.Join(os.Getenv("HOME"), ".config/bootmend/config.yaml"),
			"config.yaml",
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if explicit {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return cfg, nil
	}
	// Keys absent from the file keep their defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// Apply defaults for values set to empty
	if cfg.ScratchMount == "" {
		cfg.ScratchMount = defaultConfig.ScratchMount
	}
	if cfg.Sysimage == "" {
		cfg.Sysimage = defaultConfig.Sysimage
	}
	if cfg.ReinstallHelper == "" {
		cfg.ReinstallHelper = defaultConfig.ReinstallHelper
	}
	if cfg.Journal == "" {
		cfg.Journal = defaultConfig.Journal
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultConfig.LogLevel
	}

	if filepath.Clean(cfg.ScratchMount) == filepath.Clean(cfg.Sysimage) {
		return nil, fmt.Errorf("scratch_mount and sysimage must differ (both %s)", cfg.Sysimage)
	}

	return cfg, nil
}
