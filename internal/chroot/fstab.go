package chroot

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	fstab "github.com/deniswernert/go-fstab"
	"github.com/rs/zerolog/log"
)

// byTag maps fstab source tags to their /dev/disk directory.
var byTag = map[string]string{
	"UUID":      "/dev/disk/by-uuid",
	"PARTUUID":  "/dev/disk/by-partuuid",
	"LABEL":     "/dev/disk/by-label",
	"PARTLABEL": "/dev/disk/by-partlabel",
}

// ResolveSpec turns an fstab source field into a device path.
func ResolveSpec(spec string) string {
	tag, value, ok := strings.Cut(spec, "=")
	if !ok {
		return spec
	}
	dir, known := byTag[strings.ToUpper(tag)]
	if !known {
		return spec
	}
	return filepath.Join(dir, strings.Trim(value, `"'`))
}

// readMounts parses <root>/etc/fstab and indexes the entries by mount point.
// Lines that do not parse are skipped so one odd entry cannot hide /boot.
func readMounts(root string) (map[string]*fstab.Mount, error) {
	path := filepath.Join(root, "etc/fstab")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fstab: %w", err)
	}
	defer f.Close()

	byFile := make(map[string]*fstab.Mount)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m, err := fstab.ParseLine(line)
		if err != nil {
			log.Warn().Err(err).Str("fstab", path).Int("line", lineNo).Msg("skipping unparsable fstab line")
			continue
		}
		if m == nil {
			continue
		}
		byFile[filepath.Clean(m.File)] = m
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fstab: %w", err)
	}
	return byFile, nil
}
