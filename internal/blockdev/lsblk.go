package blockdev

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/sigreer/bootmend/internal/sysexec"
)

// BlockDevice is one node of the lsblk -f device tree
type BlockDevice struct {
	Name     string        `json:"name"`
	FSType   string        `json:"fstype,omitempty"`
	UUID     string        `json:"uuid,omitempty"`
	Label    string        `json:"label,omitempty"`
	Children []BlockDevice `json:"children,omitempty"`
}

// lsblkOutput represents the JSON output from lsblk
type lsblkOutput struct {
	Blockdevices []lsblkDevice `json:"blockdevices"`
}

// lsblkDevice mirrors the columns printed by `lsblk -fJ`. Every column
// except name may be null.
type lsblkDevice struct {
	Name     string        `json:"name"`
	FSType   *string       `json:"fstype"`
	UUID     *string       `json:"uuid"`
	Label    *string       `json:"label"`
	Children []lsblkDevice `json:"children,omitempty"`
}

// Path returns the device node, e.g. /dev/sda1
func (d BlockDevice) Path() string {
	return filepath.Join("/dev", d.Name)
}

// List runs `lsblk -fJ` and parses its device tree.
func List(ctx context.Context, r sysexec.Runner) ([]BlockDevice, error) {
	out, err := r.Output(ctx, sysexec.Command("lsblk", "-fJ"))
	if err != nil {
		return nil, err
	}
	return Parse(out)
}

// Parse decodes lsblk JSON output.
func Parse(data []byte) ([]BlockDevice, error) {
	var output lsblkOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("failed to parse lsblk output: %w", err)
	}

	devices := make([]BlockDevice, 0, len(output.Blockdevices))
	for _, dev := range output.Blockdevices {
		devices = append(devices, convert(dev))
	}
	return devices, nil
}

func convert(dev lsblkDevice) BlockDevice {
	bd := BlockDevice{
		Name:   dev.Name,
		FSType: deref(dev.FSType),
		UUID:   deref(dev.UUID),
		Label:  deref(dev.Label),
	}
	for _, child := range dev.Children {
		bd.Children = append(bd.Children, convert(child))
	}
	return bd
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
