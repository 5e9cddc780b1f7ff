package blockdev

// IsDevice reports whether d can hold an installed system.
//   - no filesystem and no children: zram and similar virtual devices
//   - squashfs: the live image overlay
//
// Whole disks without a filesystem of their own are kept for their children.
func IsDevice(d BlockDevice) bool {
	if d.FSType == "" && len(d.Children) == 0 {
		return false
	}
	return d.FSType != "squashfs"
}

// Candidates flattens the catalog into the devices worth probing, in
// catalog order. A disk with partitions yields its partitions only; the
// partitions go through IsDevice as well.
func Candidates(devices []BlockDevice) []BlockDevice {
	var out []BlockDevice
	for _, d := range devices {
		if !IsDevice(d) {
			continue
		}
		if len(d.Children) > 0 {
			for _, c := range d.Children {
				if IsDevice(c) {
					out = append(out, c)
				}
			}
			continue
		}
		out = append(out, d)
	}
	return out
}
