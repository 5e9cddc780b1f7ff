package distro

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned wherever a Distribution has no concrete
// bootloader mapping.
var ErrUnsupported = errors.New("target distribution is not supported yet")

// Distribution is the installed system's family.
type Distribution int

const (
	Unknown Distribution = iota
	Fedora
)

// fedoraName is the os-release NAME that identifies Fedora.
const fedoraName = "Fedora Linux"

// String is the name passed to the reinstall helper.
func (d Distribution) String() string {
	switch d {
	case Fedora:
		return "Fedora"
	default:
		return "Linux"
	}
}

// LoaderName is the label of the firmware boot entry.
func (d Distribution) LoaderName() string {
	switch d {
	case Fedora:
		return "Fedora"
	default:
		return "Linux Loader"
	}
}

// Parse is the inverse of String for supported distributions.
func Parse(s string) (Distribution, error) {
	switch s {
	case "Fedora":
		return Fedora, nil
	default:
		return Unknown, fmt.Errorf("%w: %q", ErrUnsupported, s)
	}
}

func (d Distribution) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// OSRelease holds the fields of /etc/os-release that bootmend reads.
type OSRelease struct {
	Name string
	// Version is parsed for display only.
	Version string
}

// ParseOSRelease extracts NAME and VERSION from os-release text.
func ParseOSRelease(text string) OSRelease {
	var rel OSRelease
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "NAME":
			rel.Name = unquote(value)
		case "VERSION":
			rel.Version = unquote(value)
		}
	}
	return rel
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// Classify maps an os-release to a Distribution. Only an exact NAME match
// counts.
func (r OSRelease) Classify() Distribution {
	if r.Name == fedoraName {
		return Fedora
	}
	return Unknown
}

// ReadOSRelease reads etc/os-release below root. A missing or unreadable
// file yields an empty OSRelease.
func ReadOSRelease(root string) OSRelease {
	data, err := os.ReadFile(filepath.Join(root, "etc/os-release"))
	if err != nil {
		return OSRelease{}
	}
	return ParseOSRelease(string(data))
}

// Identify classifies the system installed below root.
func Identify(root string) Distribution {
	return ReadOSRelease(root).Classify()
}

// Hostname reads etc/hostname below root, empty if unreadable.
func Hostname(root string) string {
	data, err := os.ReadFile(filepath.Join(root, "etc/hostname"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
