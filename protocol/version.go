package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// BuildLength is the exact length of the build identifier in a version line
const BuildLength = 8

var ErrInvalidVersion = errors.New("protocol: invalid version line")

// FirmwareVersion is the version the firmware reports in its banner:
// MAJOR.MINOR.PATCH[-TAG]+BUILD
type FirmwareVersion struct {
	Major uint64
	Minor uint64
	Patch uint64
	Tag   string // Optional pre-release tag
	Build string // Always BuildLength characters
}

// ParseVersion parses a single banner line
func ParseVersion(line string) (FirmwareVersion, error) {
	major, rest, ok := strings.Cut(line, ".")
	if !ok {
		return FirmwareVersion{}, fmt.Errorf("%w: no major version in %q", ErrInvalidVersion, line)
	}
	minor, rest, ok := strings.Cut(rest, ".")
	if !ok {
		return FirmwareVersion{}, fmt.Errorf("%w: no minor version in %q", ErrInvalidVersion, line)
	}
	patch, build, ok := strings.Cut(rest, "+")
	if !ok {
		return FirmwareVersion{}, fmt.Errorf("%w: no build in %q", ErrInvalidVersion, line)
	}
	build = strings.TrimRightFunc(build, unicode.IsSpace)
	if len(build) != BuildLength {
		return FirmwareVersion{}, fmt.Errorf("%w: build %q is not %d characters", ErrInvalidVersion, build, BuildLength)
	}

	var v FirmwareVersion
	v.Build = build
	if p, tag, found := strings.Cut(patch, "-"); found {
		patch = p
		v.Tag = tag
	}

	var err error
	if v.Major, err = parseVersionNumber(major); err != nil {
		return FirmwareVersion{}, err
	}
	if v.Minor, err = parseVersionNumber(minor); err != nil {
		return FirmwareVersion{}, err
	}
	if v.Patch, err = parseVersionNumber(patch); err != nil {
		return FirmwareVersion{}, err
	}
	return v, nil
}

func parseVersionNumber(s string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidVersion, s)
	}
	return n, nil
}

// FindVersion returns the version from the first line that parses.
// Lines that don't parse are skipped.
func FindVersion(lines []string) (FirmwareVersion, bool) {
	for _, line := range lines {
		if v, err := ParseVersion(line); err == nil {
			return v, true
		}
	}
	return FirmwareVersion{}, false
}

func (v FirmwareVersion) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Tag != "" {
		s += "-" + v.Tag
	}
	return s + "+" + v.Build
}
