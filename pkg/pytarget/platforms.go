// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pytarget

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

//nolint:gochecknoglobals // immutable regexp, cheaper to compile once
var reMacArch = regexp.MustCompile(`^(.+)_(\d+)_(\d+)_(.+)$`)

//nolint:gochecknoglobals // immutable compatibility table, mirrors packaging.tags' arch aliasing
var macArchAliases = map[string][]string{
	"x86_64":   {"x86_64", "intel", "fat64", "fat32"},
	"i386":     {"i386", "intel", "fat32", "fat"},
	"ppc":      {"ppc", "fat"},
	"ppc64":    {"ppc64", "fat64"},
	"arm64":    {"arm64", "universal2"},
	"universal2": {"universal2"},
}

// expandPlatform expands one input platform token into the list of
// compatible platform tags it stands in for, per PEP 600/656's
// macosx/manylinux fallback rules. Order-preserving, first-seen
// deduplication is the caller's responsibility.
func expandPlatform(p string) []string {
	switch {
	case strings.HasPrefix(p, "macosx_"):
		if expanded := expandMacPlatform(p); expanded != nil {
			return expanded
		}
		return []string{p}
	case strings.HasPrefix(p, "manylinux2014_"):
		suffix := strings.TrimPrefix(p, "manylinux2014_")
		out := []string{p}
		if suffix == "i686" || suffix == "x86_64" {
			out = append(out, "manylinux2010_"+suffix, "manylinux1_"+suffix)
		}
		return out
	case strings.HasPrefix(p, "manylinux2010_"):
		suffix := strings.TrimPrefix(p, "manylinux2010_")
		return []string{p, "manylinux1_" + suffix}
	default:
		return []string{p}
	}
}

// expandMacPlatform enumerates the compatible macOS platform tags for a
// macosx_<major>_<minor>_<arch> platform string: every macOS feature-version
// from the given one down to the platform's floor, for every arch alias the
// given arch is compatible with. Returns nil when p does not match the
// macosx_<major>_<minor>_<arch> shape.
func expandMacPlatform(p string) []string {
	m := reMacArch.FindStringSubmatch(p)
	if m == nil {
		return nil
	}
	name, majorStr, minorStr, arch := m[1], m[2], m[3], m[4]
	major, err := strconv.Atoi(majorStr)
	if err != nil {
		return nil
	}
	minor, err := strconv.Atoi(minorStr)
	if err != nil {
		return nil
	}

	aliases, ok := macArchAliases[arch]
	if !ok {
		aliases = []string{arch}
	}

	var out []string
	for _, version := range macVersionsAtOrBelow(major, minor) {
		for _, a := range aliases {
			out = append(out, fmt.Sprintf("%s_%d_%d_%s", name, version[0], version[1], a))
		}
	}
	return out
}

// macVersionsAtOrBelow returns the (major, minor) pairs at or below the
// given version: for major 11 and later, every major down to 11 (minor 0)
// followed by 10.16; for major 10, every 10.x from the given minor down to
// 10.6; for any other major, only the given pair.
func macVersionsAtOrBelow(major, minor int) [][2]int {
	var out [][2]int
	switch {
	case major >= 11:
		for m := major; m >= 11; m-- {
			out = append(out, [2]int{m, 0})
		}
		out = append(out, [2]int{10, 16})
	case major == 10:
		for m := minor; m >= 6; m-- {
			out = append(out, [2]int{10, m})
		}
	default:
		out = append(out, [2]int{major, minor})
	}
	return out
}
