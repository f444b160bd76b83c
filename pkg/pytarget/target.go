// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package pytarget implements TargetPython: enumeration of the ordered set
// of wheel tags a described target runtime accepts, per the PEP 425/600/656
// tag-generation rules. There is no Python interpreter to introspect for
// the live ABI/platform list in this environment, so the generation rules
// are embedded directly rather than shelled out to `packaging.tags`; see
// DESIGN.md's Open Question decision.
package pytarget

import (
	"fmt"
	"strconv"

	"github.com/pypi-tools/pyindex/pkg/pep345"
	"github.com/pypi-tools/pyindex/pkg/pep425"
	"github.com/pypi-tools/pyindex/pkg/pep427"
	"github.com/pypi-tools/pyindex/pkg/pep440"
)

// PyVersion is the target runtime's interpreter version, usable as the
// "primary version" a requires-python check admits against.
type PyVersion [2]int

func (v PyVersion) String() string {
	return fmt.Sprintf("%d.%d", v[0], v[1])
}

// Satisfies reports whether this version is admitted by a PEP 440
// version-specifier string (a requires-python check).
func (v PyVersion) Satisfies(specifier string) (bool, error) {
	ver := pep440.Version{PublicVersion: pep440.PublicVersion{Release: []int{v[0], v[1]}}}
	return pep345.HaveRequiredPython(ver, specifier)
}

// DefaultPyVersion is used when a caller does not name a target interpreter
// version; there being no live interpreter to introspect, this is the
// floor version the rest of the tag-generation tables assume.
//
//nolint:gochecknoglobals // would be 'const'
var DefaultPyVersion = [2]int{3, 9}

// DefaultImplementation is the interpreter token used when a caller does
// not name one.
const DefaultImplementation = "cp"

// TargetPython is the ordered sequence of Tags a target runtime accepts,
// earlier entries preferred. Construct with New.
type TargetPython struct {
	tags  []pep425.Tag
	pyVer [2]int
}

// New builds a TargetPython from a description of the target runtime:
// the interpreter version, the ABIs it exposes, its implementation token
// (defaulting to "cp" for CPython), and the platform tags it runs on.
//
// platforms is expanded (macOS minor-version fallback, manylinux2014/
// 2010/1 fallback chains) before tag generation, preserving first-seen
// order and deduplicating.
func New(pyVer [2]int, abis []string, implementation string, platforms []string) *TargetPython {
	if pyVer == ([2]int{}) {
		pyVer = DefaultPyVersion
	}
	if implementation == "" {
		implementation = DefaultImplementation
	}
	expanded := expandPlatforms(platforms)

	interpreterToken := implementation + shortVersion(pyVer)

	var tags []pep425.Tag
	if implementation == "cp" {
		tags = append(tags, cpythonTags(pyVer, abis, expanded)...)
	} else {
		tags = append(tags, genericTags(interpreterToken, abis, expanded)...)
	}
	tags = append(tags, compatibleTags(pyVer, interpreterToken, expanded)...)

	return &TargetPython{tags: tags, pyVer: pyVer}
}

// PyVersion returns the target interpreter's (major, minor) version.
func (t *TargetPython) PyVersion() PyVersion {
	return PyVersion(t.pyVer)
}

// SupportedTags returns the full ordered tag sequence, most-preferred
// first.
func (t *TargetPython) SupportedTags() []pep425.Tag {
	return t.tags
}

// Supports reports whether tag is a member of the supported-tag set,
// considering compressed (dotted) tag components.
func (t *TargetPython) Supports(tag pep425.Tag) bool {
	return pep425.Installer(t.tags).Supports(tag)
}

// IsWheelCompatible reports whether a parsed wheel filename's compatibility
// tag intersects the supported-tag set.
func (t *TargetPython) IsWheelCompatible(w *pep427.WheelName) bool {
	return pep425.Intersect(w.CompatibilityTag.Decompress(), t.tags)
}

func shortVersion(v [2]int) string {
	return fmt.Sprintf("%d%d", v[0], v[1])
}

func expandPlatforms(platforms []string) []string {
	seen := make(map[string]bool, len(platforms))
	var out []string
	for _, p := range platforms {
		for _, expanded := range expandPlatform(p) {
			if seen[expanded] {
				continue
			}
			seen[expanded] = true
			out = append(out, expanded)
		}
	}
	return out
}

// cpythonTags implements packaging.tags.cpython_tags: explicit ABIs first
// (each against every platform), then, when abis is empty or names "abi3",
// "abi3" (forward-compatibility ABI, PEP 384) and the implied cp3X-abi3
// tags for every earlier minor version, then "none" against every earlier minor version's interpreter
// token (the implementation-independent-within-CPython fallback).
func cpythonTags(pyVer [2]int, abis []string, platforms []string) []pep425.Tag {
	interpreter := "cp" + shortVersion(pyVer)

	explicit := make([]string, 0, len(abis))
	hasAbi3 := false
	for _, abi := range abis {
		if abi == "abi3" {
			hasAbi3 = true
			continue
		}
		explicit = append(explicit, abi)
	}

	var tags []pep425.Tag
	for _, abi := range explicit {
		for _, platform := range platforms {
			tags = append(tags, pep425.Tag{Interpreter: interpreter, ABI: abi, Platform: platform})
		}
	}

	if hasAbi3 || len(abis) == 0 {
		for _, platform := range platforms {
			tags = append(tags, pep425.Tag{Interpreter: interpreter, ABI: "abi3", Platform: platform})
		}
		for minor := pyVer[1] - 1; minor >= 0; minor-- {
			abi3Interp := "cp" + shortVersion([2]int{pyVer[0], minor})
			for _, platform := range platforms {
				tags = append(tags, pep425.Tag{Interpreter: abi3Interp, ABI: "abi3", Platform: platform})
			}
		}
	}

	for minor := pyVer[1] - 1; minor >= 0; minor-- {
		noneInterp := "cp" + shortVersion([2]int{pyVer[0], minor})
		for _, platform := range platforms {
			tags = append(tags, pep425.Tag{Interpreter: noneInterp, ABI: "none", Platform: platform})
		}
	}

	return tags
}

// genericTags implements packaging.tags.generic_tags: every explicit ABI
// (plus "none" if not already present) against every platform, for a
// non-CPython interpreter token.
func genericTags(interpreter string, abis []string, platforms []string) []pep425.Tag {
	hasNone := false
	for _, abi := range abis {
		if abi == "none" {
			hasNone = true
		}
	}
	if !hasNone {
		abis = append(append([]string{}, abis...), "none")
	}

	var tags []pep425.Tag
	for _, abi := range abis {
		for _, platform := range platforms {
			tags = append(tags, pep425.Tag{Interpreter: interpreter, ABI: abi, Platform: platform})
		}
	}
	return tags
}

// compatibleTags implements packaging.tags.compatible_tags: the
// implementation-independent "pyX-none-any"-shaped tags for every minor
// version from the target down to 0, plus "pyX-none-any", plus (when an
// interpreter token is given) "<interpreter>-none-any". Each is emitted for
// every given platform and for "any".
func compatibleTags(pyVer [2]int, interpreter string, platforms []string) []pep425.Tag {
	hasAny := false
	for _, platform := range platforms {
		if platform == "any" {
			hasAny = true
		}
	}
	if !hasAny {
		platforms = append(append([]string{}, platforms...), "any")
	}

	var tags []pep425.Tag
	for minor := pyVer[1]; minor >= 0; minor-- {
		versionTag := "py" + shortVersion([2]int{pyVer[0], minor})
		for _, platform := range platforms {
			tags = append(tags, pep425.Tag{Interpreter: versionTag, ABI: "none", Platform: platform})
		}
	}
	majorOnly := "py" + strconv.Itoa(pyVer[0])
	for _, platform := range platforms {
		tags = append(tags, pep425.Tag{Interpreter: majorOnly, ABI: "none", Platform: platform})
	}
	if interpreter != "" {
		for _, platform := range platforms {
			tags = append(tags, pep425.Tag{Interpreter: interpreter, ABI: "none", Platform: platform})
		}
	}
	return tags
}
