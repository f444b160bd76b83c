// Copyright (C) 2021  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package pep427 parses and renders wheel filenames: the
// "{distribution}-{version}(-{build tag})?-{tag}.whl" naming convention
// from PEP 427 (The Wheel Binary Package Format), as carried forward by
// the packaging.python.org "Binary distribution format" page.
//
// https://www.python.org/dev/peps/pep-0427/
package pep427

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pypi-tools/pyindex/pkg/pep425"
	"github.com/pypi-tools/pyindex/pkg/pep440"
)

// WheelName is a wheel filename decomposed into its four parts:
// distribution, version, an optional numeric-prefixed build tag used to
// break ties between otherwise-identical filenames, and the PEP 425
// compatibility tag.
type WheelName struct {
	Distribution     string
	Version          pep440.Version
	BuildTag         *BuildTag
	CompatibilityTag pep425.Tag
}

//nolint:lll // regexp layout
var reWheelName = regexp.MustCompile(regexp.MustCompile(`\s+`).ReplaceAllString(`
		^(?P<distribution>[^-]+)
		-(?P<version>[^-]+)
		(?:-(?P<build_n>[0-9]+)(?P<build_l>[^-0-9][^-]*)?)?
		-(?P<interpreter>[^-]+)
		-(?P<abi>[^-]+)
		-(?P<platform>[^-]+)
		\.whl$`, ``))

// ParseWheelName parses a wheel filename into its distribution, version,
// optional build tag, and compatibility tag.
func ParseWheelName(filename string) (*WheelName, error) {
	match := reWheelName.FindStringSubmatch(filename)
	if match == nil {
		return nil, fmt.Errorf("invalid wheel filename: %q", filename)
	}

	var ret WheelName

	ret.Distribution = match[reWheelName.SubexpIndex("distribution")]

	ver, err := pep440.ParseVersion(match[reWheelName.SubexpIndex("version")])
	if err != nil {
		return nil, fmt.Errorf("invalid wheel filename: %q: %w", filename, err)
	}
	ret.Version = *ver

	if buildN := match[reWheelName.SubexpIndex("build_n")]; buildN != "" {
		n, _ := strconv.Atoi(buildN)
		ret.BuildTag = &BuildTag{
			Int: n,
			Str: match[reWheelName.SubexpIndex("build_l")],
		}
	}

	ret.CompatibilityTag = pep425.Tag{
		Interpreter: match[reWheelName.SubexpIndex("interpreter")],
		ABI:         match[reWheelName.SubexpIndex("abi")],
		Platform:    match[reWheelName.SubexpIndex("platform")],
	}

	return &ret, nil
}

// BuildTag is the optional numeric-prefixed tie-breaker component of a wheel
// filename.
type BuildTag struct {
	Int int
	Str string
}

func (t BuildTag) String() string {
	return fmt.Sprintf("%d%s", t.Int, t.Str)
}

func (a *BuildTag) Cmp(b *BuildTag) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil && b != nil:
		return -1
	case a != nil && b == nil:
		return 1
	}
	if d := a.Int - b.Int; d != 0 {
		return d
	}
	switch {
	case a.Str < b.Str:
		return -1
	case a.Str > b.Str:
		return 1
	default:
		return 0
	}
}

// Render renders a WheelName back into the canonical wheel filename form,
// normalizing the version and underscore-escaping the distribution name
// the way the original publisher's build tool would have.
func Render(name WheelName) (string, error) {
	var ret strings.Builder
	ret.WriteString(regexp.MustCompile("[-_.]+").ReplaceAllLiteralString(name.Distribution, "_"))
	ver, err := name.Version.Normalize()
	if err != nil {
		return "", err
	}
	ret.WriteString("-")
	ret.WriteString(ver.String())
	if name.BuildTag != nil {
		ret.WriteString("-")
		ret.WriteString(name.BuildTag.String())
	}
	ret.WriteString("-")
	ret.WriteString(name.CompatibilityTag.Interpreter)
	ret.WriteString("-")
	ret.WriteString(name.CompatibilityTag.ABI)
	ret.WriteString("-")
	ret.WriteString(name.CompatibilityTag.Platform)
	ret.WriteString(".whl")
	return ret.String(), nil
}
