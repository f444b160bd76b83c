// Copyright (C) 2021  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pep440

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/intstr"
)

// Direct references (PEP 440's "name @ url" syntax, e.g.
// "pip @ https://github.com/pypa/pip/archive/1.3.1.zip#sha1=...") and
// file:// URLs belong to the Requirement parser, not this package; nothing
// below parses them. What follows is strictly version-string parsing: the
// reference regular expression from PEP 440 Appendix B, given an explicit
// (rather than Python re.VERBOSE) form since Go's regexp package has no
// verbose mode, and the function that turns a regex match into a Version.

//nolint:lll // long regexp in source specification
var reVersion = regexp.MustCompile(`(?i)^\s*` + regexp.MustCompile(`(?:\s+|#.*)`).ReplaceAllString(`
		v?
		(?:
		    (?:(?P<epoch>[0-9]+)!)?                           # epoch
		    (?P<release>[0-9]+(?:\.[0-9]+)*)                  # release segment
		    (?P<pre>                                          # pre-release
		        [-_\.]?
		        (?P<pre_l>(a|b|c|rc|alpha|beta|pre|preview))
		        [-_\.]?
		        (?P<pre_n>[0-9]+)?
		    )?
		    (?P<post>                                         # post release
		        (?:-(?P<post_n1>[0-9]+))
		        |
		        (?:
		            [-_\.]?
		            (?P<post_l>post|rev|r)
		            [-_\.]?
		            (?P<post_n2>[0-9]+)?
		        )
		    )?
		    (?P<dev>                                          # dev release
		        [-_\.]?
		        (?P<dev_l>dev)
		        [-_\.]?
		        (?P<dev_n>[0-9]+)?
		    )?
		)
		(?:\+(?P<local>[a-z0-9]+(?:[-_\.][a-z0-9]+)*))?       # local version
	`, ``) + `\s*$`)

// letterNumberSuffix is a parsed "<letter><number>" suffix (pre/post/dev),
// with letter already canonicalized to its preferred spelling.
type letterNumberSuffix struct {
	L string
	N int
}

// resolveSuffix validates letter against acceptableLetters (a map from
// canonical spelling to its accepted aliases) and canonicalizes it,
// defaulting number to "0" when letter is present but number is omitted.
// Returns (nil, nil) when both are empty, meaning the suffix is absent.
func resolveSuffix(letter, number string, acceptableLetters map[string][]string) (*letterNumberSuffix, error) {
	if letter == "" && number == "" {
		//nolint:nilnil // weird semantic
		return nil, nil
	}
	letter = strings.ToLower(letter)
	if letter != "" && number == "" {
		number = "0"
	}
	var ret letterNumberSuffix

	if _, ok := acceptableLetters[letter]; ok {
		ret.L = letter
	} else {
		found := false
	outer:
		for canonical, aliases := range acceptableLetters {
			for _, alias := range aliases {
				if letter == alias {
					ret.L = canonical
					found = true
					break outer
				}
			}
		}
		if !found {
			return nil, fmt.Errorf("invalid string-part: %q", letter)
		}
	}

	if number != "" {
		n, err := strconv.Atoi(number)
		if err != nil {
			return nil, err
		}
		ret.N = n
	}
	return &ret, nil
}

// parseVersion matches str against reVersion and assembles the result,
// applying the pre/post/dev alias canonicalization PEP 440 requires (e.g.
// "alpha1" and "a1" parse identically, as do "rev4", "r4", and "post4").
func parseVersion(str string) (*Version, error) {
	match := reVersion.FindStringSubmatch(str)
	if match == nil {
		return nil, fmt.Errorf("invalid version: %q", str)
	}

	var ver Version
	var err error

	if epoch := match[reVersion.SubexpIndex("epoch")]; epoch != "" {
		ver.Epoch, err = strconv.Atoi(epoch)
		if err != nil {
			return nil, err
		}
	}

	for _, segStr := range strings.Split(match[reVersion.SubexpIndex("release")], ".") {
		segInt, err := strconv.Atoi(segStr)
		if err != nil {
			return nil, err
		}
		ver.Release = append(ver.Release, segInt)
	}

	pre, err := resolveSuffix(
		match[reVersion.SubexpIndex("pre_l")],
		match[reVersion.SubexpIndex("pre_n")],
		map[string][]string{
			"a":  {"alpha"},
			"b":  {"beta"},
			"rc": {"c", "pre", "preview"},
		})
	if err != nil {
		return nil, fmt.Errorf("pre-release: %w", err)
	}
	if pre != nil {
		ver.Pre = &PreRelease{
			L: pre.L,
			N: pre.N,
		}
	}

	post, err := resolveSuffix(
		match[reVersion.SubexpIndex("post_l")],
		match[reVersion.SubexpIndex("post_n1")]+match[reVersion.SubexpIndex("post_n2")],
		map[string][]string{
			"post": {"", "rev", "r"},
		})
	if err != nil {
		return nil, fmt.Errorf("post-release: %w", err)
	}
	if post != nil {
		ver.Post = &post.N
	}

	dev, err := resolveSuffix(
		match[reVersion.SubexpIndex("dev_l")],
		match[reVersion.SubexpIndex("dev_n")],
		map[string][]string{
			"dev": nil,
		})
	if err != nil {
		return nil, fmt.Errorf("dev: %w", err)
	}
	if dev != nil {
		ver.Dev = &dev.N
	}

	localParts := strings.FieldsFunc(match[reVersion.SubexpIndex("local")], func(r rune) bool {
		return strings.ContainsRune("-_.", r)
	})
	for _, part := range localParts {
		ver.Local = append(ver.Local, intstr.Parse(strings.ToLower(part)))
	}

	return &ver, nil
}
