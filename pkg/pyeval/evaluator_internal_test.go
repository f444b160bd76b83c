// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pyeval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitExt(t *testing.T) {
	t.Parallel()
	cases := map[string]struct {
		base string
		ext  string
	}{
		"foo-1.0.tar.gz":  {"foo-1.0", ".tar.gz"},
		"foo-1.0.tar.bz2": {"foo-1.0", ".tar.bz2"},
		"foo-1.0.zip":     {"foo-1.0", ".zip"},
		"foo-1.0":         {"foo-1.0", ""},
	}
	for name, exp := range cases {
		name, exp := name, exp
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			base, ext := splitExt(name)
			assert.Equal(t, exp.base, base)
			assert.Equal(t, exp.ext, ext)
		})
	}
}

func TestParseVersionFromEggInfo(t *testing.T) {
	t.Parallel()
	cases := map[string]struct {
		canonical string
		version   string
		ok        bool
	}{
		"foo-1.0":         {"foo", "1.0", true},
		"foo-bar-1.0":     {"foo-bar", "1.0", true},
		"Foo_Bar-1.0":     {"foo-bar", "1.0", true},
		"unrelated-1.0":   {"foo", "", false},
	}
	for eggInfo, exp := range cases {
		eggInfo, exp := eggInfo, exp
		t.Run(eggInfo, func(t *testing.T) {
			t.Parallel()
			ver, ok := parseVersionFromEggInfo(eggInfo, exp.canonical)
			assert.Equal(t, exp.ok, ok)
			if exp.ok {
				assert.Equal(t, exp.version, ver)
			}
		})
	}
}
