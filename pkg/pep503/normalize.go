// Copyright (C) 2021  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pep503

import (
	"regexp"
	"strings"
)

//nolint:gochecknoglobals // immutable regexp, cheaper to compile once
var reNameSep = regexp.MustCompile(`[-_.]+`)

// NormalizeName lowercases str and collapses every maximal run of [-_.]
// into a single '-'; used for all package-name equality tests.
func NormalizeName(str string) string {
	return strings.ToLower(reNameSep.ReplaceAllLiteralString(str, "-"))
}
