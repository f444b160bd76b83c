// Copyright (C) 2021  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package pep345 implements just enough of PEP 345 -- Metadata for Python
// Software Packages 1.2 -- to evaluate a "Requires-Python" metadata field:
// its own, simpler comma-separated version-specifier grammar (predating
// PEP 440's), which this package parses and then maps onto pep440.Version
// comparisons for the actual admission decision.
//
// https://www.python.org/dev/peps/pep-0345/
package pep345

import (
	"fmt"
	"strings"

	"github.com/pypi-tools/pyindex/pkg/pep440"
)

// HaveRequiredPython reports whether the running interpreter version have
// satisfies the "Requires-Python" field value requirement.
func HaveRequiredPython(have pep440.Version, requirement string) (bool, error) {
	req, err := ParseVersionSpecifier(requirement)
	if err != nil {
		return false, err
	}
	return req.Match(have), nil
}

// VersionSpecifier is a comma-separated Requires-Python value: a
// conjunction of clauses every candidate interpreter version must satisfy.
type VersionSpecifier []VersionSpecifierClause

func ParseVersionSpecifier(str string) (VersionSpecifier, error) {
	clauseStrs := strings.FieldsFunc(str, func(r rune) bool { return r == ',' })
	ret := make(VersionSpecifier, 0, len(clauseStrs))
	for _, clauseStr := range clauseStrs {
		clause, err := parseVersionSpecifierClause(clauseStr)
		if err != nil {
			return nil, fmt.Errorf("pep345.ParseVersionSpecifier: %w", err)
		}
		ret = append(ret, clause)
	}
	return ret, nil
}

func (spec VersionSpecifier) Match(ver pep440.Version) bool {
	for _, clause := range spec {
		if !clause.Match(ver) {
			return false
		}
	}
	return true
}

// Operator is one of the six comparison operators a Requires-Python
// clause may use.
type Operator int

const (
	OpLT Operator = iota
	OpGT
	OpLE
	OpGE
	OpEQ
	OpNE
)

func (op Operator) String() string {
	str, ok := map[Operator]string{
		OpLT: "<",
		OpGT: ">",
		OpLE: "<=",
		OpGE: ">=",
		OpEQ: "==",
		OpNE: "!=",
	}[op]
	if !ok {
		panic(fmt.Errorf("invalid Operator: %d", op))
	}
	return str
}

// VersionSpecifierClause is a single "<op><version>" term of a
// Requires-Python value.
type VersionSpecifierClause struct {
	Op      Operator
	Version pep440.Version
}

func parseVersionSpecifierClause(str string) (VersionSpecifierClause, error) {
	var ret VersionSpecifierClause
	str = strings.TrimSpace(str)
	switch {
	case strings.HasPrefix(str, "<") && !strings.HasPrefix(str, "<="):
		ret.Op = OpLT
		str = str[1:]
	case strings.HasPrefix(str, ">") && !strings.HasPrefix(str, ">="):
		ret.Op = OpGT
		str = str[1:]
	case strings.HasPrefix(str, "<="):
		ret.Op = OpLE
		str = str[2:]
	case strings.HasPrefix(str, ">="):
		ret.Op = OpGE
		str = str[2:]
	case strings.HasPrefix(str, "=="):
		ret.Op = OpEQ
		str = str[2:]
	case strings.HasPrefix(str, "!="):
		ret.Op = OpNE
		str = str[2:]
	default:
		ret.Op = OpEQ
	}
	ver, err := pep440.ParseVersion(str)
	if err != nil {
		return ret, err
	}
	ret.Version = *ver
	return ret, nil
}

// Match maps this PEP 345 clause onto the equivalent pep440 comparison:
// "<" and "==" additionally exclude pre-releases of the bound version (the
// way PEP 440 itself handles admission), falling back to strict rather
// than prefix matching whenever the bound version carries a local or dev
// component that a prefix clause can't express.
func (spec VersionSpecifierClause) Match(ver pep440.Version) bool {
	switch spec.Op {
	case OpLT:
		excl := pep440.Clause{Op: pep440.OpPrefixExclude, Version: spec.Version}
		if len(spec.Version.Local) > 0 || spec.Version.Dev != nil {
			// not allowed to use PrefixExclude in these cases
			excl.Op = pep440.OpStrictExclude
		}
		return ver.Cmp(spec.Version) < 0 && excl.Match(ver)
	case OpLE:
		return ver.Cmp(spec.Version) <= 0
	case OpGT:
		return ver.Cmp(spec.Version) > 0
	case OpGE:
		return ver.Cmp(spec.Version) >= 0
	case OpEQ:
		base := pep440.Clause{Op: pep440.OpPrefixMatch, Version: spec.Version}
		if len(spec.Version.Local) > 0 || spec.Version.Dev != nil {
			// not allowed to use PrefixMatch in these cases
			base.Op = pep440.OpStrictMatch
		}
		if !base.Match(ver) {
			return false
		}
		switch {
		case spec.Version.Dev != nil:
			// allow anything
			return true
		case spec.Version.Post != nil:
			// dissallow dev
			return ver.Dev == nil
		case spec.Version.Pre != nil:
			// dissallow dev, post
			return ver.Dev == nil && ver.Post == nil
		default:
			// dissallow dev, post, pre
			return ver.Dev == nil && ver.Post == nil && ver.Pre == nil
		}
	case OpNE:
		spec.Op = OpEQ
		return !spec.Match(ver)
	default:
		panic(fmt.Errorf("invalid Operator: %q", spec.Op))
	}
}
