// Copyright (C) 2021  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pep440

import (
	"fmt"
	"strings"
)

// SpecifierSet is a comma-separated PEP 440 version-specifier set: a
// conjunction of Clauses, each pairing an Operator with a bound Version.
// A candidate Version matches the set only if it matches every clause.
type SpecifierSet []Clause

// ParseSpecifierSet parses a comma-separated specifier string such as
// "~=0.9,>=1.0,!=1.3.4.*,<2.0" into a SpecifierSet.
func ParseSpecifierSet(str string) (SpecifierSet, error) {
	clauseStrs := strings.FieldsFunc(str, func(r rune) bool { return r == ',' })
	ret := make(SpecifierSet, 0, len(clauseStrs))
	for _, clauseStr := range clauseStrs {
		clauseStr = strings.TrimSpace(clauseStr)
		if clauseStr == "" {
			continue
		}
		clause, err := parseClause(clauseStr)
		if err != nil {
			return nil, fmt.Errorf("pep440.ParseSpecifierSet: %w", err)
		}
		ret = append(ret, clause)
	}
	return ret, nil
}

func (spec SpecifierSet) String() string {
	clauses := make([]string, 0, len(spec))
	for _, clause := range spec {
		clauses = append(clauses, clause.String())
	}
	return strings.Join(clauses, ",")
}

// Match reports whether ver satisfies every Clause in the set.
func (spec SpecifierSet) Match(ver Version) bool {
	for _, clause := range spec {
		if !clause.Match(ver) {
			return false
		}
	}
	return true
}

// Operator is one of the nine PEP 440 comparison operators a Clause may
// use: compatible-release ("~="), strict/prefix match ("==" with or
// without a ".*" suffix), strict/prefix exclude ("!=", likewise), and the
// four ordered comparisons ("<=", ">=", "<", ">").
type Operator int

const (
	OpCompatible Operator = iota
	OpStrictMatch
	OpPrefixMatch
	OpStrictExclude
	OpPrefixExclude
	OpLE
	OpGE
	OpLT
	OpGT
	// OpArbitrary ("===") is parsed as an error: PEP 440 treats it as an
	// escape hatch for non-compliant legacy versions this package never
	// accepts in the first place.
	_opEnd
)

func (op Operator) String() string {
	str, ok := map[Operator]string{
		OpCompatible:    "~=",
		OpStrictMatch:   "strict ==",
		OpPrefixMatch:   "prefix ==",
		OpStrictExclude: "strict !=",
		OpPrefixExclude: "prefix !=",
		OpLE:            "<=",
		OpGE:            ">=",
		OpLT:            "<",
		OpGT:            ">",
	}[op]
	if !ok {
		panic(fmt.Errorf("invalid Operator: %d", op))
	}
	return str
}

func (op Operator) match(spec, ver Version) bool {
	fn, ok := map[Operator]func(spec, ver Version) bool{
		OpCompatible:    matchCompatible,
		OpStrictMatch:   matchStrictMatch,
		OpPrefixMatch:   matchPrefixMatch,
		OpStrictExclude: matchStrictExclude,
		OpPrefixExclude: matchPrefixExclude,
		OpLE:            matchLE,
		OpGE:            matchGE,
		OpLT:            matchLT,
		OpGT:            matchGT,
	}[op]
	if !ok {
		panic(fmt.Errorf("invalid Operator: %d", op))
	}
	return fn(spec, ver)
}

// Clause is a single "<op><version>" term of a SpecifierSet.
type Clause struct {
	Op      Operator
	Version Version
}

func parseClause(str string) (Clause, error) {
	var ret Clause
	str = strings.TrimSpace(str)
	minSegments := 1
	devOK := true
	localOK := false
	switch {
	case strings.HasPrefix(str, "~="):
		ret.Op = OpCompatible
		str = str[2:]
		minSegments = 2
	case strings.HasPrefix(str, "==") && !strings.HasPrefix(str, "==="):
		ret.Op = OpStrictMatch
		str = str[2:]
		localOK = true
		if strings.HasSuffix(str, ".*") {
			ret.Op = OpPrefixMatch
			str = strings.TrimSuffix(str, ".*")
			devOK = false
			localOK = false
		}
	case strings.HasPrefix(str, "!="):
		ret.Op = OpStrictExclude
		str = str[2:]
		localOK = true
		if strings.HasSuffix(str, ".*") {
			ret.Op = OpPrefixExclude
			str = strings.TrimSuffix(str, ".*")
			devOK = false
			localOK = false
		}
	case strings.HasPrefix(str, "<="):
		ret.Op = OpLE
		str = str[2:]
	case strings.HasPrefix(str, ">="):
		ret.Op = OpGE
		str = str[2:]
	case strings.HasPrefix(str, "<"):
		ret.Op = OpLT
		str = str[1:]
	case strings.HasPrefix(str, ">"):
		ret.Op = OpGT
		str = str[1:]
	case strings.HasPrefix(str, "==="):
		return ret, fmt.Errorf("specifiers with === are not supported; versions must be PEP 440 compliant")
	default:
		return ret, fmt.Errorf("invalid comparison operator: %q", str)
	}
	ver, err := ParseVersion(str)
	if err != nil {
		return ret, err
	}
	if len(ver.Release) < minSegments {
		return ret, fmt.Errorf("at least %d release segments required in %s specifier clauses",
			minSegments, ret.Op)
	}
	if ver.Dev != nil && !devOK {
		return ret, fmt.Errorf("dev-part not permitted in %s specifier clauses", ret.Op)
	}
	if len(ver.Local) > 0 && !localOK {
		return ret, fmt.Errorf("local-part not permitted in %s specifier clauses", ret.Op)
	}
	ret.Version = *ver
	return ret, nil
}

func (spec Clause) String() string {
	opStr, ok := map[Operator]string{
		OpCompatible:    "~=",
		OpStrictMatch:   "==",
		OpPrefixMatch:   "==",
		OpStrictExclude: "!=",
		OpPrefixExclude: "!=",
		OpLE:            "<=",
		OpGE:            ">=",
		OpLT:            "<",
		OpGT:            ">",
	}[spec.Op]
	if !ok {
		panic(fmt.Errorf("invalid Operator: %d", spec.Op))
	}
	return opStr + spec.Version.String()
}

func (spec Clause) Match(ver Version) bool {
	return spec.Op.match(spec.Version, ver)
}

// matchCompatible implements "~=": for a release identifier "V.N" it is
// approximately ">=V.N, ==V.*" (last release component dropped from the
// prefix match), so "~=2.2" means ">=2.2, ==2.*" and "~=1.4.5" means
// ">=1.4.5, ==1.4.*". It must not be used with a single-segment version.
func matchCompatible(spec, ver Version) bool {
	prefix := spec
	prefix.Release = prefix.Release[:len(prefix.Release)-1]
	prefix.Pre = nil
	prefix.Post = nil
	prefix.Dev = nil
	return matchGE(spec, ver) && matchPrefixMatch(prefix, ver)
}

// matchStrictMatch implements "==" without a wildcard: strict equality,
// up to release-segment zero padding. A public (non-local) spec ignores
// any local label on the candidate; a local spec requires an exact
// local-label match too.
func matchStrictMatch(spec, ver Version) bool {
	if len(spec.Local) == 0 {
		return spec.PublicVersion.Cmp(ver.PublicVersion) == 0
	}
	return spec.Cmp(ver) == 0
}

// matchPrefixMatch implements "==V.*": ver must share spec's epoch,
// release-segment prefix, and (if spec names one) pre/post-release
// identity; an implied "." precedes the pre-release segment for this
// purpose. A dev-only spec is never reached since a "==V.dev.*"
// prefix clause is rejected in parseClause.
func matchPrefixMatch(_spec, _ver Version) bool {
	spec, ver := _spec.PublicVersion, _ver.PublicVersion
	const (
		partRel = iota
		partPre
		partPost
	)
	// terminalPart identifies the terminal part of spec's version
	var terminalPart int
	switch {
	case spec.Post != nil:
		terminalPart = partPost
	case spec.Pre != nil:
		terminalPart = partPre
	default:
		terminalPart = partRel
	}

	if cmpEpoch(spec, ver) != 0 {
		return false
	}

	if terminalPart == partRel {
		if len(ver.Release) > len(spec.Release) {
			ver.Release = ver.Release[:len(spec.Release)]
		}
	}
	if cmpRelease(spec, ver) != 0 {
		return false
	}
	if terminalPart == partRel {
		return true // we're done
	}

	// Do this here instead of using cmpPreRelease because cmpPreRelease also takes in to
	// account .Post and .Dev.
	if (ver.Pre == nil) != (spec.Pre == nil) {
		return false
	} else if spec.Pre != nil && (preReleaseOrder[ver.Pre.L] != preReleaseOrder[spec.Pre.L] ||
		ver.Pre.N != spec.Pre.N) {
		return false
	}
	if terminalPart == partPre {
		return true // we're done
	}

	if cmpPostRelease(spec, ver) != 0 {
		return false
	}
	if terminalPart == partPost {
		return true // we're done
	}

	panic("not reached")
}

// matchStrictExclude and matchPrefixExclude implement "!=" and "!=V.*":
// the negation of the corresponding match operator.
func matchStrictExclude(spec, ver Version) bool {
	return !matchStrictMatch(spec, ver)
}

func matchPrefixExclude(spec, ver Version) bool {
	return !matchPrefixMatch(spec, ver)
}

// matchLE and matchGE implement the inclusive ordered comparisons "<="
// and ">=", local version labels not permitted. A local label on the
// candidate is ignored.
func matchLE(spec, ver Version) bool {
	return spec.PublicVersion.Cmp(ver.PublicVersion) >= 0
}

func matchGE(spec, ver Version) bool {
	return spec.PublicVersion.Cmp(ver.PublicVersion) <= 0
}

// matchLT and matchGT implement the exclusive ordered comparisons "<"
// and ">" as a plain strict comparison of the public versions (a local
// label on the candidate is ignored). Pre-releases of V are not excluded
// from "<V", and post-releases of V are not excluded from ">V": "1.7a1"
// matches "<1.7" and "1.7.post1" matches ">1.7".
func matchLT(spec, ver Version) bool {
	return spec.PublicVersion.Cmp(ver.PublicVersion) > 0
}

func matchGT(spec, ver Version) bool {
	return spec.PublicVersion.Cmp(ver.PublicVersion) < 0
}

// ExclusionBehavior decides, independent of specifier matching, whether a
// version already known to satisfy a SpecifierSet should actually be
// offered as a candidate -- the hook Select uses to implement PEP 440's
// default pre-release exclusion and (via pep592) yanked-release exclusion.
type ExclusionBehavior interface {
	Allow(Version) bool
}

// AllowAll is an ExclusionBehavior that excludes nothing.
type AllowAll struct{}

func (AllowAll) Allow(_ Version) bool {
	return true
}

// ExcludePreReleases is an ExclusionBehavior that rejects any pre-release
// or developmental release not explicitly named in AllowList -- PEP 440's
// default rule that pre-releases are only offered when a specifier has no
// other way to be satisfied, or when the caller already has one installed.
type ExcludePreReleases struct {
	AllowList []Version
}

func (prereleases ExcludePreReleases) Allow(ver Version) bool {
	if !ver.IsPreRelease() {
		return true
	}
	for _, item := range prereleases.AllowList {
		if item.Cmp(ver) == 0 {
			return true
		}
	}
	return false
}

// MultiExcluder is an implementation of ExclusionBehavior that ANDs multiple other
// ExclusionBehaviors together; anly allowing a version if all of the behaviors allow it.
type MultiExcluder []ExclusionBehavior

func (m MultiExcluder) Allow(ver Version) bool {
	for _, e := range m {
		if !e.Allow(ver) {
			return false
		}
	}
	return true
}

// Select picks the highest version among choices that matches spec,
// preferring versions exclusionBehavior allows; if no allowed version
// matches, it falls back to the highest excluded match (the "only a
// pre-release satisfies the specifier" case).
func (spec SpecifierSet) Select(choices []Version, exclusionBehavior ExclusionBehavior) *Version {
	var best *Version
	var bestExcluded *Version
	for _, choice := range choices {
		if spec.Match(choice) {
			if exclusionBehavior == nil || exclusionBehavior.Allow(choice) {
				if best == nil || best.Cmp(choice) < 0 {
					val := choice
					best = &val
				}
			} else {
				if bestExcluded == nil || bestExcluded.Cmp(choice) < 0 {
					val := choice
					bestExcluded = &val
				}
			}
		}
	}
	if best != nil {
		return best
	}
	if bestExcluded != nil {
		return bestExcluded
	}
	return nil
}
