// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pyeval

import "github.com/pypi-tools/pyindex/pkg/pep440"

// VersionOrURL is a tagged union mirroring requirement.version_or_url:
// either a PEP 440 specifier set or a direct-reference URL. The zero
// value means neither was given (an unconstrained requirement).
type VersionOrURL struct {
	specifier    pep440.SpecifierSet
	hasSpecifier bool
	url          string
	hasURL       bool
}

// VersionSpecifierOf wraps a parsed PEP 440 specifier set.
func VersionSpecifierOf(s pep440.SpecifierSet) VersionOrURL {
	return VersionOrURL{specifier: s, hasSpecifier: true}
}

// URLOf wraps a direct-reference URL.
func URLOf(u string) VersionOrURL {
	return VersionOrURL{url: u, hasURL: true}
}

// Specifier returns the wrapped specifier, if this VersionOrURL holds one.
func (v VersionOrURL) Specifier() (pep440.SpecifierSet, bool) {
	return v.specifier, v.hasSpecifier
}

// URL returns the wrapped URL, if this VersionOrURL holds one.
func (v VersionOrURL) URL() (string, bool) {
	return v.url, v.hasURL
}

// Requirement is the caller-supplied match criteria: a package name, an
// optional version specifier or direct-reference URL, and an optional
// hash set (consumed by the Evaluator, not by EvaluatePackage).
type Requirement struct {
	Name         string
	VersionOrURL VersionOrURL
	Hashes       map[string][]string
}

// prereleaseAdmittingOps is the set of comparison operators that
// auto-admit pre-releases when their right-hand version is itself a
// pre-release: ==, ===, >=, <=, ~=. This PEP 440 substrate (pkg/pep440)
// has no separate "===" arbitrary-equality operator (see DESIGN.md);
// OpStrictMatch/OpPrefixMatch cover both forms of "==".
//
//nolint:gochecknoglobals // immutable set
var prereleaseAdmittingOps = map[pep440.Operator]bool{
	pep440.OpStrictMatch: true,
	pep440.OpPrefixMatch: true,
	pep440.OpGE:          true,
	pep440.OpLE:          true,
	pep440.OpCompatible:  true,
}

// autoAdmitsPrerelease implements the default for allow_prerelease: true
// iff any specifier clause uses one of the admitting operators and its
// right-hand version is itself a pre-release.
func autoAdmitsPrerelease(spec pep440.SpecifierSet) bool {
	for _, clause := range spec {
		if prereleaseAdmittingOps[clause.Op] && clause.Version.IsPreRelease() {
			return true
		}
	}
	return false
}

// EvaluatePackage implements the Requirement matcher: canonical-name
// equality, version-specifier containment, and pre-release admission.
// allowPrerelease, when non-nil, overrides the auto-admission rule.
func EvaluatePackage(pkg *Package, req *Requirement, allowPrerelease *bool) (*Package, error) {
	if canonicalName(req.Name) != canonicalName(pkg.Name) {
		return nil, linkMismatch("package name mismatch: expected %s, actual %s, skipping", req.Name, pkg.Name)
	}

	spec, hasSpec := req.VersionOrURL.Specifier()
	if hasSpec && pkg.HasVersion {
		if !spec.Match(pkg.Version) {
			return nil, linkMismatch("version mismatch: expected %s, actual %s, skipping", spec, pkg.Version)
		}

		allow := autoAdmitsPrerelease(spec)
		if allowPrerelease != nil {
			allow = *allowPrerelease
		}
		if pkg.Version.IsPreRelease() && !allow {
			return nil, linkMismatch("prerelease version not permitted: expected %s, actual %s, skipping",
				spec, pkg.Version)
		}
	}

	return pkg, nil
}
