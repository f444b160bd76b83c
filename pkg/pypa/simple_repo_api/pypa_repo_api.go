// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package simple_repo_api wires the link-collection and link-evaluation
// pipeline together: Source collector -> Evaluator -> Requirement matcher,
// plus a "pick one" convenience on top for callers (like an installer)
// that need a single best candidate instead of the whole matching set.
//
// https://packaging.python.org/specifications/simple-repository-api/
package simple_repo_api

import (
	"context"
	"fmt"
	"sort"

	"github.com/datawire/dlib/derror"

	"github.com/pypi-tools/pyindex/pkg/pep427"
	"github.com/pypi-tools/pyindex/pkg/pep440"
	"github.com/pypi-tools/pyindex/pkg/pep503"
	"github.com/pypi-tools/pyindex/pkg/pep592"
	"github.com/pypi-tools/pyindex/pkg/pep629"
	"github.com/pypi-tools/pyindex/pkg/pyeval"
	"github.com/pypi-tools/pyindex/pkg/pysession"
	"github.com/pypi-tools/pyindex/pkg/pytarget"
)

// Client bundles a Collector (with the PEP 629 version-marker hook wired
// in) and a TargetPython, the two pieces every lookup against an index
// needs beyond the Requirement itself.
type Client struct {
	Collector pep503.Collector
	Target    *pytarget.TargetPython
}

// NewClient builds a Client around session's HTTP client, enforcing the
// PEP 629 Simple-API version marker on every HTML page fetched.
func NewClient(session *pysession.Session, target *pytarget.TargetPython) *Client {
	var client *pysession.Session
	if session == nil {
		client = pysession.New(nil, "")
	} else {
		client = session
	}
	return &Client{
		Collector: pep503.Collector{
			Client:    client.Client,
			UserAgent: client.UserAgent,
			HTMLHook:  pep629.CheckCompatibility,
		},
		Target: target,
	}
}

// FindMatches runs the full pipeline against one index Link: collect the
// raw candidate Links, evaluate each against evaluator (skipping
// per-Link LinkMismatchErrors rather than aborting, as a "next candidate
// please" policy), then intersect the survivors with req via
// EvaluatePackage. Collection order is preserved throughout.
func (c *Client) FindMatches(
	ctx context.Context,
	source *pep503.Link,
	evaluator *pyeval.Evaluator,
	req *pyeval.Requirement,
	allowPrerelease *bool,
) ([]*pyeval.Package, error) {
	links, err := c.Collector.Collect(ctx, source, false)
	if err != nil {
		return nil, err
	}

	var matches []*pyeval.Package
	for _, link := range links {
		pkg, err := evaluator.EvaluateLink(ctx, link)
		if err != nil {
			if pyeval.IsLinkMismatch(err) {
				continue
			}
			return nil, err
		}
		matched, err := pyeval.EvaluatePackage(pkg, req, allowPrerelease)
		if err != nil {
			if pyeval.IsLinkMismatch(err) {
				continue
			}
			return nil, err
		}
		matches = append(matches, matched)
	}
	return matches, nil
}

// FindMatchesAcrossIndexes runs FindMatches against every source in turn,
// continuing past a failing index rather than aborting the whole search
// the way FindMatches's own per-link LinkMismatchError handling does one
// level down. Per-source failures are collected into a derror.MultiError
// and returned alongside whatever matches the surviving sources produced,
// so a caller can report every broken index at once instead of just the
// first.
func (c *Client) FindMatchesAcrossIndexes(
	ctx context.Context,
	sources []*pep503.Link,
	evaluator *pyeval.Evaluator,
	req *pyeval.Requirement,
	allowPrerelease *bool,
) ([]*pyeval.Package, error) {
	var matches []*pyeval.Package
	var errs derror.MultiError
	for _, source := range sources {
		found, err := c.FindMatches(ctx, source, evaluator, req, allowPrerelease)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", source.Redacted(), err))
			continue
		}
		matches = append(matches, found...)
	}
	if len(errs) > 0 {
		return matches, errs
	}
	return matches, nil
}

// SelectBest picks the single most-preferred Package from a matching set,
// the way an installer would: newest non-prerelease, non-yanked version
// first (ties broken by the target's tag preference, then by build-tag
// ordering).
func (c *Client) SelectBest(pkgs []*pyeval.Package) (*pyeval.Package, error) {
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no matching packages")
	}

	links := make([]*pep503.Link, 0, len(pkgs))
	versions := make([]pep440.Version, 0, len(pkgs))
	byVersion := make(map[string][]*pyeval.Package, len(pkgs))
	for _, pkg := range pkgs {
		links = append(links, pkg.Link)
		versions = append(versions, pkg.Version)
		key := pkg.Version.String()
		byVersion[key] = append(byVersion[key], pkg)
	}

	exclusion := pep440.MultiExcluder{
		pep440.ExcludePreReleases{},
		pep592.ExcludeYanked(links),
	}
	selected := pep440.SpecifierSet(nil).Select(versions, exclusion)
	if selected == nil {
		return nil, fmt.Errorf("no non-prerelease, non-yanked version available")
	}

	candidates := byVersion[selected.String()]
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	if c.Target != nil {
		best := candidates
		minRank := 0
		var ranked []*pyeval.Package
		for _, pkg := range best {
			if !pkg.Link.IsWheel() {
				continue
			}
			wheelName, err := pep427.ParseWheelName(pkg.Link.Filename())
			if err != nil {
				continue
			}
			rank := tagPreference(c.Target, wheelName)
			switch {
			case minRank == 0 || rank < minRank:
				minRank = rank
				ranked = []*pyeval.Package{pkg}
			case rank == minRank:
				ranked = append(ranked, pkg)
			}
		}
		if len(ranked) > 0 {
			candidates = ranked
		}
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		iName, iErr := pep427.ParseWheelName(candidates[i].Link.Filename())
		jName, jErr := pep427.ParseWheelName(candidates[j].Link.Filename())
		if iErr != nil || jErr != nil {
			return false
		}
		return iName.BuildTag.Cmp(jName.BuildTag) < 0
	})
	return candidates[0], nil
}

func tagPreference(target *pytarget.TargetPython, w *pep427.WheelName) int {
	supported := target.SupportedTags()
	for i, t := range supported {
		if t == w.CompatibilityTag {
			return i + 1
		}
	}
	return len(supported) + 1
}
