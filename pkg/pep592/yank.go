// Copyright (C) 2021  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package pep592 implements PEP 592 -- Adding "Yank" Support to the Simple
// API: recognizing and explaining a yanked Link.
//
// https://www.python.org/dev/peps/pep-0592/
package pep592

import (
	"fmt"

	"github.com/pypi-tools/pyindex/pkg/pep427"
	"github.com/pypi-tools/pyindex/pkg/pep440"
	"github.com/pypi-tools/pyindex/pkg/pep503"
)

// IsYanked reports whether l carries a yank reason.
func IsYanked(l *pep503.Link) bool {
	return l.IsYanked()
}

// Reason returns the yank reason, or "" if l is not yanked.
func Reason(l *pep503.Link) string {
	reason, _ := l.YankReason()
	return reason
}

// CheckAllowed rejects a yanked link unless allowYanked is set, mirroring
// the evaluator's yank step. The returned error embeds the reason so
// callers don't need to re-derive it.
func CheckAllowed(l *pep503.Link, allowYanked bool) error {
	if !IsYanked(l) || allowYanked {
		return nil
	}
	return fmt.Errorf("yanked due to %s", Reason(l))
}

// excludeYanked is a pep440.ExclusionBehavior that excludes every version
// for which at least one wheel Link in the set it was built from is
// yanked (non-wheel links cannot be attributed a version here, so they do
// not contribute to the exclusion set).
type excludeYanked struct {
	yankedVersions map[string]struct{}
}

// ExcludeYanked builds an ExclusionBehavior that disallows any version
// reachable from links for which the wheel at that version is yanked.
func ExcludeYanked(links []*pep503.Link) pep440.ExclusionBehavior {
	ret := excludeYanked{yankedVersions: make(map[string]struct{})}
	for _, link := range links {
		if !IsYanked(link) || !link.IsWheel() {
			continue
		}
		wheelName, err := pep427.ParseWheelName(link.Filename())
		if err != nil {
			continue
		}
		ret.yankedVersions[wheelName.Version.String()] = struct{}{}
	}
	return ret
}

func (e excludeYanked) Allow(v pep440.Version) bool {
	_, yanked := e.yankedVersions[v.String()]
	return !yanked
}
