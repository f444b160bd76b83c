// Copyright (C) 2021  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pep592_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pypi-tools/pyindex/pkg/pep440"
	"github.com/pypi-tools/pyindex/pkg/pep503"
	"github.com/pypi-tools/pyindex/pkg/pep592"
)

func mustLink(t *testing.T, rawURL, yankReason string) *pep503.Link {
	t.Helper()
	l, err := pep503.New(rawURL, "", yankReason, "", "", nil, pep503.DistMetadata{})
	require.NoError(t, err)
	return l
}

func TestIsYanked(t *testing.T) {
	t.Parallel()
	assert.False(t, pep592.IsYanked(mustLink(t, "https://example.com/foo-1.0-py3-none-any.whl", "")))
	assert.True(t, pep592.IsYanked(mustLink(t, "https://example.com/foo-1.0-py3-none-any.whl", "broken")))
}

func TestCheckAllowed(t *testing.T) {
	t.Parallel()
	yanked := mustLink(t, "https://example.com/foo-1.0-py3-none-any.whl", "broken")

	assert.Error(t, pep592.CheckAllowed(yanked, false))
	assert.NoError(t, pep592.CheckAllowed(yanked, true))

	notYanked := mustLink(t, "https://example.com/foo-2.0-py3-none-any.whl", "")
	assert.NoError(t, pep592.CheckAllowed(notYanked, false))
}

func TestExcludeYankedAllowsOnlyNonYankedVersions(t *testing.T) {
	t.Parallel()
	links := []*pep503.Link{
		mustLink(t, "https://example.com/foo-1.0-py3-none-any.whl", "broken"),
		mustLink(t, "https://example.com/foo-2.0-py3-none-any.whl", ""),
	}
	exclusion := pep592.ExcludeYanked(links)

	v1, err := pep440.ParseVersion("1.0")
	require.NoError(t, err)
	v2, err := pep440.ParseVersion("2.0")
	require.NoError(t, err)

	assert.False(t, exclusion.Allow(*v1))
	assert.True(t, exclusion.Allow(*v2))
}

func TestExcludeYankedIgnoresNonWheelLinks(t *testing.T) {
	t.Parallel()
	links := []*pep503.Link{
		mustLink(t, "https://example.com/foo-1.0.tar.gz", "broken"),
	}
	exclusion := pep592.ExcludeYanked(links)

	v1, err := pep440.ParseVersion("1.0")
	require.NoError(t, err)
	assert.True(t, exclusion.Allow(*v1))
}
