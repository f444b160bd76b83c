// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pyeval

import (
	"github.com/pypi-tools/pyindex/pkg/pep440"
	"github.com/pypi-tools/pyindex/pkg/pep503"
)

// Package is the Evaluator's output: a name, an optional parsed version,
// and the Link it came from. Immutable once created.
type Package struct {
	Name       string
	Version    pep440.Version
	HasVersion bool
	Link       *pep503.Link
}
