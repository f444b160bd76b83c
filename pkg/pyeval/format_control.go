// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pyeval

import "github.com/pypi-tools/pyindex/pkg/pep503"

// FormatControl filters candidates by wheel-vs-source policy.
type FormatControl struct {
	OnlyBinary bool
	NoBinary   bool
}

// NewFormatControl constructs a FormatControl, failing with a ValueError
// when both onlyBinary and noBinary are set.
func NewFormatControl(onlyBinary, noBinary bool) (*FormatControl, error) {
	if onlyBinary && noBinary {
		return nil, newErrorf(KindValueError, "cannot set both only_binary and no_binary")
	}
	return &FormatControl{OnlyBinary: onlyBinary, NoBinary: noBinary}, nil
}

// CheckFormat rejects link when it violates the configured binary/source
// policy for package name.
func (fc *FormatControl) CheckFormat(link *pep503.Link, name string) error {
	if fc == nil {
		return nil
	}
	if fc.OnlyBinary && !link.IsWheel() {
		return linkMismatch("only binaries are allowed for %s", name)
	}
	if fc.NoBinary && link.IsWheel() {
		return linkMismatch("binaries are not allowed for %s", name)
	}
	return nil
}
