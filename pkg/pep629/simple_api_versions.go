// Copyright (C) 2021  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package pep629 reads the "pypi:repository-version" meta tag PEP 629 adds
// to a Simple Repository HTML page, and decides whether this client
// understands the major.minor version the server is speaking.
//
// https://www.python.org/dev/peps/pep-0629/
package pep629

import (
	"context"
	"fmt"

	"github.com/datawire/dlib/dlog"
	"golang.org/x/net/html"

	"github.com/pypi-tools/pyindex/pkg/htmlutil"
	"github.com/pypi-tools/pyindex/pkg/pep440"
)

// ClientVersion is the highest Simple API repository-version this client
// was written against. An index advertising a newer minor version is
// assumed backwards compatible and merely logged; a newer major version
// is refused outright.
//
//nolint:gochecknoglobals // Would be 'const'.
var ClientVersion, _ = pep440.ParseVersion("1.0")

// RepositoryVersion extracts the repository-version a Simple API page
// declares via its "pypi:repository-version" meta tag, defaulting to "1.0"
// for pages (correctly) predating PEP 629.
func RepositoryVersion(doc *html.Node) (*pep440.Version, error) {
	const metaName = "pypi:repository-version"
	var content string
	err := htmlutil.VisitHTML(doc, nil, func(node *html.Node) error {
		if node.Type != html.ElementNode || node.Data != "meta" {
			return nil
		}
		if name, _ := htmlutil.GetAttr(node, "", "name"); name != metaName {
			return nil
		}
		if val, ok := htmlutil.GetAttr(node, "", "content"); ok {
			content = val
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if content == "" {
		content = "1.0"
	}
	return pep440.ParseVersion(content)
}

// CheckCompatibility is a pep503.Collector HTMLHook: it rejects a Simple API
// response whose declared repository-version has a newer major component
// than ClientVersion, and logs a warning for a newer minor component.
func CheckCompatibility(ctx context.Context, doc *html.Node) error {
	served, err := RepositoryVersion(doc)
	if err != nil {
		return err
	}
	if served.Major() > ClientVersion.Major() {
		return fmt.Errorf("server's pypi:repository-version (%s) is not compatible with this client", served)
	}
	if served.Minor() > ClientVersion.Minor() {
		dlog.Warnf(ctx, "server's pypi:repository-version (%s) is newer than this client", served)
	}
	return nil
}
