// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pyeval

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/pypi-tools/pyindex/pkg/pep427"
	"github.com/pypi-tools/pyindex/pkg/pep440"
	"github.com/pypi-tools/pyindex/pkg/pep503"
	"github.com/pypi-tools/pyindex/pkg/pyhash"
	"github.com/pypi-tools/pyindex/pkg/pysession"
	"github.com/pypi-tools/pyindex/pkg/pytarget"
)

func canonicalName(name string) string {
	return pep503.NormalizeName(name)
}

// Evaluator filters and names a single candidate Link for one configured
// package: format, yank, requires-python, name/version extraction, tag
// compatibility, and hash verification.
type Evaluator struct {
	PackageName         string
	Session             *pysession.Session
	FormatControl       *FormatControl
	Target              *pytarget.TargetPython
	IgnoreCompatibility bool
	AllowYanked         bool

	// Hashes maps algorithm name to the list of acceptable digests (set
	// semantics: any one matching digest is sufficient).
	Hashes map[string][]string
}

// EvaluateLink runs the full per-Link pipeline: format, yank,
// requires-python, name/version extraction, tag compatibility, and hash
// verification, in that order.
func (e *Evaluator) EvaluateLink(ctx context.Context, link *pep503.Link) (*Package, error) {
	if err := e.FormatControl.CheckFormat(link, e.PackageName); err != nil {
		return nil, err
	}
	if err := e.checkYanked(link); err != nil {
		return nil, err
	}
	if err := e.checkRequiresPython(link); err != nil {
		return nil, err
	}

	canonical := canonicalName(e.PackageName)

	var version pep440.Version
	if link.IsWheel() {
		v, err := e.evaluateWheel(link, canonical)
		if err != nil {
			return nil, err
		}
		version = v
	} else {
		v, err := e.evaluateSourceArchive(link, canonical)
		if err != nil {
			return nil, err
		}
		version = v
	}

	if err := e.checkHash(ctx, link); err != nil {
		return nil, err
	}

	return &Package{Name: e.PackageName, Version: version, HasVersion: true, Link: link}, nil
}

func (e *Evaluator) checkYanked(link *pep503.Link) error {
	reason, yanked := link.YankReason()
	if yanked && !e.AllowYanked {
		return linkMismatch("yanked due to %s", reason)
	}
	return nil
}

func (e *Evaluator) checkRequiresPython(link *pep503.Link) error {
	reqPython, ok := link.RequiresPython()
	if !ok || e.IgnoreCompatibility {
		return nil
	}
	pyVer := e.Target.PyVersion()
	ok2, err := pyVer.Satisfies(reqPython)
	if err != nil {
		return linkMismatch("invalid requires-python specifier: %s", err)
	}
	if !ok2 {
		return linkMismatch("the target python version(%s) doesn't match the requires-python specifier %s",
			pyVer, reqPython)
	}
	return nil
}

func (e *Evaluator) evaluateWheel(link *pep503.Link, canonical string) (pep440.Version, error) {
	wheelName, err := pep427.ParseWheelName(link.Filename())
	if err != nil {
		return pep440.Version{}, linkMismatch("%s", err)
	}
	if canonicalName(wheelName.Distribution) != canonical {
		return pep440.Version{}, linkMismatch(
			"the package name %s does not match the name %s in the link", e.PackageName, wheelName.Distribution)
	}
	if !e.IgnoreCompatibility && !e.Target.IsWheelCompatible(wheelName) {
		return pep440.Version{}, linkMismatch(
			"the wheel tags %s are not compatible with this Python version", wheelName.CompatibilityTag)
	}
	return wheelName.Version, nil
}

func (e *Evaluator) evaluateSourceArchive(link *pep503.Link, canonical string) (pep440.Version, error) {
	eggInfo, err := eggInfoBasename(link)
	if err != nil {
		return pep440.Version{}, err
	}
	verStr, ok := parseVersionFromEggInfo(eggInfo, canonical)
	if !ok {
		return pep440.Version{}, linkMismatch("missing version in the filename %s", eggInfo)
	}
	ver, err := pep440.ParseVersion(verStr)
	if err != nil {
		return pep440.Version{}, linkMismatch("invalid version: %s", err)
	}
	return *ver, nil
}

// eggInfoBasename resolves the basename a source archive's egg-info is
// keyed on: the fragment-encoded `egg` key (stripped of any `[extras]`
// suffix) when present, else the filename's splitext basename, requiring
// the extension to be one of the archive set.
func eggInfoBasename(link *pep503.Link) (string, error) {
	if egg, ok := link.Egg(); ok {
		if idx := strings.Index(egg, "["); idx >= 0 {
			egg = egg[:idx]
		}
		return egg, nil
	}
	filename := link.Filename()
	basename, ext := splitExt(filename)
	if !isArchiveExt(ext) {
		return "", linkMismatch("unsupported file format: %s", link.Redacted())
	}
	return basename, nil
}

// splitExt mirrors Python's os.path.splitext for archive names: a name
// ending in one of the double-barrelled `.tar.*` extensions splits before
// `.tar`; otherwise it splits at the last `.`.
func splitExt(name string) (base, ext string) {
	for _, tarExt := range []string{".tar.gz", ".tar.bz2", ".tar.xz", ".tar.lz", ".tar.lzma"} {
		if strings.HasSuffix(name, tarExt) {
			return strings.TrimSuffix(name, tarExt), tarExt
		}
	}
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return name, ""
	}
	return name[:idx], name[idx:]
}

func isArchiveExt(ext string) bool {
	for _, a := range pep503.ArchiveExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// parseVersionFromEggInfo finds the first separator ('-' or '_') whose
// preceding prefix canonicalizes to canonicalName, and returns the
// remainder as the version string candidate. This walks left-to-right
// rather than picking the longest matching prefix.
func parseVersionFromEggInfo(eggInfo, canonicalName string) (string, bool) {
	for i, r := range eggInfo {
		if r != '-' && r != '_' {
			continue
		}
		if canonicalNameOf(eggInfo[:i]) == canonicalName {
			return eggInfo[i+1:], true
		}
	}
	return "", false
}

func canonicalNameOf(s string) string {
	return pep503.NormalizeName(s)
}

// checkHash verifies a candidate's hash: if the link already advertises a
// digest for any configured algorithm, every such algorithm must agree
// with the configured digest set; otherwise one configured algorithm is
// chosen, the body is streamed through it, and the result is cached back
// onto the Link.
func (e *Evaluator) checkHash(ctx context.Context, link *pep503.Link) error {
	if len(e.Hashes) == 0 {
		return nil
	}

	if linkHashes, ok := link.Hashes(); ok {
		matchedAny := false
		for algo, expected := range e.Hashes {
			actual, present := linkHashes[algo]
			if !present {
				continue
			}
			matchedAny = true
			if !containsString(expected, actual) {
				return hashMismatch(algo, expected, actual)
			}
		}
		if matchedAny {
			return nil
		}
	}

	algo, expected := pickConfiguredAlgorithm(e.Hashes)
	actual, err := e.downloadAndHash(ctx, link, algo)
	if err != nil {
		return err
	}
	if !containsString(expected, actual) {
		return hashMismatch(algo, expected, actual)
	}

	updated := make(map[string]string, len(link.HashesMap())+1)
	for k, v := range link.HashesMap() {
		updated[k] = v
	}
	updated[algo] = actual
	link.SetHashesMap(updated)
	return nil
}

func (e *Evaluator) downloadAndHash(ctx context.Context, link *pep503.Link, algo string) (string, error) {
	hasher, ok := pyhash.New(algo)
	if !ok {
		return "", linkMismatch("unsupported hash algorithm %s", algo)
	}
	resp, err := e.Session.Get(link.NormalizedURL()).Send(ctx)
	if err != nil {
		return "", wrapErrorf(KindIOError, err, "fetching %s", link.Redacted())
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on the read path

	buf := make([]byte, 8*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			hasher.Update(buf[:n])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", wrapErrorf(KindIOError, readErr, "reading %s", link.Redacted())
		}
	}
	return hasher.HexDigest(), nil
}

func pickConfiguredAlgorithm(hashes map[string][]string) (string, []string) {
	algos := make([]string, 0, len(hashes))
	for algo := range hashes {
		algos = append(algos, algo)
	}
	sort.Strings(algos)
	return algos[0], hashes[algos[0]]
}

func hashMismatch(algo string, expected []string, actual string) *Error {
	return linkMismatch("hash mismatch for %s: expected %s, actual %s", algo, strings.Join(expected, "/"), actual)
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
