// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package pep503 implements the Simple Repository API Link value object:
// URL normalization, VCS-prefix recognition, fragment-encoded metadata, and
// the name-canonicalization rule shared across the whole index-consumption
// pipeline.
//
// https://www.python.org/dev/peps/pep-0503/
package pep503

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// DistMetadata encodes PEP 658 "separate metadata file" availability: either
// absent, a bare boolean, or an algorithm-to-digest mapping.
type DistMetadata struct {
	set     bool
	Enabled bool
	Hashes  map[string]string
}

// NoDistMetadata is the absent value of DistMetadata.
var NoDistMetadata = DistMetadata{}

// EnabledDistMetadata reports PEP 658 availability without per-algorithm
// hashes.
func EnabledDistMetadata(enabled bool) DistMetadata {
	return DistMetadata{set: true, Enabled: enabled}
}

// HashedDistMetadata reports PEP 658 availability together with the
// algorithm-to-digest mapping the index advertised for the metadata file.
func HashedDistMetadata(hashes map[string]string) DistMetadata {
	return DistMetadata{set: true, Enabled: true, Hashes: hashes}
}

// IsAbsent reports whether no dist_metadata information was supplied.
func (m DistMetadata) IsAbsent() bool {
	return !m.set
}

// Link is the immutable candidate-URL value object. Construct with New or
// FromPath; all other fields are derived.
type Link struct {
	rawURL         string
	normalizedURL  string
	parsed         *url.URL
	vcs            string
	comesFrom      string
	yankReason     string
	hasYankReason  bool
	requiresPython string
	hasReqPython   bool
	gpgSigPresent  bool
	hasGPGSigAttr  bool
	hashesMap      map[string]string
	distMetadata   DistMetadata
}

//nolint:gochecknoglobals // immutable regexp, cheaper to compile once
var reVCSPrefix = regexp.MustCompile(`^(git|hg|svn|bzr)\+(.+)$`)

//nolint:gochecknoglobals // immutable regexp, cheaper to compile once
var reSSHHostPort = regexp.MustCompile(`^(.+?://(?:.+?@)?.+?):(.+)$`)

// UrlError is the error kind for Link construction and file-URL conversion
// failures.
type UrlError struct {
	msg string
	err error
}

func (e *UrlError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.err)
	}
	return e.msg
}

func (e *UrlError) Unwrap() error { return e.err }

func urlErrorf(format string, args ...interface{}) error {
	return &UrlError{msg: fmt.Sprintf(format, args...)}
}

func wrapURLError(msg string, err error) error {
	return &UrlError{msg: msg, err: err}
}

// New constructs a Link per the normalization algorithm: strip a leading
// {git,hg,svn,bzr}+ VCS prefix, rewrite bare host:path forms to ssh:// form,
// and parse the result as an absolute URL.
func New(
	rawURL string,
	comesFrom string,
	yankReason string,
	requiresPython string,
	gpgSig string,
	hashesMap map[string]string,
	distMetadata DistMetadata,
) (*Link, error) {
	candidate := rawURL
	vcs := ""
	if m := reVCSPrefix.FindStringSubmatch(candidate); m != nil {
		vcs = m[1]
		candidate = m[2]
	}

	if !strings.Contains(candidate, "://") {
		candidate = "ssh://" + candidate
		candidate = reSSHHostPort.ReplaceAllString(candidate, "$1/$2")
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return nil, wrapURLError(fmt.Sprintf("invalid link URL: %q", rawURL), err)
	}
	if !parsed.IsAbs() {
		return nil, urlErrorf("invalid link URL: %q: not absolute", rawURL)
	}

	l := &Link{
		rawURL:        rawURL,
		normalizedURL: candidate,
		parsed:        parsed,
		vcs:           vcs,
		comesFrom:     comesFrom,
		hashesMap:     hashesMap,
		distMetadata:  distMetadata,
	}
	if yankReason != "" {
		l.yankReason = yankReason
		l.hasYankReason = true
	}
	if requiresPython != "" {
		l.requiresPython = requiresPython
		l.hasReqPython = true
	}
	switch gpgSig {
	case "true":
		l.gpgSigPresent = true
		l.hasGPGSigAttr = true
	case "false":
		l.hasGPGSigAttr = true
	}
	return l, nil
}

// FromPath builds a file:// Link from an absolute filesystem path.
func FromPath(absPath string) (*Link, error) {
	if strings.ContainsRune(absPath, 0) {
		return nil, fmt.Errorf("invalid path: contains a null byte")
	}
	if !path.IsAbs(absPath) && !isWindowsAbs(absPath) {
		return nil, fmt.Errorf("invalid path: %q: not absolute", absPath)
	}
	u := url.URL{Scheme: "file", Path: filepathToURLPath(absPath)}
	return New(u.String(), "", "", "", "", nil, NoDistMetadata)
}

func isWindowsAbs(p string) bool {
	return len(p) >= 3 && p[1] == ':' && (p[2] == '/' || p[2] == '\\')
}

func filepathToURLPath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	if isWindowsAbs(p) {
		return "/" + p
	}
	return p
}

// RawURL returns the string as originally supplied.
func (l *Link) RawURL() string { return l.rawURL }

// NormalizedURL returns the VCS-stripped, ssh-rewritten, absolute URL.
func (l *Link) NormalizedURL() string { return l.normalizedURL }

// Parsed returns the structural view of NormalizedURL.
func (l *Link) Parsed() *url.URL { return l.parsed }

// VCS returns the stripped VCS prefix, and whether one was present.
func (l *Link) VCS() (string, bool) { return l.vcs, l.vcs != "" }

// ComesFrom returns the index URL that referred to this Link, if any.
func (l *Link) ComesFrom() string { return l.comesFrom }

// YankReason returns the yank reason and whether it is present.
func (l *Link) YankReason() (string, bool) { return l.yankReason, l.hasYankReason }

// RequiresPython returns the unparsed version-specifier string and whether
// it is present.
func (l *Link) RequiresPython() (string, bool) { return l.requiresPython, l.hasReqPython }

// HashesMap returns the index-supplied algorithm-to-digest mapping, which
// may be nil.
func (l *Link) HashesMap() map[string]string { return l.hashesMap }

// SetHashesMap replaces the index-supplied hash mapping. Used by the
// evaluator's hash-verification step to cache a freshly computed digest
// (the only mutation a Link undergoes after construction).
func (l *Link) SetHashesMap(m map[string]string) { l.hashesMap = m }

// DistMetadata returns the PEP 658 separate-metadata-file descriptor.
func (l *Link) DistMetadata() DistMetadata { return l.distMetadata }

// IsFile reports whether the scheme is file.
func (l *Link) IsFile() bool { return l.parsed.Scheme == "file" }

// IsVCS reports whether this Link carries a VCS prefix.
func (l *Link) IsVCS() bool { return l.vcs != "" }

// IsYanked reports whether a yank reason is present.
func (l *Link) IsYanked() bool { return l.hasYankReason }

// Filename returns the percent-decoded last path segment.
func (l *Link) Filename() string {
	decoded, err := url.PathUnescape(l.parsed.Path)
	if err != nil {
		decoded = l.parsed.Path
	}
	return path.Base(strings.TrimSuffix(decoded, "/"))
}

// IsWheel reports whether Filename ends in .whl.
func (l *Link) IsWheel() bool {
	return strings.HasSuffix(l.Filename(), ".whl")
}

// UrlWithoutFragment returns Parsed with the fragment cleared.
func (l *Link) UrlWithoutFragment() *url.URL {
	u := *l.parsed
	u.Fragment = ""
	u.RawFragment = ""
	return &u
}

// Redacted returns a stable string form with any userinfo replaced by ***,
// suitable for logs. The redaction is never reversed.
func (l *Link) Redacted() string {
	if l.parsed.User == nil {
		return l.normalizedURL
	}
	u := *l.parsed
	u.User = url.User("***")
	return u.String()
}

// FilePath returns the filesystem path for a file:// Link; it is an error
// to call this on a non-file Link.
func (l *Link) FilePath() (string, error) {
	if !l.IsFile() {
		return "", urlErrorf("link is not a file:// URL: %q", l.normalizedURL)
	}
	p := l.parsed.Path
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return p, nil
}

func (l *Link) fragmentValues() url.Values {
	frag := l.parsed.Fragment
	if frag == "" {
		return nil
	}
	vals, err := url.ParseQuery(frag)
	if err != nil {
		return nil
	}
	return vals
}

// Subdirectory returns the value of the subdirectory key in the fragment.
func (l *Link) Subdirectory() (string, bool) {
	vals := l.fragmentValues()
	if vals == nil {
		return "", false
	}
	v, ok := vals["subdirectory"]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

// Egg returns the value of the egg key in the fragment.
func (l *Link) Egg() (string, bool) {
	vals := l.fragmentValues()
	if vals == nil {
		return "", false
	}
	v, ok := vals["egg"]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

//nolint:gochecknoglobals // immutable set
var hashAlgoNames = map[string]bool{
	"md5": true, "sha1": true, "sha224": true,
	"sha256": true, "sha384": true, "sha512": true,
}

// Hashes returns the effective hash mapping: HashesMap when set, else the
// subset of fragment key/value pairs whose key names a supported algorithm.
func (l *Link) Hashes() (map[string]string, bool) {
	if len(l.hashesMap) > 0 {
		return l.hashesMap, true
	}
	vals := l.fragmentValues()
	if vals == nil {
		return nil, false
	}
	out := make(map[string]string)
	for key, vs := range vals {
		if hashAlgoNames[key] && len(vs) > 0 {
			out[key] = vs[0]
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// DistMetadataLink returns the sibling Link pointing at the PEP 658
// separate-metadata file, when DistMetadata is enabled.
func (l *Link) DistMetadataLink() (*Link, bool) {
	if l.distMetadata.IsAbsent() || !l.distMetadata.Enabled {
		return nil, false
	}
	metaURL := l.UrlWithoutFragment().String() + ".metadata"
	sibling, err := New(metaURL, l.comesFrom, "", "", "", nil, NoDistMetadata)
	if err != nil {
		return nil, false
	}
	return sibling, true
}

// GPGSignatureDeclared reports the index's data-gpg-sig declaration for
// this Link: whether a detached ".asc" signature is expected to exist
// alongside it, and whether the index declared anything at all (an index
// that omits the attribute leaves availability unknown).
func (l *Link) GPGSignatureDeclared() (available bool, declared bool) {
	return l.gpgSigPresent, l.hasGPGSigAttr
}

// SignatureURL returns the conventional PEP 503 location of this Link's
// detached GPG signature: the same URL with ".asc" appended.
func (l *Link) SignatureURL() string {
	return l.UrlWithoutFragment().String() + ".asc"
}

// Equal implements the identity rule: two Links are equal iff their
// NormalizedURL, RequiresPython, and YankReason are equal.
func (l *Link) Equal(o *Link) bool {
	if l == nil || o == nil {
		return l == o
	}
	return l.normalizedURL == o.normalizedURL &&
		l.requiresPython == o.requiresPython &&
		l.hasReqPython == o.hasReqPython &&
		l.yankReason == o.yankReason &&
		l.hasYankReason == o.hasYankReason
}

// Key returns a value suitable for use as a map key implementing the same
// identity rule as Equal.
func (l *Link) Key() string {
	return l.normalizedURL + "\x00" + l.requiresPython + "\x00" + l.yankReason
}

func (l *Link) String() string {
	return l.Redacted()
}
