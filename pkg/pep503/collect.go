// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pep503

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/datawire/dlib/dlog"
	"golang.org/x/net/html"

	"github.com/pypi-tools/pyindex/pkg/htmlutil"
)

// CollectError is the error kind for HTTP status and content-type failures
// encountered while fetching a source index page.
type CollectError struct {
	msg string
	err error
}

func (e *CollectError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.err)
	}
	return e.msg
}

func (e *CollectError) Unwrap() error { return e.err }

func collectErrorf(format string, args ...interface{}) error {
	return &CollectError{msg: fmt.Sprintf(format, args...)}
}

// ArchiveExtensions is the closed set of extensions that make a HEAD
// pre-check worthwhile before downloading a candidate body as an index
// page, and that the Evaluator's egg-info splitext step recognizes as a
// source-archive suffix.
//
//nolint:gochecknoglobals // immutable set
var ArchiveExtensions = []string{
	".tar.bz2", ".tar.xz", ".tar.lz", ".tar.lzma", ".tar.gz",
	".zip", ".whl", ".tbz", ".txz", ".tlz",
}

func hasArchiveExtension(filename string) bool {
	for _, ext := range ArchiveExtensions {
		if strings.HasSuffix(filename, ext) {
			return true
		}
	}
	return false
}

// HTMLHook, when set, is invoked on the parsed document of every HTML page
// the Collector parses (a local file or a remote page), before anchors are
// extracted; used to enforce the Simple-API version marker.
type Collector struct {
	Client    *http.Client
	UserAgent string
	HTMLHook  func(context.Context, *html.Node) error
}

// Collect turns a source Link into a list of candidate Links, per the
// file/directory/HTML/JSON dispatch rules. A CollectError raised while
// fetching a remote page is swallowed: it is logged at warn and an empty
// list is returned, so one broken index does not abort a multi-index
// search.
func (c Collector) Collect(ctx context.Context, source *Link, expand bool) ([]*Link, error) {
	if source.IsFile() {
		fp, err := source.FilePath()
		if err != nil {
			return nil, err
		}
		info, statErr := os.Stat(fp)
		if statErr == nil && info.IsDir() {
			if expand {
				return c.collectDirectory(ctx, source, fp)
			}
			indexPath := filepath.Join(fp, "index.html")
			indexLink, err := FromPath(indexPath)
			if err != nil {
				return nil, err
			}
			return c.collectPageRecover(ctx, indexLink)
		}
	}
	return c.collectPageRecover(ctx, source)
}

func (c Collector) collectDirectory(ctx context.Context, source *Link, dirPath string) ([]*Link, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}
	var ret []*Link
	for _, entry := range entries {
		entryPath := filepath.Join(dirPath, entry.Name())
		entryLink, err := FromPath(entryPath)
		if err != nil {
			return nil, err
		}
		if mimeType, _ := mimeByExtension(entry.Name()); mimeType == "text/html" {
			links, err := c.collectPageRecover(ctx, entryLink)
			if err != nil {
				return nil, err
			}
			ret = append(ret, links...)
			continue
		}
		ret = append(ret, entryLink)
	}
	return ret, nil
}

func mimeByExtension(name string) (string, bool) {
	ext := path.Ext(name)
	if ext == "" {
		return "", false
	}
	typ := mime.TypeByExtension(ext)
	if typ == "" {
		return "", false
	}
	if idx := strings.Index(typ, ";"); idx >= 0 {
		typ = typ[:idx]
	}
	return strings.TrimSpace(typ), true
}

func (c Collector) collectPageRecover(ctx context.Context, source *Link) ([]*Link, error) {
	links, err := c.collectPage(ctx, source)
	if err != nil {
		var collectErr *CollectError
		if isCollectError(err, &collectErr) {
			dlog.Warnf(ctx, "skipping index %s: %s", source.Redacted(), collectErr)
			return nil, nil
		}
		return nil, err
	}
	return links, nil
}

func isCollectError(err error, target **CollectError) bool {
	for err != nil {
		if ce, ok := err.(*CollectError); ok { //nolint:errorlint // narrow unwrap loop below
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error }) //nolint:errorlint // see above
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func (c Collector) collectPage(ctx context.Context, source *Link) ([]*Link, error) {
	if source.IsFile() {
		fp, err := source.FilePath()
		if err != nil {
			return nil, err
		}
		content, err := os.ReadFile(fp)
		if err != nil {
			return nil, err
		}
		return c.parseHTML(ctx, source, content)
	}
	return c.fetchRemotePage(ctx, source)
}

func (c Collector) fetchRemotePage(ctx context.Context, source *Link) ([]*Link, error) {
	requestURL := source.NormalizedURL()
	filename := source.Filename()

	if hasArchiveExtension(filename) {
		scheme := source.Parsed().Scheme
		if scheme != "http" && scheme != "https" {
			return nil, collectErrorf("NotHTTP: %s is not http(s)", source.Redacted())
		}
		resp, err := c.do(ctx, http.MethodHead, requestURL)
		if err != nil {
			return nil, err
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, collectErrorf("HEAD %s: %s", source.Redacted(), resp.Status)
		}
	}

	resp, err := c.do(ctx, http.MethodGet, requestURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on the read path

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, collectErrorf("Server Error(%d): %s", resp.StatusCode, resp.Status)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, collectErrorf("Client Error(%d): %s", resp.StatusCode, resp.Status)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	contentType = strings.TrimSpace(contentType)

	comesFrom := source
	if resp.Request != nil && resp.Request.URL != nil {
		if redirected, err := New(resp.Request.URL.String(), source.comesFrom, "", "", "", nil, NoDistMetadata); err == nil {
			comesFrom = redirected
		}
	}

	switch contentType {
	case "text/html", "application/vnd.pypi.simple.v1+html":
		return c.parseHTML(ctx, comesFrom, content)
	case "application/vnd.pypi.simple.v1+json":
		return c.parseJSON(comesFrom, content)
	default:
		return nil, collectErrorf("unsupported Content-Type %q from %s", contentType, source.Redacted())
	}
}

// ErrNoSignature is returned by FetchSignature when the index declared no
// GPG signature for a Link, or the signature file is absent.
var ErrNoSignature = fmt.Errorf("no signature")

// FetchSignature fetches the detached GPG signature for a remote Link, per
// the data-gpg-sig convention: a sibling file at SignatureURL. If the index
// explicitly declared data-gpg-sig="false", no request is made.
func (c Collector) FetchSignature(ctx context.Context, link *Link) ([]byte, error) {
	if available, declared := link.GPGSignatureDeclared(); declared && !available {
		return nil, ErrNoSignature
	}
	resp, err := c.do(ctx, http.MethodGet, link.SignatureURL())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on the read path
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoSignature
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, collectErrorf("GET %s: %s", link.Redacted(), resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (c Collector) do(ctx context.Context, method, requestURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, requestURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept",
		"application/vnd.pypi.simple.v1+json, application/vnd.pypi.simple.v1+html; q=0.1, text/html; q=0.01")
	req.Header.Set("Cache-Control", "max-age=0")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}

func (c Collector) parseHTML(ctx context.Context, source *Link, content []byte) ([]*Link, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	if c.HTMLHook != nil {
		if err := c.HTMLHook(ctx, doc); err != nil {
			return nil, err
		}
	}

	base := source.UrlWithoutFragment()
	var links []*Link
	err = htmlutil.VisitHTML(doc, nil, func(node *html.Node) error {
		if node.Type != html.ElementNode || node.Data != "a" {
			return nil
		}
		href, ok := htmlutil.GetAttr(node, "", "href")
		if !ok {
			return nil
		}
		resolved, err := url.Parse(href)
		if err != nil {
			return nil //nolint:nilerr // malformed anchor URLs are skipped silently
		}
		absolute := base.ResolveReference(resolved)

		yankReason, _ := htmlutil.GetAttr(node, "", "data-yanked")
		requiresPython, _ := htmlutil.GetAttr(node, "", "data-requires-python")
		gpgSig, _ := htmlutil.GetAttr(node, "", "data-gpg-sig")
		distMetadata := parseHTMLDistMetadata(node)

		link, err := New(absolute.String(), base.String(), yankReason, requiresPython, gpgSig, nil, distMetadata)
		if err != nil {
			return nil //nolint:nilerr // malformed anchor URLs are skipped silently
		}
		links = append(links, link)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

func parseHTMLDistMetadata(node *html.Node) DistMetadata {
	val, ok := htmlutil.GetAttr(node, "", "data-dist-info-metadata")
	if !ok {
		val, ok = htmlutil.GetAttr(node, "", "data-metadata")
	}
	if !ok {
		return NoDistMetadata
	}
	if algo, digest, found := strings.Cut(val, "="); found {
		return HashedDistMetadata(map[string]string{algo: digest})
	}
	return EnabledDistMetadata(true)
}

type jsonResponse struct {
	Files []jsonPackageFile `json:"files"`
}

type jsonPackageFile struct {
	URL              string            `json:"url"`
	Hashes           map[string]string `json:"hashes"`
	RequiresPython   *string           `json:"requires-python"`
	Yanked           json.RawMessage   `json:"yanked"`
	DistInfoMetadata json.RawMessage   `json:"data-dist-info-metadata"`
	GPGSig           *bool             `json:"gpg-sig"`
}

func (c Collector) parseJSON(source *Link, content []byte) ([]*Link, error) {
	var doc jsonResponse
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, collectErrorf("invalid Simple-Repository JSON: %s", err)
	}

	base := source.UrlWithoutFragment()
	links := make([]*Link, 0, len(doc.Files))
	for _, file := range doc.Files {
		resolved, err := url.Parse(file.URL)
		if err != nil {
			continue
		}
		absolute := base.ResolveReference(resolved)

		yankReason := parseJSONYanked(file.Yanked)
		requiresPython := ""
		if file.RequiresPython != nil {
			requiresPython = *file.RequiresPython
		}
		gpgSig := ""
		if file.GPGSig != nil {
			gpgSig = strconv.FormatBool(*file.GPGSig)
		}
		distMetadata := parseJSONDistMetadata(file.DistInfoMetadata)

		link, err := New(absolute.String(), base.String(), yankReason, requiresPython, gpgSig, file.Hashes, distMetadata)
		if err != nil {
			continue
		}
		links = append(links, link)
	}
	return links, nil
}

func parseJSONYanked(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asBool bool
	if err := json.Unmarshal(raw, &asBool); err == nil {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	return ""
}

func parseJSONDistMetadata(raw json.RawMessage) DistMetadata {
	if len(raw) == 0 {
		return NoDistMetadata
	}
	var asBool bool
	if err := json.Unmarshal(raw, &asBool); err == nil {
		return EnabledDistMetadata(asBool)
	}
	var asMap map[string]string
	if err := json.Unmarshal(raw, &asMap); err == nil {
		return HashedDistMetadata(asMap)
	}
	return NoDistMetadata
}
