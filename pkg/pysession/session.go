// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package pysession implements the Session facade: a thin wrapper around an
// HTTP collaborator that standardizes request headers and tracks a list of
// explicitly trusted (host, optional-port) pairs for downstream
// TLS-verification policy.
package pysession

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// TrustedHost is a (host, optional port) pair as parsed by AddTrustedHost
// (IPv6 brackets removed from Host); Port is -1 when no port was specified.
type TrustedHost struct {
	Host string
	Port int
}

// Session wraps an http.Client with the header and trusted-host conventions
// the index-consumption pipeline needs.
type Session struct {
	Client    *http.Client
	UserAgent string

	trustedHosts []TrustedHost
}

// New constructs a Session around client, defaulting to http.DefaultClient
// when client is nil.
func New(client *http.Client, userAgent string) *Session {
	if client == nil {
		client = http.DefaultClient
	}
	return &Session{Client: client, UserAgent: userAgent}
}

// AddTrustedHost records host (optionally "host:port", with bare IPv6
// literals wrapped in brackets before parsing) as exempt from certificate
// verification by policy layers above this package.
func (s *Session) AddTrustedHost(host string) error {
	candidate := host
	if strings.Count(candidate, ":") > 1 && !strings.HasPrefix(candidate, "[") {
		// Bare IPv6 literal (more than one ':' and no brackets yet); wrap it
		// so net/url's host:port split doesn't mistake a colon-separated
		// group for a port separator.
		candidate = "[" + candidate + "]"
	}

	u, err := url.Parse("//" + candidate)
	if err != nil {
		return fmt.Errorf("invalid trusted host: %q: %w", host, err)
	}

	port := -1
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid trusted host: %q: invalid port %q", host, p)
		}
	}

	s.trustedHosts = append(s.trustedHosts, TrustedHost{Host: u.Hostname(), Port: port})
	return nil
}

// TrustedHosts returns the accumulated trusted-host list.
func (s *Session) TrustedHosts() []TrustedHost {
	return s.trustedHosts
}

// RequestBuilder accumulates headers for a pending request before Send.
type RequestBuilder struct {
	session *Session
	method  string
	url     string
	headers http.Header
}

func (s *Session) builder(method, rawURL string) *RequestBuilder {
	return &RequestBuilder{session: s, method: method, url: rawURL, headers: make(http.Header)}
}

// Get begins a GET request builder.
func (s *Session) Get(url string) *RequestBuilder { return s.builder(http.MethodGet, url) }

// Head begins a HEAD request builder.
func (s *Session) Head(url string) *RequestBuilder { return s.builder(http.MethodHead, url) }

// Post begins a POST request builder.
func (s *Session) Post(url string) *RequestBuilder { return s.builder(http.MethodPost, url) }

// Put begins a PUT request builder.
func (s *Session) Put(url string) *RequestBuilder { return s.builder(http.MethodPut, url) }

// Patch begins a PATCH request builder.
func (s *Session) Patch(url string) *RequestBuilder { return s.builder(http.MethodPatch, url) }

// Delete begins a DELETE request builder.
func (s *Session) Delete(url string) *RequestBuilder { return s.builder(http.MethodDelete, url) }

// Header sets a request header on the builder, returning it for chaining.
func (b *RequestBuilder) Header(key, value string) *RequestBuilder {
	b.headers.Set(key, value)
	return b
}

// Send issues the request and returns the raw *http.Response. Callers are
// responsible for closing the body.
func (b *RequestBuilder) Send(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, b.method, b.url, nil)
	if err != nil {
		return nil, err
	}
	for key, vals := range b.headers {
		for _, val := range vals {
			req.Header.Add(key, val)
		}
	}
	if b.session.UserAgent != "" {
		req.Header.Set("User-Agent", b.session.UserAgent)
	}
	return b.session.Client.Do(req)
}
