// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pep503_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pypi-tools/pyindex/pkg/pep503"
)

func TestCollectHTML(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html><html><body>
			<a href="foo-1.0.tar.gz" data-requires-python="&gt;=3.6">foo-1.0.tar.gz</a>
			<a href="foo-1.1-py3-none-any.whl" data-yanked="broken build">foo-1.1-py3-none-any.whl</a>
		</body></html>`))
	}))
	defer srv.Close()

	source, err := pep503.New(srv.URL+"/foo/", "", "", "", "", nil, pep503.NoDistMetadata)
	require.NoError(t, err)

	c := pep503.Collector{Client: srv.Client()}
	links, err := c.Collect(context.Background(), source, false)
	require.NoError(t, err)
	require.Len(t, links, 2)

	assert.Equal(t, "foo-1.0.tar.gz", links[0].Filename())
	reqPy, ok := links[0].RequiresPython()
	assert.True(t, ok)
	assert.Equal(t, ">=3.6", reqPy)

	assert.True(t, links[1].IsWheel())
	assert.True(t, links[1].IsYanked())
}

func TestCollectJSON(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.pypi.simple.v1+json")
		_, _ = w.Write([]byte(`{"files":[
			{"url":"x-1.0.tar.gz","hashes":{"sha256":"deadbeef"},"yanked":false,"requires-python":">=3.8"}
		]}`))
	}))
	defer srv.Close()

	source, err := pep503.New(srv.URL+"/x/", "", "", "", "", nil, pep503.NoDistMetadata)
	require.NoError(t, err)

	c := pep503.Collector{Client: srv.Client()}
	links, err := c.Collect(context.Background(), source, false)
	require.NoError(t, err)
	require.Len(t, links, 1)
	hashes, ok := links[0].Hashes()
	require.True(t, ok)
	assert.Equal(t, "deadbeef", hashes["sha256"])
}

func TestFetchSignature(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/signed-1.0.tar.gz.asc":
			_, _ = w.Write([]byte("-----BEGIN PGP SIGNATURE-----"))
		case "/unsigned-1.0.tar.gz.asc":
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := pep503.Collector{Client: srv.Client()}

	signed, err := pep503.New(srv.URL+"/signed-1.0.tar.gz", "", "", "", "true", nil, pep503.NoDistMetadata)
	require.NoError(t, err)
	sig, err := c.FetchSignature(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, []byte("-----BEGIN PGP SIGNATURE-----"), sig)

	declaredAbsent, err := pep503.New(srv.URL+"/unsigned-1.0.tar.gz", "", "", "", "false", nil, pep503.NoDistMetadata)
	require.NoError(t, err)
	_, err = c.FetchSignature(context.Background(), declaredAbsent)
	assert.ErrorIs(t, err, pep503.ErrNoSignature)

	notFound, err := pep503.New(srv.URL+"/unsigned-1.0.tar.gz", "", "", "", "", nil, pep503.NoDistMetadata)
	require.NoError(t, err)
	_, err = c.FetchSignature(context.Background(), notFound)
	assert.ErrorIs(t, err, pep503.ErrNoSignature)
}

func TestCollectServerErrorIsSwallowed(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	source, err := pep503.New(srv.URL+"/broken/", "", "", "", "", nil, pep503.NoDistMetadata)
	require.NoError(t, err)

	c := pep503.Collector{Client: srv.Client()}
	links, err := c.Collect(context.Background(), source, false)
	require.NoError(t, err)
	assert.Empty(t, links)
}
