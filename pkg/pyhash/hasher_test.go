// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pyhash_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pypi-tools/pyindex/pkg/pyhash"
)

func TestEmptyDigest(t *testing.T) {
	t.Parallel()
	testcases := map[string]string{
		"md5":    "d41d8cd98f00b204e9800998ecf8427e",
		"sha1":   "da39a3ee5e6b4b0d3255bfef95601890afd80709",
		"sha224": "d14a028c2a3a2bc9476102bb288234c415a2b01f828ea62ac5b3e42f",
		"sha256": "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		"sha384": "38b060a751ac96384cd9327eb1b1e36a21fdb71114be07434c0cc7bf63f6e1da274edebfe76f65fbd51ad2f14898b95b",
		"sha512": "cf83e1357eefb8bdf1542850d66d8007d620e4050b5715dc83f4a921d36ce9ce47d0d13c5d85f2b0ff8318d2877eec2f63b931bd47417a81a538327af927da3e",
	}
	for algo, expected := range testcases {
		algo, expected := algo, expected
		t.Run(algo, func(t *testing.T) {
			t.Parallel()
			h, ok := pyhash.New(algo)
			require.True(t, ok)
			h.Update(nil)
			assert.Equal(t, expected, h.HexDigest())
		})
	}
}

func TestUnsupportedAlgorithm(t *testing.T) {
	t.Parallel()
	_, ok := pyhash.New("sha3_256")
	assert.False(t, ok)
	assert.False(t, pyhash.Supported("sha3_256"))
	assert.True(t, pyhash.Supported("sha256"))
}
