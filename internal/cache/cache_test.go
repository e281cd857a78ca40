// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"crypto/md5"
	"encoding/hex"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"pwt110.csv", "pwt110.csv"},
		{"pwt 11.0 (final).csv", "pwt_11.0_final_.csv"},
		{"a/b\\c:d.tab", "a_b_c_d.tab"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeName(tt.in))
	}
}

func TestResolve_MissWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	data, hit, err := Resolve(dir, "pwt110.csv", "", zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, data)
}

func TestStoreThenResolve_ChecksumHit(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("iso,year,value\nCOL,2020,1.5\n")
	_, err := Store(dir, "pwt110.csv", payload)
	require.NoError(t, err)

	sum := md5.Sum(payload)
	data, hit, err := Resolve(dir, "pwt110.csv", hex.EncodeToString(sum[:]), zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, payload, data)
}

func TestResolve_StaleChecksumIsMiss(t *testing.T) {
	dir := t.TempDir()
	_, err := Store(dir, "pwt110.csv", []byte("old bytes"))
	require.NoError(t, err)

	data, hit, err := Resolve(dir, "pwt110.csv", "0123456789abcdef0123456789abcdef", zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, data)
}

func TestResolve_PresenceAloneHitsWithoutChecksum(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("whatever")
	_, err := Store(dir, "file with spaces.dta", payload)
	require.NoError(t, err)

	data, hit, err := Resolve(dir, "file with spaces.dta", "", zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, payload, data)
}
