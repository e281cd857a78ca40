// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache gates large file downloads behind a local artifact check.
// When the remote publishes a content checksum the local copy is verified
// byte-for-byte before reuse; without one, presence alone counts as a hit —
// a weaker guarantee we accept because the remotes involved rarely replace
// published files.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/rs/zerolog"
)

var unsafeChars = regexp.MustCompile(`[^\w\-.]+`)

// SafeName sanitizes a remote label into a filesystem-safe artifact name by
// replacing runs of non-word characters with underscores.
func SafeName(label string) string {
	return unsafeChars.ReplaceAllString(label, "_")
}

// Path returns the artifact path a label maps to inside dir.
func Path(dir, label string) string {
	return filepath.Join(dir, SafeName(label))
}

// Resolve checks dir for a reusable copy of the artifact named by label.
// With a remote md5 checksum the local bytes are verified: a match is a hit,
// a mismatch is logged as stale and treated as a miss. Without a checksum an
// existing file is a hit as-is. hit is false when no usable artifact exists.
func Resolve(dir, label, checksum string, log zerolog.Logger) (data []byte, hit bool, err error) {
	p := Path(dir, label)
	data, err = os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading cached artifact %s: %w", p, err)
	}

	if checksum == "" {
		log.Info().Str("label", label).Msg("cache hit (no remote checksum)")
		return data, true, nil
	}

	sum := md5.Sum(data)
	if hex.EncodeToString(sum[:]) != checksum {
		log.Info().Str("label", label).Msg("cache stale, checksum mismatch")
		return nil, false, nil
	}
	log.Info().Str("label", label).Msg("cache hit, checksum verified")
	return data, true, nil
}

// Store persists freshly fetched bytes under the sanitized label so a later
// run can resolve them. It creates dir when needed and returns the path the
// artifact was written to.
func Store(dir, label string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache directory %s: %w", dir, err)
	}
	p := Path(dir, label)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("writing cached artifact %s: %w", p, err)
	}
	return p, nil
}
