package stale

import (
	"os"

	"github.com/opencontainers/go-digest"
)

// toDigest turns a manifest's bare hex hash back into a digest.Digest so
// it can be checked against the store.
func toDigest(hex string) (digest.Digest, error) {
	d := digest.NewDigestFromEncoded(digest.SHA256, hex)
	return d, d.Validate()
}

// hashSource computes the live content hash of a plain (non-store,
// non-output-reference) input path, without copying it anywhere. The
// checker never mutates the store just to decide freshness.
func hashSource(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	d, err := digest.FromReader(f)
	if err != nil {
		return "", err
	}
	return d.Encoded(), nil
}
