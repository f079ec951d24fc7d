// Package files implements small file utilities.
package files

import (
	"encoding/hex"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/zeebo/blake3"
)

// Exists returns true if file or directory exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Fingerprint returns the hex encoded BLAKE3-256 hash of the contents of the file.
// It's used to identify which exact vocabulary a conversion was run with.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open %q", path)
	}
	defer f.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", errors.Wrapf(err, "failed to read %q", path)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
