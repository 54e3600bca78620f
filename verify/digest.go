package verify

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Digest computes the MD5 hex digest of the file at path. The file is
// streamed, never loaded whole, so multi-gigabyte recordings digest in
// constant memory.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "opening %s for digest", path)
	}
	defer f.Close()
	return DigestReader(f)
}

// DigestReader computes the MD5 hex digest of everything readable from r.
func DigestReader(r io.Reader) (string, error) {
	hasher := md5.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", errors.Wrap(err, "hashing stream")
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
