package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
	"lukechampine.com/blake3"
)

// Supported export codecs.
const (
	CompressionZstd = "zstd"
	CompressionGzip = "gzip"
	CompressionXz   = "xz"

	ChecksumSHA256 = "sha256"
	ChecksumBlake3 = "blake3"
)

// archiveExtension returns the file suffix for archives compressed with kind.
func archiveExtension(kind string) (string, error) {
	switch kind {
	case CompressionZstd:
		return ".tar.zst", nil
	case CompressionGzip:
		return ".tar.gz", nil
	case CompressionXz:
		return ".tar.xz", nil
	default:
		return "", fmt.Errorf("unsupported compression %q", kind)
	}
}

func newCompressor(kind string, w io.Writer) (io.WriteCloser, error) {
	switch kind {
	case CompressionZstd:
		return zstd.NewWriter(w)
	case CompressionGzip:
		return pgzip.NewWriter(w), nil
	case CompressionXz:
		return xz.NewWriter(w)
	default:
		return nil, fmt.Errorf("unsupported compression %q", kind)
	}
}

func newDecompressor(kind string, r io.Reader) (io.ReadCloser, error) {
	switch kind {
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	case CompressionGzip:
		return pgzip.NewReader(r)
	case CompressionXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", kind)
	}
}

func newHasher(kind string) (hash.Hash, error) {
	switch kind {
	case ChecksumSHA256:
		return sha256.New(), nil
	case ChecksumBlake3:
		return blake3.New(32, nil), nil
	default:
		return nil, fmt.Errorf("unsupported checksum %q", kind)
	}
}

// sidecarExtension is the suffix of the checksum file written next to an archive.
func sidecarExtension(kind string) string {
	if kind == ChecksumBlake3 {
		return ".b3"
	}
	return ".sha256"
}

// hashFile computes the digest of a file, returning hex string and size.
func hashFile(path, kind string) (string, int64, error) {
	h, err := newHasher(kind)
	if err != nil {
		return "", 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() {
		_ = f.Close()
	}()

	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}
