package engine

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestCompressorRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("recovery image payload\n"), 512)

	for _, kind := range []string{CompressionZstd, CompressionGzip, CompressionXz} {
		t.Run(kind, func(t *testing.T) {
			var buf bytes.Buffer
			w, err := newCompressor(kind, &buf)
			if err != nil {
				t.Fatalf("newCompressor: %v", err)
			}
			if _, err := w.Write(payload); err != nil {
				t.Fatalf("write: %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}

			r, err := newDecompressor(kind, &buf)
			if err != nil {
				t.Fatalf("newDecompressor: %v", err)
			}
			defer r.Close()
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("round trip mismatch: got %d bytes, want %d", len(got), len(payload))
			}
		})
	}
}

func TestUnsupportedCodecs(t *testing.T) {
	if _, err := archiveExtension("lz4"); err == nil {
		t.Error("archiveExtension(lz4) expected error")
	}
	if _, err := newCompressor("lz4", io.Discard); err == nil {
		t.Error("newCompressor(lz4) expected error")
	}
	if _, err := newHasher("md5"); err == nil {
		t.Error("newHasher(md5) expected error")
	}
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.bin")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		kind string
		want string
	}{
		{ChecksumSHA256, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{ChecksumBlake3, "6437b3ac38465133ffb63b75273a8db548c558465d79db03fd359c6cd5bd9d85"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			got, size, err := hashFile(path, tt.kind)
			if err != nil {
				t.Fatalf("hashFile: %v", err)
			}
			if size != 3 {
				t.Errorf("size = %d, want 3", size)
			}
			if got != tt.want {
				t.Errorf("hash = %s, want %s", got, tt.want)
			}
		})
	}

	if sidecarExtension(ChecksumBlake3) != ".b3" || sidecarExtension(ChecksumSHA256) != ".sha256" {
		t.Error("unexpected sidecar extensions")
	}
}
