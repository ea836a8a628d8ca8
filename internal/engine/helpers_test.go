package engine

import (
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/BadgerOps/recoveryusb/internal/rmf"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func collect(seq iter.Seq[Event]) []Event {
	var out []Event
	for ev := range seq {
		out = append(out, ev)
	}
	return out
}

func kinds(events []Event) []Kind {
	out := make([]Kind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func equalKinds(a, b []Kind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func parseManifest(t *testing.T, xml string) *rmf.Manifest {
	t.Helper()
	m, err := rmf.Parse([]byte(xml))
	if err != nil {
		t.Fatalf("rmf.Parse() failed: %v", err)
	}
	return m
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// writeScript writes an executable shell script standing in for an
// external tool. Tests using it are skipped where sh is unavailable.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are shell scripts")
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

// fakeArchiver records its arguments in <out>/args.txt and "extracts" the
// archive by copying it to <out>/payload.bin. Archives containing BAD fail
// the way 7z reports a wrong password.
const fakeArchiver = `out=""
for a in "$@"; do
  case "$a" in
    -o*) out="${a#-o}" ;;
  esac
done
printf '%s\n' "$@" > "$out/args.txt"
if grep -q BAD "$2"; then
  echo "Extracting archive: $2" >&2
  echo "ERROR: Wrong password : payload.bin" >&2
  exit 2
fi
cp "$2" "$out/payload.bin"
`

// fakeIndexBuilder records its arguments and writes a rebuilt index with
// blank lines scattered through it.
const fakeIndexBuilder = `printf '%s\n' "$@" > args.txt
printf 'new1\nnew2\n\nnew3\nentry1\n\n  \nentry2\n' > aodstat.dat
`
