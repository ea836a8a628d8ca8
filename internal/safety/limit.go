package safety

import (
	"errors"
	"fmt"
	"io"
)

// ErrBodyTooLarge indicates content exceeded the configured read limit.
var ErrBodyTooLarge = errors.New("content too large")

// ReadAllWithLimit reads r to the end, failing with ErrBodyTooLarge once more
// than limit bytes arrive. Manifests and recipe files are read through it.
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("invalid read limit: %d", limit)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrBodyTooLarge
	}
	return data, nil
}
