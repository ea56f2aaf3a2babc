// Package outfile names photo and video outputs.
package outfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// TimestampLayout is the YYYYMMDD_HHMMSS stamp embedded in every output name.
const TimestampLayout = "20060102_150405"

const maxCollisions = 1000

// Name returns <prefix>_<YYYYMMDD_HHMMSS><ext>.
func Name(prefix, ext string, t time.Time) string {
	return fmt.Sprintf("%s_%s%s", prefix, t.Format(TimestampLayout), ext)
}

// Create makes a new, empty file in dir named after prefix and t. When the
// name is already taken within the same second a numeric suffix is appended
// (photo_20250101_120000_1.jpg). Creation uses O_EXCL, so two callers never
// receive the same file.
func Create(dir, prefix, ext string, t time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	base := fmt.Sprintf("%s_%s", prefix, t.Format(TimestampLayout))
	for i := 0; i < maxCollisions; i++ {
		name := base + ext
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create output: %w", err)
		}
		return f, nil
	}
	return nil, fmt.Errorf("no free name for %s%s in %s", base, ext, dir)
}
