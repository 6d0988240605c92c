// Package filesink delivers remittance payloads into a local directory.
package filesink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Sink struct {
	dir string
}

func New(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Sink{dir: dir}, nil
}

// Path returns where a file named name is written.
func (s *Sink) Path(name string) string { return filepath.Join(s.dir, name) }

// Deliver writes payload to a temp file and renames it into place, so a
// partial file is never visible under the final name. An existing file with
// the same name is an error: remittance names carry the NSA.
func (s *Sink) Deliver(ctx context.Context, name string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid file name %q", name)
	}
	final := s.Path(name)
	if _, err := os.Stat(final); err == nil {
		return fmt.Errorf("%s already exists", final)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), final)
}
