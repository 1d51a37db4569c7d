// Package assets provides read access to the serialized artifacts the
// forecaster consumes at startup: the frozen model and the fitted scaler.
//
// Artifacts are addressed by name. What a name means depends on the source:
// a path for FileSource, a key suffix for RedisSource, a map key for
// MemorySource. Sources are only read during bootstrap; nothing on the
// request path touches them.
package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrNotFound is returned when an artifact does not exist in the source.
var ErrNotFound = errors.New("asset not found")

// Source loads raw artifact bytes by name.
type Source interface {
	Load(ctx context.Context, name string) ([]byte, error)

	// Name returns a short identifier such as "file" or "redis".
	Name() string
}

// Pinger is implemented by sources backed by a remote store that can be
// checked for reachability before any artifact is read.
type Pinger interface {
	Ping(ctx context.Context) error
}

// FileSource reads artifacts from the local filesystem.
type FileSource struct{}

// NewFileSource creates a filesystem-backed source.
func NewFileSource() *FileSource { return &FileSource{} }

func (FileSource) Name() string { return "file" }

// Load reads the file at path name.
func (FileSource) Load(ctx context.Context, name string) ([]byte, error) {
	if name == "" {
		return nil, errors.New("asset name required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read asset %q: %w", name, err)
	}
	return data, nil
}
