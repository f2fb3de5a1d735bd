package style

import (
	"context"
	_ "embed"
	"fmt"
	"os"
)

//go:embed base.css
var embeddedBase string

// BaseSource loads the foundational stylesheet.
type BaseSource interface {
	Load(ctx context.Context) (string, error)
	String() string
}

// FileSource reads the base stylesheet from disk on every load.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("read base styles %s: %w", s.Path, err)
	}
	return string(data), nil
}

func (s FileSource) String() string { return "file:" + s.Path }

// EmbeddedSource serves the stylesheet bundled with the binary.
type EmbeddedSource struct{}

func (EmbeddedSource) Load(context.Context) (string, error) {
	return embeddedBase, nil
}

func (EmbeddedSource) String() string { return "embedded" }

// NewSource returns a FileSource for path, or the embedded sheet when path is empty.
func NewSource(path string) BaseSource {
	if path == "" {
		return EmbeddedSource{}
	}
	return FileSource{Path: path}
}
