package themestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ThemeFileExtensions are the file types accepted by directory imports.
var ThemeFileExtensions = []string{".json", ".yaml", ".yml"}

// ReadThemeFiles returns the contents of a theme file, or of every theme
// file in a directory in lexical order.
func ReadThemeFiles(path string) (map[string][]byte, []string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read theme file %s: %w", path, err)
		}
		return map[string][]byte{path: data}, []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string][]byte{}, nil, nil
		}
		return nil, nil, fmt.Errorf("read theme dir %s: %w", path, err)
	}

	files := make(map[string][]byte)
	var order []string
	for _, entry := range entries {
		if entry.IsDir() || !hasThemeExtension(entry.Name()) {
			continue
		}
		full := filepath.Join(path, entry.Name())
		data, err := os.ReadFile(full)
		if err != nil {
			return nil, nil, fmt.Errorf("read theme file %s: %w", full, err)
		}
		files[full] = data
		order = append(order, full)
	}
	return files, order, nil
}

func hasThemeExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range ThemeFileExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
