// Package download saves single recordings or archives as files.
package download

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Saver persists bytes under a file name and returns where they went
type Saver interface {
	Save(ctx context.Context, data []byte, filename string) (string, error)
}

// DirSaver writes files into a directory
type DirSaver struct {
	Dir string
}

// NewDirSaver creates a saver rooted at dir
func NewDirSaver(dir string) *DirSaver {
	return &DirSaver{Dir: dir}
}

// Save writes data atomically; an existing file with the same name is replaced
func (s *DirSaver) Save(ctx context.Context, data []byte, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name, err := SanitizeFilename(filename)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}

	dest := filepath.Join(s.Dir, name)
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", name, err)
	}
	return dest, nil
}

// SanitizeFilename reduces filename to a safe base name
func SanitizeFilename(filename string) (string, error) {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == ".." || name == "/" || strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("invalid file name %q", filename)
	}
	return name, nil
}

// WriteAttachment sends data as a file download
func WriteAttachment(w http.ResponseWriter, data []byte, filename, contentType string) error {
	name, err := SanitizeFilename(filename)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(data)
	return err
}
