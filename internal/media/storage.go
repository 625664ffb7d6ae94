// Package media stores uploaded settings images under the media root and
// resolves stored references back to servable paths.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	// ErrFileNotFound is returned when a stored reference no longer has a file.
	ErrFileNotFound = errors.New("media file not found")
	// ErrInvalidImage is returned when an upload is not an allowed image type.
	ErrInvalidImage = errors.New("upload is not a supported image")
	// ErrTooLarge is returned when an upload exceeds MaxImageSize.
	ErrTooLarge = errors.New("upload exceeds maximum image size")
)

// MaxImageSize bounds settings image uploads.
const MaxImageSize = 5 * 1024 * 1024

// sniffSize is the number of leading bytes read for MIME-type detection.
const sniffSize = 3072

// AllowedImageTypes lists the MIME types accepted for settings images.
var AllowedImageTypes = map[string]bool{
	"image/png":                true,
	"image/jpeg":               true,
	"image/gif":                true,
	"image/webp":               true,
	"image/svg+xml":            true,
	"image/x-icon":             true,
	"image/vnd.microsoft.icon": true,
}

const settingsDir = "settings"

type Storage struct {
	root string
}

func NewStorage(root string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Join(root, settingsDir), 0750); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &Storage{root: root}, nil
}

// Root returns the directory served under /media/.
func (s *Storage) Root() string {
	return s.root
}

// Save validates an image upload and writes it under a random name. It
// returns the stored name relative to the media root.
func (s *Storage) Save(data io.Reader) (string, error) {
	head := make([]byte, sniffSize)
	n, err := io.ReadAtLeast(data, head, 1)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("read upload header for MIME sniff: %w", err)
	}
	head = head[:n]

	detected := mimetype.Detect(head)
	if !allowed(detected) {
		return "", fmt.Errorf("%w: detected %s", ErrInvalidImage, detected.String())
	}

	name := path.Join(settingsDir, uuid.New().String()+detected.Extension())
	full := s.fullPath(name)

	// #nosec G304 -- name is generated above, never user supplied.
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}

	limited := io.LimitReader(io.MultiReader(bytes.NewReader(head), data), MaxImageSize+1)
	written, copyErr := io.Copy(f, limited)
	closeErr := f.Close()
	if copyErr == nil && written > MaxImageSize {
		copyErr = ErrTooLarge
	}
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(full)
		if copyErr != nil {
			return "", fmt.Errorf("write media file: %w", copyErr)
		}
		return "", fmt.Errorf("close media file: %w", closeErr)
	}

	return name, nil
}

// Resolve checks that name still exists and returns its servable path
// relative to the media root.
func (s *Storage) Resolve(name string) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(s.fullPath(clean))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, clean)
		}
		return "", fmt.Errorf("stat media file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrFileNotFound, clean)
	}
	return clean, nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *Storage) Delete(name string) error {
	clean, err := cleanName(name)
	if err != nil {
		return err
	}
	if err := os.Remove(s.fullPath(clean)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove media file: %w", err)
	}
	return nil
}

func (s *Storage) fullPath(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

func cleanName(name string) (string, error) {
	clean := path.Clean("/" + strings.TrimSpace(name))[1:]
	if clean == "" || clean != strings.TrimPrefix(strings.TrimSpace(name), "/") {
		return "", fmt.Errorf("%w: invalid name %q", ErrFileNotFound, name)
	}
	return clean, nil
}

func allowed(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if AllowedImageTypes[m.String()] {
			return true
		}
	}
	return false
}
