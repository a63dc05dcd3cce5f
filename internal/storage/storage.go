package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"paper-qa/internal/helper"

	"github.com/rs/zerolog/log"
)

var ErrInvalidLocator = errors.New("invalid blob locator")

// Store keeps uploaded PDFs and, beside each one, its extracted text at
// {locator}.txt.
type Store interface {
	Store(ctx context.Context, locator string, data []byte, contentType string) error
	StoreText(ctx context.Context, locator, text string) error
	FetchText(ctx context.Context, locator string) (string, error)
	Delete(ctx context.Context, locator string) error
}

type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", root, err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) Store(ctx context.Context, locator string, data []byte, contentType string) error {
	path, err := s.path(locator)
	if err != nil {
		return err
	}
	if err := s.write(ctx, path, data); err != nil {
		return err
	}
	log.Debug().Str("locator", locator).Str("content_type", contentType).Int("bytes", len(data)).Msg("Stored blob")
	return nil
}

func (s *FileStore) StoreText(ctx context.Context, locator, text string) error {
	path, err := s.path(helper.TextBlobName(locator))
	if err != nil {
		return err
	}
	return s.write(ctx, path, []byte(text))
}

func (s *FileStore) FetchText(ctx context.Context, locator string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.path(helper.TextBlobName(locator))
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read text for %s: %w", locator, err)
	}
	return string(data), nil
}

// Delete removes the blob and its text. Missing files are ignored.
func (s *FileStore) Delete(ctx context.Context, locator string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, name := range []string{locator, helper.TextBlobName(locator)} {
		path, err := s.path(name)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete %s: %w", name, err)
		}
	}
	log.Debug().Str("locator", locator).Msg("Deleted blob")
	return nil
}

func (s *FileStore) write(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// path maps a locator onto the root, rejecting anything that escapes it.
func (s *FileStore) path(locator string) (string, error) {
	if locator == "" || filepath.IsAbs(locator) {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	clean := filepath.Clean(filepath.FromSlash(locator))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	return filepath.Join(s.root, clean), nil
}
