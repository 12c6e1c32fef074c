package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
)

const (
	imagesDir   = "images"
	metadataDir = "metadata"
)

// Store implements ports.ArtifactStore using the local filesystem.
// Images land in <base>/images/<id><ext> and records in <base>/metadata/<id>.json.
type Store struct {
	BasePath string
	uri      string
}

// Option configures the Store.
type Option func(*Store)

// WithImageURI sets the template of the image reference written into metadata.
// "{file}" is replaced by the image file name, e.g. "ipfs://QmCid/{file}".
func WithImageURI(template string) Option {
	return func(s *Store) {
		s.uri = template
	}
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to "output".
func New(basePath string, opts ...Option) *Store {
	if basePath == "" {
		basePath = "output"
	}
	s := &Store{BasePath: basePath, uri: "{file}"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ImagePath returns where the raster of a token is stored.
func (s *Store) ImagePath(tokenID int64, ext string) string {
	return filepath.Join(s.BasePath, imagesDir, strconv.FormatInt(tokenID, 10)+ext)
}

func (s *Store) metadataPath(tokenID int64) string {
	return filepath.Join(s.BasePath, metadataDir, strconv.FormatInt(tokenID, 10)+".json")
}

// SaveImage writes the raster atomically and returns its reference.
func (s *Store) SaveImage(ctx context.Context, tokenID int64, ext string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := writeAtomic(s.ImagePath(tokenID, ext), data); err != nil {
		return "", fmt.Errorf("failed to save image of token %d: %w", tokenID, err)
	}
	name := strconv.FormatInt(tokenID, 10) + ext
	return strings.ReplaceAll(s.uri, "{file}", name), nil
}

// SaveMetadata persists the record as indented JSON atomically.
func (s *Store) SaveMetadata(ctx context.Context, md *domain.TokenMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := writeAtomic(s.metadataPath(md.TokenID), data); err != nil {
		return fmt.Errorf("failed to save metadata of token %d: %w", md.TokenID, err)
	}
	return nil
}

// LoadMetadata retrieves a record from its JSON file.
func (s *Store) LoadMetadata(ctx context.Context, tokenID int64) (*domain.TokenMetadata, error) {
	data, err := os.ReadFile(s.metadataPath(tokenID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var md domain.TokenMetadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata of token %d: %w", tokenID, err)
	}
	return &md, nil
}

// List returns the ids of every metadata file in ascending order.
func (s *Store) List(ctx context.Context) ([]int64, error) {
	entries, err := os.ReadDir(filepath.Join(s.BasePath, metadataDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []int64{}, nil
		}
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}

	ids := make([]int64, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(name, ".json"), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Reset removes both artifact directories.
func (s *Store) Reset(ctx context.Context) error {
	for _, dir := range []string{imagesDir, metadataDir} {
		if err := os.RemoveAll(filepath.Join(s.BasePath, dir)); err != nil {
			return fmt.Errorf("failed to reset %s: %w", dir, err)
		}
	}
	return nil
}

// writeAtomic writes to a temporary file first, syncs via fsync, and then
// renames it to the destination.
func writeAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure directory: %w", err)
	}

	// same directory so the rename stays on one filesystem
	tmpFile, err := os.CreateTemp(dir, "tmp-"+filepath.Base(dest)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// cannot rename an open file on Windows
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(dest); err == nil {
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("failed to remove existing file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
