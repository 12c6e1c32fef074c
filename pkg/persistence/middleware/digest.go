package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/aretw0/strata/pkg/ports"
)

// DigestPrefix marks content-addressed image references.
const DigestPrefix = "sha256:"

type contentAddressed struct {
	passthrough
}

// NewContentAddressed creates a middleware that replaces the image reference
// returned by the wrapped store with the SHA-256 digest of the raster.
// Identical images get identical references regardless of token id.
func NewContentAddressed() Middleware {
	return func(next ports.ArtifactStore) ports.ArtifactStore {
		return &contentAddressed{passthrough{next}}
	}
}

func (m *contentAddressed) SaveImage(ctx context.Context, tokenID int64, ext string, data []byte) (string, error) {
	if _, err := m.ArtifactStore.SaveImage(ctx, tokenID, ext, data); err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return DigestPrefix + hex.EncodeToString(sum[:]), nil
}
