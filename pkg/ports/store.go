package ports

import (
	"context"
	"time"

	"github.com/aretw0/strata/pkg/domain"
)

// SeenSet holds the ComboKeys claimed during a batch.
type SeenSet interface {
	// Add inserts key into the batch namespace and reports whether it was absent.
	// The check and the insert must be atomic with respect to concurrent callers.
	Add(ctx context.Context, batchID string, key domain.ComboKey) (bool, error)

	// Len returns the number of keys claimed in the batch namespace.
	Len(ctx context.Context, batchID string) (int, error)

	// Clear drops the batch namespace.
	Clear(ctx context.Context, batchID string) error
}

// ArtifactStore persists token images and metadata.
type ArtifactStore interface {
	// SaveImage stores the raster of a token and returns its image reference.
	// ext includes the leading dot (".png").
	SaveImage(ctx context.Context, tokenID int64, ext string, data []byte) (string, error)

	// SaveMetadata stores the description record of a token.
	SaveMetadata(ctx context.Context, md *domain.TokenMetadata) error

	// LoadMetadata retrieves a record.
	// Returns domain.ErrTokenNotFound if the token does not exist.
	LoadMetadata(ctx context.Context, tokenID int64) (*domain.TokenMetadata, error)

	// List returns the ids of every stored token in ascending order.
	List(ctx context.Context) ([]int64, error)

	// Reset removes every stored artifact.
	Reset(ctx context.Context) error
}

// LedgerEntry is one emitted token.
type LedgerEntry struct {
	BatchID   string          `json:"batch_id"`
	TokenID   int64           `json:"token_id"`
	Key       domain.ComboKey `json:"combo_key"`
	Image     string          `json:"image"`
	Attempts  int             `json:"attempts"`
	CreatedAt time.Time       `json:"created_at"`
}

// DuplicateGroup lists tokens sharing one ComboKey.
type DuplicateGroup struct {
	Key      domain.ComboKey `json:"combo_key"`
	TokenIDs []int64         `json:"token_ids"`
}

// Ledger keeps the history of emitted tokens across batches.
type Ledger interface {
	Record(ctx context.Context, entry LedgerEntry) error
	Entries(ctx context.Context, batchID string) ([]LedgerEntry, error)
	Duplicates(ctx context.Context) ([]DuplicateGroup, error)
}
