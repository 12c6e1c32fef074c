package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/strata/pkg/adapters/sqlite"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLedger(t *testing.T) *sqlite.Ledger {
	t.Helper()
	ledger, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := sqlite.Open("  ")
	assert.Error(t, err)
}

func TestLedger_RecordAndEntries(t *testing.T) {
	ledger := openLedger(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, ledger.Record(ctx, ports.LedgerEntry{BatchID: "b1", TokenID: 2, Key: "hat=crown", Image: "2.png", Attempts: 3, CreatedAt: at}))
	require.NoError(t, ledger.Record(ctx, ports.LedgerEntry{BatchID: "b1", TokenID: 1, Key: "hat=cap", Image: "1.png", Attempts: 1, CreatedAt: at}))
	require.NoError(t, ledger.Record(ctx, ports.LedgerEntry{BatchID: "b2", TokenID: 1, Key: "hat=cap", Image: "1.png", Attempts: 1, CreatedAt: at}))

	entries, err := ledger.Entries(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].TokenID)
	assert.Equal(t, ports.LedgerEntry{BatchID: "b1", TokenID: 2, Key: "hat=crown", Image: "2.png", Attempts: 3, CreatedAt: at}, entries[1])

	empty, err := ledger.Entries(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLedger_RecordUpserts(t *testing.T) {
	ledger := openLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.Record(ctx, ports.LedgerEntry{BatchID: "b1", TokenID: 1, Key: "a"}))
	require.NoError(t, ledger.Record(ctx, ports.LedgerEntry{BatchID: "b1", TokenID: 1, Key: "b"}))

	entries, err := ledger.Entries(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.EqualValues(t, "b", entries[0].Key)
}

func TestLedger_Duplicates(t *testing.T) {
	ledger := openLedger(t)
	ctx := context.Background()

	for _, e := range []ports.LedgerEntry{
		{BatchID: "b1", TokenID: 1, Key: "hat=cap"},
		{BatchID: "b1", TokenID: 2, Key: "hat=crown"},
		{BatchID: "b2", TokenID: 5, Key: "hat=cap"},
		{BatchID: "b2", TokenID: 6}, // custom tokens carry no key
		{BatchID: "b2", TokenID: 7},
	} {
		require.NoError(t, ledger.Record(ctx, e))
	}

	groups, err := ledger.Duplicates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ports.DuplicateGroup{{Key: "hat=cap", TokenIDs: []int64{1, 5}}}, groups)
}

func TestLedger_RecordCancelled(t *testing.T) {
	ledger := openLedger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ledger.Record(ctx, ports.LedgerEntry{BatchID: "b1", TokenID: 1}), context.Canceled)
}
