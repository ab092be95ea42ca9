package localstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cart_items.json")
	return New(path, zap.NewNop()), path
}

func TestUpsertMergesSameLine(t *testing.T) {
	s, _ := testStore(t)

	s.Upsert(PendingLine{ProductID: 42, Quantity: 2, ProductSlug: "slab", ProductName: "Slab"})
	s.Upsert(PendingLine{ProductID: 42, Quantity: 3, ProductSlug: "slab", ProductName: "Slab"})

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
}

func TestUpsertDistinctVariantsStaySeparate(t *testing.T) {
	s, _ := testStore(t)

	s.Upsert(PendingLine{ProductID: 42, Quantity: 1})
	s.Upsert(PendingLine{ProductID: 42, VariantID: 3, Quantity: 1})

	assert.Equal(t, 2, s.Len())
}

func TestSetQuantityBelowOneRemoves(t *testing.T) {
	s, _ := testStore(t)

	s.Upsert(PendingLine{ProductID: 42, Quantity: 2})
	s.SetQuantity(42, 0, 0)

	assert.Equal(t, 0, s.Len())
}

func TestRemove(t *testing.T) {
	s, _ := testStore(t)

	s.Upsert(PendingLine{ProductID: 42, Quantity: 1})
	s.Upsert(PendingLine{ProductID: 43, Quantity: 1})
	s.Remove(42, 0)

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, int64(43), lines[0].ProductID)
}

func TestFlushAndReload(t *testing.T) {
	s, path := testStore(t)

	s.Upsert(PendingLine{
		ProductID: 42, VariantID: 3, Quantity: 2,
		ProductSlug: "carrara-white-slab", ProductName: "Carrara White Slab",
		ProductPrice: 12000, VariantPrice: 15000, VariantName: "30mm",
	})
	require.NoError(t, s.Flush())

	reloaded := New(path, zap.NewNop())
	lines := reloaded.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, int64(42), lines[0].ProductID)
	assert.Equal(t, int64(3), lines[0].VariantID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, int64(15000), lines[0].VariantPrice)
}

func TestLoadDropsExpiredLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart_items.json")

	fresh := time.Now().UnixMilli()
	stale := time.Now().Add(-31 * 24 * time.Hour).UnixMilli()
	data, err := json.Marshal([]PendingLine{
		{ProductID: 1, Quantity: 1, Timestamp: stale},
		{ProductID: 2, Quantity: 1, Timestamp: fresh},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	s := New(path, zap.NewNop())
	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, int64(2), lines[0].ProductID)
}

func TestLoadCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart_items.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	s := New(path, zap.NewNop())
	assert.Equal(t, 0, s.Len())
}

func TestClearRemovesFile(t *testing.T) {
	s, path := testStore(t)

	s.Upsert(PendingLine{ProductID: 42, Quantity: 1})
	require.NoError(t, s.Flush())
	_, err := os.Stat(path)
	require.NoError(t, err)

	s.Clear()

	assert.Equal(t, 0, s.Len())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFlushEmptyStoreRemovesFile(t *testing.T) {
	s, path := testStore(t)

	s.Upsert(PendingLine{ProductID: 42, Quantity: 1})
	require.NoError(t, s.Flush())
	s.Remove(42, 0)
	require.NoError(t, s.Flush())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLineKey(t *testing.T) {
	assert.Equal(t, "42-default", LineKey(42, 0))
	assert.Equal(t, "42-3", LineKey(42, 3))
}
