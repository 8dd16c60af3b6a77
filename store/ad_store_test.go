package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adn/db"
	"adn/types"
)

func newTestAdStore(t *testing.T) *GenericAdStore {
	t.Helper()
	s, err := NewGenericAdStore(db.NewMemoryProvider())
	require.NoError(t, err)
	return s
}

func TestAdStoreRoundTrip(t *testing.T) {
	s := newTestAdStore(t)

	ad := &types.Ad{
		ID:           types.DeriveAdID(types.AdKindCounter, "store"),
		Kind:         types.AdKindCounter,
		CurrentState: types.IntValue(0),
	}
	require.NoError(t, s.Store(ad))

	got, err := s.Get(ad.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ad.ID, got.ID)
	assert.True(t, got.CurrentState.Equal(types.IntValue(0)))

	exists, err := s.Exists(ad.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	missing, err := s.Get(types.DeriveAdID(types.AdKindCounter, "missing"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAdStoreCount(t *testing.T) {
	s := newTestAdStore(t)

	for _, seed := range []string{"a", "b", "c"} {
		require.NoError(t, s.Store(&types.Ad{
			ID:           types.DeriveAdID(types.AdKindSet, seed),
			Kind:         types.AdKindSet,
			CurrentState: types.SetValue(),
		}))
	}

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestAdStoreApplyUpdate(t *testing.T) {
	s := newTestAdStore(t)

	id := types.DeriveAdID(types.AdKindCounter, "apply")
	ad := &types.Ad{ID: id, Kind: types.AdKindCounter, CurrentState: types.IntValue(0)}
	require.NoError(t, s.Store(ad))

	vh := [32]byte{0x01, 0xaa}
	ad.CurrentState = types.IntValue(7)
	ad.UpdateNum = 1
	ad.LastProcessedSlot = 42
	update := &types.AdUpdate{ID: id, Num: 1, State: types.IntValue(7), Slot: 42, VersionedHash: vh}
	rec := &types.BlobRecord{VersionedHash: vh, Slot: 42, Block: 9000, BlobIndex: 2, Timestamp: 1700000000}

	require.NoError(t, s.ApplyUpdate(ad, update, rec))

	got, err := s.Get(id)
	require.NoError(t, err)
	assert.True(t, got.CurrentState.Equal(types.IntValue(7)))
	assert.Equal(t, uint64(1), got.UpdateNum)
	assert.Equal(t, uint64(42), got.LastProcessedSlot)

	u, err := s.GetUpdate(id, 1)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.True(t, u.State.Equal(types.IntValue(7)))
	assert.Equal(t, vh, u.VersionedHash)

	u, err = s.GetUpdate(id, 2)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestSyncMetaStore(t *testing.T) {
	s := NewGenericSyncMetaStore(db.NewMemoryProvider())

	_, ok, err := s.GetLastVisitedSlot()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetLastVisitedSlot(1234))

	slot, ok, err := s.GetLastVisitedSlot()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(1234), slot)

	require.NoError(t, s.SetLastVisitedSlot(1235))
	slot, _, err = s.GetLastVisitedSlot()
	require.NoError(t, err)
	assert.Equal(t, uint64(1235), slot)
}

func TestRequestStore(t *testing.T) {
	s, err := NewGenericRequestStore(db.NewMemoryProvider())
	require.NoError(t, err)

	req := &types.Request{
		ID:     "req-1",
		ADID:   types.DeriveAdID(types.AdKindCounter, "req"),
		Op:     types.Increment(3),
		Status: types.RequestPending,
	}
	require.NoError(t, s.Store(req))

	got, err := s.Get("req-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.RequestPending, got.Status)
	assert.Equal(t, int64(3), got.Op.N)

	// status overwrite
	req.Status = types.RequestComplete
	require.NoError(t, s.Store(req))
	got, err = s.Get("req-1")
	require.NoError(t, err)
	assert.Equal(t, types.RequestComplete, got.Status)

	missing, err := s.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStoreConfigValidate(t *testing.T) {
	assert.Error(t, (&StoreConfig{}).Validate())
	assert.Error(t, (&StoreConfig{Type: LevelDBStoreType}).Validate())
	assert.Error(t, (&StoreConfig{Type: "rocksdb", Directory: "/tmp/x"}).Validate())
	assert.NoError(t, (&StoreConfig{Type: MemoryStoreType}).Validate())
	assert.NoError(t, (&StoreConfig{Type: LevelDBStoreType, Directory: "/tmp/x"}).Validate())
}
