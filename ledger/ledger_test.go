package ledger

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adn/artifact"
	"adn/db"
	"adn/errors"
	"adn/events"
	"adn/predicate"
	"adn/store"
	"adn/types"
)

// fakeVerifier accepts everything unless told otherwise.
type fakeVerifier struct {
	reject bool
}

func (v *fakeVerifier) Verify(proof []byte, statementsHash [32]byte) bool {
	return !v.reject
}

func newTestLedger(t *testing.T, verifier *fakeVerifier) *Ledger {
	t.Helper()
	adStore, err := store.NewGenericAdStore(db.NewMemoryProvider())
	require.NoError(t, err)
	return NewLedger(adStore, verifier, events.NewEventBus())
}

func catalogHashHex(kind types.AdKind) string {
	h := predicate.CatalogHash(kind)
	return hex.EncodeToString(h[:])
}

func registerCounter(t *testing.T, l *Ledger, seed string) types.AdID {
	t.Helper()
	id := types.DeriveAdID(types.AdKindCounter, seed)
	require.NoError(t, l.RegisterAd(id, types.AdKindCounter, catalogHashHex(types.AdKindCounter), 10))
	return id
}

func counterArtifact(id types.AdID, oldN int64, ns ...int64) *artifact.Artifact {
	statements := make([]types.Statement, 0, len(ns))
	running := oldN
	for _, n := range ns {
		statements = append(statements, types.Statement{
			Predicate: "inc",
			Old:       types.IntValue(running),
			New:       types.IntValue(running + n),
			Op:        types.Increment(n),
		})
		running += n
	}
	return &artifact.Artifact{ADID: id, Statements: statements, Proof: []byte{1}}
}

func entryAt(slot uint64) types.FeedEntry {
	return types.FeedEntry{Slot: slot, Block: slot * 10, VersionedHash: [32]byte{0x01, byte(slot)}}
}

func TestRegisterAd(t *testing.T) {
	l := newTestLedger(t, &fakeVerifier{})
	id := registerCounter(t, l, "reg")

	assert.True(t, l.AdExists(id))

	ad, err := l.GetAd(id)
	require.NoError(t, err)
	assert.True(t, ad.CurrentState.Equal(types.IntValue(0)))
	assert.Equal(t, uint64(10), ad.LastProcessedSlot)
	assert.Equal(t, uint64(0), ad.UpdateNum)
}

func TestRegisterAdDuplicateInit(t *testing.T) {
	l := newTestLedger(t, &fakeVerifier{})
	id := registerCounter(t, l, "dup")

	err := l.RegisterAd(id, types.AdKindCounter, catalogHashHex(types.AdKindCounter), 11)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDuplicateInit, errors.CodeOf(err))

	// first registration stays authoritative
	ad, err := l.GetAd(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), ad.LastProcessedSlot)
}

func TestRegisterAdBadCatalogHash(t *testing.T) {
	l := newTestLedger(t, &fakeVerifier{})
	id := types.DeriveAdID(types.AdKindCounter, "badcat")

	err := l.RegisterAd(id, types.AdKindCounter, catalogHashHex(types.AdKindSet), 10)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnknownPredicate, errors.CodeOf(err))
	assert.False(t, l.AdExists(id))
}

func TestApplyArtifact(t *testing.T) {
	l := newTestLedger(t, &fakeVerifier{})
	id := registerCounter(t, l, "apply")

	require.NoError(t, l.ApplyArtifact(counterArtifact(id, 0, 5), entryAt(11)))

	ad, err := l.GetAd(id)
	require.NoError(t, err)
	assert.True(t, ad.CurrentState.Equal(types.IntValue(5)))
	assert.Equal(t, uint64(1), ad.UpdateNum)
	assert.Equal(t, uint64(11), ad.LastProcessedSlot)

	// batched chain advances in one artifact
	require.NoError(t, l.ApplyArtifact(counterArtifact(id, 5, 3, 1), entryAt(12)))
	ad, err = l.GetAd(id)
	require.NoError(t, err)
	assert.True(t, ad.CurrentState.Equal(types.IntValue(9)))
	assert.Equal(t, uint64(2), ad.UpdateNum)

	u, err := l.GetUpdate(id, 1)
	require.NoError(t, err)
	assert.True(t, u.State.Equal(types.IntValue(5)))
	assert.Equal(t, uint64(11), u.Slot)
}

func TestApplyArtifactUnknownAd(t *testing.T) {
	l := newTestLedger(t, &fakeVerifier{})
	id := types.DeriveAdID(types.AdKindCounter, "ghost")

	err := l.ApplyArtifact(counterArtifact(id, 0, 1), entryAt(11))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnknownAd, errors.CodeOf(err))
}

func TestApplyArtifactEmptyStatements(t *testing.T) {
	l := newTestLedger(t, &fakeVerifier{})
	id := registerCounter(t, l, "empty")

	err := l.ApplyArtifact(&artifact.Artifact{ADID: id, Proof: []byte{1}}, entryAt(11))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeEmptyChain, errors.CodeOf(err))

	// the ad stays untouched
	ad, err := l.GetAd(id)
	require.NoError(t, err)
	assert.True(t, ad.CurrentState.Equal(types.IntValue(0)))
	assert.Equal(t, uint64(0), ad.UpdateNum)
}

func TestApplyArtifactStaleState(t *testing.T) {
	l := newTestLedger(t, &fakeVerifier{})
	id := registerCounter(t, l, "stale")

	require.NoError(t, l.ApplyArtifact(counterArtifact(id, 0, 5), entryAt(11)))

	// re-delivery of the same artifact is rejected by the old-state gate,
	// making slot replay idempotent
	err := l.ApplyArtifact(counterArtifact(id, 0, 5), entryAt(11))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStaleState, errors.CodeOf(err))

	ad, err := l.GetAd(id)
	require.NoError(t, err)
	assert.True(t, ad.CurrentState.Equal(types.IntValue(5)))
	assert.Equal(t, uint64(1), ad.UpdateNum)
}

func TestApplyArtifactPredicateViolationLeavesStateUntouched(t *testing.T) {
	l := newTestLedger(t, &fakeVerifier{})
	id := registerCounter(t, l, "violate")

	require.NoError(t, l.ApplyArtifact(counterArtifact(id, 0, 5), entryAt(11)))

	// middle link with n=12 poisons the whole batch
	err := l.ApplyArtifact(counterArtifact(id, 5, 3, 12, 1), entryAt(12))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodePredicateViolation, errors.CodeOf(err))

	ad, err := l.GetAd(id)
	require.NoError(t, err)
	assert.True(t, ad.CurrentState.Equal(types.IntValue(5)))
	assert.Equal(t, uint64(1), ad.UpdateNum)
}

func TestApplyArtifactRejectedProof(t *testing.T) {
	verifier := &fakeVerifier{reject: true}
	l := newTestLedger(t, verifier)
	id := registerCounter(t, l, "proof")

	err := l.ApplyArtifact(counterArtifact(id, 0, 5), entryAt(11))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeProofInvalid, errors.CodeOf(err))

	ad, err := l.GetAd(id)
	require.NoError(t, err)
	assert.True(t, ad.CurrentState.Equal(types.IntValue(0)))
}

func TestApplyArtifactUnknownPredicateForKind(t *testing.T) {
	l := newTestLedger(t, &fakeVerifier{})
	id := registerCounter(t, l, "wrongkind")

	art := &artifact.Artifact{
		ADID: id,
		Statements: []types.Statement{{
			Predicate: "set_add",
			Old:       types.IntValue(0),
			New:       types.IntValue(0),
			Op:        types.SetAdd("x"),
		}},
		Proof: []byte{1},
	}
	err := l.ApplyArtifact(art, entryAt(11))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnknownPredicate, errors.CodeOf(err))
}

func TestSetAdNoOpRemoval(t *testing.T) {
	l := newTestLedger(t, &fakeVerifier{})
	id := types.DeriveAdID(types.AdKindSet, "set")
	require.NoError(t, l.RegisterAd(id, types.AdKindSet, catalogHashHex(types.AdKindSet), 10))

	add := &artifact.Artifact{
		ADID: id,
		Statements: []types.Statement{{
			Predicate: "set_add",
			Old:       types.SetValue(),
			New:       types.SetValue("a"),
			Op:        types.SetAdd("a"),
		}},
		Proof: []byte{1},
	}
	require.NoError(t, l.ApplyArtifact(add, entryAt(11)))

	// removing a non-member is a legal no-op transition
	noop := &artifact.Artifact{
		ADID: id,
		Statements: []types.Statement{{
			Predicate: "set_del",
			Old:       types.SetValue("a"),
			New:       types.SetValue("a"),
			Op:        types.SetDel("zzz"),
		}},
		Proof: []byte{1},
	}
	require.NoError(t, l.ApplyArtifact(noop, entryAt(12)))

	ad, err := l.GetAd(id)
	require.NoError(t, err)
	assert.True(t, ad.CurrentState.Equal(types.SetValue("a")))
	assert.Equal(t, uint64(2), ad.UpdateNum)
}

func TestGetHistory(t *testing.T) {
	l := newTestLedger(t, &fakeVerifier{})
	id := registerCounter(t, l, "history")

	require.NoError(t, l.ApplyArtifact(counterArtifact(id, 0, 1), entryAt(11)))
	require.NoError(t, l.ApplyArtifact(counterArtifact(id, 1, 2), entryAt(12)))
	require.NoError(t, l.ApplyArtifact(counterArtifact(id, 3, 3), entryAt(13)))

	updates, err := l.GetHistory(id, 0, 100)
	require.NoError(t, err)
	require.Len(t, updates, 3)
	assert.Equal(t, uint64(1), updates[0].Num)
	assert.True(t, updates[2].State.Equal(types.IntValue(6)))

	updates, err = l.GetHistory(id, 2, 2)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.True(t, updates[0].State.Equal(types.IntValue(3)))
}
