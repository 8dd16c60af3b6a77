package pipeline

import (
	"context"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adn/artifact"
	"adn/db"
	"adn/errors"
	"adn/events"
	"adn/ledger"
	"adn/predicate"
	"adn/store"
	"adn/types"
)

type acceptAllVerifier struct{}

func (acceptAllVerifier) Verify(proof []byte, statementsHash [32]byte) bool { return true }

type fakeProver struct {
	fail bool
}

func (p *fakeProver) Prove(ctx context.Context, adID types.AdID, statements []types.Statement) ([]byte, error) {
	if p.fail {
		return nil, fmt.Errorf("prover exploded")
	}
	return []byte{0xaa}, nil
}

// loopbackBroadcaster plays the feed: it applies the broadcast payload to the
// ledger immediately, which publishes the ADUpdated event the pipeline waits
// for.
type loopbackBroadcaster struct {
	ledger *ledger.Ledger
	slot   uint64
	fail   bool
}

func (b *loopbackBroadcaster) BroadcastPayload(ctx context.Context, payload []byte) ([32]byte, error) {
	if b.fail {
		return [32]byte{}, fmt.Errorf("feed unreachable")
	}
	p, err := artifact.Decode(payload)
	if err != nil {
		return [32]byte{}, err
	}
	b.slot++
	vh := [32]byte{0x01, byte(b.slot)}
	err = b.ledger.ApplyArtifact(&p.Update.Artifact, types.FeedEntry{Slot: b.slot, VersionedHash: vh})
	if err != nil {
		return [32]byte{}, err
	}
	return vh, nil
}

type harness struct {
	ledger      *ledger.Ledger
	pipe        *Pipeline
	prover      *fakeProver
	broadcaster *loopbackBroadcaster
	cancel      context.CancelFunc
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	provider := db.NewMemoryProvider()
	adStore, err := store.NewGenericAdStore(provider)
	require.NoError(t, err)
	reqStore, err := store.NewGenericRequestStore(provider)
	require.NoError(t, err)

	bus := events.NewEventBus()
	ld := ledger.NewLedger(adStore, acceptAllVerifier{}, bus)

	prover := &fakeProver{}
	broadcaster := &loopbackBroadcaster{ledger: ld, slot: 100}
	pipe := NewPipeline(Config{InclusionTimeout: 2 * time.Second}, reqStore, ld, prover, broadcaster, bus)

	ctx, cancel := context.WithCancel(context.Background())
	pipe.Start(ctx)
	t.Cleanup(cancel)

	return &harness{ledger: ld, pipe: pipe, prover: prover, broadcaster: broadcaster, cancel: cancel}
}

func (h *harness) registerCounter(t *testing.T, seed string) types.AdID {
	t.Helper()
	id := types.DeriveAdID(types.AdKindCounter, seed)
	catalog := predicate.CatalogHash(types.AdKindCounter)
	require.NoError(t, h.ledger.RegisterAd(id, types.AdKindCounter, hex.EncodeToString(catalog[:]), 1))
	return id
}

func (h *harness) waitStatus(t *testing.T, reqID string, status types.RequestStatus) *types.Request {
	t.Helper()
	var got *types.Request
	require.Eventually(t, func() bool {
		req, err := h.pipe.GetRequest(reqID)
		if err != nil {
			return false
		}
		got = req
		return req.Status == status
	}, 3*time.Second, 10*time.Millisecond, "last status: %+v", got)
	return got
}

func TestPipelineCompletesRequest(t *testing.T) {
	h := newHarness(t)
	id := h.registerCounter(t, "complete")

	req, err := h.pipe.Submit(id, types.Increment(4))
	require.NoError(t, err)

	done := h.waitStatus(t, req.ID, types.RequestComplete)
	assert.NotEmpty(t, done.Result)
	assert.Empty(t, done.Reason)

	ad, err := h.ledger.GetAd(id)
	require.NoError(t, err)
	assert.True(t, ad.CurrentState.Equal(types.IntValue(4)))
}

func TestPipelineSerializesPerAd(t *testing.T) {
	h := newHarness(t)
	id := h.registerCounter(t, "serial")

	first, err := h.pipe.Submit(id, types.Increment(2))
	require.NoError(t, err)
	second, err := h.pipe.Submit(id, types.Increment(3))
	require.NoError(t, err)

	h.waitStatus(t, first.ID, types.RequestComplete)
	h.waitStatus(t, second.ID, types.RequestComplete)

	// the second proof was built on the first one's state, not on a race
	ad, err := h.ledger.GetAd(id)
	require.NoError(t, err)
	assert.True(t, ad.CurrentState.Equal(types.IntValue(5)))
	assert.Equal(t, uint64(2), ad.UpdateNum)
}

func TestPipelineFailFastOnPredicate(t *testing.T) {
	h := newHarness(t)
	id := h.registerCounter(t, "failfast")

	_, err := h.pipe.Submit(id, types.Increment(15))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodePredicateViolation, errors.CodeOf(err))
}

func TestPipelineRejectsUnknownAd(t *testing.T) {
	h := newHarness(t)

	_, err := h.pipe.Submit(types.DeriveAdID(types.AdKindCounter, "ghost"), types.Increment(1))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
}

func TestPipelineRejectsWrongKindOperation(t *testing.T) {
	h := newHarness(t)
	id := h.registerCounter(t, "wrongop")

	_, err := h.pipe.Submit(id, types.SetAdd("x"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidOperation, errors.CodeOf(err))
}

func TestPipelineProverFailure(t *testing.T) {
	h := newHarness(t)
	h.prover.fail = true
	id := h.registerCounter(t, "proverfail")

	req, err := h.pipe.Submit(id, types.Increment(1))
	require.NoError(t, err)

	failed := h.waitStatus(t, req.ID, types.RequestFailed)
	assert.Contains(t, failed.Reason, "proving failed")
}

func TestPipelineBroadcastFailure(t *testing.T) {
	h := newHarness(t)
	h.broadcaster.fail = true
	id := h.registerCounter(t, "bcastfail")

	req, err := h.pipe.Submit(id, types.Increment(1))
	require.NoError(t, err)

	failed := h.waitStatus(t, req.ID, types.RequestFailed)
	assert.Contains(t, failed.Reason, "broadcast failed")
}

func TestApplyOperation(t *testing.T) {
	out, err := applyOperation(types.AdKindCounter, types.IntValue(3), types.Increment(4))
	require.NoError(t, err)
	assert.True(t, out.Equal(types.IntValue(7)))

	out, err = applyOperation(types.AdKindSet, types.SetValue("a"), types.SetAdd("b"))
	require.NoError(t, err)
	assert.True(t, out.Equal(types.SetValue("a", "b")))

	out, err = applyOperation(types.AdKindMembership,
		types.GroupsValue(map[string][]string{"red": {}}), types.MemberAdd("red", "alice"))
	require.NoError(t, err)
	assert.True(t, out.GroupContains("red", "alice"))

	_, err = applyOperation(types.AdKindCounter, types.IntValue(0), types.SetAdd("x"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidOperation, errors.CodeOf(err))
}
