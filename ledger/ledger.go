package ledger

import (
	"encoding/hex"
	"fmt"
	"sync"

	"adn/artifact"
	"adn/errors"
	"adn/events"
	"adn/interfaces"
	"adn/logx"
	"adn/monitoring"
	"adn/predicate"
	"adn/store"
	"adn/types"
)

// Ledger reconstructs AD state from accepted feed entries. All mutation goes
// through RegisterAd and ApplyArtifact, serialized per AD so two entries for
// the same datastore can never interleave.
type Ledger struct {
	mu      sync.Mutex
	adLocks map[types.AdID]*sync.Mutex

	adStore  store.AdStore
	verifier interfaces.Verifier
	eventBus *events.EventBus
}

func NewLedger(adStore store.AdStore, verifier interfaces.Verifier, eventBus *events.EventBus) *Ledger {
	return &Ledger{
		adLocks:  make(map[types.AdID]*sync.Mutex),
		adStore:  adStore,
		verifier: verifier,
		eventBus: eventBus,
	}
}

// lockFor returns the serialization lock of one AD, creating it on first use.
func (l *Ledger) lockFor(id types.AdID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.adLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		l.adLocks[id] = lock
	}
	return lock
}

// RegisterAd registers a datastore from an init entry. The first init for an
// id wins; later inits for the same id are rejected as duplicates.
func (l *Ledger) RegisterAd(id types.AdID, kind types.AdKind, catalogHash string, slot uint64) error {
	lock := l.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	existed, err := l.adStore.Exists(id)
	if err != nil {
		return errors.New(errors.ErrCodeInternal, "could not check existence of ad %s: %v", id.Hex(), err)
	}
	if existed {
		return errors.New(errors.ErrCodeDuplicateInit, "ad %s already initialized", id.Hex())
	}

	localHash := predicate.CatalogHash(kind)
	if catalogHash != hex.EncodeToString(localHash[:]) {
		return errors.New(errors.ErrCodeUnknownPredicate, "ad %s declares unknown predicate catalog %s", id.Hex(), catalogHash)
	}

	ad := &types.Ad{
		ID:                id,
		Kind:              kind,
		CurrentState:      types.Empty(kind),
		LastProcessedSlot: slot,
		UpdateNum:         0,
		CatalogHash:       catalogHash,
	}
	if err := l.adStore.Store(ad); err != nil {
		return errors.New(errors.ErrCodeInternal, "failed to store ad %s: %v", id.Hex(), err)
	}

	logx.Info("LEDGER", fmt.Sprintf("Registered ad | id=%s | kind=%s | slot=%d", id.Hex(), kind, slot))
	if count, err := l.adStore.Count(); err == nil {
		monitoring.SetRegisteredAds(count)
	}
	if l.eventBus != nil {
		l.eventBus.Publish(events.NewADInitialized(id, kind, slot))
	}
	return nil
}

// ApplyArtifact validates an update artifact against the current state and,
// when everything holds, commits the transition atomically. Validation order
// is fixed: staleness gate, catalog membership, chain fold, proof check. A
// failure at any step leaves the AD untouched.
func (l *Ledger) ApplyArtifact(art *artifact.Artifact, entry types.FeedEntry) error {
	lock := l.lockFor(art.ADID)
	lock.Lock()
	defer lock.Unlock()

	ad, err := l.adStore.Get(art.ADID)
	if err != nil {
		return errors.New(errors.ErrCodeInternal, "could not load ad %s: %v", art.ADID.Hex(), err)
	}
	if ad == nil {
		return errors.New(errors.ErrCodeUnknownAd, "update for unregistered ad %s", art.ADID.Hex())
	}

	if len(art.Statements) == 0 {
		return errors.New(errors.ErrCodeEmptyChain, "ad %s: artifact asserts no transitions", art.ADID.Hex())
	}

	if !art.StartingState().Equal(ad.CurrentState) {
		return errors.New(errors.ErrCodeStaleState, "ad %s: artifact starts from a state that is not current", art.ADID.Hex())
	}

	for _, st := range art.Statements {
		if !predicate.InCatalog(ad.Kind, st.Predicate) {
			return errors.New(errors.ErrCodeUnknownPredicate, "ad %s: predicate %q not in %s catalog", art.ADID.Hex(), st.Predicate, ad.Kind)
		}
	}

	newState, err := artifact.ValidateChain(art.Statements, ad.CurrentState)
	if err != nil {
		return err
	}

	if !l.verifier.Verify(art.Proof, artifact.StatementsHash(art.Statements)) {
		return errors.New(errors.ErrCodeProofInvalid, "ad %s: proof rejected", art.ADID.Hex())
	}

	num := ad.UpdateNum + 1
	update := &types.AdUpdate{
		ID:            art.ADID,
		Num:           num,
		State:         newState,
		Slot:          entry.Slot,
		VersionedHash: entry.VersionedHash,
	}
	rec := &types.BlobRecord{
		VersionedHash: entry.VersionedHash,
		Slot:          entry.Slot,
		Block:         entry.Block,
		BlobIndex:     int(entry.BlobIndex),
		Timestamp:     entry.Timestamp,
	}

	ad.CurrentState = newState
	ad.UpdateNum = num
	if entry.Slot > ad.LastProcessedSlot {
		ad.LastProcessedSlot = entry.Slot
	}

	if err := l.adStore.ApplyUpdate(ad, update, rec); err != nil {
		return errors.New(errors.ErrCodeInternal, "failed to commit update %d for ad %s: %v", num, art.ADID.Hex(), err)
	}

	logx.Info("LEDGER", fmt.Sprintf("Applied update | ad=%s | num=%d | slot=%d | statements=%d", art.ADID.Hex(), num, entry.Slot, len(art.Statements)))
	monitoring.IncreaseEntryAccepted()
	if l.eventBus != nil {
		l.eventBus.Publish(events.NewADUpdated(art.ADID, num, newState, entry.Slot))
	}
	return nil
}

// AdExists checks if a datastore is registered
func (l *Ledger) AdExists(id types.AdID) bool {
	existed, err := l.adStore.Exists(id)
	if err != nil {
		logx.Error("LEDGER", fmt.Sprintf("Existence check failed | ad=%s | error=%v", id.Hex(), err))
		return false
	}
	return existed
}

// GetAd returns the datastore record for the given id
func (l *Ledger) GetAd(id types.AdID) (*types.Ad, error) {
	ad, err := l.adStore.Get(id)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInternal, "could not load ad %s: %v", id.Hex(), err)
	}
	if ad == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "ad %s not found", id.Hex())
	}
	return ad, nil
}

// GetUpdate returns one numbered update record
func (l *Ledger) GetUpdate(id types.AdID, num uint64) (*types.AdUpdate, error) {
	update, err := l.adStore.GetUpdate(id, num)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInternal, "could not load update %d for ad %s: %v", num, id.Hex(), err)
	}
	if update == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "ad %s has no update %d", id.Hex(), num)
	}
	return update, nil
}

// GetHistory returns updates first..last inclusive, clamped to what exists.
func (l *Ledger) GetHistory(id types.AdID, first, last uint64) ([]*types.AdUpdate, error) {
	ad, err := l.GetAd(id)
	if err != nil {
		return nil, err
	}
	if last > ad.UpdateNum {
		last = ad.UpdateNum
	}
	if first == 0 {
		first = 1
	}
	updates := make([]*types.AdUpdate, 0)
	for num := first; num <= last; num++ {
		u, err := l.GetUpdate(id, num)
		if err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, nil
}
