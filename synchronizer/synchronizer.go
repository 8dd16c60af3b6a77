package synchronizer

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"adn/artifact"
	"adn/blob"
	"adn/errors"
	"adn/events"
	"adn/exception"
	"adn/interfaces"
	"adn/logx"
	"adn/monitoring"
	"adn/store"
	"adn/types"
)

const (
	defaultPollInterval = 4 * time.Second
	defaultSlotThrottle = 50 * time.Millisecond
)

// Config tunes one synchronizer instance.
type Config struct {
	// GenesisSlot is the first slot that can carry AD entries. Slots below it
	// are never visited.
	GenesisSlot uint64
	// FeedAddress filters entries: only blobs sent to this address are AD
	// payloads. Empty means no filtering.
	FeedAddress string
	// PollInterval is the sleep between head polls once caught up.
	PollInterval time.Duration
	// SlotThrottle spaces slot fetches while catching up so the feed node is
	// not hammered.
	SlotThrottle time.Duration
	// VerifyBlobHashes recomputes each entry's KZG versioned hash and drops
	// entries whose feed-reported hash does not match.
	VerifyBlobHashes bool
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.PollInterval == 0 {
		out.PollInterval = defaultPollInterval
	}
	if out.SlotThrottle == 0 {
		out.SlotThrottle = defaultSlotThrottle
	}
	return out
}

// Synchronizer walks the feed slot by slot and applies every AD entry to the
// ledger. It never skips a slot and never visits one twice in a run: progress
// is persisted only after the whole slot is handled, so a crash replays the
// slot and the ledger's validation gates make the replay a no-op.
type Synchronizer struct {
	cfg       Config
	feed      interfaces.FeedClient
	ledger    interfaces.Ledger
	metaStore store.SyncMetaStore
	eventBus  *events.EventBus
	committer *blob.Committer
}

func NewSynchronizer(cfg Config, feed interfaces.FeedClient, ledger interfaces.Ledger, metaStore store.SyncMetaStore, eventBus *events.EventBus) (*Synchronizer, error) {
	s := &Synchronizer{
		cfg:       cfg.withDefaults(),
		feed:      feed,
		ledger:    ledger,
		metaStore: metaStore,
		eventBus:  eventBus,
	}
	if s.cfg.VerifyBlobHashes {
		committer, err := blob.NewCommitter()
		if err != nil {
			return nil, err
		}
		s.committer = committer
	}
	return s, nil
}

// Start runs the sync loop on its own goroutine until ctx is cancelled.
func (s *Synchronizer) Start(ctx context.Context) {
	exception.SafeGo("synchronizer", func() {
		s.Run(ctx)
	})
}

// Run drives the slot loop. Transient feed or storage errors back off and
// retry the same slot; only a fully handled slot advances the cursor.
func (s *Synchronizer) Run(ctx context.Context) {
	slot := s.nextSlot()
	logx.Info("SYNC", fmt.Sprintf("Starting sync loop | first_slot=%d", slot))

	for {
		if ctx.Err() != nil {
			logx.Info("SYNC", "Sync loop stopped")
			return
		}

		head, err := s.feed.HeadSlot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logx.Error("SYNC", fmt.Sprintf("Head poll failed | error=%v", err))
			s.sleep(ctx, s.cfg.PollInterval)
			continue
		}

		if slot > head {
			s.sleep(ctx, s.cfg.PollInterval)
			continue
		}

		for slot <= head {
			if ctx.Err() != nil {
				return
			}
			if err := s.processSlot(ctx, slot); err != nil {
				logx.Error("SYNC", fmt.Sprintf("Slot processing failed, will retry | slot=%d | error=%v", slot, err))
				s.sleep(ctx, s.cfg.PollInterval)
				break
			}
			if err := s.metaStore.SetLastVisitedSlot(slot); err != nil {
				logx.Error("SYNC", fmt.Sprintf("Failed to persist visited slot, will retry | slot=%d | error=%v", slot, err))
				s.sleep(ctx, s.cfg.PollInterval)
				break
			}
			monitoring.SetLastVisitedSlot(slot)
			slot++
			s.sleep(ctx, s.cfg.SlotThrottle)
		}
	}
}

// nextSlot resumes after the last fully visited slot, never before genesis.
func (s *Synchronizer) nextSlot() uint64 {
	last, ok, err := s.metaStore.GetLastVisitedSlot()
	if err != nil {
		logx.Error("SYNC", fmt.Sprintf("Could not read last visited slot, starting from genesis | error=%v", err))
		return s.cfg.GenesisSlot
	}
	if !ok {
		return s.cfg.GenesisSlot
	}
	if last+1 > s.cfg.GenesisSlot {
		return last + 1
	}
	return s.cfg.GenesisSlot
}

// processSlot handles every matching entry of one slot in feed order.
// Rejections are terminal for the entry and never fail the slot.
func (s *Synchronizer) processSlot(ctx context.Context, slot uint64) error {
	entries, err := s.feed.EntriesAt(ctx, slot)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if s.cfg.FeedAddress != "" && !strings.EqualFold(entry.To, s.cfg.FeedAddress) {
			continue
		}
		if adID, err := s.handleEntry(entry); err != nil {
			// first init wins; a repeated init for a known ad is a no-op
			if errors.CodeOf(err) == errors.ErrCodeDuplicateInit {
				logx.Info("SYNC", fmt.Sprintf("Duplicate init ignored | slot=%d | blob=%d | ad=%s", entry.Slot, entry.BlobIndex, adID.Hex()))
				continue
			}
			if errors.IsRejection(err) {
				s.rejectEntry(entry, adID, err)
				continue
			}
			return err
		}
	}
	return nil
}

// handleEntry decodes one blob entry and dispatches it to the ledger. The
// returned id is the zero id when the payload failed before the id was known.
func (s *Synchronizer) handleEntry(entry types.FeedEntry) (types.AdID, error) {
	if s.committer != nil {
		if err := s.checkVersionedHash(entry); err != nil {
			return types.AdID{}, err
		}
	}

	payloadBytes, err := blob.Decode(entry.Data)
	if err != nil {
		return types.AdID{}, errors.New(errors.ErrCodeMalformedPayload, "slot %d blob %d: %v", entry.Slot, entry.BlobIndex, err)
	}

	payload, err := artifact.Decode(payloadBytes)
	if err != nil {
		return types.AdID{}, err
	}

	switch {
	case payload.Init != nil:
		init := payload.Init
		return init.ID, s.ledger.RegisterAd(init.ID, init.Kind, hex.EncodeToString(init.CatalogHash[:]), entry.Slot)
	case payload.Update != nil:
		art := &payload.Update.Artifact
		return art.ADID, s.ledger.ApplyArtifact(art, entry)
	}
	return types.AdID{}, errors.New(errors.ErrCodeMalformedPayload, "slot %d blob %d: empty payload", entry.Slot, entry.BlobIndex)
}

func (s *Synchronizer) checkVersionedHash(entry types.FeedEntry) error {
	b, err := blob.FromBytes(entry.Data)
	if err != nil {
		return errors.New(errors.ErrCodeMalformedPayload, "slot %d blob %d: %v", entry.Slot, entry.BlobIndex, err)
	}
	vh, err := s.committer.VersionedHash(b)
	if err != nil {
		return errors.New(errors.ErrCodeMalformedPayload, "slot %d blob %d: %v", entry.Slot, entry.BlobIndex, err)
	}
	if !bytes.Equal(vh[:], entry.VersionedHash[:]) {
		return errors.New(errors.ErrCodeMalformedPayload, "slot %d blob %d: versioned hash mismatch", entry.Slot, entry.BlobIndex)
	}
	return nil
}

func (s *Synchronizer) rejectEntry(entry types.FeedEntry, adID types.AdID, err error) {
	code := errors.CodeOf(err)
	logx.Warn("SYNC", fmt.Sprintf("Entry rejected | slot=%d | blob=%d | code=%s | error=%v", entry.Slot, entry.BlobIndex, code, err))
	monitoring.IncreaseEntryRejected(rejectionReason(code))
	if s.eventBus != nil {
		s.eventBus.Publish(events.NewEntryRejected(adID, entry.Slot, string(code)))
	}
}

func rejectionReason(code errors.SyncErrorCode) monitoring.EntryRejectedReason {
	switch code {
	case errors.ErrCodeMalformedPayload, errors.ErrCodeEmptyChain:
		return monitoring.EntryMalformedPayload
	case errors.ErrCodeUnknownAd:
		return monitoring.EntryUnknownAd
	case errors.ErrCodeUnknownPredicate:
		return monitoring.EntryUnknownPredicate
	case errors.ErrCodeStaleState:
		return monitoring.EntryStaleState
	case errors.ErrCodeChainMismatch:
		return monitoring.EntryChainMismatch
	case errors.ErrCodePredicateViolation:
		return monitoring.EntryPredicateViolated
	case errors.ErrCodeProofInvalid:
		return monitoring.EntryProofInvalid
	}
	return monitoring.EntryRejectedUnknown
}

func (s *Synchronizer) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
