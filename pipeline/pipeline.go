package pipeline

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"adn/artifact"
	"adn/errors"
	"adn/events"
	"adn/exception"
	"adn/interfaces"
	"adn/logx"
	"adn/monitoring"
	"adn/predicate"
	"adn/store"
	"adn/types"
)

const (
	defaultQueueSize        = 256
	defaultWorkers          = 4
	defaultInclusionTimeout = 2 * time.Minute
)

// Config tunes the request pipeline.
type Config struct {
	QueueSize int
	Workers   int
	// InclusionTimeout bounds how long a submitted request waits for its
	// update to come back through the synchronizer.
	InclusionTimeout time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.QueueSize == 0 {
		out.QueueSize = defaultQueueSize
	}
	if out.Workers == 0 {
		out.Workers = defaultWorkers
	}
	if out.InclusionTimeout == 0 {
		out.InclusionTimeout = defaultInclusionTimeout
	}
	return out
}

// Pipeline drives client operation requests through proving, broadcast and
// feed confirmation. Requests against the same AD are serialized; a second
// request for an AD waits until the first one has completed or failed, so its
// proof is always built on the state the first one produced.
type Pipeline struct {
	cfg Config

	requestStore store.RequestStore
	ledger       interfaces.Ledger
	prover       interfaces.Prover
	broadcaster  interfaces.Broadcaster
	eventBus     *events.EventBus

	queue chan *types.Request

	mu      sync.Mutex
	adLocks map[types.AdID]*sync.Mutex

	wmu     sync.Mutex
	waiters map[types.AdID]chan events.DatastoreEvent
}

func NewPipeline(cfg Config, requestStore store.RequestStore, ledger interfaces.Ledger, prover interfaces.Prover, broadcaster interfaces.Broadcaster, eventBus *events.EventBus) *Pipeline {
	c := cfg.withDefaults()
	return &Pipeline{
		cfg:          c,
		requestStore: requestStore,
		ledger:       ledger,
		prover:       prover,
		broadcaster:  broadcaster,
		eventBus:     eventBus,
		queue:        make(chan *types.Request, c.QueueSize),
		adLocks:      make(map[types.AdID]*sync.Mutex),
		waiters:      make(map[types.AdID]chan events.DatastoreEvent),
	}
}

// Start launches the worker pool and the confirmation router.
func (p *Pipeline) Start(ctx context.Context) {
	subID, evCh := p.eventBus.Subscribe()
	exception.SafeGo("pipeline-router", func() {
		defer p.eventBus.Unsubscribe(subID)
		p.routeEvents(ctx, evCh)
	})
	for i := 0; i < p.cfg.Workers; i++ {
		exception.SafeGo(fmt.Sprintf("pipeline-worker-%d", i), func() {
			p.worker(ctx)
		})
	}
}

// Submit validates an operation against the current state and enqueues it.
// Requests that cannot possibly succeed are refused here instead of burning
// prover time: unknown ads, operations outside the kind's catalog, and
// operations whose result would already violate the predicate.
func (p *Pipeline) Submit(adID types.AdID, op types.Operation) (*types.Request, error) {
	ad, err := p.ledger.GetAd(adID)
	if err != nil {
		return nil, err
	}

	if !predicate.InCatalog(ad.Kind, op.Name) {
		return nil, errors.New(errors.ErrCodeInvalidOperation, "operation %q is not valid for a %s ad", op.Name, ad.Kind)
	}
	newState, err := applyOperation(ad.Kind, ad.CurrentState, op)
	if err != nil {
		return nil, err
	}
	if violated, ok := predicate.Explain(op.Name, newState, ad.CurrentState, op); !ok {
		return nil, errors.New(errors.ErrCodePredicateViolation, "operation %s would violate %s", op, violated)
	}

	req := &types.Request{
		ID:     uuid.Must(uuid.NewV7()).String(),
		ADID:   adID,
		Op:     op,
		Status: types.RequestPending,
	}
	if err := p.requestStore.Store(req); err != nil {
		return nil, errors.New(errors.ErrCodeInternal, "failed to persist request: %v", err)
	}

	select {
	case p.queue <- req:
	default:
		p.setStatus(req, types.RequestFailed, "", "pipeline queue full")
		return nil, errors.New(errors.ErrCodeInvalidRequest, "pipeline queue full, retry later")
	}

	monitoring.SetPipelineQueueDepth(len(p.queue))
	logx.Info("PIPELINE", fmt.Sprintf("Request accepted | id=%s | ad=%s | op=%s", req.ID, adID.Hex(), op))
	return req, nil
}

// GetRequest returns the persisted request record.
func (p *Pipeline) GetRequest(id string) (*types.Request, error) {
	req, err := p.requestStore.Get(id)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInternal, "could not load request %s: %v", id, err)
	}
	if req == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "request %s not found", id)
	}
	return req, nil
}

func (p *Pipeline) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-p.queue:
			monitoring.SetPipelineQueueDepth(len(p.queue))
			p.process(ctx, req)
		}
	}
}

func (p *Pipeline) lockFor(id types.AdID) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.adLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		p.adLocks[id] = lock
	}
	return lock
}

// process runs one request end to end while holding the AD's lock. The state
// is re-read under the lock because the feed may have moved it since Submit.
func (p *Pipeline) process(ctx context.Context, req *types.Request) {
	lock := p.lockFor(req.ADID)
	lock.Lock()
	defer lock.Unlock()

	ad, err := p.ledger.GetAd(req.ADID)
	if err != nil {
		p.fail(req, fmt.Sprintf("ad lookup failed: %v", err))
		return
	}

	newState, err := applyOperation(ad.Kind, ad.CurrentState, req.Op)
	if err != nil {
		p.fail(req, err.Error())
		return
	}
	if violated, ok := predicate.Explain(req.Op.Name, newState, ad.CurrentState, req.Op); !ok {
		p.fail(req, fmt.Sprintf("operation %s would violate %s", req.Op, violated))
		return
	}

	statements := []types.Statement{{
		Predicate: req.Op.Name,
		New:       newState,
		Old:       ad.CurrentState,
		Op:        req.Op,
	}}

	p.setStatus(req, types.RequestProving, "", "")
	proof, err := p.prover.Prove(ctx, req.ADID, statements)
	if err != nil {
		logx.Error("PIPELINE", fmt.Sprintf("Proving failed | id=%s | ad=%s | error=%v", req.ID, req.ADID.Hex(), err))
		p.fail(req, fmt.Sprintf("proving failed: %v", err))
		return
	}

	payload, err := artifact.EncodeUpdate(&artifact.PayloadUpdate{Artifact: artifact.Artifact{
		ADID:       req.ADID,
		Statements: statements,
		Proof:      proof,
	}})
	if err != nil {
		p.fail(req, fmt.Sprintf("payload encoding failed: %v", err))
		return
	}

	evCh := p.registerWaiter(req.ADID)
	defer p.unregisterWaiter(req.ADID)

	vh, err := p.broadcaster.BroadcastPayload(ctx, payload)
	if err != nil {
		logx.Error("PIPELINE", fmt.Sprintf("Broadcast failed | id=%s | ad=%s | error=%v", req.ID, req.ADID.Hex(), err))
		p.fail(req, fmt.Sprintf("broadcast failed: %v", err))
		return
	}
	p.setStatus(req, types.RequestSubmitted, hex.EncodeToString(vh[:]), "")

	p.awaitInclusion(ctx, req, newState, evCh)
}

// awaitInclusion blocks until the synchronizer reports the update back, the
// entry is rejected, or the timeout passes.
func (p *Pipeline) awaitInclusion(ctx context.Context, req *types.Request, target types.Value, evCh <-chan events.DatastoreEvent) {
	timer := time.NewTimer(p.cfg.InclusionTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.fail(req, "pipeline shut down before confirmation")
			return
		case <-timer.C:
			p.fail(req, "timed out waiting for feed inclusion")
			return
		case ev := <-evCh:
			switch e := ev.(type) {
			case *events.ADUpdated:
				if e.NewState().Equal(target) {
					p.setStatus(req, types.RequestComplete, req.Result, "")
					monitoring.IncreaseRequestOutcome("complete")
					logx.Info("PIPELINE", fmt.Sprintf("Request complete | id=%s | ad=%s | num=%d", req.ID, req.ADID.Hex(), e.Num()))
					return
				}
				// someone else's update landed first; the state moved and
				// this request's artifact is now stale
				p.fail(req, "superseded by a concurrent update")
				return
			case *events.EntryRejected:
				p.fail(req, fmt.Sprintf("entry rejected: %s", e.Reason()))
				return
			}
		}
	}
}

func (p *Pipeline) routeEvents(ctx context.Context, evCh chan events.DatastoreEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-evCh:
			if !ok {
				return
			}
			switch ev.Type() {
			case events.EventADUpdated, events.EventEntryRejected:
				p.deliver(ev)
			}
		}
	}
}

func (p *Pipeline) deliver(ev events.DatastoreEvent) {
	p.wmu.Lock()
	ch, ok := p.waiters[ev.ADID()]
	p.wmu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}

func (p *Pipeline) registerWaiter(id types.AdID) chan events.DatastoreEvent {
	p.wmu.Lock()
	defer p.wmu.Unlock()

	ch := make(chan events.DatastoreEvent, 8)
	p.waiters[id] = ch
	return ch
}

func (p *Pipeline) unregisterWaiter(id types.AdID) {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	delete(p.waiters, id)
}

func (p *Pipeline) fail(req *types.Request, reason string) {
	p.setStatus(req, types.RequestFailed, req.Result, reason)
	monitoring.IncreaseRequestOutcome("failed")
	logx.Warn("PIPELINE", fmt.Sprintf("Request failed | id=%s | ad=%s | reason=%s", req.ID, req.ADID.Hex(), reason))
}

func (p *Pipeline) setStatus(req *types.Request, status types.RequestStatus, result, reason string) {
	req.Status = status
	req.Result = result
	req.Reason = reason
	if err := p.requestStore.Store(req); err != nil {
		logx.Error("PIPELINE", fmt.Sprintf("Failed to persist request status | id=%s | status=%s | error=%v", req.ID, status, err))
	}
	if p.eventBus != nil {
		p.eventBus.Publish(events.NewRequestStatusChanged(req.ID, req.ADID, status, reason))
	}
}
