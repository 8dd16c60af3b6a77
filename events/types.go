package events

import (
	"time"

	"adn/types"
)

// EventType is an enum-like string type for datastore events
type EventType string

const (
	EventADInitialized        EventType = "ADInitialized"
	EventADUpdated            EventType = "ADUpdated"
	EventEntryRejected        EventType = "EntryRejected"
	EventRequestStatusChanged EventType = "RequestStatusChanged"
)

// DatastoreEvent represents any event that occurs while syncing the feed
type DatastoreEvent interface {
	Type() EventType
	Timestamp() time.Time
	ADID() types.AdID
}

// ADInitialized event when an anchored datastore is registered from an init entry
type ADInitialized struct {
	adID      types.AdID
	kind      types.AdKind
	slot      uint64
	timestamp time.Time
}

func NewADInitialized(adID types.AdID, kind types.AdKind, slot uint64) *ADInitialized {
	return &ADInitialized{
		adID:      adID,
		kind:      kind,
		slot:      slot,
		timestamp: time.Now(),
	}
}

func (e *ADInitialized) Type() EventType {
	return EventADInitialized
}

func (e *ADInitialized) Timestamp() time.Time {
	return e.timestamp
}

func (e *ADInitialized) ADID() types.AdID {
	return e.adID
}

func (e *ADInitialized) Kind() types.AdKind {
	return e.kind
}

func (e *ADInitialized) Slot() uint64 {
	return e.slot
}

// ADUpdated event when an update entry is accepted and the state advances
type ADUpdated struct {
	adID      types.AdID
	num       uint64
	newState  types.Value
	slot      uint64
	timestamp time.Time
}

func NewADUpdated(adID types.AdID, num uint64, newState types.Value, slot uint64) *ADUpdated {
	return &ADUpdated{
		adID:      adID,
		num:       num,
		newState:  newState,
		slot:      slot,
		timestamp: time.Now(),
	}
}

func (e *ADUpdated) Type() EventType {
	return EventADUpdated
}

func (e *ADUpdated) Timestamp() time.Time {
	return e.timestamp
}

func (e *ADUpdated) ADID() types.AdID {
	return e.adID
}

func (e *ADUpdated) Num() uint64 {
	return e.num
}

func (e *ADUpdated) NewState() types.Value {
	return e.newState
}

func (e *ADUpdated) Slot() uint64 {
	return e.slot
}

// EntryRejected event when a feed entry is discarded during validation
type EntryRejected struct {
	adID      types.AdID
	slot      uint64
	reason    string
	timestamp time.Time
}

func NewEntryRejected(adID types.AdID, slot uint64, reason string) *EntryRejected {
	return &EntryRejected{
		adID:      adID,
		slot:      slot,
		reason:    reason,
		timestamp: time.Now(),
	}
}

func (e *EntryRejected) Type() EventType {
	return EventEntryRejected
}

func (e *EntryRejected) Timestamp() time.Time {
	return e.timestamp
}

func (e *EntryRejected) ADID() types.AdID {
	return e.adID
}

func (e *EntryRejected) Slot() uint64 {
	return e.slot
}

func (e *EntryRejected) Reason() string {
	return e.reason
}

// RequestStatusChanged event when a pipeline request moves between states
type RequestStatusChanged struct {
	requestID string
	adID      types.AdID
	status    types.RequestStatus
	reason    string
	timestamp time.Time
}

func NewRequestStatusChanged(requestID string, adID types.AdID, status types.RequestStatus, reason string) *RequestStatusChanged {
	return &RequestStatusChanged{
		requestID: requestID,
		adID:      adID,
		status:    status,
		reason:    reason,
		timestamp: time.Now(),
	}
}

func (e *RequestStatusChanged) Type() EventType {
	return EventRequestStatusChanged
}

func (e *RequestStatusChanged) Timestamp() time.Time {
	return e.timestamp
}

func (e *RequestStatusChanged) ADID() types.AdID {
	return e.adID
}

func (e *RequestStatusChanged) RequestID() string {
	return e.requestID
}

func (e *RequestStatusChanged) Status() types.RequestStatus {
	return e.status
}

func (e *RequestStatusChanged) Reason() string {
	return e.reason
}
