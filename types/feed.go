package types

// FeedEntry is one blob-carrying entry observed in a feed slot. Data holds
// the decoded blob bytes exactly as posted.
type FeedEntry struct {
	Slot          uint64   `json:"slot"`
	Block         uint64   `json:"block"`
	TxIndex       uint32   `json:"tx_index"`
	BlobIndex     uint32   `json:"blob_index"`
	To            string   `json:"to"`
	VersionedHash [32]byte `json:"versioned_hash"`
	Data          []byte   `json:"data"`
	Timestamp     int64    `json:"timestamp"`
}
