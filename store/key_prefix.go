package store

// Declare database key prefix for objects
const (
	PrefixAd       = "ad:"
	PrefixAdUpdate = "ad_update:"
	PrefixBlob     = "blob:"
	PrefixRequest  = "req:"

	PrefixSyncMeta         = "sync_meta:"
	SyncMetaKeyLastVisited = "last_visited_slot"
)
