package interfaces

import (
	"context"

	"adn/types"
)

// FeedClient reads blob entries from the anchoring feed.
type FeedClient interface {
	// HeadSlot returns the latest slot the feed has produced.
	HeadSlot(ctx context.Context) (uint64, error)
	// EntriesAt returns the blob entries of a slot in feed order. A slot with
	// no entries returns an empty slice, not an error.
	EntriesAt(ctx context.Context, slot uint64) ([]types.FeedEntry, error)
}
