package interfaces

import "context"

// Broadcaster posts an encoded payload to the feed as a blob transaction and
// returns the versioned hash the feed assigned to it.
type Broadcaster interface {
	BroadcastPayload(ctx context.Context, payload []byte) ([32]byte, error)
}
