package feed

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"adn/blob"
	"adn/errors"
	"adn/jsonx"
	"adn/logx"
)

const defaultBroadcastTimeout = 30 * time.Second

// HTTPBroadcaster wraps a payload into a blob and posts it to the feed node.
// The versioned hash is computed locally so callers can match the entry when
// it comes back through the synchronizer.
type HTTPBroadcaster struct {
	baseURL    string
	to         string
	httpClient *http.Client
	committer  *blob.Committer
}

func NewHTTPBroadcaster(baseURL, to string) (*HTTPBroadcaster, error) {
	committer, err := blob.NewCommitter()
	if err != nil {
		return nil, err
	}
	return &HTTPBroadcaster{
		baseURL: baseURL,
		to:      to,
		httpClient: &http.Client{
			Timeout: defaultBroadcastTimeout,
		},
		committer: committer,
	}, nil
}

type broadcastRequest struct {
	To   string `json:"to"`
	Blob string `json:"blob"`
}

func (b *HTTPBroadcaster) BroadcastPayload(ctx context.Context, payload []byte) ([32]byte, error) {
	bl, err := blob.Encode(payload)
	if err != nil {
		return [32]byte{}, err
	}
	vh, err := b.committer.VersionedHash(bl)
	if err != nil {
		return [32]byte{}, err
	}

	body, err := jsonx.Marshal(broadcastRequest{
		To:   b.to,
		Blob: base64.StdEncoding.EncodeToString(bl[:]),
	})
	if err != nil {
		return [32]byte{}, fmt.Errorf("failed to marshal broadcast request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/blobs", bytes.NewReader(body))
	if err != nil {
		return [32]byte{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return [32]byte{}, errors.New(errors.ErrCodeBroadcastFailure, "broadcast failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return [32]byte{}, errors.New(errors.ErrCodeBroadcastFailure, "feed returned status %d: %s", resp.StatusCode, respBody)
	}

	logx.Info("FEED", fmt.Sprintf("Blob broadcast | payload_bytes=%d", len(payload)))
	return vh, nil
}
