package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"adn/jsonx"
	"adn/logx"
	"adn/types"
)

const defaultRequestTimeout = 15 * time.Second

// HTTPClient reads feed slots over the feed node's REST API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
		maxRetries: 5,
	}
}

type headResponse struct {
	Slot uint64 `json:"slot"`
}

type entriesResponse struct {
	Entries []entryJSON `json:"entries"`
}

type entryJSON struct {
	Slot          uint64 `json:"slot"`
	Block         uint64 `json:"block"`
	TxIndex       uint32 `json:"tx_index"`
	BlobIndex     uint32 `json:"blob_index"`
	To            string `json:"to"`
	VersionedHash string `json:"versioned_hash"`
	Data          []byte `json:"data"`
	Timestamp     int64  `json:"timestamp"`
}

// HeadSlot returns the latest slot the feed has produced.
func (c *HTTPClient) HeadSlot(ctx context.Context) (uint64, error) {
	var head headResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/head", c.baseURL), &head); err != nil {
		return 0, err
	}
	return head.Slot, nil
}

// EntriesAt returns the blob entries of a slot in feed order.
func (c *HTTPClient) EntriesAt(ctx context.Context, slot uint64) ([]types.FeedEntry, error) {
	var resp entriesResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/slots/%d/entries", c.baseURL, slot), &resp); err != nil {
		return nil, err
	}

	entries := make([]types.FeedEntry, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		vh, err := types.ParseHash32(e.VersionedHash)
		if err != nil {
			return nil, fmt.Errorf("slot %d: bad versioned hash %q: %w", slot, e.VersionedHash, err)
		}
		entries = append(entries, types.FeedEntry{
			Slot:          e.Slot,
			Block:         e.Block,
			TxIndex:       e.TxIndex,
			BlobIndex:     e.BlobIndex,
			To:            e.To,
			VersionedHash: vh,
			Data:          e.Data,
			Timestamp:     e.Timestamp,
		})
	}
	return entries, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, url string, out interface{}) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			logx.Warn("FEED", fmt.Sprintf("Request failed, will retry | url=%s | error=%v", url, err))
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("feed returned status %d for %s", resp.StatusCode, url)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			logx.Warn("FEED", fmt.Sprintf("Request failed, will retry | url=%s | status=%d", url, resp.StatusCode))
			return err
		}
		return jsonx.Unmarshal(body, out)
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries),
		ctx,
	)
	return backoff.Retry(op, bo)
}
