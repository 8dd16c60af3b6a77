// Package prover talks to the external proving service. Proof generation is
// heavy and runs out of process; this client only ships statements over and
// collects the proof envelope.
package prover

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"adn/errors"
	"adn/jsonx"
	"adn/logx"
	"adn/types"
)

const defaultProveTimeout = 5 * time.Minute

type HTTPProver struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64
}

func NewHTTPProver(baseURL string) *HTTPProver {
	return &HTTPProver{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultProveTimeout,
		},
		maxRetries: 2,
	}
}

type proveRequest struct {
	AdID       string            `json:"ad_id"`
	Statements []types.Statement `json:"statements"`
}

type proveResponse struct {
	Proof string `json:"proof"`
}

// Prove sends the statement chain to the proving service and returns the
// proof envelope bytes.
func (p *HTTPProver) Prove(ctx context.Context, adID types.AdID, statements []types.Statement) ([]byte, error) {
	body, err := jsonx.Marshal(proveRequest{
		AdID:       adID.Hex(),
		Statements: statements,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prove request: %w", err)
	}

	var proof []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/prove", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.httpClient.Do(req)
		if err != nil {
			logx.Warn("PROVER", fmt.Sprintf("Prove request failed, will retry | ad=%s | error=%v", adID.Hex(), err))
			return err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("prover returned status %d: %s", resp.StatusCode, respBody)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}

		var pr proveResponse
		if err := jsonx.Unmarshal(respBody, &pr); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode prover response: %w", err))
		}
		proof, err = base64.StdEncoding.DecodeString(pr.Proof)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("prover returned invalid base64: %w", err))
		}
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), p.maxRetries),
		ctx,
	)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, errors.New(errors.ErrCodeProverFailure, "prove failed for ad %s: %v", adID.Hex(), err)
	}
	return proof, nil
}
