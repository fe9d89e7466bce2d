// Package gateway implements dal.Gateway against an Arweave-compatible
// HTTP gateway: network_info for the current block height, and a
// transaction-existence check used by the verifier's optional
// referenced-transaction policy.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/permaweb/scheduler-unit/dal"
	"github.com/permaweb/scheduler-unit/metrics"
)

// Gateway is a thin HTTP client over a single upstream gateway URL.
type Gateway struct {
	baseURL string
	client  *http.Client
}

// New constructs a Gateway pointed at baseURL, with the given request
// timeout applied per call.
func New(baseURL string, timeout time.Duration) *Gateway {
	return &Gateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type infoResponse struct {
	Height  int64  `json:"height"`
	Current string `json:"current"`
}

// NetworkInfo fetches /info and maps it to dal.NetworkInfo.
func (g *Gateway) NetworkInfo(ctx context.Context) (dal.NetworkInfo, error) {
	metrics.GatewayRequests.Inc()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/info", nil)
	if err != nil {
		metrics.GatewayErrors.Inc()
		return dal.NetworkInfo{}, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		metrics.GatewayErrors.Inc()
		return dal.NetworkInfo{}, fmt.Errorf("fetch network info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.GatewayErrors.Inc()
		return dal.NetworkInfo{}, fmt.Errorf("network info: unexpected status %d", resp.StatusCode)
	}

	var info infoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		metrics.GatewayErrors.Inc()
		return dal.NetworkInfo{}, fmt.Errorf("decode network info: %w", err)
	}

	return dal.NetworkInfo{
		Height:  strconv.FormatInt(info.Height, 10),
		Current: info.Current,
	}, nil
}

// CheckHead reports whether txID is visible to the gateway, via
// GET /tx/{id}/status. A 404 means not found, not an error.
func (g *Gateway) CheckHead(ctx context.Context, txID string) (bool, error) {
	metrics.GatewayRequests.Inc()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/tx/"+txID+"/status", nil)
	if err != nil {
		metrics.GatewayErrors.Inc()
		return false, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		metrics.GatewayErrors.Inc()
		return false, fmt.Errorf("check_head %s: %w", txID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		metrics.GatewayErrors.Inc()
		return false, fmt.Errorf("check_head %s: unexpected status %d", txID, resp.StatusCode)
	}
}
