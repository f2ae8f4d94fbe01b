// Package restclient implements the two documented REST calls of §6:
// perpDexs/metaAndAssetCtxs discovery (dex and asset indices, tick/lot
// parameters, and current open interest) and clearinghouseState (the
// out-of-band position snapshot the WS session's READY state machine
// waits on). Both are single-shot info-endpoint POSTs, not the
// order-management surface the teacher's exchange.Client wraps, so this
// package is deliberately smaller: one resty client, retry-on-5xx
// configured exactly the way the teacher configures its own, no rate
// limiter (preflight calls are infrequent and unbatched).
package restclient

import (
	"time"

	"github.com/go-resty/resty/v2"
)

// Client is the Hyperliquid info-endpoint REST client.
type Client struct {
	http *resty.Client
	dex  string
}

// NewClient builds a REST client against the given info endpoint
// (mainnet/testnet base URL come from config, per §6).
func NewClient(infoURL string, timeout time.Duration, dex string) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	http := resty.New().
		SetBaseURL(infoURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{http: http, dex: dex}
}
