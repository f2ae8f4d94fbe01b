package restclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"hyperdrift-taker/pkg/domain"
)

// perpDexsRequest is the {"type":"perpDexs"} info request of §6. The
// response is an array; index 0 is the null main-dex entry, every
// subsequent entry is one HIP-3 DEX with its own index and name.
type perpDexsRequest struct {
	Type string `json:"type"`
}

type perpDexEntry struct {
	Name         string `json:"name"`
	FullName     string `json:"full_name"`
	Deployer     string `json:"deployer"`
	OracleUpdater string `json:"oracle_updater"`
}

// PerpDexs returns the configured dex's index within the perpDexs array,
// or an error if no entry matches dexName.
func (c *Client) PerpDexs(ctx context.Context, dexName string) (dexIndex uint32, err error) {
	var entries []*perpDexEntry
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(perpDexsRequest{Type: "perpDexs"}).
		SetResult(&entries).
		Post("/info")
	if err != nil {
		return 0, fmt.Errorf("perpDexs: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("perpDexs: status %d: %s", resp.StatusCode(), resp.String())
	}
	for i, e := range entries {
		if e != nil && e.Name == dexName {
			return uint32(i), nil
		}
	}
	return 0, fmt.Errorf("perpDexs: dex %q not found among %d entries", dexName, len(entries))
}

// metaAndAssetCtxsRequest is the {"type":"metaAndAssetCtxs","dex":...}
// info request, mandatory `dex` field for HIP-3 per §6.
type metaAndAssetCtxsRequest struct {
	Type string `json:"type"`
	Dex  string `json:"dex"`
}

type universeEntry struct {
	Name         string `json:"name"`
	SzDecimals   int    `json:"szDecimals"`
	MaxLeverage  int    `json:"maxLeverage"`
	OnlyIsolated bool   `json:"onlyIsolated"`
}

type metaResponse struct {
	Universe []universeEntry `json:"universe"`
}

type assetCtx struct {
	MarkPx       string `json:"markPx"`
	OraclePx     string `json:"oraclePx"`
	OpenInterest string `json:"openInterest"`
	Funding      string `json:"funding"`
	DayNtlVlm    string `json:"dayNtlVlm"`
}

// MarketInfo bundles the discovered identity, spec, and current open
// interest for one asset on the configured dex — everything the spec
// cache and OiCap gate need to seed that market.
type MarketInfo struct {
	Coin          string
	Key           domain.MarketKey
	Spec          domain.MarketSpec
	OpenInterest  decimal.Decimal
}

// taker fee is not published per-asset by metaAndAssetCtxs; the base
// rate is a venue-wide constant applied uniformly, carried here so
// NewMarketSpec's HIP-3 2x multiplier is applied exactly once.
const baseTakerFeeBps = 4.5

// Discover fetches the full asset universe and current asset contexts
// for the configured dex and returns one MarketInfo per asset, keyed by
// its position in the universe array (the asset index Hyperliquid's
// wire protocol expects in OrderWire.A).
func (c *Client) Discover(ctx context.Context, dexIndex uint32) ([]MarketInfo, error) {
	var body [2]interface{}
	var meta metaResponse
	var ctxs []assetCtx
	body[0] = &meta
	body[1] = &ctxs

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(metaAndAssetCtxsRequest{Type: "metaAndAssetCtxs", Dex: c.dex}).
		SetResult(&body).
		Post("/info")
	if err != nil {
		return nil, fmt.Errorf("metaAndAssetCtxs: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("metaAndAssetCtxs: status %d: %s", resp.StatusCode(), resp.String())
	}

	out := make([]MarketInfo, 0, len(meta.Universe))
	feeBps := decimal.NewFromFloat(baseTakerFeeBps)
	for i, u := range meta.Universe {
		key := domain.MarketKey{DexID: dexIndex, AssetIdx: uint32(i)}
		maxPriceDecimals := 6 - u.SzDecimals
		if maxPriceDecimals < 0 {
			maxPriceDecimals = 0
		}
		tick := decimal.New(1, int32(-maxPriceDecimals))
		lot := decimal.New(1, int32(-u.SzDecimals))
		spec := domain.NewMarketSpec(u.Name, tick, lot, u.SzDecimals, lot, u.MaxLeverage, feeBps)

		var oi decimal.Decimal
		if i < len(ctxs) {
			oi = parseDecimalOrZero(ctxs[i].OpenInterest)
		}

		out = append(out, MarketInfo{
			Coin:         fmt.Sprintf("%s:%s", c.dex, u.Name),
			Key:          key,
			Spec:         spec,
			OpenInterest: oi,
		})
	}
	return out, nil
}

func parseDecimalOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
