package domain

import "fmt"

// MarketKey is the sole market identity: a HIP-3 DEX id paired with the
// asset index scoped to that DEX. Coin strings (e.g. "xyz:TLT") are
// display-only and must never be used as a map key or compared for identity.
type MarketKey struct {
	DexID    uint32
	AssetIdx uint32
}

// String renders a MarketKey for logs; it is not a wire format.
func (k MarketKey) String() string {
	return fmt.Sprintf("dex=%d/asset=%d", k.DexID, k.AssetIdx)
}
