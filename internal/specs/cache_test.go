package specs

import (
	"testing"

	"github.com/shopspring/decimal"

	"hyperdrift-taker/pkg/domain"
)

func TestSeedAndResolve(t *testing.T) {
	c := NewCache()
	key := domain.MarketKey{DexID: 1, AssetIdx: 7}
	spec := domain.NewMarketSpec("xyz:TLT", decimal.NewFromFloat(0.01), decimal.NewFromFloat(1), 2, decimal.NewFromFloat(1), 10, decimal.NewFromFloat(0.0003))
	c.Seed("xyz:TLT", key, spec)

	gotKey, ok := c.ResolveKey("xyz:TLT")
	if !ok || gotKey != key {
		t.Fatalf("ResolveKey: got %v, %v", gotKey, ok)
	}
	gotCoin, ok := c.ResolveCoin(key)
	if !ok || gotCoin != "xyz:TLT" {
		t.Fatalf("ResolveCoin: got %v, %v", gotCoin, ok)
	}
	gotSpec, ok := c.Spec(key)
	if !ok || !gotSpec.TickSize.Equal(spec.TickSize) {
		t.Fatalf("Spec: got %v, %v", gotSpec, ok)
	}
}

func TestUpdateSpecDetectsParamChange(t *testing.T) {
	c := NewCache()
	key := domain.MarketKey{DexID: 1, AssetIdx: 7}
	spec := domain.NewMarketSpec("xyz:TLT", decimal.NewFromFloat(0.01), decimal.NewFromFloat(1), 2, decimal.NewFromFloat(1), 10, decimal.NewFromFloat(0.0003))
	c.Seed("xyz:TLT", key, spec)

	same := spec
	if changed := c.UpdateSpec(key, same); changed {
		t.Fatal("expected no change for identical spec")
	}

	widened := domain.NewMarketSpec("xyz:TLT", decimal.NewFromFloat(0.02), decimal.NewFromFloat(1), 2, decimal.NewFromFloat(1), 10, decimal.NewFromFloat(0.0003))
	if changed := c.UpdateSpec(key, widened); !changed {
		t.Fatal("expected tick size change to be detected")
	}
}
