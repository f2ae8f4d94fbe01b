package restclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := NewClient(srv.URL, 0, "xyz")
	return c, srv.Close
}

func TestPerpDexsFindsConfiguredDex(t *testing.T) {
	c, closeFn := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]interface{}{
			nil,
			map[string]string{"name": "xyz", "full_name": "xyz perps"},
		})
	})
	defer closeFn()

	idx, err := c.PerpDexs(t.Context(), "xyz")
	if err != nil {
		t.Fatalf("PerpDexs: %v", err)
	}
	if idx != 1 {
		t.Fatalf("expected dex index 1, got %d", idx)
	}
}

func TestPerpDexsReturnsErrorWhenDexNotFound(t *testing.T) {
	c, closeFn := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]interface{}{nil})
	})
	defer closeFn()

	if _, err := c.PerpDexs(t.Context(), "xyz"); err == nil {
		t.Fatal("expected an error when the dex is not present")
	}
}

func TestDiscoverBuildsSpecsAndOpenInterest(t *testing.T) {
	c, closeFn := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]interface{}{
			map[string]interface{}{
				"universe": []map[string]interface{}{
					{"name": "TLT", "szDecimals": 3, "maxLeverage": 20},
				},
			},
			[]map[string]interface{}{
				{"markPx": "100.5", "oraclePx": "100.0", "openInterest": "12345.6", "funding": "0.0001"},
			},
		})
	})
	defer closeFn()

	infos, err := c.Discover(t.Context(), 1)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected one market, got %d", len(infos))
	}
	info := infos[0]
	if info.Coin != "xyz:TLT" {
		t.Fatalf("expected coin xyz:TLT, got %s", info.Coin)
	}
	if info.Key.DexID != 1 || info.Key.AssetIdx != 0 {
		t.Fatalf("unexpected key %+v", info.Key)
	}
	if info.Spec.SzDecimals != 3 {
		t.Fatalf("expected szDecimals 3, got %d", info.Spec.SzDecimals)
	}
	if info.Spec.MaxPriceDecimals() != 3 {
		t.Fatalf("expected max price decimals 3, got %d", info.Spec.MaxPriceDecimals())
	}
	if !info.OpenInterest.Equal(mustDecimal("12345.6")) {
		t.Fatalf("expected open interest 12345.6, got %s", info.OpenInterest)
	}
}
