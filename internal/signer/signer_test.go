package signer

import (
	"strings"
	"testing"
)

const testKeyHex = "0000000000000000000000000000000000000000000000000000000000000001"

func TestNewDerivesAddressFromKey(t *testing.T) {
	s, err := New(testKeyHex, "", true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Address().Hex() == "" {
		t.Fatal("expected non-empty derived address")
	}
}

func TestNewRejectsMismatchedExpectedAddress(t *testing.T) {
	_, err := New(testKeyHex, "0x0000000000000000000000000000000000000000", true)
	if err == nil {
		t.Fatal("expected error on address mismatch")
	}
}

func TestNewAcceptsMatchingExpectedAddress(t *testing.T) {
	s, err := New(testKeyHex, "", true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addr := s.Address().Hex()
	if _, err := New(testKeyHex, addr, true); err != nil {
		t.Fatalf("expected matching address to succeed, got %v", err)
	}
}

func TestNewAcceptsPrefixedAndWhitespaceKey(t *testing.T) {
	if _, err := New("  0x"+strings.TrimPrefix(testKeyHex, "0x")+"\n", "", true); err != nil {
		t.Fatalf("expected prefixed/whitespace key to parse, got %v", err)
	}
}

func TestActionHashDeterministic(t *testing.T) {
	action := &OrderAction{
		Type: "order",
		Orders: []OrderWire{
			{A: 1, B: true, P: "99.90", S: "5", R: false, T: OrderTypeWire{Limit: LimitWire{Tif: "Ioc"}}},
		},
		Grouping: "na",
	}
	h1, err := ActionHash(action, 42, "", 0)
	if err != nil {
		t.Fatalf("ActionHash: %v", err)
	}
	h2, err := ActionHash(action, 42, "", 0)
	if err != nil {
		t.Fatalf("ActionHash: %v", err)
	}
	if string(h1) != string(h2) {
		t.Fatal("expected deterministic action hash for identical inputs")
	}
	if len(h1) != 32 {
		t.Fatalf("expected 32-byte keccak256 hash, got %d bytes", len(h1))
	}
}

func TestActionHashVariesWithNonce(t *testing.T) {
	action := &CancelAction{Type: "cancel", Cancels: []CancelWire{{A: 1, O: 7}}}
	h1, _ := ActionHash(action, 1, "", 0)
	h2, _ := ActionHash(action, 2, "", 0)
	if string(h1) == string(h2) {
		t.Fatal("expected action hash to change with nonce")
	}
}

func TestActionHashVariesWithVaultAddress(t *testing.T) {
	action := &CancelAction{Type: "cancel", Cancels: []CancelWire{{A: 1, O: 7}}}
	h1, _ := ActionHash(action, 1, "", 0)
	h2, _ := ActionHash(action, 1, "0x1111111111111111111111111111111111111111", 0)
	if string(h1) == string(h2) {
		t.Fatal("expected action hash to change with vault address presence")
	}
}

func TestSignActionProducesNormalizedV(t *testing.T) {
	s, err := New(testKeyHex, "", true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	action := &OrderAction{
		Type:     "order",
		Orders:   []OrderWire{{A: 1, B: true, P: "99.90", S: "5", R: false, T: OrderTypeWire{Limit: LimitWire{Tif: "Ioc"}}}},
		Grouping: "na",
	}
	sig, err := s.SignAction(action, 1, "", 0)
	if err != nil {
		t.Fatalf("SignAction: %v", err)
	}
	if sig.V != "27" && sig.V != "28" {
		t.Fatalf("expected normalized recovery id 27 or 28, got %s", sig.V)
	}
	if len(sig.R) != 66 || len(sig.S) != 66 { // "0x" + 64 hex chars
		t.Fatalf("expected 32-byte left-padded r/s, got r=%s s=%s", sig.R, sig.S)
	}
}
