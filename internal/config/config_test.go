package config

import "testing"

func validConfig() *Config {
	return &Config{
		DryRun: true,
		Wallet: WalletConfig{UserAddress: "0xabc"},
		WS:     WSConfig{URL: "wss://api.hyperliquid.xyz/ws"},
		REST:   RESTConfig{InfoURL: "https://api.hyperliquid.xyz/info", DexName: "xyz"},
		Markets: []MarketConfig{
			{Coin: "xyz:TLT", MaxNotional: 1000, SizeAlpha: 0.1},
		},
		Executor: ExecutorConfig{
			MaxPositionPerMarket:   1000,
			MaxPositionTotal:       5000,
			MaxConcurrentPositions: 3,
			MaxOrdersPerInterval:   10,
		},
	}
}

func TestValidateOK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidateMissingPrivateKeyWhenTrading(t *testing.T) {
	cfg := validConfig()
	cfg.DryRun = false
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing private key in trading mode")
	}
}

func TestValidateDryRunAllowsMissingPrivateKey(t *testing.T) {
	cfg := validConfig()
	cfg.DryRun = true
	cfg.Wallet.PrivateKey = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("dry run should not require a private key: %v", err)
	}
}

func TestValidateRejectsMissingDexName(t *testing.T) {
	cfg := validConfig()
	cfg.REST.DexName = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing dex name")
	}
}

func TestValidateRejectsNoMarkets(t *testing.T) {
	cfg := validConfig()
	cfg.Markets = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for no configured markets")
	}
}

func TestValidateRejectsBadSizeAlpha(t *testing.T) {
	cfg := validConfig()
	cfg.Markets[0].SizeAlpha = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for size_alpha out of range")
	}
}
