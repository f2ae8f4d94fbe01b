// Package config defines all configuration for the taker.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// the signing key overridable via a TRADING_KEY environment variable.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun    bool           `mapstructure:"dry_run"`
	IsMainnet bool           `mapstructure:"is_mainnet"`
	Wallet    WalletConfig   `mapstructure:"wallet"`
	WS        WSConfig       `mapstructure:"ws"`
	REST      RESTConfig     `mapstructure:"rest"`
	Markets   []MarketConfig `mapstructure:"markets"`
	Gates     GatesConfig    `mapstructure:"gates"`
	Detector  DetectorConfig `mapstructure:"detector"`
	Executor  ExecutorConfig `mapstructure:"executor"`
	Exits     ExitsConfig    `mapstructure:"exits"`
	RiskMon   RiskMonConfig  `mapstructure:"risk_monitor"`
	Logging   LoggingConfig  `mapstructure:"logging"`
}

// WalletConfig holds the Ethereum wallet used for signing actions.
// PrivateKey signs the EIP-712 phantom-agent wrapper binding every
// action hash. SignerAddress, if set, must match the key's derived
// address or the process refuses to start.
type WalletConfig struct {
	PrivateKey    string `mapstructure:"private_key"`
	SignerAddress string `mapstructure:"signer_address"`
	UserAddress   string `mapstructure:"user_address"`
	VaultAddress  string `mapstructure:"vault_address"`
}

// WSConfig holds the Hyperliquid WebSocket endpoint and session tunables.
type WSConfig struct {
	URL                string        `mapstructure:"url"`
	HeartbeatInterval  time.Duration `mapstructure:"heartbeat_interval"`
	HeartbeatTimeout   time.Duration `mapstructure:"heartbeat_timeout"`
	InflightCap        int           `mapstructure:"inflight_cap"`
	OutboundRatePerMin int           `mapstructure:"outbound_rate_per_min"`
	PostTimeout        time.Duration `mapstructure:"post_timeout"`
	DrainTimeout       time.Duration `mapstructure:"drain_timeout"`
}

// RESTConfig holds the Hyperliquid info-endpoint base URL for preflight
// discovery and clearinghouse snapshot fetches (§6 of the component spec).
type RESTConfig struct {
	InfoURL string        `mapstructure:"info_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	DexName string        `mapstructure:"dex_name"`
}

// MarketConfig is one configured market: the HIP-3 coin name and the
// per-market caps the detector and executor gates enforce.
type MarketConfig struct {
	Coin                  string  `mapstructure:"coin"`
	MaxNotional           float64 `mapstructure:"max_notional"`
	SizeAlpha             float64 `mapstructure:"size_alpha"`
	EdgeBpsMin            float64 `mapstructure:"edge_bps_min"`
	MinBookNotional       float64 `mapstructure:"min_book_notional"`
	NormalBookNotional    float64 `mapstructure:"normal_book_notional"`
	OracleDirectionFilter bool    `mapstructure:"oracle_direction_filter"`
	// OiCap is the open-interest cap for the OiCap gate (§4.3 #6). It is
	// the only source of the cap: REST discovery supplies the current
	// open interest the gate compares against it, never a per-market cap.
	OiCap float64 `mapstructure:"oi_cap"`
}

// GatesConfig holds thresholds for the eight risk gates (§4.3).
type GatesConfig struct {
	MaxBboAge        time.Duration `mapstructure:"max_bbo_age"`
	MaxCtxAge        time.Duration `mapstructure:"max_ctx_age"`
	MaxDivergenceBps float64       `mapstructure:"max_divergence_bps"`
	SpreadShockK     float64       `mapstructure:"spread_shock_k"`
	SpreadEwmaAlpha  float64       `mapstructure:"spread_ewma_alpha"`
	MaxOiFraction    float64       `mapstructure:"max_oi_fraction"`
}

// DetectorConfig holds global detector tunables (per-market overrides
// live in MarketConfig).
type DetectorConfig struct {
	DefaultSlippageBps float64 `mapstructure:"default_slippage_bps"`
}

// ExecutorConfig holds executor/queue/nonce tunables.
type ExecutorConfig struct {
	MaxPositionPerMarket   float64       `mapstructure:"max_position_per_market"`
	MaxPositionTotal       float64       `mapstructure:"max_position_total"`
	MaxConcurrentPositions int           `mapstructure:"max_concurrent_positions"`
	MaxOrdersPerInterval   int           `mapstructure:"max_orders_per_interval"`
	BudgetInterval         time.Duration `mapstructure:"budget_interval"`
	NewOrderHighWatermark  int           `mapstructure:"new_order_high_watermark"`
	PostResponseTimeout    time.Duration `mapstructure:"post_response_timeout"`
	TickInterval           time.Duration `mapstructure:"tick_interval"`
	NonceDriftWarnAt       time.Duration `mapstructure:"nonce_drift_warn_at"`
	NonceDriftErrorAt      time.Duration `mapstructure:"nonce_drift_error_at"`
}

// ExitsConfig holds the exit monitors' tunables.
type ExitsConfig struct {
	TimeStopThreshold           time.Duration `mapstructure:"time_stop_threshold"`
	TimeStopCheckInterval       time.Duration `mapstructure:"time_stop_check_interval"`
	TimeStopSlippageBps         float64       `mapstructure:"time_stop_slippage_bps"`
	ReduceOnlyTimeout           time.Duration `mapstructure:"reduce_only_timeout"`
	MarkRegressionMinHolding    time.Duration `mapstructure:"mark_regression_min_holding"`
	MarkRegressionCheckInterval time.Duration `mapstructure:"mark_regression_check_interval"`
	MarkRegressionExitBps       float64       `mapstructure:"mark_regression_exit_bps"`
}

// RiskMonConfig holds the hard-stop risk monitor's thresholds.
type RiskMonConfig struct {
	MaxCumulativeLoss        float64       `mapstructure:"max_cumulative_loss"`
	MaxConsecutiveFailures   int           `mapstructure:"max_consecutive_failures"`
	MaxFlattenFailures       int           `mapstructure:"max_flatten_failures"`
	FlattenFailureWindow     time.Duration `mapstructure:"flatten_failure_window"`
	MaxSlippageBps           float64       `mapstructure:"max_slippage_bps"`
	SlippageConsecutiveFills int           `mapstructure:"slippage_consecutive_fills"`
	MaxRejectionRatePerHour  float64       `mapstructure:"max_rejection_rate_per_hour"`
}

// LoggingConfig selects the slog handler and level.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with TAKER_-prefixed env var
// overrides. When TRADING_KEY is set it replaces the signing key;
// otherwise wallet.private_key from the file (or its TAKER_-prefixed
// override) is used as is.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TAKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("TRADING_KEY"); key != "" {
		cfg.Wallet.PrivateKey = key
	}
	if os.Getenv("TAKER_DRY_RUN") == "true" || os.Getenv("TAKER_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges, returning the
// first violated invariant.
func (c *Config) Validate() error {
	if !c.DryRun && c.Wallet.PrivateKey == "" {
		return fmt.Errorf("wallet.private_key is required in trading mode (set TRADING_KEY)")
	}
	if c.Wallet.UserAddress == "" {
		return fmt.Errorf("wallet.user_address is required")
	}
	if c.WS.URL == "" {
		return fmt.Errorf("ws.url is required")
	}
	if c.REST.InfoURL == "" {
		return fmt.Errorf("rest.info_url is required")
	}
	if c.REST.DexName == "" {
		return fmt.Errorf("rest.dex_name is required (HIP-3 dex field is mandatory)")
	}
	if len(c.Markets) == 0 {
		return fmt.Errorf("at least one market must be configured")
	}
	for _, m := range c.Markets {
		if m.Coin == "" {
			return fmt.Errorf("markets[].coin is required")
		}
		if m.MaxNotional <= 0 {
			return fmt.Errorf("markets[%s].max_notional must be > 0", m.Coin)
		}
		if m.SizeAlpha <= 0 || m.SizeAlpha > 1 {
			return fmt.Errorf("markets[%s].size_alpha must be in (0, 1]", m.Coin)
		}
	}
	if c.Executor.MaxPositionPerMarket <= 0 {
		return fmt.Errorf("executor.max_position_per_market must be > 0")
	}
	if c.Executor.MaxPositionTotal <= 0 {
		return fmt.Errorf("executor.max_position_total must be > 0")
	}
	if c.Executor.MaxConcurrentPositions <= 0 {
		return fmt.Errorf("executor.max_concurrent_positions must be > 0")
	}
	if c.Executor.MaxOrdersPerInterval <= 0 {
		return fmt.Errorf("executor.max_orders_per_interval must be > 0")
	}
	return nil
}
