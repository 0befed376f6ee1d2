package config

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all engine configuration
type Config struct {
	Wallet        WalletConfig        `mapstructure:"wallet"`
	RPC           RPCConfig           `mapstructure:"rpc"`
	Trading       TradingConfig       `mapstructure:"trading"`
	Fees          FeesConfig          `mapstructure:"fees"`
	Jupiter       JupiterConfig       `mapstructure:"jupiter"`
	Blockchain    BlockchainConfig    `mapstructure:"blockchain"`
	Storage       StorageConfig       `mapstructure:"storage"`
	WebSocket     WebSocketConfig     `mapstructure:"websocket"`
	Strategy      StrategyConfig      `mapstructure:"strategy"`
	Risk          RiskConfig          `mapstructure:"risk"`
	Bundler       BundlerConfig       `mapstructure:"bundler"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type WalletConfig struct {
	PrivateKeyEnv string `mapstructure:"private_key_env"`
	BaseMint      string `mapstructure:"base_mint"`
}

type RPCConfig struct {
	ShyftURL          string `mapstructure:"shyft_url"`
	ShyftAPIKeyEnv    string `mapstructure:"shyft_api_key_env"`
	FallbackURL       string `mapstructure:"fallback_url"`
	FallbackAPIKeyEnv string `mapstructure:"fallback_api_key_env"`
}

type TradingConfig struct {
	MinEntryPercent       float64 `mapstructure:"min_entry_percent"`
	TakeProfitMultiple    float64 `mapstructure:"take_profit_multiple"`
	MaxAllocPercent       float64 `mapstructure:"max_alloc_percent"`
	MaxOpenPositions      int     `mapstructure:"max_open_positions"`
	AutoTradingEnabled    bool    `mapstructure:"auto_trading_enabled"`
	
	// Partial Profit-Taking (sell X% at Y multiple)
	PartialProfitPercent  float64 `mapstructure:"partial_profit_percent"`  // e.g., 50 = sell 50%
	PartialProfitMultiple float64 `mapstructure:"partial_profit_multiple"` // e.g., 1.5 = at 1.5X
	
	// Time-Based Exit (auto-sell after X minutes)
	MaxHoldMinutes        int     `mapstructure:"max_hold_minutes"` // 0 = disabled

	// Simulation
	SimulationMode        bool    `mapstructure:"simulation_mode"`  // Enable for CLI test verification
}

type FeesConfig struct {
	StaticPriorityFeeSol float64 `mapstructure:"static_priority_fee_sol"`
	StaticGasFeeSol      float64 `mapstructure:"static_gas_fee_sol"`
}

type JupiterConfig struct {
	QuoteAPIURL    string `mapstructure:"quote_api_url"`
	SlippageBps    int    `mapstructure:"slippage_bps"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type BlockchainConfig struct {
	BlockhashRefreshMs    int `mapstructure:"blockhash_refresh_ms"`
	BlockhashTTLSeconds   int `mapstructure:"blockhash_ttl_seconds"`
	BalanceRefreshSeconds int `mapstructure:"balance_refresh_seconds"`
}

type StorageConfig struct {
	SQLitePath        string `mapstructure:"sqlite_path"`
	SignalsBufferSize int    `mapstructure:"signals_buffer_size"`
}

type WebSocketConfig struct {
	ShyftURL        string `mapstructure:"shyft_url"`
	ReconnectDelayMs int   `mapstructure:"reconnect_delay_ms"`
	PingIntervalMs   int   `mapstructure:"ping_interval_ms"`
}

// StrategyConfig selects the active strategy variant and its params,
// plus entry timing and global engine limits.
type StrategyConfig struct {
	Type                string  `mapstructure:"type"`
	MaxPositions        int     `mapstructure:"max_positions"`
	MaxConcurrentBuys   int     `mapstructure:"max_concurrent_buys"`
	BlockBuy            bool    `mapstructure:"block_buy"`
	UseRelayBundle      bool    `mapstructure:"use_relay_bundle"`
	SolAmountPerTrade   float64 `mapstructure:"sol_amount_per_trade"`
	SwapMint            string  `mapstructure:"swap_mint"`
	AutoSellAll         bool    `mapstructure:"auto_sell_all"`
	SellAllIntervalMs   int     `mapstructure:"sell_all_interval_ms"`
	SplSellBatch        int     `mapstructure:"spl_sell_batch"`
	SellWaitMs          int     `mapstructure:"sell_wait_ms"`
	EntryTiming         string  `mapstructure:"entry_timing"`
	EntryDelayMs        int     `mapstructure:"entry_delay_ms"`
	BatchSize           int     `mapstructure:"batch_size"`
	BatchMaxWaitMs      int     `mapstructure:"batch_max_wait_ms"`

	ShitcoinScalper   ShitcoinScalperSettings   `mapstructure:"shitcoin_scalper"`
	RSI               RSISettings               `mapstructure:"rsi"`
	Breakout          BreakoutSettings          `mapstructure:"breakout"`
	Bollinger         BollingerSettings         `mapstructure:"bollinger"`
	Momentum          MomentumSettings          `mapstructure:"momentum"`
	TechnicalCombined TechnicalCombinedSettings `mapstructure:"technical_combined"`
}

type ShitcoinScalperSettings struct {
	MaxHeld                 int     `mapstructure:"max_held"`
	ProfitTake              float64 `mapstructure:"profit_take"`
	StopLoss                float64 `mapstructure:"stop_loss"`
	MaxHoldMs               int64   `mapstructure:"max_hold_ms"`
	MinProfitBeforeTrailing float64 `mapstructure:"min_profit_before_trailing"`
	TrailingPct             float64 `mapstructure:"trailing_pct"`
}

type RSISettings struct {
	Period     int     `mapstructure:"period"`
	Oversold   float64 `mapstructure:"oversold"`
	Overbought float64 `mapstructure:"overbought"`
	MinHoldMs  int64   `mapstructure:"min_hold_ms"`
}

type BreakoutSettings struct {
	Lookback  int     `mapstructure:"lookback"`
	BufferPct float64 `mapstructure:"buffer_pct"`
}

type BollingerSettings struct {
	Period int     `mapstructure:"period"`
	K      float64 `mapstructure:"k"`
}

type MomentumSettings struct {
	Period        int     `mapstructure:"period"`
	BuyThreshold  float64 `mapstructure:"buy_threshold"`
	SellThreshold float64 `mapstructure:"sell_threshold"`
	MaxHoldMs     int64   `mapstructure:"max_hold_ms"`
}

type TechnicalCombinedSettings struct {
	SMAFastPeriod     int     `mapstructure:"sma_fast_period"`
	SMASlowPeriod     int     `mapstructure:"sma_slow_period"`
	RSIPeriod         int     `mapstructure:"rsi_period"`
	BreakoutLookback  int     `mapstructure:"breakout_lookback"`
	WeightTrend       float64 `mapstructure:"weight_trend"`
	WeightRSI         float64 `mapstructure:"weight_rsi"`
	WeightBreakout    float64 `mapstructure:"weight_breakout"`
	DecisionThreshold float64 `mapstructure:"decision_threshold"`
}

// RiskConfig mirrors risk.Config so it can be unmarshalled directly
// from configuration.
type RiskConfig struct {
	VolatilityLookbackPeriods int `mapstructure:"volatility_lookback_periods"`

	Rug struct {
		WindowSeconds       int     `mapstructure:"window_seconds"`
		MinTicks            int     `mapstructure:"min_ticks"`
		TickDropThreshold   float64 `mapstructure:"tick_drop_threshold"`
		VolumeDropThreshold float64 `mapstructure:"volume_drop_threshold"`
		VelocityThreshold   float64 `mapstructure:"velocity_threshold"`
		ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
		LiqDropThreshold    float64 `mapstructure:"liq_drop_threshold"`
	} `mapstructure:"rug"`

	Chop struct {
		ChoppyThreshold float64       `mapstructure:"choppy_threshold"`
		Mode            string        `mapstructure:"mode"`
		MaxConsecutive  int           `mapstructure:"max_consecutive"`
		PauseDuration   time.Duration `mapstructure:"pause_duration"`
		RecoveryWait    time.Duration `mapstructure:"recovery_wait"`
	} `mapstructure:"chop"`

	TimeExit struct {
		Mode               string        `mapstructure:"mode"`
		MaxHold            time.Duration `mapstructure:"max_hold"`
		ProfitReduction    float64       `mapstructure:"profit_reduction"`
		LossExtension      float64       `mapstructure:"loss_extension"`
		QuickExitLossPct   float64       `mapstructure:"quick_exit_loss_pct"`
		QuickExitTime      time.Duration `mapstructure:"quick_exit_time"`
		FlatRangeThreshold float64       `mapstructure:"flat_range_threshold"`
		TimeToFlat         time.Duration `mapstructure:"time_to_flat"`
	} `mapstructure:"time_exit"`

	Trailing struct {
		MinProfitBeforeTrailing float64 `mapstructure:"min_profit_before_trailing"`
		TrailingPct             float64 `mapstructure:"trailing_pct"`
	} `mapstructure:"trailing"`
}

// BundlerConfig mirrors bundler.Config for unmarshalling.
type BundlerConfig struct {
	BatchSize      int      `mapstructure:"batch_size"`
	FlushIntervalMs int     `mapstructure:"flush_interval_ms"`
	TipLamports    uint64   `mapstructure:"tip_lamports"`
	RelayURLs      []string `mapstructure:"relay_urls"`
	TipAccounts    []string `mapstructure:"tip_accounts"`
}

// ObservabilityConfig controls the ambient health/metrics HTTP surface.
type ObservabilityConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	Enabled    bool   `mapstructure:"enabled"`
}

// Manager handles config loading and hot-reload
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	viper    *viper.Viper
	onChange func(*Config)
}

// NewManager creates a new config manager
func NewManager(configPath string) (*Manager, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Set Defaults (Hardening)
	v.SetDefault("blockchain.blockhash_refresh_ms", 100)
	v.SetDefault("blockchain.blockhash_ttl_seconds", 60)
	v.SetDefault("blockchain.balance_refresh_seconds", 5)
	v.SetDefault("jupiter.quote_api_url", "https://quote-api.jup.ag/v6/quote")
	v.SetDefault("jupiter.slippage_bps", 500) // 5%
	v.SetDefault("jupiter.timeout_seconds", 10)
	v.SetDefault("rpc.shyft_api_key_env", "SHYFT_API_KEY")
	v.SetDefault("rpc.fallback_api_key_env", "HELIUS_API_KEY")
	v.SetDefault("rpc.fallback_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("storage.sqlite_path", "./data/engine.db")
	v.SetDefault("storage.signals_buffer_size", 100)
	v.SetDefault("wallet.private_key_env", "WALLET_PRIVATE_KEY")
	v.SetDefault("strategy.max_positions", 10)
	v.SetDefault("strategy.max_concurrent_buys", 3)
	v.SetDefault("strategy.entry_timing", "immediate")
	v.SetDefault("bundler.batch_size", 4)
	v.SetDefault("bundler.flush_interval_ms", 400)
	v.SetDefault("risk.volatility_lookback_periods", 20)
	v.SetDefault("observability.listen_addr", ":9090")
	v.SetDefault("observability.enabled", true)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Manual fallback if unmarshal leaves zero values (double check)
	if cfg.Jupiter.QuoteAPIURL == "" { cfg.Jupiter.QuoteAPIURL = "https://quote-api.jup.ag/v6/quote" }
	if cfg.Storage.SQLitePath == "" { cfg.Storage.SQLitePath = "./data/bot.db" }

	m := &Manager{
		config: &cfg,
		viper:  v,
	}

	// Watch for config changes
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info().Str("file", e.Name).Msg("config file changed, reloading")
		m.reload()
	})

	return m, nil
}

// Get returns the current config (thread-safe)
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetTrading returns trading config (most frequently accessed)
func (m *Manager) GetTrading() TradingConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Trading
}

// SetOnChange registers a callback for config changes
func (m *Manager) SetOnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Update modifies config values and saves to file
func (m *Manager) Update(fn func(*Config)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Apply changes
	fn(m.config)

	// Update viper values
	m.viper.Set("trading.min_entry_percent", m.config.Trading.MinEntryPercent)
	m.viper.Set("trading.take_profit_multiple", m.config.Trading.TakeProfitMultiple)
	m.viper.Set("trading.max_alloc_percent", m.config.Trading.MaxAllocPercent)
	m.viper.Set("trading.max_open_positions", m.config.Trading.MaxOpenPositions)
	m.viper.Set("trading.auto_trading_enabled", m.config.Trading.AutoTradingEnabled)
	m.viper.Set("fees.static_priority_fee_sol", m.config.Fees.StaticPriorityFeeSol)

	// Write to file
	if err := m.viper.WriteConfig(); err != nil {
		return err
	}

	if m.onChange != nil {
		m.onChange(m.config)
	}

	return nil
}

func (m *Manager) reload() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cfg Config
	if err := m.viper.Unmarshal(&cfg); err != nil {
		log.Error().Err(err).Msg("failed to unmarshal config on reload")
		return
	}

	m.config = &cfg
	if m.onChange != nil {
		m.onChange(&cfg)
	}
}

// GetPrivateKey loads private key from environment
func (m *Manager) GetPrivateKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return os.Getenv(m.config.Wallet.PrivateKeyEnv)
}

// GetShyftAPIKey loads Shyft API key from environment
func (m *Manager) GetShyftAPIKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return os.Getenv(m.config.RPC.ShyftAPIKeyEnv)
}

// GetFallbackAPIKey loads Fallback API key from environment
func (m *Manager) GetFallbackAPIKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return os.Getenv(m.config.RPC.FallbackAPIKeyEnv)
}

// GetShyftRPCURL returns the full Shyft RPC URL with API key injected
func (m *Manager) GetShyftRPCURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	url := m.config.RPC.ShyftURL
	key := os.Getenv(m.config.RPC.ShyftAPIKeyEnv)
	if key == "" {
		return url
	}

	if strings.Contains(url, "?") {
		return url + "&api_key=" + key
	}
	return url + "?api_key=" + key
}

// GetFallbackRPCURL returns the full Fallback RPC URL with API key injected
func (m *Manager) GetFallbackRPCURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	url := m.config.RPC.FallbackURL
	key := os.Getenv(m.config.RPC.FallbackAPIKeyEnv)
	if key == "" {
		return url
	}

	// Detect provider param style
	param := "api_key"
	if strings.Contains(url, "helius") {
		param = "api-key"
	}

	if strings.Contains(url, "?") {
		return url + "&" + param + "=" + key
	}
	return url + "?" + param + "=" + key
}

// GetShyftWSURL returns the full Shyft WebSocket URL with API key injected
func (m *Manager) GetShyftWSURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	url := m.config.WebSocket.ShyftURL
	key := os.Getenv(m.config.RPC.ShyftAPIKeyEnv)
	if key == "" {
		return url
	}

	if strings.Contains(url, "?") {
		return url + "&api_key=" + key
	}
	return url + "?api_key=" + key
}

// GetBlockhashRefresh returns blockhash refresh interval as duration
func (m *Manager) GetBlockhashRefresh() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Duration(m.config.Blockchain.BlockhashRefreshMs) * time.Millisecond
}

// GetBalanceRefresh returns balance refresh interval as duration
func (m *Manager) GetBalanceRefresh() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Duration(m.config.Blockchain.BalanceRefreshSeconds) * time.Second
}
