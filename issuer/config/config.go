package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"

	"github.com/smartpassport/passport-node/issuer/constant"
)

//go:embed default_config.json
var defaultConfigJSON []byte

func validateConfig(cfg *Config) error {
	// Validate log level
	if cfg.LogLevel < 0 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between 0 and 5")
	}

	// Validate log format
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	if cfg.NodeHome == "" {
		cfg.NodeHome = constant.DefaultNodeHome
	}

	// Set defaults for solana config
	if cfg.Cluster == "" {
		cfg.Cluster = "devnet"
	}
	if len(cfg.RPCURLs) == 0 {
		var defaultCfg Config
		if err := json.Unmarshal(defaultConfigJSON, &defaultCfg); err == nil {
			cfg.RPCURLs = defaultCfg.RPCURLs
		}
	}
	if len(cfg.RPCURLs) == 0 {
		return fmt.Errorf("at least one rpc url is required")
	}
	if cfg.Commitment == "" {
		cfg.Commitment = "confirmed"
	}
	if cfg.Commitment != "processed" && cfg.Commitment != "confirmed" && cfg.Commitment != "finalized" {
		return fmt.Errorf("commitment must be 'processed', 'confirmed' or 'finalized'")
	}

	// Set defaults for identities
	if cfg.ServiceKeypairPath == "" {
		cfg.ServiceKeypairPath = filepath.Join(constant.KeysSubdir, "keypair.json")
	}
	if cfg.TreasuryKeypairPath == "" {
		cfg.TreasuryKeypairPath = filepath.Join(constant.KeysSubdir, "treasury_keypair.json")
	}
	if cfg.ResolvePath(cfg.ServiceKeypairPath) == cfg.ResolvePath(cfg.TreasuryKeypairPath) {
		return fmt.Errorf("service and treasury keypairs must be stored in different files")
	}
	if cfg.TreasuryOwnerAddress != "" {
		if _, err := solana.PublicKeyFromBase58(cfg.TreasuryOwnerAddress); err != nil {
			return fmt.Errorf("treasury owner address is not a valid public key: %w", err)
		}
	}

	// Validate fee config
	if cfg.ServiceFeeRate < 0 || cfg.ServiceFeeRate >= 1 {
		return fmt.Errorf("service fee rate must be in [0, 1)")
	}
	if cfg.NetworkFeeLamports == 0 {
		cfg.NetworkFeeLamports = 5000
	}
	if cfg.RoyaltyBasisPoints > 10000 {
		return fmt.Errorf("royalty basis points must not exceed 10000")
	}

	// Set defaults for confirmation
	if cfg.ConfirmationTimeoutSeconds == 0 {
		cfg.ConfirmationTimeoutSeconds = 60
	}
	if cfg.ConfirmationPollIntervalMs == 0 {
		cfg.ConfirmationPollIntervalMs = 500
	}
	if cfg.RequestTimeoutSeconds == 0 {
		cfg.RequestTimeoutSeconds = 30
	}

	// Set defaults for price reference
	if cfg.PriceSource == "" {
		cfg.PriceSource = PriceSourceFixed
	}
	if cfg.PriceSource != PriceSourceFixed && cfg.PriceSource != PriceSourceCoinGecko {
		return fmt.Errorf("price source must be 'fixed' or 'coingecko'")
	}
	if cfg.PriceSource == PriceSourceCoinGecko && cfg.PriceAPIURL == "" {
		cfg.PriceAPIURL = "https://api.coingecko.com"
	}
	if cfg.FallbackPrice <= 0 {
		cfg.FallbackPrice = 100.0
	}

	// Set defaults for metadata storage
	if cfg.BundlrURL == "" {
		cfg.BundlrURL = "https://node1.bundlr.network"
	}
	if cfg.GatewayURL == "" {
		cfg.GatewayURL = "https://arweave.net"
	}

	// Set defaults for query server
	if cfg.QueryServerPort == 0 {
		cfg.QueryServerPort = 8080
	}
	if cfg.RateLimit == "" {
		cfg.RateLimit = "120-M"
	}

	if cfg.DatabaseFile == "" {
		cfg.DatabaseFile = constant.DatabaseFileName
	}
	if cfg.MintRetentionSeconds < 0 || cfg.MintCleanupIntervalSeconds < 0 {
		return fmt.Errorf("mint retention and cleanup interval must not be negative")
	}
	if cfg.MintRetentionSeconds == 0 {
		cfg.MintRetentionSeconds = 3600
	}
	if cfg.MintCleanupIntervalSeconds == 0 {
		cfg.MintCleanupIntervalSeconds = 600
	}

	return nil
}

// Validate fills defaults and checks the config for invalid values.
func Validate(cfg *Config) error {
	return validateConfig(cfg)
}

// Save writes the given config to <NodeHome>/config/passportd_config.json.
func Save(cfg *Config, basePath string) error {
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(basePath, constant.ConfigSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configDir, constant.ConfigFileName)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads the config from <basePath>/config/passportd_config.json, applies
// environment overrides and fills defaults.
func Load(basePath string) (Config, error) {
	configFile := filepath.Join(basePath, constant.ConfigSubdir, constant.ConfigFileName)
	data, err := os.ReadFile(filepath.Clean(configFile))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	// Keys absent from the file keep their embedded defaults; explicit zero
	// values, such as a 0 fee rate, are kept as written.
	defaults, err := LoadDefaultConfig()
	if err != nil {
		return Config{}, err
	}
	cfg := *defaults
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.NodeHome == "" {
		cfg.NodeHome = basePath
	}
	if err := ApplyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := validateConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads the config under basePath, falling back to the embedded
// defaults when no config file has been written yet.
func LoadOrDefault(basePath string) (Config, error) {
	configFile := filepath.Join(basePath, constant.ConfigSubdir, constant.ConfigFileName)
	if _, err := os.Stat(configFile); err == nil {
		return Load(basePath)
	}

	cfg, err := LoadDefaultConfig()
	if err != nil {
		return Config{}, err
	}
	cfg.NodeHome = basePath
	if err := ApplyEnvOverrides(cfg); err != nil {
		return Config{}, err
	}
	if err := validateConfig(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return *cfg, nil
}

// LoadDefaultConfig loads the default configuration from embedded JSON
func LoadDefaultConfig() (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	return &cfg, nil
}
