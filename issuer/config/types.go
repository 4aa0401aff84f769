package config

import (
	"path/filepath"
	"time"
)

// PriceSourceKind selects the SOL/USD reference used for display conversions.
type PriceSourceKind string

const (
	// PriceSourceFixed always reports the configured fallback price
	PriceSourceFixed PriceSourceKind = "fixed"

	// PriceSourceCoinGecko queries the CoinGecko simple price API
	PriceSourceCoinGecko PriceSourceKind = "coingecko"
)

type Config struct {
	// Log Config
	LogLevel   int    `json:"log_level"`   // e.g., 0 = debug, 1 = info, etc.
	LogFormat  string `json:"log_format"`  // "json" or "console"
	LogSampler bool   `json:"log_sampler"` // if true, samples logs (e.g., 1 in 5)

	// Node Config
	NodeHome string `json:"node_home"` // Node home directory (default: ~/.passportd)

	// Solana configuration
	Cluster    string   `json:"cluster"`    // Cluster name used in explorer links (default: devnet)
	RPCURLs    []string `json:"rpc_urls"`   // RPC endpoints, first is primary (default: devnet public + rpcpool)
	Commitment string   `json:"commitment"` // Commitment used for reads and confirmation (default: confirmed)

	// Identity configuration
	ServiceKeypairPath   string `json:"service_keypair_path"`   // Service identity key file (default: keys/keypair.json)
	TreasuryKeypairPath  string `json:"treasury_keypair_path"`  // Treasury identity key file (default: keys/treasury_keypair.json)
	TreasuryOwnerAddress string `json:"treasury_owner_address"` // Address authorized to approve withdrawals

	// Fee configuration
	ServiceFeeRate     float64 `json:"service_fee_rate"`     // Fraction of the cost subtotal collected as service fee (default: 0.20)
	NetworkFeeLamports uint64  `json:"network_fee_lamports"` // Flat per-transaction network fee (default: 5000)
	RoyaltyBasisPoints uint16  `json:"royalty_basis_points"` // Seller fee on minted passports (default: 500)

	// Confirmation configuration
	ConfirmationTimeoutSeconds int `json:"confirmation_timeout_seconds"`  // How long submit waits for confirmation (default: 60)
	ConfirmationPollIntervalMs int `json:"confirmation_poll_interval_ms"` // Signature status poll interval (default: 500)
	RequestTimeoutSeconds      int `json:"request_timeout_seconds"`       // Per-request timeout for RPC reads (default: 30)

	// Price reference
	PriceSource   PriceSourceKind `json:"price_source"`   // "fixed" or "coingecko" (default: fixed)
	PriceAPIURL   string          `json:"price_api_url"`  // CoinGecko base URL
	FallbackPrice float64         `json:"fallback_price"` // USD per SOL when the source is unavailable (default: 100.0)

	// Metadata storage
	BundlrURL  string `json:"bundlr_url"`  // Bundlr node used to store metadata documents
	GatewayURL string `json:"gateway_url"` // Gateway prefix for stored document URIs (default: https://arweave.net)

	// Query Server Config
	QueryServerPort int    `json:"query_server_port"` // Port for HTTP server (default: 8080)
	RateLimit       string `json:"rate_limit"`        // Per-client request limit, "<n>-<S|M|H|D>" (default: 120-M)

	// Database
	DatabaseFile               string `json:"database_file"`                 // SQLite file under <home>/databases (default: passports.db)
	MintRetentionSeconds       int    `json:"mint_retention_seconds"`        // Age after which unconfirmed mints are deleted (default: 3600)
	MintCleanupIntervalSeconds int    `json:"mint_cleanup_interval_seconds"` // How often unconfirmed mints are swept (default: 600)
}

// ConfirmationTimeout returns the submission confirmation window.
func (c *Config) ConfirmationTimeout() time.Duration {
	return time.Duration(c.ConfirmationTimeoutSeconds) * time.Second
}

// ConfirmationPollInterval returns the interval between signature status polls.
func (c *Config) ConfirmationPollInterval() time.Duration {
	return time.Duration(c.ConfirmationPollIntervalMs) * time.Millisecond
}

// RequestTimeout returns the timeout applied to RPC reads made on behalf of a request.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// MintRetention returns how long unconfirmed mints stay in the journal.
func (c *Config) MintRetention() time.Duration {
	return time.Duration(c.MintRetentionSeconds) * time.Second
}

// MintCleanupInterval returns the period between journal sweeps.
func (c *Config) MintCleanupInterval() time.Duration {
	return time.Duration(c.MintCleanupIntervalSeconds) * time.Second
}

// ResolvePath makes p absolute relative to the node home.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.NodeHome, p)
}
