package config

import (
	"fmt"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Environment variables understood by the node. They take precedence over the
// config file so existing deployments keep working without a config rewrite.
const (
	EnvRPCURL              = "SOLANA_RPC_URL"
	EnvRPCURLAlt           = "SOLANA_RPC_URL_ALT"
	EnvServiceKeypairPath  = "KEYPAIR_PATH"
	EnvTreasuryKeypairPath = "TREASURY_KEYPAIR_PATH"
	EnvFeeRecipient        = "FEE_RECIPIENT"
	EnvBundlrURL           = "BUNDLR_URL"
	EnvServiceFeeRate      = "SERVICE_FEE_RATE"
	EnvPort                = "PASSPORTD_PORT"
)

var envKeys = []string{
	EnvRPCURL,
	EnvRPCURLAlt,
	EnvServiceKeypairPath,
	EnvTreasuryKeypairPath,
	EnvFeeRecipient,
	EnvBundlrURL,
	EnvServiceFeeRate,
	EnvPort,
}

// ApplyEnvOverrides copies any set environment variables onto cfg.
func ApplyEnvOverrides(cfg *Config) error {
	v := viper.New()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if url := v.GetString(EnvRPCURL); url != "" {
		if len(cfg.RPCURLs) == 0 {
			cfg.RPCURLs = []string{url}
		} else {
			cfg.RPCURLs = append([]string{url}, cfg.RPCURLs[1:]...)
		}
	}
	if alt := v.GetString(EnvRPCURLAlt); alt != "" {
		switch len(cfg.RPCURLs) {
		case 0, 1:
			cfg.RPCURLs = append(cfg.RPCURLs, alt)
		default:
			cfg.RPCURLs[1] = alt
		}
	}
	if p := v.GetString(EnvServiceKeypairPath); p != "" {
		cfg.ServiceKeypairPath = p
	}
	if p := v.GetString(EnvTreasuryKeypairPath); p != "" {
		cfg.TreasuryKeypairPath = p
	}
	if owner := v.GetString(EnvFeeRecipient); owner != "" {
		cfg.TreasuryOwnerAddress = owner
	}
	if url := v.GetString(EnvBundlrURL); url != "" {
		cfg.BundlrURL = url
	}
	if raw := v.GetString(EnvServiceFeeRate); raw != "" {
		rate, err := cast.ToFloat64E(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvServiceFeeRate, raw, err)
		}
		cfg.ServiceFeeRate = rate
	}
	if raw := v.GetString(EnvPort); raw != "" {
		port, err := cast.ToIntE(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, raw, err)
		}
		cfg.QueryServerPort = port
	}
	return nil
}
