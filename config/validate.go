package config

import (
	"fmt"
	"strings"
	"time"
)

var logLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
	"disabled": true, "off": true,
}

// ValidateConsolidate checks a consolidate-utxo config for operator mistakes.
func ValidateConsolidate(cfg *ConsolidateConfig) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if err := validateCommon(cfg.Coin, &cfg.RPC, &cfg.Log); err != nil {
		return err
	}
	if len(cfg.Sources) == 0 {
		return fmt.Errorf("at least one source address is required")
	}
	seen := make(map[string]struct{}, len(cfg.Sources))
	for _, s := range cfg.Sources {
		if _, ok := seen[s]; ok {
			return fmt.Errorf("duplicate source address %q", s)
		}
		seen[s] = struct{}{}
	}
	if cfg.Destination == "" {
		return fmt.Errorf("destination address is required")
	}
	if cfg.MaxInputs < 1 {
		return fmt.Errorf("max-tx-count must be at least 1")
	}
	if cfg.MaxTotalTx < 1 {
		return fmt.Errorf("max-total-tx must be at least 1")
	}
	if cfg.MinConfirms < 0 {
		return fmt.Errorf("min-confirms must not be negative")
	}
	if cfg.MaxConfirms < cfg.MinConfirms {
		return fmt.Errorf("max-confirms (%d) is below min-confirms (%d)", cfg.MaxConfirms, cfg.MinConfirms)
	}
	if cfg.Pause < MinPause {
		return fmt.Errorf("pause-time must be at least %s", MinPause)
	}
	if cfg.UnlockTimeout < time.Second {
		return fmt.Errorf("unlock-timeout must be at least 1s")
	}
	if cfg.MinFeeRate <= 0 {
		return fmt.Errorf("min-fee-rate must be positive")
	}
	if cfg.Passphrase != "" && cfg.AskPassphrase {
		return fmt.Errorf("use either --wallet-passphrase or --ask-passphrase, not both")
	}
	return nil
}

// ValidateRetarget checks a diff-retarget config for operator mistakes.
func ValidateRetarget(cfg *RetargetConfig) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if err := validateCommon(cfg.Coin, &cfg.RPC, &cfg.Log); err != nil {
		return err
	}
	if cfg.Interval < 1 {
		return fmt.Errorf("retarget-blocks must be at least 1")
	}
	if cfg.BlockTime <= 0 {
		return fmt.Errorf("block-time must be positive")
	}
	if cfg.MaxWalk < 0 {
		return fmt.Errorf("max-walk must not be negative")
	}
	if cfg.Watch < 0 {
		return fmt.Errorf("watch interval must not be negative")
	}
	if cfg.NotifyCmd != "" && strings.TrimSpace(cfg.NotifyCmd) == "" {
		return fmt.Errorf("notify-cmd is blank")
	}
	return nil
}

func validateCommon(coin Coin, rpc *RPCConfig, log *LogConfig) error {
	if coin.Slug() == "" {
		return fmt.Errorf("coin-name must not be empty")
	}
	if rpc.Port < 0 || rpc.Port > 65535 {
		return fmt.Errorf("rpc-port must be in range [0, 65535]")
	}
	if rpc.Timeout <= 0 {
		return fmt.Errorf("rpc-timeout must be positive")
	}
	if !logLevels[log.Level] {
		return fmt.Errorf("unknown log level %q", log.Level)
	}
	return nil
}
