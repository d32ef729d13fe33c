package config

import (
	"time"

	"github.com/Klingon-tech/coinrpc-tools/internal/consolidate"
	"github.com/Klingon-tech/coinrpc-tools/internal/fee"
	"github.com/Klingon-tech/coinrpc-tools/internal/retarget"
	"github.com/Klingon-tech/coinrpc-tools/internal/rpcclient"
)

// Node connection defaults.
const (
	DefaultRPCHost    = "127.0.0.1"
	DefaultRPCPort    = 9662
	DefaultConfigPath = "coinrpc.conf"
)

// Consolidation defaults.
const (
	DefaultMaxInputs   = 555
	DefaultMaxTotalTx  = 600
	DefaultMinConfirms = 100
	DefaultMaxConfirms = 99999999
	DefaultPause       = 5 * time.Second
	MinPause           = 100 * time.Millisecond
)

// DefaultConsolidate returns the default consolidate-utxo configuration.
func DefaultConsolidate() *ConsolidateConfig {
	return &ConsolidateConfig{
		Coin:          DefaultCoinName,
		RPC:           defaultRPC(),
		Log:           defaultLog(),
		MaxInputs:     DefaultMaxInputs,
		MaxTotalTx:    DefaultMaxTotalTx,
		MinConfirms:   DefaultMinConfirms,
		MaxConfirms:   DefaultMaxConfirms,
		Pause:         DefaultPause,
		UnlockTimeout: consolidate.DefaultUnlockTimeout,
		MinFeeRate:    fee.DefaultFloor,
	}
}

// DefaultRetarget returns the default diff-retarget configuration.
func DefaultRetarget() *RetargetConfig {
	return &RetargetConfig{
		Coin:      DefaultCoinName,
		RPC:       defaultRPC(),
		Log:       defaultLog(),
		Interval:  retarget.DefaultInterval,
		BlockTime: retarget.DefaultBlockTime,
	}
}

func defaultRPC() RPCConfig {
	return RPCConfig{
		ConfigPath: DefaultConfigPath,
		Timeout:    rpcclient.DefaultTimeout,
	}
}

func defaultLog() LogConfig {
	return LogConfig{Level: "info"}
}
