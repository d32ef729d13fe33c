// Package fee estimates the fee rate used for consolidation transactions.
package fee

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"

	"github.com/Klingon-tech/coinrpc-tools/internal/fallback"
	klog "github.com/Klingon-tech/coinrpc-tools/internal/log"
	"github.com/Klingon-tech/coinrpc-tools/internal/rpcclient"
)

// DefaultFloor is the fee rate used when the node cannot estimate one
// (0.001 coin per kB).
const DefaultFloor btcutil.Amount = 100_000

// Tier names reported in Rate.Source.
const (
	SourceSmart = "smart"
	SourceRaw   = "raw"
	SourceFloor = "floor"
)

var errNoEstimate = errors.New("no fee estimate")

// Node is the subset of the node RPC used for fee estimation.
type Node interface {
	EstimateSmartFee(ctx context.Context, confTarget int64) (*btcjson.EstimateSmartFeeResult, error)
	EstimateRawFee(ctx context.Context, confTarget int64) (*rpcclient.RawFeeResult, error)
}

// Rate is a fee rate per kB and the tier that produced it.
type Rate struct {
	PerKB  btcutil.Amount
	Source string
}

// Estimator resolves a fee rate: smart estimate, then raw long-horizon
// estimate, then Floor.
type Estimator struct {
	node  Node
	floor btcutil.Amount
}

// NewEstimator creates an estimator. A non-positive floor is replaced by
// DefaultFloor.
func NewEstimator(node Node, floor btcutil.Amount) *Estimator {
	if floor <= 0 {
		floor = DefaultFloor
	}
	return &Estimator{node: node, floor: floor}
}

// Floor returns the configured minimum rate.
func (e *Estimator) Floor() btcutil.Amount {
	return e.floor
}

// Estimate returns a positive fee rate per kB. It never fails: a cancelled
// context or failing node both yield the floor rate.
func (e *Estimator) Estimate(ctx context.Context, confTarget int64) Rate {
	res, err := fallback.First(ctx,
		fallback.Step[btcutil.Amount]{Name: SourceSmart, Run: func(ctx context.Context) (btcutil.Amount, error) {
			return e.smart(ctx, confTarget)
		}},
		fallback.Step[btcutil.Amount]{Name: SourceRaw, Run: func(ctx context.Context) (btcutil.Amount, error) {
			return e.raw(ctx, confTarget)
		}},
		fallback.Value(SourceFloor, e.floor),
	)
	if err != nil {
		klog.Fee.Warn().Err(err).Msg("Unable to estimate fee")
		return Rate{PerKB: e.floor, Source: SourceFloor}
	}

	if res.Step == SourceFloor {
		klog.Fee.Info().Str("rate", FormatCoins(res.Value)).Msg("Unable to estimate fee, using minimum rate")
	} else {
		klog.Fee.Info().Str("rate", FormatCoins(res.Value)).Str("source", res.Step).Msg("Estimated fee per kB")
	}
	return Rate{PerKB: res.Value, Source: res.Step}
}

func (e *Estimator) smart(ctx context.Context, confTarget int64) (btcutil.Amount, error) {
	res, err := e.node.EstimateSmartFee(ctx, confTarget)
	if err != nil {
		return 0, err
	}
	if res.FeeRate == nil {
		if len(res.Errors) > 0 {
			return 0, fmt.Errorf("%w: %s", errNoEstimate, strings.Join(res.Errors, "; "))
		}
		return 0, errNoEstimate
	}
	return positiveAmount(*res.FeeRate)
}

func (e *Estimator) raw(ctx context.Context, confTarget int64) (btcutil.Amount, error) {
	res, err := e.node.EstimateRawFee(ctx, confTarget)
	if err != nil {
		return 0, err
	}
	if res.Long == nil || res.Long.FeeRate == nil {
		return 0, errNoEstimate
	}
	return positiveAmount(*res.Long.FeeRate)
}

// positiveAmount converts a coin-denominated rate, rejecting non-positive
// values (nodes answer -1 when they have no data).
func positiveAmount(coins float64) (btcutil.Amount, error) {
	amt, err := btcutil.NewAmount(coins)
	if err != nil {
		return 0, fmt.Errorf("invalid fee rate %v: %w", coins, err)
	}
	if amt <= 0 {
		return 0, fmt.Errorf("%w: non-positive rate %v", errNoEstimate, coins)
	}
	return amt, nil
}

// FormatCoins renders an amount in coin units with exactly 8 decimals.
func FormatCoins(a btcutil.Amount) string {
	sign := ""
	if a < 0 {
		sign = "-"
		a = -a
	}
	return fmt.Sprintf("%s%d.%08d", sign, int64(a/btcutil.SatoshiPerBitcoin), int64(a%btcutil.SatoshiPerBitcoin))
}
