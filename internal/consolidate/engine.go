// Package consolidate merges the UTXOs of one or more addresses into
// batched transactions paying a single destination.
package consolidate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/Klingon-tech/coinrpc-tools/internal/fee"
	klog "github.com/Klingon-tech/coinrpc-tools/internal/log"
)

// DryRunHash replaces the transaction hash when broadcasting is disabled.
const DryRunHash = "DRY RUN, NOT SENT"

// Signing defaults.
const (
	DefaultUnlockTimeout    = 900 * time.Second
	DefaultSignaturePadding = 120 // bytes of signature data missing from the unsigned size
)

// Consolidation errors.
var (
	ErrWalletLocked     = errors.New("wallet is locked and no passphrase was given")
	ErrUnlockFailed     = errors.New("wallet unlock failed")
	ErrFeeExceedsAmount = errors.New("fee exceeds batch amount")
)

// Node is the subset of the node RPC the engine drives.
type Node interface {
	ListUnspent(ctx context.Context, minConf, maxConf int64) ([]btcjson.ListUnspentResult, error)
	CreateRawTransaction(ctx context.Context, inputs []btcjson.TransactionInput, outputs map[string]json.Number) (string, error)
	DecodeRawTransaction(ctx context.Context, hexTx string) (*btcjson.TxRawResult, error)
	SignRawTransaction(ctx context.Context, hexTx string) (*btcjson.SignRawTransactionResult, error)
	WalletPassphrase(ctx context.Context, passphrase string, timeoutSecs int64) error
	SendRawTransaction(ctx context.Context, hexTx string) (*chainhash.Hash, error)
}

// FeeEstimator yields the fee rate per kB for a confirmation target.
type FeeEstimator interface {
	Estimate(ctx context.Context, confTarget int64) fee.Rate
}

// Config controls one consolidation run.
type Config struct {
	Sources     []string
	Destination string

	MaxInputs   int // inputs per transaction
	MaxTotalTx  int // transactions per run
	MinConfirms int64
	MaxConfirms int64

	Pause  time.Duration // wait before each broadcast
	DryRun bool

	Passphrase    string
	UnlockTimeout time.Duration

	// SignaturePadding is added to the unsigned size when computing the fee.
	SignaturePadding int
}

// Validate checks the config for values the engine cannot run with.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source address is required")
	}
	for i, s := range c.Sources {
		if s == "" {
			return fmt.Errorf("source address %d is empty", i)
		}
	}
	if c.Destination == "" {
		return fmt.Errorf("destination address is required")
	}
	if c.MaxInputs < 1 {
		return fmt.Errorf("max inputs must be at least 1")
	}
	if c.MaxTotalTx < 1 {
		return fmt.Errorf("max total transactions must be at least 1")
	}
	if c.MinConfirms < 0 || c.MaxConfirms < c.MinConfirms {
		return fmt.Errorf("invalid confirmation range [%d, %d]", c.MinConfirms, c.MaxConfirms)
	}
	if c.Pause < 0 {
		return fmt.Errorf("pause must not be negative")
	}
	if c.SignaturePadding < 0 {
		return fmt.Errorf("signature padding must not be negative")
	}
	return nil
}

// OutgoingTransaction is one built and signed consolidation transaction.
type OutgoingTransaction struct {
	UnsignedHex string
	SignedHex   string
	Size        int // bytes used for the fee, padding included
	DummySize   int // size reported by the node for the dummy
	HexSize     int // size of the dummy from its hex encoding
	Fee         btcutil.Amount
	Receive     btcutil.Amount
	Summary     *btcjson.TxRawResult
}

// BatchResult records what happened to one batch.
type BatchResult struct {
	Index   int
	Inputs  int
	Total   btcutil.Amount
	Fee     btcutil.Amount
	Receive btcutil.Amount
	Size    int
	TxHash  string
	Skipped bool
	Reason  string
}

// Summary describes a finished run.
type Summary struct {
	Listed     int
	Eligible   int
	FeeRate    fee.Rate
	Batches    []BatchResult
	CapReached bool
}

// Sent returns the number of batches that were broadcast (or would have
// been, in a dry run).
func (s *Summary) Sent() int {
	n := 0
	for _, b := range s.Batches {
		if !b.Skipped {
			n++
		}
	}
	return n
}

// Observer receives progress notifications. All methods are called from
// the goroutine running Engine.Run.
type Observer interface {
	BatchStarted(index int, b *Batch, remaining, available int)
	BatchBuilt(index int, tx *OutgoingTransaction)
	BeforeBroadcast(index int, pause time.Duration)
	BatchDone(res BatchResult)
}

type nopObserver struct{}

func (nopObserver) BatchStarted(int, *Batch, int, int)   {}
func (nopObserver) BatchBuilt(int, *OutgoingTransaction) {}
func (nopObserver) BeforeBroadcast(int, time.Duration)   {}
func (nopObserver) BatchDone(BatchResult)                {}

// Engine runs consolidation against a node.
type Engine struct {
	node     Node
	fees     FeeEstimator
	cfg      Config
	observer Observer
}

// New creates an engine. The config is copied.
func New(node Node, fees FeeEstimator, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid consolidation config: %w", err)
	}
	cfg.Sources = append([]string(nil), cfg.Sources...)
	return &Engine{
		node:     node,
		fees:     fees,
		cfg:      cfg,
		observer: nopObserver{},
	}, nil
}

// SetObserver installs a progress observer.
func (e *Engine) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	e.observer = o
}

// Run lists the wallet's UTXOs and consolidates those owned by the source
// addresses. A run with no eligible UTXOs returns a summary without batches
// and a nil error. Errors from listing, signing, or broadcasting abort the
// run; batches already broadcast are reported in the summary.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	logger := klog.Consolidate

	listed, err := e.node.ListUnspent(ctx, e.cfg.MinConfirms, e.cfg.MaxConfirms)
	if err != nil {
		return nil, fmt.Errorf("list unspent: %w", err)
	}

	owned := make(map[string]struct{}, len(e.cfg.Sources))
	for _, s := range e.cfg.Sources {
		owned[s] = struct{}{}
	}

	// Only entries of the source addresses are validated; the rest are kept
	// for the listing count.
	utxos := make([]UTXO, 0, len(listed))
	for _, r := range listed {
		if _, ok := owned[r.Address]; !ok {
			utxos = append(utxos, UTXO{TxID: r.TxID, Vout: r.Vout, Address: r.Address})
			continue
		}
		u, err := FromListUnspent(r)
		if err != nil {
			return nil, err
		}
		utxos = append(utxos, u)
	}

	plan := BuildPlan(utxos, e.cfg.Sources, e.cfg.MaxInputs, e.cfg.MaxTotalTx)
	summary := &Summary{
		Listed:     plan.Listed,
		Eligible:   plan.Eligible,
		CapReached: plan.CapReached,
	}

	if plan.Eligible == 0 {
		logger.Info().Int("listed", plan.Listed).Strs("sources", e.cfg.Sources).Msg("No unspent transactions found")
		return summary, nil
	}

	summary.FeeRate = e.fees.Estimate(ctx, e.cfg.MinConfirms)
	logger.Info().
		Int("eligible", plan.Eligible).
		Int("listed", plan.Listed).
		Int("batches", len(plan.Batches)).
		Str("fee_rate", FormatCoins(summary.FeeRate.PerKB)).
		Str("fee_source", summary.FeeRate.Source).
		Bool("dry_run", e.cfg.DryRun).
		Msg("Consolidation planned")

	remaining, available := plan.Eligible, plan.Listed
	for i := range plan.Batches {
		b := &plan.Batches[i]
		e.observer.BatchStarted(i, b, remaining, available)

		res, err := e.runBatch(ctx, i, b, summary.FeeRate.PerKB)
		if err != nil {
			return summary, fmt.Errorf("batch %d: %w", i+1, err)
		}
		summary.Batches = append(summary.Batches, res)
		e.observer.BatchDone(res)

		remaining -= b.Count()
		available -= b.Count()
	}

	if plan.CapReached {
		logger.Warn().Int("max_total_tx", e.cfg.MaxTotalTx).Int("left", plan.Eligible-plan.Planned()).Msg("Max number of transactions hit")
	}
	return summary, nil
}

func (e *Engine) runBatch(ctx context.Context, index int, b *Batch, rate btcutil.Amount) (BatchResult, error) {
	logger := klog.Consolidate.With().Int("batch", index+1).Int("inputs", b.Count()).Logger()
	res := BatchResult{Index: index, Inputs: b.Count(), Total: b.Total}

	if b.Count() == 0 {
		res.Skipped, res.Reason = true, "empty batch"
		return res, nil
	}

	tx, err := e.build(ctx, b, rate)
	if errors.Is(err, ErrFeeExceedsAmount) {
		logger.Warn().Err(err).Str("total", FormatCoins(b.Total)).Msg("Skipping batch")
		res.Skipped, res.Reason = true, err.Error()
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.Fee, res.Receive, res.Size = tx.Fee, tx.Receive, tx.Size
	e.observer.BatchBuilt(index, tx)

	e.observer.BeforeBroadcast(index, e.cfg.Pause)
	if err := wait(ctx, e.cfg.Pause); err != nil {
		return res, fmt.Errorf("aborted before broadcast: %w", err)
	}

	if e.cfg.DryRun {
		res.TxHash = DryRunHash
	} else {
		hash, err := e.node.SendRawTransaction(ctx, tx.SignedHex)
		if err != nil {
			return res, fmt.Errorf("send transaction: %w", err)
		}
		res.TxHash = hash.String()
	}

	logger.Info().
		Str("tx", res.TxHash).
		Str("receive", FormatCoins(res.Receive)).
		Str("fee", FormatCoins(res.Fee)).
		Int("size", res.Size).
		Msg("Batch sent")
	return res, nil
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
