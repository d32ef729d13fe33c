// Package retarget reports when the next difficulty retarget is due.
package retarget

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	klog "github.com/Klingon-tech/coinrpc-tools/internal/log"
)

// Defaults for a Bitcoin-style retarget schedule with 2.5 minute blocks.
const (
	DefaultInterval  = 2016
	DefaultBlockTime = 150 * time.Second
)

// Retarget errors.
var (
	ErrNoHashrate   = errors.New("network hashrate unavailable")
	ErrWalkLimit    = errors.New("no difficulty change within walk limit")
	ErrInvalidChain = errors.New("invalid block chain data")
)

// hashesPerDifficulty is the expected number of hashes per block at
// difficulty 1.
var hashesPerDifficulty = math.Pow(2, 32)

// Node is the subset of the node RPC the reporter reads.
type Node interface {
	GetBestBlockHash(ctx context.Context) (*chainhash.Hash, error)
	GetBlock(ctx context.Context, hash string) (*btcjson.GetBlockVerboseResult, error)
	GetNetworkHashPS(ctx context.Context) (float64, error)
}

// Config holds the chain's retarget schedule.
type Config struct {
	Interval  int64         // blocks between retargets
	BlockTime time.Duration // target block spacing
	MaxWalk   int           // max blocks to walk back; 0 walks to genesis
}

// Window describes the current difficulty period.
type Window struct {
	TipHash            string
	TipHeight          int64
	CurrentDifficulty  float64
	PreviousDifficulty float64
	LastRetargetHeight int64
	NextRetargetHeight int64
	Walked             int  // blocks fetched behind the tip
	ReachedGenesis     bool // no difficulty change before genesis
}

// BlocksRemaining returns the blocks left until the next retarget, never
// negative.
func (w *Window) BlocksRemaining() int64 {
	if n := w.NextRetargetHeight - w.TipHeight; n > 0 {
		return n
	}
	return 0
}

// Estimate projects the time to the next retarget from the hashrate.
type Estimate struct {
	Hashrate         float64
	SecondsPerBlock  float64
	BlocksRemaining  int64
	Remaining        time.Duration
	ExpectedWindow   time.Duration // BlockTime × Interval
	EstimatedWindow  time.Duration // SecondsPerBlock × Interval
	DeviationPercent float64       // positive when blocks are slower than target
	ETA              time.Time
}

// Report is one retarget report.
type Report struct {
	Window      Window
	Estimate    *Estimate // nil when the hashrate is unavailable
	GeneratedAt time.Time
}

// Reporter builds retarget reports from a node.
type Reporter struct {
	node Node
	cfg  Config
	now  func() time.Time
}

// NewReporter creates a reporter, filling zero config values with defaults.
func NewReporter(node Node, cfg Config) (*Reporter, error) {
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.BlockTime == 0 {
		cfg.BlockTime = DefaultBlockTime
	}
	if cfg.Interval < 1 {
		return nil, fmt.Errorf("retarget interval must be positive, got %d", cfg.Interval)
	}
	if cfg.BlockTime < 0 {
		return nil, fmt.Errorf("block time must be positive, got %s", cfg.BlockTime)
	}
	if cfg.MaxWalk < 0 {
		return nil, fmt.Errorf("max walk must not be negative")
	}
	return &Reporter{node: node, cfg: cfg, now: time.Now}, nil
}

// Report walks back from the chain tip to the last difficulty change and
// estimates the time to the next retarget.
func (r *Reporter) Report(ctx context.Context) (*Report, error) {
	window, err := r.walk(ctx)
	if err != nil {
		return nil, err
	}

	rep := &Report{Window: *window, GeneratedAt: r.now()}
	est, err := r.estimate(ctx, window, rep.GeneratedAt)
	if err != nil {
		klog.Retarget.Warn().Err(err).Msg("Skipping retarget time estimate")
	} else {
		rep.Estimate = est
	}

	klog.Retarget.Debug().
		Int64("tip", window.TipHeight).
		Int64("last_retarget", window.LastRetargetHeight).
		Int64("next_retarget", window.NextRetargetHeight).
		Int("walked", window.Walked).
		Msg("Retarget window")
	return rep, nil
}

// walk follows previousblockhash links from the tip, one block at a time,
// until the predecessor's difficulty differs from the tip's.
func (r *Reporter) walk(ctx context.Context) (*Window, error) {
	tipHash, err := r.node.GetBestBlockHash(ctx)
	if err != nil {
		return nil, fmt.Errorf("get best block hash: %w", err)
	}
	tip, err := r.node.GetBlock(ctx, tipHash.String())
	if err != nil {
		return nil, fmt.Errorf("get block %s: %w", tipHash, err)
	}

	w := &Window{
		TipHash:           tip.Hash,
		TipHeight:         tip.Height,
		CurrentDifficulty: tip.Difficulty,
	}

	cur := tip
	for {
		if cur.PreviousHash == "" {
			w.ReachedGenesis = true
			w.PreviousDifficulty = cur.Difficulty
			break
		}
		if r.cfg.MaxWalk > 0 && w.Walked >= r.cfg.MaxWalk {
			return nil, fmt.Errorf("%w (%d blocks)", ErrWalkLimit, r.cfg.MaxWalk)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		prev, err := r.node.GetBlock(ctx, cur.PreviousHash)
		if err != nil {
			return nil, fmt.Errorf("get block %s: %w", cur.PreviousHash, err)
		}
		w.Walked++
		if prev.Height != cur.Height-1 {
			return nil, fmt.Errorf("%w: block %s at height %d follows height %d", ErrInvalidChain, prev.Hash, prev.Height, cur.Height)
		}
		if prev.Difficulty != w.CurrentDifficulty {
			w.PreviousDifficulty = prev.Difficulty
			break
		}
		cur = prev
	}

	w.LastRetargetHeight = cur.Height
	w.NextRetargetHeight = cur.Height + r.cfg.Interval
	return w, nil
}

func (r *Reporter) estimate(ctx context.Context, w *Window, now time.Time) (*Estimate, error) {
	hps, err := r.node.GetNetworkHashPS(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoHashrate, err)
	}
	if hps <= 0 || math.IsNaN(hps) || math.IsInf(hps, 0) {
		return nil, fmt.Errorf("%w: node reports %v H/s", ErrNoHashrate, hps)
	}

	spb := w.CurrentDifficulty * hashesPerDifficulty / hps
	remaining := w.BlocksRemaining()
	interval := float64(r.cfg.Interval)

	est := &Estimate{
		Hashrate:        hps,
		SecondsPerBlock: spb,
		BlocksRemaining: remaining,
		Remaining:       seconds(spb * float64(remaining)),
		ExpectedWindow:  time.Duration(r.cfg.Interval) * r.cfg.BlockTime,
		EstimatedWindow: seconds(spb * interval),
	}
	est.ETA = now.Add(est.Remaining)
	if est.ExpectedWindow > 0 {
		est.DeviationPercent = (est.EstimatedWindow.Seconds()/est.ExpectedWindow.Seconds() - 1) * 100
	}
	return est, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// String renders the report for operators.
func (rep *Report) String() string {
	w := rep.Window
	var b strings.Builder
	fmt.Fprintf(&b, "Current Diff: %s, Last retarget @ %d, previous diff: %s, next retarget @ %d",
		formatDifficulty(w.CurrentDifficulty), w.LastRetargetHeight,
		formatDifficulty(w.PreviousDifficulty), w.NextRetargetHeight)
	if w.ReachedGenesis {
		b.WriteString(" (no retarget since genesis)")
	}

	if est := rep.Estimate; est != nil {
		sign := "+"
		if est.DeviationPercent < 0 {
			sign = ""
		}
		fmt.Fprintf(&b, "\nBlocks until retarget: %d, estimated time: %s (ETA %s)",
			est.BlocksRemaining, est.Remaining.Round(time.Second),
			est.ETA.UTC().Format("2006-01-02 15:04:05 UTC"))
		fmt.Fprintf(&b, "\nBlock time: %.1fs, window: %s vs expected %s (%s%.2f%%)",
			est.SecondsPerBlock, est.EstimatedWindow.Round(time.Second),
			est.ExpectedWindow.Round(time.Second), sign, est.DeviationPercent)
	} else {
		fmt.Fprintf(&b, "\nBlocks until retarget: %d", w.BlocksRemaining())
	}
	return b.String()
}

// formatDifficulty returns a human-readable difficulty string (e.g. "1.05M").
func formatDifficulty(d float64) string {
	switch {
	case d >= 1_000_000_000_000:
		return fmt.Sprintf("%.2fT", d/1_000_000_000_000)
	case d >= 1_000_000_000:
		return fmt.Sprintf("%.2fG", d/1_000_000_000)
	case d >= 1_000_000:
		return fmt.Sprintf("%.2fM", d/1_000_000)
	case d >= 1_000:
		return fmt.Sprintf("%.2fK", d/1_000)
	default:
		return fmt.Sprintf("%.8g", d)
	}
}
