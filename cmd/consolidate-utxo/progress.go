package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/Klingon-tech/coinrpc-tools/internal/consolidate"
)

// printer writes human-readable progress for each batch.
type printer struct {
	w           io.Writer
	sources     string
	destination string
}

func newPrinter(w io.Writer, sources []string, destination string) *printer {
	return &printer{w: w, sources: strings.Join(sources, ","), destination: destination}
}

func (p *printer) BatchStarted(_ int, b *consolidate.Batch, remaining, available int) {
	fmt.Fprintf(p.w, "%d TXs found in address of %d transactions available.\n", remaining, available)
	fmt.Fprintf(p.w, "Sending From: %s  To: %s (%s)\n", p.sources, p.destination, formatAmount(b.Total))
}

func (p *printer) BatchBuilt(_ int, tx *consolidate.OutgoingTransaction) {
	fmt.Fprintf(p.w, "Receiving: %s (%s fee deducted)\n", formatAmount(tx.Receive), formatAmount(tx.Fee))
	txid := ""
	if tx.Summary != nil {
		txid = tx.Summary.Txid
	}
	fmt.Fprintf(p.w, "Unsigned TX ID: %s, Dummy size: %d, Hex size: %d, Fee size: %d\n",
		txid, tx.DummySize, tx.HexSize, tx.Size)
}

func (p *printer) BeforeBroadcast(_ int, pause time.Duration) {
	fmt.Fprintf(p.w, "Ready to send? (ctrl+c to cancel within %s)\n", pause)
}

func (p *printer) BatchDone(res consolidate.BatchResult) {
	if res.Skipped {
		fmt.Fprintf(p.w, "Skipped batch %d: %s\n\n", res.Index+1, res.Reason)
		return
	}
	fmt.Fprintf(p.w, "TX Hash: %s\n\n", res.TxHash)
}

func printSummary(w io.Writer, s *consolidate.Summary, dryRun bool) {
	var total, fees btcutil.Amount
	skipped := 0
	for _, b := range s.Batches {
		if b.Skipped {
			skipped++
			continue
		}
		total += b.Receive
		fees += b.Fee
	}
	verb := "Sent"
	if dryRun {
		verb = "Built (dry run)"
	}
	fmt.Fprintf(w, "%s %d transaction(s): %s received, %s in fees at %s/kB (%s)",
		verb, s.Sent(), formatAmount(total), formatAmount(fees),
		formatAmount(s.FeeRate.PerKB), s.FeeRate.Source)
	if skipped > 0 {
		fmt.Fprintf(w, ", %d skipped", skipped)
	}
	fmt.Fprintln(w)
}

// formatAmount renders an amount with all eight decimals.
func formatAmount(a btcutil.Amount) string {
	return consolidate.FormatCoins(a)
}
