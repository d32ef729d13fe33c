package consolidate

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/Klingon-tech/coinrpc-tools/internal/fee"
	klog "github.com/Klingon-tech/coinrpc-tools/internal/log"
)

// ComputeFee returns rate (per 1000 bytes) scaled to size, rounded to the
// nearest base unit.
func ComputeFee(rate btcutil.Amount, size int) btcutil.Amount {
	if rate <= 0 || size <= 0 {
		return 0
	}
	return btcutil.Amount(math.Round(float64(rate) * float64(size) / 1000))
}

// build creates, measures, and signs the transaction for b.
func (e *Engine) build(ctx context.Context, b *Batch, rate btcutil.Amount) (*OutgoingTransaction, error) {
	tx := &OutgoingTransaction{}

	// The dummy pays the full total; it only exists to learn the size.
	if err := e.measure(ctx, b, tx); err != nil {
		return nil, err
	}

	tx.Fee = ComputeFee(rate, tx.Size)
	tx.Receive = b.Total - tx.Fee
	if tx.Receive <= 0 {
		return nil, fmt.Errorf("%w: total %v, fee %v", ErrFeeExceedsAmount, b.Total, tx.Fee)
	}

	unsigned, err := e.node.CreateRawTransaction(ctx, b.Inputs, e.outputs(tx.Receive))
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	tx.UnsignedHex = unsigned

	signed, err := e.sign(ctx, unsigned)
	if err != nil {
		return nil, err
	}
	tx.SignedHex = signed

	summary, err := e.node.DecodeRawTransaction(ctx, unsigned)
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	tx.Summary = summary
	if len(summary.Vout) != 1 {
		return nil, fmt.Errorf("decoded transaction has %d outputs, want 1", len(summary.Vout))
	}
	if got, err := btcutil.NewAmount(summary.Vout[0].Value); err != nil || got != tx.Receive {
		return nil, fmt.Errorf("decoded output value %v does not match %v", summary.Vout[0].Value, tx.Receive)
	}
	return tx, nil
}

// measure builds the dummy transaction and records its size. The size used
// for the fee is the larger of the hex-derived and node-reported sizes plus
// the configured signature padding.
func (e *Engine) measure(ctx context.Context, b *Batch, tx *OutgoingTransaction) error {
	dummy, err := e.node.CreateRawTransaction(ctx, b.Inputs, e.outputs(b.Total))
	if err != nil {
		return fmt.Errorf("create dummy transaction: %w", err)
	}
	raw, err := hex.DecodeString(dummy)
	if err != nil {
		return fmt.Errorf("dummy transaction hex: %w", err)
	}
	tx.HexSize = len(raw)

	// Nodes for coins with a non-Bitcoin serialization still work; only a
	// successfully parsed transaction is checked against the batch.
	var msg wire.MsgTx
	if err := msg.Deserialize(bytes.NewReader(raw)); err != nil {
		klog.Consolidate.Debug().Err(err).Msg("Dummy transaction is not in Bitcoin wire format")
	} else if len(msg.TxIn) != b.Count() {
		return fmt.Errorf("dummy transaction has %d inputs, want %d", len(msg.TxIn), b.Count())
	}

	decoded, err := e.node.DecodeRawTransaction(ctx, dummy)
	if err != nil {
		return fmt.Errorf("decode dummy transaction: %w", err)
	}
	tx.DummySize = int(decoded.Size)

	size := tx.HexSize
	if tx.DummySize > size {
		klog.Consolidate.Debug().Int("hex_size", tx.HexSize).Int("node_size", tx.DummySize).Msg("Node reports a larger size")
		size = tx.DummySize
	}
	tx.Size = size + e.cfg.SignaturePadding
	return nil
}

func (e *Engine) outputs(amount btcutil.Amount) map[string]json.Number {
	return map[string]json.Number{e.cfg.Destination: json.Number(FormatCoins(amount))}
}

// sign signs unsignedHex with the node wallet. A locked wallet is unlocked
// once with the configured passphrase and signing is retried once.
func (e *Engine) sign(ctx context.Context, unsignedHex string) (string, error) {
	res, err := e.node.SignRawTransaction(ctx, unsignedHex)
	if err == nil && !res.Complete && lockedErrors(res.Errors) {
		err = &btcjson.RPCError{Code: btcjson.ErrRPCWalletUnlockNeeded, Message: signErrors(res.Errors)}
	}

	if isWalletLocked(err) {
		if e.cfg.Passphrase == "" {
			return "", ErrWalletLocked
		}
		klog.Consolidate.Info().Dur("timeout", e.cfg.UnlockTimeout).Msg("Wallet locked, unlocking")
		if uerr := e.node.WalletPassphrase(ctx, e.cfg.Passphrase, int64(e.cfg.UnlockTimeout.Seconds())); uerr != nil {
			return "", fmt.Errorf("%w: %v", ErrUnlockFailed, uerr)
		}
		res, err = e.node.SignRawTransaction(ctx, unsignedHex)
		if err != nil {
			return "", fmt.Errorf("sign transaction after unlock: %w", err)
		}
	}
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}
	if !res.Complete {
		return "", fmt.Errorf("sign transaction: incomplete: %s", signErrors(res.Errors))
	}
	return res.Hex, nil
}

func isWalletLocked(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr *btcjson.RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	return rpcErr.Code == btcjson.ErrRPCWalletUnlockNeeded ||
		strings.Contains(rpcErr.Message, "walletpassphrase")
}

func lockedErrors(errs []btcjson.SignRawTransactionError) bool {
	for _, e := range errs {
		if strings.Contains(e.Error, "walletpassphrase") {
			return true
		}
	}
	return false
}

func signErrors(errs []btcjson.SignRawTransactionError) string {
	if len(errs) == 0 {
		return "no signing errors reported"
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, fmt.Sprintf("%s:%d: %s", e.TxID, e.Vout, e.Error))
	}
	return strings.Join(msgs, "; ")
}

// FormatCoins renders an amount in coin units with exactly 8 decimals.
func FormatCoins(a btcutil.Amount) string {
	return fee.FormatCoins(a)
}
