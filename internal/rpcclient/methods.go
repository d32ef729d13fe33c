package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	klog "github.com/Klingon-tech/coinrpc-tools/internal/log"
)

// RawFeeResult is the subset of estimaterawfee the tools consume.
type RawFeeResult struct {
	Short  *RawFeeHorizon `json:"short,omitempty"`
	Medium *RawFeeHorizon `json:"medium,omitempty"`
	Long   *RawFeeHorizon `json:"long,omitempty"`
}

// RawFeeHorizon is one horizon of an estimaterawfee answer.
type RawFeeHorizon struct {
	FeeRate *float64 `json:"feerate,omitempty"`
	Decay   float64  `json:"decay"`
	Scale   int64    `json:"scale"`
	Errors  []string `json:"errors,omitempty"`
}

// ListUnspent returns wallet UTXOs with confirmations in [minConf, maxConf].
func (c *Client) ListUnspent(ctx context.Context, minConf, maxConf int64) ([]btcjson.ListUnspentResult, error) {
	var res []btcjson.ListUnspentResult
	if err := c.Call(ctx, "listunspent", []interface{}{minConf, maxConf}, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// CreateRawTransaction builds an unsigned transaction and returns its hex.
// Output amounts are passed as JSON numbers in coin units.
func (c *Client) CreateRawTransaction(ctx context.Context, inputs []btcjson.TransactionInput, outputs map[string]json.Number) (string, error) {
	var hexTx string
	if err := c.Call(ctx, "createrawtransaction", []interface{}{inputs, outputs}, &hexTx); err != nil {
		return "", err
	}
	return hexTx, nil
}

// DecodeRawTransaction decodes a transaction hex on the node.
func (c *Client) DecodeRawTransaction(ctx context.Context, hexTx string) (*btcjson.TxRawResult, error) {
	var res btcjson.TxRawResult
	if err := c.Call(ctx, "decoderawtransaction", []interface{}{hexTx}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SignRawTransaction signs a transaction with the node's wallet. Nodes that
// predate signrawtransactionwithwallet are served by the legacy
// signrawtransaction call; the choice is remembered for later calls.
func (c *Client) SignRawTransaction(ctx context.Context, hexTx string) (*btcjson.SignRawTransactionResult, error) {
	var res btcjson.SignRawTransactionResult
	if !c.legacySign.Load() {
		err := c.Call(ctx, "signrawtransactionwithwallet", []interface{}{hexTx}, &res)
		if err == nil {
			return &res, nil
		}
		if !IsCode(err, btcjson.ErrRPCMethodNotFound.Code) {
			return nil, err
		}
		klog.RPC.Debug().Msg("signrawtransactionwithwallet unavailable, using signrawtransaction")
		c.legacySign.Store(true)
	}
	if err := c.Call(ctx, "signrawtransaction", []interface{}{hexTx}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SendRawTransaction broadcasts a signed transaction and returns its hash.
func (c *Client) SendRawTransaction(ctx context.Context, hexTx string) (*chainhash.Hash, error) {
	var txid string
	if err := c.Call(ctx, "sendrawtransaction", []interface{}{hexTx}, &txid); err != nil {
		return nil, err
	}
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, fmt.Errorf("invalid txid %q from node: %w", txid, err)
	}
	return hash, nil
}

// EstimateSmartFee calls estimatesmartfee for the given confirmation target.
func (c *Client) EstimateSmartFee(ctx context.Context, confTarget int64) (*btcjson.EstimateSmartFeeResult, error) {
	var res btcjson.EstimateSmartFeeResult
	if err := c.Call(ctx, "estimatesmartfee", []interface{}{confTarget}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// EstimateRawFee calls estimaterawfee for the given confirmation target.
func (c *Client) EstimateRawFee(ctx context.Context, confTarget int64) (*RawFeeResult, error) {
	var res RawFeeResult
	if err := c.Call(ctx, "estimaterawfee", []interface{}{confTarget}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// WalletPassphrase unlocks the wallet for timeoutSecs seconds.
func (c *Client) WalletPassphrase(ctx context.Context, passphrase string, timeoutSecs int64) error {
	return c.Call(ctx, "walletpassphrase", []interface{}{passphrase, timeoutSecs}, nil)
}

// GetBestBlockHash returns the hash of the chain tip.
func (c *Client) GetBestBlockHash(ctx context.Context) (*chainhash.Hash, error) {
	var hash string
	if err := c.Call(ctx, "getbestblockhash", nil, &hash); err != nil {
		return nil, err
	}
	h, err := chainhash.NewHashFromStr(hash)
	if err != nil {
		return nil, fmt.Errorf("invalid block hash %q from node: %w", hash, err)
	}
	return h, nil
}

// GetBlock returns the verbose header data of a block.
func (c *Client) GetBlock(ctx context.Context, hash string) (*btcjson.GetBlockVerboseResult, error) {
	var res btcjson.GetBlockVerboseResult
	if err := c.Call(ctx, "getblock", []interface{}{hash}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetNetworkHashPS returns the estimated network hashes per second.
func (c *Client) GetNetworkHashPS(ctx context.Context) (float64, error) {
	var hps float64
	if err := c.Call(ctx, "getnetworkhashps", nil, &hps); err != nil {
		return 0, err
	}
	return hps, nil
}
