package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/jarcoal/httpmock"

	klog "github.com/Klingon-tech/coinrpc-tools/internal/log"
)

const testEndpoint = "http://127.0.0.1:9662/"

// nodeMock routes JSON-RPC calls by method name.
type nodeMock struct {
	t        *testing.T
	handlers map[string]func(params []json.RawMessage) (interface{}, *btcjson.RPCError)
	calls    []string
}

func (m *nodeMock) respond(req *http.Request) (*http.Response, error) {
	user, pass, ok := req.BasicAuth()
	if !ok || user != "user" || pass != "pass" {
		return httpmock.NewStringResponse(http.StatusUnauthorized, ""), nil
	}

	var body struct {
		JSONRPC string            `json:"jsonrpc"`
		Method  string            `json:"method"`
		Params  []json.RawMessage `json:"params"`
		ID      uint64            `json:"id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		m.t.Fatalf("decode request: %v", err)
	}
	m.calls = append(m.calls, body.Method)

	h, ok := m.handlers[body.Method]
	if !ok {
		return httpmock.NewJsonResponse(http.StatusNotFound, map[string]interface{}{
			"result": nil,
			"error":  btcjson.ErrRPCMethodNotFound,
			"id":     body.ID,
		})
	}
	result, rpcErr := h(body.Params)
	status := http.StatusOK
	if rpcErr != nil {
		status = http.StatusInternalServerError
	}
	return httpmock.NewJsonResponse(status, map[string]interface{}{
		"result": result,
		"error":  rpcErr,
		"id":     body.ID,
	})
}

func setupMock(t *testing.T, user, pass string) (*Client, *nodeMock) {
	t.Helper()
	klog.Init("error", false, "")

	mock := &nodeMock{t: t, handlers: make(map[string]func([]json.RawMessage) (interface{}, *btcjson.RPCError))}
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("POST", testEndpoint, mock.respond)

	client := New("127.0.0.1", 9662, user, pass, WithHTTPClient(&http.Client{Transport: transport}))
	return client, mock
}

func TestClient_ListUnspent(t *testing.T) {
	client, mock := setupMock(t, "user", "pass")
	mock.handlers["listunspent"] = func(params []json.RawMessage) (interface{}, *btcjson.RPCError) {
		if len(params) != 2 || string(params[0]) != "100" || string(params[1]) != "99999999" {
			t.Errorf("listunspent params = %s", params)
		}
		return []map[string]interface{}{
			{"txid": "aa", "vout": 1, "address": "RA", "amount": 1.5, "confirmations": 120},
		}, nil
	}

	utxos, err := client.ListUnspent(context.Background(), 100, 99999999)
	if err != nil {
		t.Fatalf("ListUnspent: %v", err)
	}
	if len(utxos) != 1 {
		t.Fatalf("got %d utxos, want 1", len(utxos))
	}
	if utxos[0].TxID != "aa" || utxos[0].Vout != 1 || utxos[0].Amount != 1.5 {
		t.Errorf("unexpected utxo: %+v", utxos[0])
	}
}

func TestClient_Unauthorized(t *testing.T) {
	client, _ := setupMock(t, "user", "wrong")

	_, err := client.GetNetworkHashPS(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestClient_RPCError(t *testing.T) {
	client, mock := setupMock(t, "user", "pass")
	mock.handlers["sendrawtransaction"] = func([]json.RawMessage) (interface{}, *btcjson.RPCError) {
		return nil, &btcjson.RPCError{Code: -26, Message: "min relay fee not met"}
	}

	_, err := client.SendRawTransaction(context.Background(), "00")
	if err == nil {
		t.Fatal("expected error")
	}
	var rpcErr *btcjson.RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *btcjson.RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != -26 {
		t.Errorf("code = %d, want -26", rpcErr.Code)
	}
	if !IsCode(err, -26) {
		t.Error("IsCode(-26) = false")
	}
}

func TestClient_SendRawTransaction_ValidatesHash(t *testing.T) {
	client, mock := setupMock(t, "user", "pass")
	mock.handlers["sendrawtransaction"] = func([]json.RawMessage) (interface{}, *btcjson.RPCError) {
		return "not-a-hash", nil
	}

	if _, err := client.SendRawTransaction(context.Background(), "00"); err == nil {
		t.Fatal("expected error for malformed txid")
	}

	want := "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"
	mock.handlers["sendrawtransaction"] = func([]json.RawMessage) (interface{}, *btcjson.RPCError) {
		return want, nil
	}
	hash, err := client.SendRawTransaction(context.Background(), "00")
	if err != nil {
		t.Fatalf("SendRawTransaction: %v", err)
	}
	if hash.String() != want {
		t.Errorf("hash = %s, want %s", hash, want)
	}
}

func TestClient_SignRawTransaction_LegacyFallback(t *testing.T) {
	client, mock := setupMock(t, "user", "pass")
	mock.handlers["signrawtransaction"] = func([]json.RawMessage) (interface{}, *btcjson.RPCError) {
		return map[string]interface{}{"hex": "beef", "complete": true}, nil
	}

	for i := 0; i < 2; i++ {
		res, err := client.SignRawTransaction(context.Background(), "dead")
		if err != nil {
			t.Fatalf("SignRawTransaction: %v", err)
		}
		if res.Hex != "beef" || !res.Complete {
			t.Errorf("unexpected result: %+v", res)
		}
	}

	want := []string{"signrawtransactionwithwallet", "signrawtransaction", "signrawtransaction"}
	if len(mock.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", mock.calls, want)
	}
	for i := range want {
		if mock.calls[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, mock.calls[i], want[i])
		}
	}
}

func TestClient_SignRawTransaction_WalletLocked(t *testing.T) {
	client, mock := setupMock(t, "user", "pass")
	mock.handlers["signrawtransactionwithwallet"] = func([]json.RawMessage) (interface{}, *btcjson.RPCError) {
		return nil, &btcjson.RPCError{Code: btcjson.ErrRPCWalletUnlockNeeded, Message: "Please enter the wallet passphrase with walletpassphrase first."}
	}

	_, err := client.SignRawTransaction(context.Background(), "dead")
	if !IsCode(err, btcjson.ErrRPCWalletUnlockNeeded) {
		t.Fatalf("err = %v, want wallet unlock needed", err)
	}
	if len(mock.calls) != 1 {
		t.Errorf("calls = %v, want exactly one sign call", mock.calls)
	}
}

func TestClient_EstimateRawFee(t *testing.T) {
	client, mock := setupMock(t, "user", "pass")
	mock.handlers["estimaterawfee"] = func([]json.RawMessage) (interface{}, *btcjson.RPCError) {
		return map[string]interface{}{
			"long": map[string]interface{}{"feerate": 0.0002, "decay": 0.99931, "scale": 24},
		}, nil
	}

	res, err := client.EstimateRawFee(context.Background(), 100)
	if err != nil {
		t.Fatalf("EstimateRawFee: %v", err)
	}
	if res.Long == nil || res.Long.FeeRate == nil || *res.Long.FeeRate != 0.0002 {
		t.Fatalf("unexpected long horizon: %+v", res.Long)
	}
	if res.Short != nil {
		t.Errorf("short horizon should be absent")
	}
}

func TestClient_GetBlock(t *testing.T) {
	client, mock := setupMock(t, "user", "pass")
	mock.handlers["getblock"] = func(params []json.RawMessage) (interface{}, *btcjson.RPCError) {
		return map[string]interface{}{
			"hash":              "00ab",
			"height":            105,
			"difficulty":        1234.5,
			"previousblockhash": "00aa",
		}, nil
	}

	blk, err := client.GetBlock(context.Background(), "00ab")
	if err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
	if blk.Height != 105 || blk.Difficulty != 1234.5 || blk.PreviousHash != "00aa" {
		t.Errorf("unexpected block: %+v", blk)
	}
}

func TestClient_WithWallet(t *testing.T) {
	c := New("10.0.0.1", 8332, "u", "p", WithWallet("cold storage"))
	if got, want := c.Endpoint(), "http://10.0.0.1:8332/wallet/cold%20storage"; got != want {
		t.Errorf("endpoint = %q, want %q", got, want)
	}
}

func TestClient_Call_InvalidEndpoint(t *testing.T) {
	client := New("127.0.0.1", 1, "user", "pass") // nothing listens on port 1

	if _, err := client.GetBestBlockHash(context.Background()); err == nil {
		t.Fatal("expected connection error")
	}
}
