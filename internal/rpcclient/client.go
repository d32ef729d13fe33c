// Package rpcclient provides a JSON-RPC client for Bitcoin-Core-style coin
// daemons.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcjson"

	klog "github.com/Klingon-tech/coinrpc-tools/internal/log"
)

// DefaultTimeout is the socket timeout applied to every call.
const DefaultTimeout = 320 * time.Second

// ErrUnauthorized is returned when the node rejects the RPC credentials.
var ErrUnauthorized = errors.New("rpc credentials rejected by node")

// Client is a JSON-RPC 1.0 HTTP client with basic auth.
type Client struct {
	endpoint string
	user     string
	pass     string
	http     *http.Client
	nextID   atomic.Uint64

	// legacySign is set once the node reports that
	// signrawtransactionwithwallet does not exist.
	legacySign atomic.Bool
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithWallet routes calls to /wallet/<name> on multiwallet nodes.
func WithWallet(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.endpoint = c.endpoint + "wallet/" + url.PathEscape(name)
		}
	}
}

// New creates a new RPC client for the node at host:port.
func New(host string, port int, user, pass string, opts ...Option) *Client {
	c := &Client{
		endpoint: fmt.Sprintf("http://%s:%d/", host, port),
		user:     user,
		pass:     pass,
		http: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the URL calls are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// request is a JSON-RPC 1.0 request.
type request struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      uint64        `json:"id"`
}

// response is a JSON-RPC 1.0 response.
type response struct {
	Result json.RawMessage   `json:"result"`
	Error  *btcjson.RPCError `json:"error"`
	ID     uint64            `json:"id"`
}

// Call invokes a JSON-RPC method and unmarshals the result into the provided pointer.
// If result is nil, the response result is discarded. Node-side failures are
// returned as *btcjson.RPCError.
func (c *Client) Call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	defer klog.Benchmark(method)()

	if params == nil {
		params = []interface{}{}
	}
	req := request{
		JSONRPC: "1.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.user, c.pass)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// Bitcoin Core answers errors with HTTP 500 and a JSON body, so the
	// status code alone is not an error.
	var rpcResp response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("http status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
		}
		return fmt.Errorf("decode response: %w", err)
	}

	if rpcResp.Error != nil {
		klog.RPC.Debug().
			Str("method", method).
			Int("code", int(rpcResp.Error.Code)).
			Str("message", rpcResp.Error.Message).
			Msg("rpc error")
		return rpcResp.Error
	}

	if result != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}

	return nil
}

// IsCode reports whether err is a node error with the given code.
func IsCode(err error, code btcjson.RPCErrorCode) bool {
	var rpcErr *btcjson.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code == code
	}
	return false
}
