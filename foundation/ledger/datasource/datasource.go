// Package datasource implements the client for the block explorer proxy API
// that serves the chain data replayed by the simulation.
package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrInvalidResult indicates the API answered but the result field was
// absent, null, or not a block object.
var ErrInvalidResult = errors.New("invalid result in response")

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cipherledger",
	Subsystem: "datasource",
	Name:      "requests_total",
	Help:      "Number of explorer API requests by action and status.",
}, []string{"action", "status"})

// =============================================================================

// RawBlock is a block as delivered on the wire. Numeric fields are
// "0x"-prefixed hexadecimal strings and the transaction list is kept raw so
// a malformed list surfaces downstream instead of failing the whole fetch.
type RawBlock struct {
	Number        string          `json:"number"`
	Size          string          `json:"size"`
	Timestamp     string          `json:"timestamp"`
	BaseFeePerGas string          `json:"baseFeePerGas"`
	Transactions  json.RawMessage `json:"transactions"`
}

// RawTransaction is a transaction as delivered on the wire.
type RawTransaction struct {
	Value string `json:"value"`
	Gas   string `json:"gas"`
}

// envelope is the outer document every proxy API response arrives in.
type envelope struct {
	Result json.RawMessage `json:"result"`
}

// =============================================================================

// Config represents the set of mandatory settings for the client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client provides access to the block explorer proxy API.
type Client struct {
	rc     *resty.Client
	apiKey string
}

// New constructs a client for the configured explorer endpoint.
func New(cfg Config) *Client {
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)

	return &Client{
		rc:     rc,
		apiKey: cfg.APIKey,
	}
}

// LatestBlockNumber returns the number of the current chain head.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	result, err := c.proxy(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, err
	}

	var hex string
	if err := json.Unmarshal(result, &hex); err != nil {
		return 0, errors.WithMessage(ErrInvalidResult, "head number is not a string")
	}

	number, err := hexutil.DecodeUint64(hex)
	if err != nil {
		return 0, errors.WithMessage(err, "parsing head number")
	}

	return number, nil
}

// BlockByNumber returns the block with the specified number, including its
// full transaction objects. A response whose result field is missing or not
// a well-formed object yields ErrInvalidResult.
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*RawBlock, error) {
	result, err := c.proxy(ctx, "eth_getBlockByNumber", map[string]string{
		"tag":     hexutil.EncodeUint64(number),
		"boolean": "true",
	})
	if err != nil {
		return nil, err
	}

	// The proxy reports an unknown or unavailable block as a non-object
	// result rather than an HTTP error.
	trimmed := bytes.TrimSpace(result)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.WithMessagef(ErrInvalidResult, "block %d", number)
	}

	var block RawBlock
	if err := json.Unmarshal(trimmed, &block); err != nil {
		return nil, errors.WithMessagef(ErrInvalidResult, "block %d: %s", number, err)
	}

	return &block, nil
}

// proxy performs a request against the proxy module of the explorer API and
// returns the raw result document.
func (c *Client) proxy(ctx context.Context, action string, params map[string]string) (json.RawMessage, error) {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"module": "proxy",
			"action": action,
			"apikey": c.apiKey,
		}).
		SetQueryParams(params).
		Get("/api")

	if err != nil {
		requestsTotal.WithLabelValues(action, "error").Inc()
		return nil, errors.Wrapf(err, "requesting %s", action)
	}

	if resp.IsError() {
		requestsTotal.WithLabelValues(action, "error").Inc()
		return nil, errors.Errorf("requesting %s: status %d", action, resp.StatusCode())
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		requestsTotal.WithLabelValues(action, "malformed").Inc()
		return nil, errors.Wrapf(err, "decoding %s response", action)
	}

	if len(env.Result) == 0 || bytes.Equal(bytes.TrimSpace(env.Result), []byte("null")) {
		requestsTotal.WithLabelValues(action, "invalid").Inc()
		return nil, errors.WithMessagef(ErrInvalidResult, "%s", action)
	}

	requestsTotal.WithLabelValues(action, "ok").Inc()
	return env.Result, nil
}
