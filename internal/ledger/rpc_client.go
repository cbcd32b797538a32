package ledger

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"

	"sof-orchestrator/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryDelay   = 1 * time.Second
	DefaultMaxDelay     = 10 * time.Second
	DefaultBackoffMult  = 2.0
	DefaultPollInterval = 2 * time.Second
	DefaultWaitTimeout  = 90 * time.Second
)

// HTTPClient implements Client using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint     string
	client       *http.Client
	maxRetries   int
	retryDelay   time.Duration
	maxDelay     time.Duration
	backoffMult  float64
	pollInterval time.Duration
	waitTimeout  time.Duration
	heads        <-chan uint64
	requestID    atomic.Uint64
}

// Compile-time interface check.
var _ Client = (*HTTPClient)(nil)

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithWaitTimeout bounds every confirmation wait.
func WithWaitTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.waitTimeout = d
	}
}

// WithPollInterval sets the receipt polling interval used when no head
// source is configured.
func WithPollInterval(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.pollInterval = d
	}
}

// WithHeadSource wires a new-head notification channel (see HeadSource)
// so confirmation waits poll on new blocks instead of a fixed ticker.
func WithHeadSource(heads <-chan uint64) ClientOption {
	return func(c *HTTPClient) {
		c.heads = heads
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new ledger JSON-RPC client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:     endpoint,
		client:       &http.Client{Timeout: DefaultTimeout},
		maxRetries:   DefaultMaxRetries,
		retryDelay:   DefaultRetryDelay,
		maxDelay:     DefaultMaxDelay,
		backoffMult:  DefaultBackoffMult,
		pollInterval: DefaultPollInterval,
		waitTimeout:  DefaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcErrorBody   `json:"error,omitempty"`
}

// rpcErrorBody represents a JSON-RPC 2.0 error, including the revert
// payload EVM nodes attach under "data".
type rpcErrorBody struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// asError maps the wire error to the tagged error hierarchy. Reverts
// carry their payload so the classifier can decode them.
func (e *rpcErrorBody) asError() error {
	if len(e.Data) > 0 {
		var hexData string
		if err := json.Unmarshal(e.Data, &hexData); err == nil && strings.HasPrefix(hexData, "0x") {
			payload, err := hex.DecodeString(strings.TrimPrefix(hexData, "0x"))
			if err == nil && len(payload) > 0 {
				return &RevertError{Data: ethtypes.HexBytes0xPrefix(payload), Message: e.Message}
			}
		}
	}
	if strings.Contains(strings.ToLower(e.Message), "revert") {
		return &RevertError{Message: e.Message}
	}
	return &RPCError{Code: e.Code, Message: e.Message}
}

// call performs a JSON-RPC call, recording per-method latency and
// errors.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	start := time.Now()
	err := c.doCall(ctx, method, params, result)
	observability.RecordRPCLatency(method, time.Since(start).Seconds(), err)
	return err
}

// doCall performs the wire exchange with retries and exponential
// backoff.
func (c *HTTPClient) doCall(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error.asError()
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// callMsg is the wire shape for eth_call and eth_sendTransaction.
type callMsg struct {
	From  *ethtypes.Address0xHex    `json:"from,omitempty"`
	To    *ethtypes.Address0xHex    `json:"to"`
	Value *ethtypes.HexInteger      `json:"value,omitempty"`
	Data  ethtypes.HexBytes0xPrefix `json:"data,omitempty"`
	Gas   *ethtypes.HexInteger      `json:"gas,omitempty"`
}

func toCallMsg(tx *TxConfig) *callMsg {
	msg := &callMsg{
		From: tx.From,
		To:   tx.To,
		Data: tx.Data,
	}
	if tx.Value != nil && tx.Value.Sign() > 0 {
		msg.Value = (*ethtypes.HexInteger)(tx.Value)
	}
	if tx.GasLimit > 0 {
		msg.Gas = ethtypes.NewHexIntegerU64(tx.GasLimit)
	}
	return msg
}

// ChainID returns the ledger's chain identifier.
func (c *HTTPClient) ChainID(ctx context.Context) (uint64, error) {
	var chainID ethtypes.HexUint64
	if err := c.call(ctx, "eth_chainId", nil, &chainID); err != nil {
		return 0, err
	}
	return uint64(chainID), nil
}

// BlockNumber returns the current head block number.
func (c *HTTPClient) BlockNumber(ctx context.Context) (uint64, error) {
	var blockNumber ethtypes.HexUint64
	if err := c.call(ctx, "eth_blockNumber", nil, &blockNumber); err != nil {
		return 0, err
	}
	return uint64(blockNumber), nil
}

// ReadContract executes a view call and decodes the outputs.
func (c *HTTPClient) ReadContract(ctx context.Context, to *ethtypes.Address0xHex, fn *abi.Entry, args ...interface{}) (*abi.ComponentValue, error) {
	callData, err := fn.EncodeCallDataValues(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s call data: %w", fn.Name, err)
	}

	params := []interface{}{
		&callMsg{To: to, Data: callData},
		"latest",
	}

	var resData ethtypes.HexBytes0xPrefix
	if err := c.call(ctx, "eth_call", params, &resData); err != nil {
		return nil, err
	}

	cv, err := fn.Outputs.DecodeABIDataCtx(ctx, resData, 0)
	if err != nil {
		return nil, fmt.Errorf("decode %s outputs: %w", fn.Name, err)
	}
	return cv, nil
}

// Simulate dry-runs tx via eth_call with the caller's account. A nil
// return means the node predicts success.
func (c *HTTPClient) Simulate(ctx context.Context, tx *TxConfig) error {
	params := []interface{}{toCallMsg(tx), "latest"}
	var resData ethtypes.HexBytes0xPrefix
	return c.call(ctx, "eth_call", params, &resData)
}

// Submit sends tx for execution using the node-managed account keys.
func (c *HTTPClient) Submit(ctx context.Context, tx *TxConfig) (string, error) {
	var txHash string
	if err := c.call(ctx, "eth_sendTransaction", []interface{}{toCallMsg(tx)}, &txHash); err != nil {
		return "", fmt.Errorf("eth_sendTransaction failed: %w", err)
	}
	return txHash, nil
}

// txReceiptJSONRPC is the receipt in the node's wire format.
type txReceiptJSONRPC struct {
	BlockNumber  *ethtypes.HexInteger       `json:"blockNumber"`
	GasUsed      *ethtypes.HexInteger       `json:"gasUsed"`
	Status       *ethtypes.HexInteger       `json:"status"`
	RevertReason *ethtypes.HexBytes0xPrefix `json:"revertReason"`
	Logs         []*logJSONRPC              `json:"logs"`
}

type logJSONRPC struct {
	Address     *ethtypes.Address0xHex      `json:"address"`
	Topics      []ethtypes.HexBytes0xPrefix `json:"topics"`
	Data        ethtypes.HexBytes0xPrefix   `json:"data"`
	BlockNumber *ethtypes.HexInteger        `json:"blockNumber"`
	TxHash      ethtypes.HexBytes0xPrefix   `json:"transactionHash"`
	LogIndex    *ethtypes.HexInteger        `json:"logIndex"`
}

func (l *logJSONRPC) toLog() Log {
	out := Log{
		Address: l.Address,
		Topics:  l.Topics,
		Data:    l.Data,
		TxHash:  l.TxHash.String(),
	}
	if l.BlockNumber != nil {
		out.BlockNumber = l.BlockNumber.BigInt().Uint64()
	}
	if l.LogIndex != nil {
		out.LogIndex = l.LogIndex.BigInt().Uint64()
	}
	return out
}

// TransactionReceipt fetches the receipt for txHash. Returns
// ErrReceiptNotFound while the transaction is unmined.
func (c *HTTPClient) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	var raw *txReceiptJSONRPC
	if err := c.call(ctx, "eth_getTransactionReceipt", []interface{}{txHash}, &raw); err != nil {
		return nil, err
	}
	if raw == nil || raw.BlockNumber == nil {
		return nil, ErrReceiptNotFound
	}

	receipt := &Receipt{
		TxHash:      txHash,
		BlockNumber: raw.BlockNumber.BigInt().Uint64(),
		Success:     raw.Status != nil && raw.Status.BigInt().Sign() > 0,
	}
	if raw.GasUsed != nil {
		receipt.GasUsed = raw.GasUsed.BigInt().Uint64()
	}
	if raw.RevertReason != nil {
		receipt.RevertReason = *raw.RevertReason
	}
	for _, l := range raw.Logs {
		receipt.Logs = append(receipt.Logs, l.toLog())
	}
	return receipt, nil
}

// WaitForConfirmation polls for the receipt until it has the requested
// number of confirmations. The wait is bounded: on timeout the outcome
// is unknown and ErrConfirmationTimeout is returned.
func (c *HTTPClient) WaitForConfirmation(ctx context.Context, txHash string, confirmations int) (*Receipt, error) {
	if confirmations < 1 {
		confirmations = 1
	}

	start := time.Now()
	defer func() {
		observability.DefaultMetrics.ConfirmationWaitDuration.Observe(time.Since(start).Seconds())
	}()

	deadline := time.NewTimer(c.waitTimeout)
	defer deadline.Stop()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.TransactionReceipt(ctx, txHash)
		if err == nil {
			head, hErr := c.BlockNumber(ctx)
			if hErr == nil && head >= receipt.BlockNumber && int(head-receipt.BlockNumber)+1 >= confirmations {
				return receipt, nil
			}
		} else if !errors.Is(err, ErrReceiptNotFound) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("%w: %s", ErrConfirmationTimeout, txHash)
		case <-ticker.C:
		case _, ok := <-c.heads:
			if !ok {
				c.heads = nil
			}
		}
	}
}

// logsFilter is the wire shape for eth_getLogs.
type logsFilter struct {
	Address   *ethtypes.Address0xHex      `json:"address"`
	Topics    [][]ethtypes.HexBytes0xPrefix `json:"topics,omitempty"`
	FromBlock string                      `json:"fromBlock"`
	ToBlock   string                      `json:"toBlock"`
}

// GetLogs returns event records matching the event's signature hash.
func (c *HTTPClient) GetLogs(ctx context.Context, address *ethtypes.Address0xHex, event *abi.Entry, fromBlock, toBlock uint64) ([]Log, error) {
	topic0 := ethtypes.HexBytes0xPrefix(event.SignatureHashBytes())
	filter := &logsFilter{
		Address:   address,
		Topics:    [][]ethtypes.HexBytes0xPrefix{{topic0}},
		FromBlock: "0x" + strconv.FormatUint(fromBlock, 16),
		ToBlock:   "0x" + strconv.FormatUint(toBlock, 16),
	}
	if toBlock == 0 {
		filter.ToBlock = "latest"
	}

	var raw []*logJSONRPC
	if err := c.call(ctx, "eth_getLogs", []interface{}{filter}, &raw); err != nil {
		return nil, err
	}

	logs := make([]Log, 0, len(raw))
	for _, l := range raw {
		logs = append(logs, l.toLog())
	}
	return logs, nil
}
