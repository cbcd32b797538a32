package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"sof-orchestrator/internal/observability"
)

func rpcServer(t *testing.T, handler func(method string) (interface{}, *rpcErrorBody)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		result, rpcErr := handler(req.Method)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPClientChainID(t *testing.T) {
	srv := rpcServer(t, func(method string) (interface{}, *rpcErrorBody) {
		if method != "eth_chainId" {
			t.Errorf("method = %q, want eth_chainId", method)
		}
		return "0x7a69", nil
	})
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	chainID, err := c.ChainID(context.Background())
	if err != nil {
		t.Fatalf("ChainID: %v", err)
	}
	if chainID != 31337 {
		t.Errorf("chain id = %d, want 31337", chainID)
	}

	if n := testutil.CollectAndCount(observability.DefaultMetrics.RPCCallLatency); n == 0 {
		t.Error("rpc call did not record latency")
	}
}

func TestHTTPClientRevertNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := rpcServer(t, func(string) (interface{}, *rpcErrorBody) {
		calls.Add(1)
		return nil, &rpcErrorBody{
			Code:    3,
			Message: "execution reverted",
			Data:    json.RawMessage(`"0x1234"`),
		}
	})
	defer srv.Close()

	c := NewHTTPClient(srv.URL, WithMaxRetries(3))
	err := c.Simulate(context.Background(), &TxConfig{
		To: ethtypes.MustNewAddress("0x1111111111111111111111111111111111111111"),
	})

	var revErr *RevertError
	if !errors.As(err, &revErr) {
		t.Fatalf("err = %v, want RevertError", err)
	}
	if len(revErr.Data) != 2 {
		t.Errorf("revert payload = %x, want 2 bytes", revErr.Data)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("node called %d times, reverts must not be retried", got)
	}
}
