package drift

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appconfig "driftbook/config"
)

type rpcHandler func(method string, params []json.RawMessage) (any, *rpcError)

// newFakeRPC runs an httptest server speaking the JSON-RPC shape the ledger
// node uses and returns a client pointed at it.
func newFakeRPC(t *testing.T, handle rpcHandler) *Client {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			JSONRPC string            `json:"jsonrpc"`
			ID      uint64            `json:"id"`
			Method  string            `json:"method"`
			Params  []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad rpc request body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.JSONRPC != "2.0" {
			t.Errorf("expected jsonrpc 2.0, got %q", req.JSONRPC)
		}

		result, rpcErr := handle(req.Method, req.Params)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode rpc response: %v", err)
		}
	}))
	t.Cleanup(server.Close)

	return NewClient(appconfig.RPCConfig{
		URL:     server.URL,
		Timeout: 5 * time.Second,
	})
}

func encodedAccount(data []byte) map[string]any {
	return map[string]any{
		"data":  []string{base64.StdEncoding.EncodeToString(data), "base64"},
		"owner": "program",
	}
}

func TestGetSlot(t *testing.T) {
	client := newFakeRPC(t, func(method string, params []json.RawMessage) (any, *rpcError) {
		if method != "getSlot" {
			t.Errorf("unexpected method %q", method)
		}
		return uint64(123456), nil
	})

	slot, err := client.GetSlot(context.Background())
	if err != nil {
		t.Fatalf("getSlot failed: %v", err)
	}
	if slot != 123456 {
		t.Errorf("expected slot 123456, got %d", slot)
	}
}

func TestGetAccountInfo(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	client := newFakeRPC(t, func(method string, params []json.RawMessage) (any, *rpcError) {
		if method != "getAccountInfo" {
			t.Errorf("unexpected method %q", method)
		}
		var address string
		if err := json.Unmarshal(params[0], &address); err != nil || address != "oracleAddr" {
			t.Errorf("unexpected address param: %s", params[0])
		}
		return map[string]any{
			"context": map[string]any{"slot": 777},
			"value":   encodedAccount(payload),
		}, nil
	})

	data, slot, err := client.GetAccountInfo(context.Background(), "oracleAddr")
	if err != nil {
		t.Fatalf("getAccountInfo failed: %v", err)
	}
	if slot != 777 {
		t.Errorf("expected context slot 777, got %d", slot)
	}
	if string(data) != string(payload) {
		t.Errorf("expected payload %v, got %v", payload, data)
	}
}

func TestGetAccountInfoNotFound(t *testing.T) {
	client := newFakeRPC(t, func(method string, params []json.RawMessage) (any, *rpcError) {
		return map[string]any{
			"context": map[string]any{"slot": 777},
			"value":   nil,
		}, nil
	})

	_, _, err := client.GetAccountInfo(context.Background(), "missing")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestGetProgramAccountsDataSizeFilter(t *testing.T) {
	client := newFakeRPC(t, func(method string, params []json.RawMessage) (any, *rpcError) {
		if method != "getProgramAccounts" {
			t.Errorf("unexpected method %q", method)
		}
		var opts struct {
			Encoding string `json:"encoding"`
			Filters  []struct {
				DataSize uint64 `json:"dataSize"`
			} `json:"filters"`
		}
		if err := json.Unmarshal(params[1], &opts); err != nil {
			t.Fatalf("bad opts param: %v", err)
		}
		if opts.Encoding != "base64" {
			t.Errorf("expected base64 encoding, got %q", opts.Encoding)
		}
		if len(opts.Filters) != 1 || opts.Filters[0].DataSize != 80 {
			t.Errorf("expected dataSize filter 80, got %+v", opts.Filters)
		}
		return []any{
			map[string]any{"pubkey": "acct1", "account": encodedAccount([]byte{1})},
			map[string]any{"pubkey": "acct2", "account": encodedAccount([]byte{2})},
		}, nil
	})

	accounts, err := client.GetProgramAccounts(context.Background(), "programID", 80)
	if err != nil {
		t.Fatalf("getProgramAccounts failed: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].Pubkey != "acct1" || accounts[1].Pubkey != "acct2" {
		t.Errorf("pubkeys mismatch: %+v", accounts)
	}
}

func TestGetProgramAccountsSkipsUndecodable(t *testing.T) {
	client := newFakeRPC(t, func(method string, params []json.RawMessage) (any, *rpcError) {
		return []any{
			map[string]any{"pubkey": "bad", "account": map[string]any{"data": []string{"!!!not base64!!!", "base64"}}},
			map[string]any{"pubkey": "good", "account": encodedAccount([]byte{7})},
		}, nil
	})

	accounts, err := client.GetProgramAccounts(context.Background(), "programID", 0)
	if err != nil {
		t.Fatalf("getProgramAccounts failed: %v", err)
	}
	if len(accounts) != 1 || accounts[0].Pubkey != "good" {
		t.Errorf("expected only the decodable account, got %+v", accounts)
	}
}

func TestRPCErrorResponse(t *testing.T) {
	client := newFakeRPC(t, func(method string, params []json.RawMessage) (any, *rpcError) {
		return nil, &rpcError{Code: -32005, Message: "node is behind"}
	})

	_, err := client.GetSlot(context.Background())
	if err == nil {
		t.Fatal("expected rpc error")
	}
}

func TestDecodeAccountDataRejectsUnknownEncoding(t *testing.T) {
	if _, err := decodeAccountData([]string{"AAAA", "base58"}); err == nil {
		t.Error("expected error for unsupported encoding")
	}
}
