package drift

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	appconfig "driftbook/config"
	"driftbook/logger"
)

// ErrAccountNotFound reports that the queried address holds no account.
var ErrAccountNotFound = errors.New("account not found")

// Client is a minimal JSON-RPC client against the ledger node. All requests
// share one pooled transport and one token-bucket rate limiter.
type Client struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	log      *logger.Log
	nextID   uint64
}

func NewClient(cfg appconfig.RPCConfig) *Client {
	transport := &http.Transport{
		MaxIdleConns:        cfg.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost:     cfg.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     cfg.ConnectionPool.IdleConnTimeout,
	}

	var limiter *rate.Limiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		burst := cfg.RateLimit.BurstSize
		if burst <= 0 {
			burst = cfg.RateLimit.RequestsPerSecond
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), burst)
	}

	log := logger.GetLogger()
	log.WithComponent("rpc_client").WithFields(logger.Fields{
		"endpoint":           cfg.URL,
		"timeout":            cfg.Timeout.String(),
		"max_conns_per_host": cfg.ConnectionPool.MaxConnsPerHost,
	}).Info("rpc client initialized")

	return &Client{
		endpoint: cfg.URL,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		limiter: limiter,
		log:     log,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rpc rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      atomic.AddUint64(&c.nextID, 1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	logger.LogPerformanceEntry(c.log.WithComponent("rpc_client"), "rpc_client", method, time.Since(start), nil)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc %s: unexpected status %d", method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode rpc %s response: %w", method, err)
	}
	logger.IncrementRPCCall(len(rpcResp.Result))

	if rpcResp.Error != nil {
		return fmt.Errorf("rpc %s: %s (code %d)", method, rpcResp.Error.Message, rpcResp.Error.Code)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("unmarshal rpc %s result: %w", method, err)
		}
	}
	return nil
}

// GetSlot returns the current confirmed slot.
func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	params := []any{map[string]any{"commitment": "confirmed"}}
	if err := c.call(ctx, "getSlot", params, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

type accountValue struct {
	Data  []string `json:"data"` // [payload, encoding]
	Owner string   `json:"owner"`
}

type accountInfoResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value *accountValue `json:"value"`
}

// GetAccountInfo fetches one account's raw data. Returns ErrAccountNotFound
// when the address holds no account.
func (c *Client) GetAccountInfo(ctx context.Context, address string) ([]byte, uint64, error) {
	var result accountInfoResult
	params := []any{address, map[string]any{"encoding": "base64", "commitment": "confirmed"}}
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, 0, err
	}
	if result.Value == nil {
		return nil, 0, fmt.Errorf("%s: %w", address, ErrAccountNotFound)
	}
	data, err := decodeAccountData(result.Value.Data)
	if err != nil {
		return nil, 0, fmt.Errorf("account %s: %w", address, err)
	}
	return data, result.Context.Slot, nil
}

type programAccountEntry struct {
	Pubkey  string       `json:"pubkey"`
	Account accountValue `json:"account"`
}

// ProgramAccount is one account owned by a program.
type ProgramAccount struct {
	Pubkey string
	Data   []byte
}

// GetProgramAccounts fetches all accounts of the program whose data length
// matches dataSize (0 disables the filter).
func (c *Client) GetProgramAccounts(ctx context.Context, programID string, dataSize uint64) ([]ProgramAccount, error) {
	opts := map[string]any{"encoding": "base64", "commitment": "confirmed"}
	if dataSize > 0 {
		opts["filters"] = []any{map[string]any{"dataSize": dataSize}}
	}

	var entries []programAccountEntry
	if err := c.call(ctx, "getProgramAccounts", []any{programID, opts}, &entries); err != nil {
		return nil, err
	}

	accounts := make([]ProgramAccount, 0, len(entries))
	for _, entry := range entries {
		data, err := decodeAccountData(entry.Account.Data)
		if err != nil {
			c.log.WithComponent("rpc_client").WithError(err).WithFields(logger.Fields{
				"pubkey": entry.Pubkey,
			}).Warn("skipping account with undecodable data")
			continue
		}
		accounts = append(accounts, ProgramAccount{Pubkey: entry.Pubkey, Data: data})
	}
	return accounts, nil
}

func decodeAccountData(field []string) ([]byte, error) {
	if len(field) < 1 {
		return nil, fmt.Errorf("empty account data field")
	}
	if len(field) >= 2 && field[1] != "base64" {
		return nil, fmt.Errorf("unsupported account encoding %q", field[1])
	}
	data, err := base64.StdEncoding.DecodeString(field[0])
	if err != nil {
		return nil, fmt.Errorf("decode account data: %w", err)
	}
	return data, nil
}
