package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mr-tron/base58"

	"github.com/swivlabs/swivd/internal/domain"
)

// confirmPollInterval is how often ConfirmTransaction re-checks signature
// status while waiting.
const confirmPollInterval = 2 * time.Second

// Client is an HTTP JSON-RPC client for a Solana node. It is stateless apart
// from the request id counter; all chain state lives on the node.
type Client struct {
	endpoint   string
	httpClient *http.Client
	nextID     atomic.Uint64
}

// NewClient creates a Client for the given RPC endpoint, e.g.
// "https://api.mainnet-beta.solana.com".
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// call performs one JSON-RPC request and unmarshals the result into out.
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("solana: marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("solana: create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("solana: %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("solana: read %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("solana: %s: unexpected status %d: %s", method, resp.StatusCode, truncate(body, 256))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return fmt.Errorf("solana: decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("solana: %s: rpc error %d: %w", method, rpcResp.Error.Code, rpcResp.Error)
	}

	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("solana: decode %s result: %w", method, err)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// GetAccountInfo fetches the raw data of a single account. It returns
// domain.ErrNotFound when the account does not exist.
func (c *Client) GetAccountInfo(ctx context.Context, address string) ([]byte, error) {
	params := []any{
		address,
		map[string]any{"encoding": "base64", "commitment": "confirmed"},
	}

	var result accountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, fmt.Errorf("solana: account %s: %w", address, domain.ErrNotFound)
	}
	return decodeAccountData(result.Value.Data, address)
}

// GetProgramAccounts fetches all accounts owned by programID whose data
// starts with the given discriminator.
func (c *Client) GetProgramAccounts(ctx context.Context, programID string, discriminator []byte) ([]KeyedAccount, error) {
	var filter memcmpFilter
	filter.Memcmp.Offset = 0
	filter.Memcmp.Bytes = base58.Encode(discriminator)

	params := []any{
		programID,
		map[string]any{
			"encoding":   "base64",
			"commitment": "confirmed",
			"filters":    []any{filter},
		},
	}

	var raw []programAccount
	if err := c.call(ctx, "getProgramAccounts", params, &raw); err != nil {
		return nil, err
	}

	accounts := make([]KeyedAccount, 0, len(raw))
	for _, pa := range raw {
		data, err := decodeAccountData(pa.Account.Data, pa.Pubkey)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, KeyedAccount{Address: pa.Pubkey, Data: data})
	}
	return accounts, nil
}

func decodeAccountData(pair []string, address string) ([]byte, error) {
	if len(pair) == 0 {
		return nil, fmt.Errorf("solana: account %s: empty data field", address)
	}
	data, err := base64.StdEncoding.DecodeString(pair[0])
	if err != nil {
		return nil, fmt.Errorf("solana: account %s: decode data: %w", address, err)
	}
	return data, nil
}

// GetLatestBlockhash fetches a fresh fee context for transaction building.
func (c *Client) GetLatestBlockhash(ctx context.Context) (Blockhash, error) {
	params := []any{map[string]any{"commitment": "confirmed"}}

	var result blockhashResult
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return Blockhash{}, err
	}
	return result.Value, nil
}

// GetBlockHeight returns the node's current block height at confirmed
// commitment.
func (c *Client) GetBlockHeight(ctx context.Context) (uint64, error) {
	params := []any{map[string]any{"commitment": "confirmed"}}

	var height uint64
	if err := c.call(ctx, "getBlockHeight", params, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// SendTransaction submits a signed, serialized transaction. Preflight
// simulation failures that indicate an instruction error are surfaced as
// domain.ErrTxReverted so callers can distinguish them from transport
// failures.
func (c *Client) SendTransaction(ctx context.Context, signedTx []byte, maxRetries int) (string, error) {
	params := []any{
		base64.StdEncoding.EncodeToString(signedTx),
		map[string]any{
			"encoding":            "base64",
			"maxRetries":          maxRetries,
			"preflightCommitment": "confirmed",
		},
	}

	var signature string
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		if isExecutionError(err) {
			return "", fmt.Errorf("%w: %v", domain.ErrTxReverted, err)
		}
		return "", err
	}
	return signature, nil
}

// isExecutionError recognises RPC errors caused by on-chain program
// execution rather than transport or node trouble.
func isExecutionError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "InstructionError") ||
		strings.Contains(msg, "custom program error") ||
		strings.Contains(msg, "Transaction simulation failed")
}

// ConfirmTransaction blocks until the signature reaches confirmed commitment,
// the blockhash validity window expires, or the context is cancelled. Expiry
// and cancellation both return domain.ErrAmbiguousConfirmation: the
// transaction may still have landed, so callers must re-check account state
// before retrying. A status carrying an execution error returns
// domain.ErrTxReverted.
func (c *Client) ConfirmTransaction(ctx context.Context, signature string, lastValidBlockHeight uint64) error {
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		var result signatureStatusesResult
		err := c.call(ctx, "getSignatureStatuses", []any{[]string{signature}}, &result)
		if err == nil && len(result.Value) > 0 && result.Value[0] != nil {
			st := result.Value[0]
			if len(st.Err) > 0 && string(st.Err) != "null" {
				return fmt.Errorf("solana: tx %s: %w", signature, domain.ErrTxReverted)
			}
			if st.ConfirmationStatus == "confirmed" || st.ConfirmationStatus == "finalized" {
				return nil
			}
		}

		height, heightErr := c.GetBlockHeight(ctx)
		if heightErr == nil && height > lastValidBlockHeight {
			return fmt.Errorf("solana: tx %s: blockhash expired: %w", signature, domain.ErrAmbiguousConfirmation)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("solana: tx %s: %w", signature, domain.ErrAmbiguousConfirmation)
		case <-ticker.C:
		}
	}
}
