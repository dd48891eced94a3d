package solana

import "encoding/json"

// rpcRequest is a single JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// rpcError is the error member of a JSON-RPC response.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return e.Message
}

// rpcResponse is a single JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// accountValue is the "value" member of getAccountInfo responses. Data is a
// [payload, encoding] pair when base64 encoding is requested.
type accountValue struct {
	Data     []string `json:"data"`
	Owner    string   `json:"owner"`
	Lamports uint64   `json:"lamports"`
}

type accountInfoResult struct {
	Value *accountValue `json:"value"`
}

// programAccount is one entry of a getProgramAccounts response.
type programAccount struct {
	Pubkey  string       `json:"pubkey"`
	Account accountValue `json:"account"`
}

// KeyedAccount pairs an account address with its decoded data bytes.
type KeyedAccount struct {
	Address string
	Data    []byte
}

// Blockhash is the fee context for a transaction: the recent blockhash to
// embed plus the bound of its validity window.
type Blockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

type blockhashResult struct {
	Value Blockhash `json:"value"`
}

// signatureStatus is one entry of a getSignatureStatuses response.
type signatureStatus struct {
	ConfirmationStatus string          `json:"confirmationStatus"`
	Err                json.RawMessage `json:"err"`
}

type signatureStatusesResult struct {
	Value []*signatureStatus `json:"value"`
}

// memcmpFilter matches accounts whose data at Offset equals the
// base58-encoded Bytes.
type memcmpFilter struct {
	Memcmp struct {
		Offset int    `json:"offset"`
		Bytes  string `json:"bytes"`
	} `json:"memcmp"`
}
