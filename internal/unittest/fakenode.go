package unittest

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/thep2p/go-web3-core/internal/provider"
)

// FakeNode is an in-memory node answering the JSON-RPC methods the client core uses.
// It is safe for concurrent use.
//
// Filters queue entries as they are emitted and hand them out on the next
// eth_getFilterChanges. With SetRedeliver, every poll returns all entries since
// the filter was installed, as a node replaying its history would.
type FakeNode struct {
	mu sync.Mutex

	networkID   *big.Int
	gasPrice    *big.Int
	gasEstimate uint64
	gasLimit    uint64
	extraData   []byte
	blockNumber uint64
	blockHashes []common.Hash

	nonces       map[common.Address]uint64
	transactions map[common.Hash]map[string]any
	receipts     map[common.Hash]*types.Receipt
	receiptDelay map[common.Hash]int
	logs         []types.Log
	raw          [][]byte

	filters    map[string]*fakeFilter
	nextFilter uint64
	redeliver  bool

	calls    map[string]int
	failures map[string][]error
}

var _ provider.Provider = (*FakeNode)(nil)

type fakeFilterKind int

const (
	fakeLogFilter fakeFilterKind = iota
	fakeBlockFilter
	fakePendingFilter
)

type fakeFilter struct {
	kind      fakeFilterKind
	addresses []common.Address
	topics    [][]common.Hash
	queue     []any
	history   []any
	logs      []types.Log
}

// NewFakeNode returns a node at block 0 on network 1337.
func NewFakeNode() *FakeNode {
	return &FakeNode{
		networkID:    big.NewInt(1337),
		gasPrice:     big.NewInt(1_000_000_000),
		gasEstimate:  21_000,
		gasLimit:     30_000_000,
		blockHashes:  []common.Hash{crypto.Keccak256Hash([]byte("genesis"))},
		nonces:       make(map[common.Address]uint64),
		transactions: make(map[common.Hash]map[string]any),
		receipts:     make(map[common.Hash]*types.Receipt),
		receiptDelay: make(map[common.Hash]int),
		filters:      make(map[string]*fakeFilter),
		calls:        make(map[string]int),
		failures:     make(map[string][]error),
	}
}

// SetNetworkID sets the net_version answer.
func (n *FakeNode) SetNetworkID(id int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.networkID = big.NewInt(id)
}

// SetGasPrice sets the eth_gasPrice answer.
func (n *FakeNode) SetGasPrice(price *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.gasPrice = new(big.Int).Set(price)
}

// SetGasEstimate sets the eth_estimateGas answer.
func (n *FakeNode) SetGasEstimate(gas uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.gasEstimate = gas
}

// SetGasLimit sets the gas limit of every block.
func (n *FakeNode) SetGasLimit(limit uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.gasLimit = limit
}

// SetExtraData sets the extra data of every block.
func (n *FakeNode) SetExtraData(extra []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.extraData = extra
}

// SetNonce sets the pending transaction count of addr.
func (n *FakeNode) SetNonce(addr common.Address, nonce uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nonces[addr] = nonce
}

// SetRedeliver makes filter polls return every entry since installation.
func (n *FakeNode) SetRedeliver(redeliver bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.redeliver = redeliver
}

// SetTransaction stores the eth_getTransactionByHash answer for hash.
func (n *FakeNode) SetTransaction(hash common.Hash, tx map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transactions[hash] = tx
}

// SetReceipt stores a receipt for hash that becomes visible after the given number
// of eth_getTransactionReceipt calls for it have returned null.
func (n *FakeNode) SetReceipt(hash common.Hash, receipt *types.Receipt, after int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receipts[hash] = receipt
	n.receiptDelay[hash] = after
}

// FailNext makes the next call of method fail with err. Failures queue up.
func (n *FakeNode) FailNext(method string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures[method] = append(n.failures[method], err)
}

// Calls returns how often method was called.
func (n *FakeNode) Calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

// RawTransactions returns the payloads received by eth_sendRawTransaction.
func (n *FakeNode) RawTransactions() [][]byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([][]byte, len(n.raw))
	copy(out, n.raw)
	return out
}

// InstalledFilters returns the number of filters not yet uninstalled.
func (n *FakeNode) InstalledFilters() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.filters)
}

// EmitLog records log in a new block and queues it on every matching log filter.
// Block hash, block number and log index are assigned by the node.
func (n *FakeNode) EmitLog(log types.Log) types.Log {
	n.mu.Lock()
	defer n.mu.Unlock()

	hash := n.mineLocked()
	log.BlockHash = hash
	log.BlockNumber = n.blockNumber
	log.Index = uint(len(n.logs))
	if log.Topics == nil {
		log.Topics = []common.Hash{}
	}
	if log.Data == nil {
		log.Data = []byte{}
	}
	n.logs = append(n.logs, log)

	for _, f := range n.filters {
		if f.kind == fakeLogFilter && f.matches(log) {
			f.push(log)
			f.logs = append(f.logs, log)
		}
	}
	return log
}

// MineBlock adds an empty block and returns its hash.
func (n *FakeNode) MineBlock() common.Hash {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.mineLocked()
}

// AddPendingTransaction announces hash to pending transaction filters.
func (n *FakeNode) AddPendingTransaction(hash common.Hash) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.announcePendingLocked(hash)
}

func (n *FakeNode) mineLocked() common.Hash {
	n.blockNumber++
	hash := crypto.Keccak256Hash([]byte(fmt.Sprintf("block-%d", n.blockNumber)))
	n.blockHashes = append(n.blockHashes, hash)
	for _, f := range n.filters {
		if f.kind == fakeBlockFilter {
			f.push(hash)
		}
	}
	return hash
}

func (n *FakeNode) announcePendingLocked(hash common.Hash) {
	for _, f := range n.filters {
		if f.kind == fakePendingFilter {
			f.push(hash)
		}
	}
}

func (f *fakeFilter) push(entry any) {
	f.queue = append(f.queue, entry)
	f.history = append(f.history, entry)
}

func (f *fakeFilter) matches(log types.Log) bool {
	if len(f.addresses) > 0 {
		found := false
		for _, a := range f.addresses {
			if a == log.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for i, alternatives := range f.topics {
		if len(alternatives) == 0 {
			continue
		}
		if i >= len(log.Topics) {
			return false
		}
		found := false
		for _, topic := range alternatives {
			if topic == log.Topics[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Call implements provider.Provider.
func (n *FakeNode) Call(_ context.Context, method string, params []any) (json.RawMessage, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.calls[method]++
	if queued := n.failures[method]; len(queued) > 0 {
		n.failures[method] = queued[1:]
		return nil, queued[0]
	}

	result, err := n.dispatchLocked(method, params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

func (n *FakeNode) dispatchLocked(method string, params []any) (any, error) {
	switch method {
	case "net_version":
		return n.networkID.String(), nil
	case "eth_chainId":
		return (*hexutil.Big)(n.networkID), nil
	case "eth_gasPrice":
		return (*hexutil.Big)(n.gasPrice), nil
	case "eth_estimateGas":
		return hexutil.Uint64(n.gasEstimate), nil
	case "eth_blockNumber":
		return hexutil.Uint64(n.blockNumber), nil
	case "eth_getBlockByNumber":
		return n.blockLocked(), nil
	case "eth_getTransactionCount":
		var addr common.Address
		if err := decodeParam(params, 0, &addr); err != nil {
			return nil, err
		}
		return hexutil.Uint64(n.nonces[addr]), nil
	case "eth_getTransactionByHash":
		var hash common.Hash
		if err := decodeParam(params, 0, &hash); err != nil {
			return nil, err
		}
		if tx, ok := n.transactions[hash]; ok {
			return tx, nil
		}
		return nil, nil
	case "eth_getTransactionReceipt":
		var hash common.Hash
		if err := decodeParam(params, 0, &hash); err != nil {
			return nil, err
		}
		receipt, ok := n.receipts[hash]
		if !ok {
			return nil, nil
		}
		if n.receiptDelay[hash] > 0 {
			n.receiptDelay[hash]--
			return nil, nil
		}
		return receipt, nil
	case "eth_sendRawTransaction":
		return n.sendRawLocked(params)
	case "eth_newFilter":
		return n.newLogFilterLocked(params)
	case "eth_newBlockFilter":
		return n.installLocked(&fakeFilter{kind: fakeBlockFilter}), nil
	case "eth_newPendingTransactionFilter":
		return n.installLocked(&fakeFilter{kind: fakePendingFilter}), nil
	case "eth_getFilterChanges":
		f, err := n.filterLocked(params)
		if err != nil {
			return nil, err
		}
		out := f.queue
		if n.redeliver {
			out = f.history
		}
		f.queue = nil
		if out == nil {
			out = []any{}
		}
		return out, nil
	case "eth_getFilterLogs":
		f, err := n.filterLocked(params)
		if err != nil {
			return nil, err
		}
		if f.kind != fakeLogFilter {
			return nil, fmt.Errorf("filter not found")
		}
		out := make([]types.Log, len(f.logs))
		copy(out, f.logs)
		return out, nil
	case "eth_uninstallFilter":
		var id string
		if err := decodeParam(params, 0, &id); err != nil {
			return nil, err
		}
		_, ok := n.filters[id]
		delete(n.filters, id)
		return ok, nil
	}
	return nil, fmt.Errorf("the method %s does not exist/is not available", method)
}

func (n *FakeNode) blockLocked() map[string]any {
	return map[string]any{
		"number":       hexutil.Uint64(n.blockNumber),
		"hash":         n.blockHashes[n.blockNumber],
		"gasLimit":     hexutil.Uint64(n.gasLimit),
		"extraData":    hexutil.Bytes(n.extraData),
		"transactions": []any{},
	}
}

func (n *FakeNode) sendRawLocked(params []any) (any, error) {
	var raw hexutil.Bytes
	if err := decodeParam(params, 0, &raw); err != nil {
		return nil, err
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}
	sender, err := types.Sender(types.LatestSignerForChainID(n.networkID), tx)
	if err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	// a nonce below the account's count replaces a pending transaction
	switch {
	case tx.Nonce() > n.nonces[sender]:
		return nil, fmt.Errorf("nonce too high: expected %d, got %d", n.nonces[sender], tx.Nonce())
	case tx.Nonce() == n.nonces[sender]:
		n.nonces[sender]++
	}

	n.raw = append(n.raw, raw)
	hash := tx.Hash()
	n.transactions[hash] = map[string]any{
		"hash":      hash,
		"blockHash": nil,
		"from":      sender,
		"to":        tx.To(),
		"nonce":     hexutil.Uint64(tx.Nonce()),
		"gas":       hexutil.Uint64(tx.Gas()),
		"gasPrice":  (*hexutil.Big)(tx.GasPrice()),
		"value":     (*hexutil.Big)(tx.Value()),
		"input":     hexutil.Bytes(tx.Data()),
	}
	n.announcePendingLocked(hash)
	return hash, nil
}

func (n *FakeNode) newLogFilterLocked(params []any) (any, error) {
	var query struct {
		Address json.RawMessage   `json:"address"`
		Topics  []json.RawMessage `json:"topics"`
	}
	if err := decodeParam(params, 0, &query); err != nil {
		return nil, err
	}

	f := &fakeFilter{kind: fakeLogFilter}
	if len(query.Address) > 0 && string(query.Address) != "null" {
		if strings.HasPrefix(strings.TrimSpace(string(query.Address)), "[") {
			if err := json.Unmarshal(query.Address, &f.addresses); err != nil {
				return nil, fmt.Errorf("invalid address filter: %w", err)
			}
		} else {
			var addr common.Address
			if err := json.Unmarshal(query.Address, &addr); err != nil {
				return nil, fmt.Errorf("invalid address filter: %w", err)
			}
			f.addresses = []common.Address{addr}
		}
	}
	for _, raw := range query.Topics {
		var alternatives []common.Hash
		switch {
		case len(raw) == 0 || string(raw) == "null":
		case strings.HasPrefix(strings.TrimSpace(string(raw)), "["):
			if err := json.Unmarshal(raw, &alternatives); err != nil {
				return nil, fmt.Errorf("invalid topic filter: %w", err)
			}
		default:
			var topic common.Hash
			if err := json.Unmarshal(raw, &topic); err != nil {
				return nil, fmt.Errorf("invalid topic filter: %w", err)
			}
			alternatives = []common.Hash{topic}
		}
		f.topics = append(f.topics, alternatives)
	}
	return n.installLocked(f), nil
}

func (n *FakeNode) installLocked(f *fakeFilter) string {
	n.nextFilter++
	id := hexutil.EncodeUint64(n.nextFilter)
	n.filters[id] = f
	return id
}

func (n *FakeNode) filterLocked(params []any) (*fakeFilter, error) {
	var id string
	if err := decodeParam(params, 0, &id); err != nil {
		return nil, err
	}
	f, ok := n.filters[id]
	if !ok {
		return nil, fmt.Errorf("filter not found")
	}
	return f, nil
}

// decodeParam re-reads params[i] through JSON into out, as a node would see it.
func decodeParam(params []any, i int, out any) error {
	if i >= len(params) {
		return fmt.Errorf("missing value for required argument %d", i)
	}
	encoded, err := json.Marshal(params[i])
	if err != nil {
		return fmt.Errorf("invalid argument %d: %w", i, err)
	}
	if err := json.Unmarshal(encoded, out); err != nil {
		return fmt.Errorf("invalid argument %d: %w", i, err)
	}
	return nil
}
