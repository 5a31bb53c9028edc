package filter

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Kind is the kind of entries a filter accumulates.
type Kind int

const (
	// KindLog filters report logs matching a query.
	KindLog Kind = iota
	// KindBlock filters report the hashes of new blocks.
	KindBlock
	// KindPendingTransaction filters report the hashes of new pending transactions.
	KindPendingTransaction
)

func (k Kind) String() string {
	switch k {
	case KindLog:
		return "log"
	case KindBlock:
		return "block"
	case KindPendingTransaction:
		return "pending-transaction"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Entry is one item reported by a filter. Log is set for log filters, Hash for
// block and pending transaction filters.
type Entry struct {
	Kind Kind
	Hash common.Hash
	Log  *types.Log
}

// Key identifies the entry across polls. Logs are identified by block hash,
// transaction hash and log index; a log removed by a reorg has its own key so
// the removal is reported too.
func (e Entry) Key() string {
	if e.Log == nil {
		return e.Hash.Hex()
	}
	key := fmt.Sprintf("%s:%s:%d", e.Log.BlockHash.Hex(), e.Log.TxHash.Hex(), e.Log.Index)
	if e.Log.Removed {
		key += ":removed"
	}
	return key
}
