package assembler

import "github.com/telosevm/shipcore/types"

// BlockMeta is the `meta` shape of the downstream sink contract (§6):
// {"@timestamp", "@global":{block_num}, "@evmBlockHash"}.
type BlockMeta struct {
	Timestamp      int64
	GlobalBlockNum uint64
	EVMBlockHash   []byte
}

// LastIndexed is what getLastIndexedBlock() returns: nil when the sink has
// never indexed anything.
type LastIndexed struct {
	BlockNum     uint32
	EVMBlockHash []byte
	Timestamp    int64
}

// Sink is the downstream ConsumerSink contract (§4.9, §6). The real
// production sink (a document store) is an external collaborator; package
// sink provides one concrete, pebble-backed implementation of this same
// interface. The sink is assumed idempotent on blockNum.
type Sink interface {
	Init() error
	GetLastIndexedBlock() (*LastIndexed, error)
	IndexBlock(blockNum uint32, actions []types.ActionRecord, meta BlockMeta) error
	IndexState(state types.IndexerState) error
	GetIndexerState() (types.IndexerState, error)
}
