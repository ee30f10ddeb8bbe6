// Package broadcast implements the Broadcaster (§6): a websocket fan-out
// server that republishes each newly assembled EVM head to every
// connected subscriber, built the way the teacher wires its own
// websocket/mux/cors stack together.
package broadcast

import (
	"encoding/json"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/websocket"

	"github.com/telosevm/shipcore/types"
)

// topic is the logical channel name every subscriber is implicitly
// subscribed to; this server has exactly one.
const topic = "broadcast"

// HeadProvider is implemented by an EVMTx.Payload that carries full EVM
// block-header fields. It is looked up the same way assembler looks up
// EVMBlockHash: opaquely, never computed in this module (§9 Open
// Questions).
type HeadProvider interface {
	ParentHash() []byte
	ReceiptsRoot() []byte
	TransactionsRoot() []byte
	GasUsed() uint64
	LogsBloom() []byte
}

// HeadJSON is the wire shape of one `head` message's data field. It is
// literally go-ethereum's block-header hex encoding: 0x-prefixed lowercase
// hex, minimal (no leading zeros) for number and timestamp.
type HeadJSON struct {
	ParentHash       hexutil.Bytes `json:"parentHash"`
	ExtraData        hexutil.Bytes `json:"extraData"`
	ReceiptsRoot     hexutil.Bytes `json:"receiptsRoot"`
	TransactionsRoot hexutil.Bytes `json:"transactionsRoot"`
	GasUsed          string        `json:"gasUsed"`
	LogsBloom        hexutil.Bytes `json:"logsBloom"`
	Number           string        `json:"number"`
	Timestamp        string        `json:"timestamp"`
}

// envelope is the message every subscriber receives.
type envelope struct {
	Type string   `json:"type"`
	Data HeadJSON `json:"data"`
}

// headProviderOf scans a processed block's EVM transactions for the first
// EVMTx.Payload implementing HeadProvider.
func headProviderOf(block types.ProcessedBlock) (HeadProvider, bool) {
	for _, rec := range block.EVMTxs {
		if hp, ok := rec.EVMTx.Payload.(HeadProvider); ok {
			return hp, true
		}
	}
	return nil, false
}

// BuildHeadJSON converts a ProcessedBlock into the broadcaster's wire
// shape. ok is false if no EVMTx in the block carries header fields (an
// empty block produced by a chain with no EVM-relevant actions never
// triggers a head broadcast).
func BuildHeadJSON(block types.ProcessedBlock) (HeadJSON, bool) {
	hp, ok := headProviderOf(block)
	if !ok {
		return HeadJSON{}, false
	}
	return HeadJSON{
		ParentHash:       hp.ParentHash(),
		ExtraData:        block.NativeBlockHash,
		ReceiptsRoot:     hp.ReceiptsRoot(),
		TransactionsRoot: hp.TransactionsRoot(),
		GasUsed:          hexutil.EncodeUint64(hp.GasUsed()),
		LogsBloom:        hp.LogsBloom(),
		Number:           hexutil.EncodeUint64(block.EVMBlockNumber),
		Timestamp:        hexutil.EncodeUint64(uint64(block.BlockTimestamp)),
	}, true
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Broadcaster fans one head JSON message out to every connected
// subscriber. Safe for concurrent use.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

// New returns an empty Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{subs: make(map[*subscriber]struct{})}
}

// Publish marshals head and queues it for every currently connected
// subscriber. A subscriber whose send buffer is full is dropped rather
// than allowed to stall the publisher (a slow reader never blocks the
// indexing pipeline).
func (b *Broadcaster) Publish(head HeadJSON) {
	payload, err := json.Marshal(envelope{Type: "head", Data: head})
	if err != nil {
		log.Error("broadcast: marshal head", "err", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.send <- payload:
		default:
			log.Warn("broadcast: subscriber send buffer full, dropping connection")
			delete(b.subs, sub)
			close(sub.send)
			sub.conn.Close()
		}
	}
}

// subscriberCount reports the number of currently connected subscribers
// (used by /healthz).
func (b *Broadcaster) subscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) add(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[sub] = struct{}{}
}

func (b *Broadcaster) remove(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.send)
	}
}
