// Package sink provides a concrete, embedded-database ConsumerSink (§4.9,
// §6): it implements assembler.Sink on top of
// github.com/cockroachdb/pebble, the teacher's own embedded key-value
// store, mirroring the big-endian-key, write-batch style that repo's own
// pebble-backed watermark tables use.
package sink

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/telosevm/shipcore/assembler"
	"github.com/telosevm/shipcore/types"
)

// Key layout: a one-byte prefix partitions the keyspace so the reserved
// state keys never collide with a block-number key (prefixBlock is always
// 5 bytes long: 1 prefix + 4 big-endian block number; the reserved keys are
// only ever 1 byte).
const (
	prefixBlock     byte = 0x01
	keyIndexerState byte = 0x02
	keyLastIndexed  byte = 0x03
)

// record is the gob-serialized payload stored under a block-number key.
type record struct {
	Actions []types.ActionRecord
	Meta    assembler.BlockMeta
}

// Sink is a pebble-backed assembler.Sink. Zero value is not usable; build
// one with Open.
type Sink struct {
	db *pebble.DB
}

// Open opens (creating if absent) a pebble database at dir and wraps it as
// a Sink.
func Open(dir string) (*Sink, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("sink: open pebble db at %s: %w", dir, err)
	}
	return &Sink{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Sink) Close() error {
	return s.db.Close()
}

// Init satisfies assembler.Sink; pebble.Open already created the database,
// so there is nothing further to prepare.
func (s *Sink) Init() error {
	return nil
}

func blockKey(blockNum uint32) []byte {
	key := make([]byte, 5)
	key[0] = prefixBlock
	binary.BigEndian.PutUint32(key[1:], blockNum)
	return key
}

// IndexBlock stores actions and meta under blockNum's key and advances the
// lastIndexed watermark in the same batch, so a crash between the two
// writes is impossible (§4.9: the sink is assumed idempotent on blockNum,
// but this keeps the watermark consistent with what was actually written).
func (s *Sink) IndexBlock(blockNum uint32, actions []types.ActionRecord, meta assembler.BlockMeta) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(record{Actions: actions, Meta: meta}); err != nil {
		return fmt.Errorf("sink: encode block %d: %w", blockNum, err)
	}

	last := assembler.LastIndexed{
		BlockNum:     blockNum,
		EVMBlockHash: meta.EVMBlockHash,
		Timestamp:    meta.Timestamp,
	}
	var lastBuf bytes.Buffer
	if err := gob.NewEncoder(&lastBuf).Encode(last); err != nil {
		return fmt.Errorf("sink: encode last-indexed watermark for block %d: %w", blockNum, err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(blockKey(blockNum), buf.Bytes(), nil); err != nil {
		return fmt.Errorf("sink: stage block %d: %w", blockNum, err)
	}
	if err := batch.Set([]byte{keyLastIndexed}, lastBuf.Bytes(), nil); err != nil {
		return fmt.Errorf("sink: stage last-indexed watermark: %w", err)
	}
	if err := batch.Commit(pebble.NoSync); err != nil {
		return fmt.Errorf("sink: commit block %d: %w", blockNum, err)
	}
	return nil
}

// GetLastIndexedBlock returns nil if the sink has never indexed anything.
func (s *Sink) GetLastIndexedBlock() (*assembler.LastIndexed, error) {
	value, closer, err := s.db.Get([]byte{keyLastIndexed})
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sink: read last-indexed watermark: %w", err)
	}
	defer closer.Close()

	var last assembler.LastIndexed
	if err := gob.NewDecoder(bytes.NewReader(value)).Decode(&last); err != nil {
		return nil, fmt.Errorf("sink: decode last-indexed watermark: %w", err)
	}
	return &last, nil
}

// IndexState persists the current SYNC/HEAD state so a restart can resume
// without replaying the full head-distance computation from scratch.
func (s *Sink) IndexState(state types.IndexerState) error {
	if err := s.db.Set([]byte{keyIndexerState}, []byte{byte(state)}, pebble.NoSync); err != nil {
		return fmt.Errorf("sink: persist indexer state: %w", err)
	}
	return nil
}

// GetIndexerState returns StateSync if no state has ever been persisted.
func (s *Sink) GetIndexerState() (types.IndexerState, error) {
	value, closer, err := s.db.Get([]byte{keyIndexerState})
	if err == pebble.ErrNotFound {
		return types.StateSync, nil
	}
	if err != nil {
		return types.StateSync, fmt.Errorf("sink: read indexer state: %w", err)
	}
	defer closer.Close()
	if len(value) != 1 {
		return types.StateSync, fmt.Errorf("sink: malformed indexer state record (%d bytes)", len(value))
	}
	return types.IndexerState(value[0]), nil
}

// GetBlock returns the actions and meta indexed for blockNum, or ok=false
// if nothing was indexed for it. It is not part of assembler.Sink; within
// this module only the sink's own tests call it.
func (s *Sink) GetBlock(blockNum uint32) (actions []types.ActionRecord, meta assembler.BlockMeta, ok bool, err error) {
	value, closer, getErr := s.db.Get(blockKey(blockNum))
	if getErr == pebble.ErrNotFound {
		return nil, assembler.BlockMeta{}, false, nil
	}
	if getErr != nil {
		return nil, assembler.BlockMeta{}, false, fmt.Errorf("sink: read block %d: %w", blockNum, getErr)
	}
	defer closer.Close()

	var rec record
	if decErr := gob.NewDecoder(bytes.NewReader(value)).Decode(&rec); decErr != nil {
		return nil, assembler.BlockMeta{}, false, fmt.Errorf("sink: decode block %d: %w", blockNum, decErr)
	}
	return rec.Actions, rec.Meta, true, nil
}

var _ assembler.Sink = (*Sink)(nil)
