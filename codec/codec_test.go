package codec

import (
	"errors"
	"testing"
	"time"

	"github.com/telosevm/shipcore/shiperr"
)

func TestSchemaResolveVariantUnknownIsFatal(t *testing.T) {
	s := EmptySchema()
	if _, err := s.ResolveVariant("result", 0); !errors.Is(err, shiperr.ErrUnsupportedVariant) {
		t.Fatalf("expected ErrUnsupportedVariant, got %v", err)
	}
}

func TestSchemaResolveVariantOutOfRange(t *testing.T) {
	s := EmptySchema()
	s.RegisterVariant("result", []string{"get_blocks_result_v0"})
	if _, err := s.ResolveVariant("result", 5); !errors.Is(err, shiperr.ErrUnsupportedVariant) {
		t.Fatalf("expected ErrUnsupportedVariant for out-of-range tag, got %v", err)
	}
}

func TestLoadSchemaRoundTrip(t *testing.T) {
	w := &writer{}
	w.varuint32(1) // one variant
	w.string("result")
	w.varuint32(2)
	w.string("get_blocks_result_v0")
	w.string("get_blocks_result_v1")

	s, err := LoadSchema(w.buf)
	if err != nil {
		t.Fatalf("LoadSchema failed: %v", err)
	}
	name, err := s.ResolveVariant("result", 1)
	if err != nil {
		t.Fatalf("ResolveVariant failed: %v", err)
	}
	if name != "get_blocks_result_v1" {
		t.Fatalf("got %q, want get_blocks_result_v1", name)
	}
}

func TestLoadSchemaTrailingBytesRejected(t *testing.T) {
	w := &writer{}
	w.varuint32(0)
	w.byte(0xff) // trailing garbage
	if _, err := LoadSchema(w.buf); !errors.Is(err, shiperr.ErrTrailingBytes) {
		t.Fatalf("expected ErrTrailingBytes, got %v", err)
	}
}

func buildResultSchema() *Schema {
	s := EmptySchema()
	DefaultSchema(s)
	return s
}

func encodePosition(w *writer, num uint32) {
	var id [32]byte
	id[0] = byte(num)
	w.position(num, id)
}

func TestDecodeGetBlocksResultV0(t *testing.T) {
	w := &writer{}
	w.varuint32(0) // get_blocks_result_v0
	encodePosition(w, 100)
	encodePosition(w, 90)
	w.bool(true) // this_block present
	encodePosition(w, 99)
	w.bool(false) // prev_block absent
	w.bool(true)  // block present
	w.varBytes([]byte("block-bytes"))
	w.bool(false) // traces absent
	w.bool(false) // deltas absent

	env, err := DecodeGetBlocksResult(buildResultSchema(), w.buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if env.ResultVariant != "get_blocks_result_v0" {
		t.Fatalf("unexpected variant: %q", env.ResultVariant)
	}
	if env.ThisBlock == nil || env.ThisBlock.BlockNum != 99 {
		t.Fatalf("unexpected this_block: %+v", env.ThisBlock)
	}
	if string(env.Block) != "block-bytes" {
		t.Fatalf("unexpected block payload: %q", env.Block)
	}
	if env.Traces != nil || env.Deltas != nil {
		t.Fatalf("expected absent traces/deltas to decode as nil")
	}
}

func TestDecodeGetBlocksResultUnknownTagFatal(t *testing.T) {
	w := &writer{}
	w.varuint32(9) // no such result variant
	if _, err := DecodeGetBlocksResult(buildResultSchema(), w.buf); !errors.Is(err, shiperr.ErrUnsupportedVariant) {
		t.Fatalf("expected ErrUnsupportedVariant, got %v", err)
	}
}

func encodeSignedBlockV1(w *writer, slot uint32, txs int) {
	w.uint32le(slot)         // timestamp
	w.string("producer")     // producer
	w.uint16le(0)            // confirmed
	w.bytes(make([]byte, 32)) // previous
	w.bytes(make([]byte, 32)) // transaction_mroot
	w.bytes(make([]byte, 32)) // action_mroot
	w.uint32le(0)            // schedule_version
	w.bool(false)            // new_producers absent
	w.varuint32(0)           // header_extensions count
	w.string("sig")          // producer_signature
	w.varuint32(uint32(txs)) // transaction count
}

func TestDecodeSignedBlockV1Timestamp(t *testing.T) {
	w := &writer{}
	encodeSignedBlockV1(w, 0, 0)

	body, err := DecodeBlockBody(EmptySchema(), "get_blocks_result_v1", w.buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	want := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	if !body.Timestamp.Equal(want) {
		t.Fatalf("got timestamp %v, want %v", body.Timestamp, want)
	}
}

func TestDecodeSignedBlockV1WithPackedTransaction(t *testing.T) {
	w2 := &writer{}
	w2.uint32le(10)
	w2.string("producer")
	w2.uint16le(0)
	w2.bytes(make([]byte, 32))
	w2.bytes(make([]byte, 32))
	w2.bytes(make([]byte, 32))
	w2.uint32le(0)
	w2.bool(false)
	w2.varuint32(0)
	w2.string("sig")
	w2.varuint32(1) // one transaction

	// transaction receipt: status, cpu_usage_us, net_usage_words, is_packed, packed_transaction
	w2.byte(0)          // status executed
	w2.varuint32(100)   // cpu_usage_us
	w2.varuint32(1)     // net_usage_words
	w2.bool(true)       // packed
	w2.varuint32(0)     // signature count
	w2.varBytes(nil)    // packed_context_free_data
	w2.byte(0)          // compression none
	w2.varBytes([]byte("packed")) // packed_trx

	body, err := DecodeBlockBody(EmptySchema(), "get_blocks_result_v1", w2.buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(body.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(body.Transactions))
	}
	if body.Transactions[0].Packed == nil || string(body.Transactions[0].Packed.PackedTrx) != "packed" {
		t.Fatalf("unexpected packed transaction: %+v", body.Transactions[0].Packed)
	}
}

func TestDecodeBlockBodyV2ResolvesVariant(t *testing.T) {
	schema := EmptySchema()
	DefaultSchema(schema)

	inner := &writer{}
	encodeSignedBlockV1(inner, 5, 0)

	w := &writer{}
	w.varuint32(1) // signed_block_variant tag 1 -> signed_block_v1
	w.bytes(inner.buf)

	body, err := DecodeBlockBody(schema, "get_blocks_result_v2", w.buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(body.Transactions) != 0 {
		t.Fatalf("expected no transactions")
	}
}

func TestDecodeBlockBodyV2WrongVariantFatal(t *testing.T) {
	schema := EmptySchema()
	DefaultSchema(schema)

	w := &writer{}
	w.varuint32(0) // tag 0 -> signed_block_v0, not v1
	w.bytes(make([]byte, 4))

	if _, err := DecodeBlockBody(schema, "get_blocks_result_v2", w.buf); !errors.Is(err, shiperr.ErrUnsupportedVariant) {
		t.Fatalf("expected ErrUnsupportedVariant, got %v", err)
	}
}

func encodeAction(w *writer, account, name string, auths [][2]string, data []byte) {
	w.string(account)
	w.string(name)
	w.varuint32(uint32(len(auths)))
	for _, a := range auths {
		w.string(a[0])
		w.string(a[1])
	}
	w.varBytes(data)
}

func TestDecodeTransactionTraces(t *testing.T) {
	w := &writer{}
	w.varuint32(1) // one transaction_trace
	w.string("trx1")
	w.byte(0) // executed
	w.varuint32(1)
	w.string("eosio.evm") // receiver
	encodeAction(w, "eosio.evm", "raw", [][2]string{{"alice", "active"}}, []byte("data"))
	w.varuint64(42) // global_sequence

	traces, err := DecodeTransactionTraces(w.buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(traces) != 1 || traces[0].ActionTraces[0].Act.Account != "eosio.evm" {
		t.Fatalf("unexpected traces: %+v", traces)
	}
}

func TestDecodeTableDeltasAndGlobalRow(t *testing.T) {
	globalPayload := &writer{}
	globalPayload.uint32le(777)

	w := &writer{}
	w.varuint32(1)            // one table_delta
	w.string("contract_row")  // kind
	w.varuint32(1)            // one row
	w.bool(true)              // present
	rowData := &writer{}
	rowData.string("eosio")
	rowData.string("eosio")
	rowData.string("global")
	rowData.uint64le(0) // primary_key
	rowData.varBytes(globalPayload.buf)
	w.varBytes(rowData.buf)

	deltas, err := DecodeTableDeltas(w.buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(deltas) != 1 {
		t.Fatalf("expected 1 delta row, got %d", len(deltas))
	}
	global, err := DecodeGlobalRow(deltas[0].Payload)
	if err != nil {
		t.Fatalf("decode global row failed: %v", err)
	}
	if global.BlockNum != 777 {
		t.Fatalf("got block num %d, want 777", global.BlockNum)
	}
}

func TestMinePackedTrxTransaction(t *testing.T) {
	w := &writer{}
	w.uint32le(0)   // expiration
	w.uint16le(0)   // ref_block_num
	w.uint32le(0)   // ref_block_prefix
	w.varuint32(0)  // max_net_usage_words
	w.byte(0)       // max_cpu_usage_ms
	w.varuint32(0)  // delay_sec
	w.varuint32(0)  // context_free_actions count
	w.varuint32(1)  // actions count
	encodeAction(w, "eosio.evm", "raw", nil, []byte("data"))
	w.varuint32(0) // transaction_extensions count

	res, ok := MinePackedTrx(w.buf)
	if !ok {
		t.Fatalf("expected match")
	}
	if res.MatchedType != "transaction" {
		t.Fatalf("got matched type %q", res.MatchedType)
	}
	if len(res.Transaction.Actions) != 1 || res.Transaction.Actions[0].Account != "eosio.evm" {
		t.Fatalf("unexpected actions: %+v", res.Transaction.Actions)
	}
}

func TestMinePackedTrxNoCandidateMatches(t *testing.T) {
	// A single random byte won't satisfy any candidate's CheckLength decode.
	_, ok := MinePackedTrx([]byte{0xff})
	if ok {
		t.Fatalf("expected no match for garbage input")
	}
}
