package codec

import (
	"fmt"
	"time"

	"github.com/telosevm/shipcore/shiperr"
)

// blockTimestampEpoch is the EOSIO/Antelope block_timestamp_type epoch
// (2000-01-01T00:00:00.000Z); a block timestamp on the wire is a slot
// count of 500ms intervals since this instant.
var blockTimestampEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

const blockTimestampIntervalMs = 500

// PackedTransaction is a transaction as carried in a signed block, still in
// its packed (opaque) form: ShipClient's signature-mining step attempts to
// decode PackedTrx against an ordered list of candidate types.
type PackedTransaction struct {
	Signatures   []string
	PackedTrx    []byte
}

// TransactionReceipt is one entry of a signed block's transaction list. Only
// packed transactions carry actions worth mining for signatures; implicit
// and deferred transactions (Packed == nil) are skipped by the caller.
type TransactionReceipt struct {
	Status uint8
	Packed *PackedTransaction
}

// BlockBody is the decoded result of a signed_block/signed_block_v1 payload:
// just enough of the header and transaction list for signature mining and
// for stamping ProcessedBlock.BlockTimestamp.
type BlockBody struct {
	Timestamp    time.Time
	Transactions []TransactionReceipt
}

func decodeBlockTimestamp(r *Reader) (time.Time, error) {
	slot, err := r.Uint32LE()
	if err != nil {
		return time.Time{}, err
	}
	return blockTimestampEpoch.Add(time.Duration(slot) * blockTimestampIntervalMs * time.Millisecond), nil
}

func decodePackedTransaction(r *Reader) (*PackedTransaction, error) {
	sigCount, err := r.VarUint32()
	if err != nil {
		return nil, fmt.Errorf("codec: read signature count: %w", err)
	}
	sigs := make([]string, sigCount)
	for i := range sigs {
		sigs[i], err = r.String()
		if err != nil {
			return nil, fmt.Errorf("codec: read signature %d: %w", i, err)
		}
	}
	if _, err := r.VarBytes(); err != nil { // packed_context_free_data, unused
		return nil, fmt.Errorf("codec: read packed_context_free_data: %w", err)
	}
	compression, err := r.Byte()
	if err != nil {
		return nil, fmt.Errorf("codec: read compression flag: %w", err)
	}
	if compression != 0 {
		return nil, fmt.Errorf("codec: compressed packed_trx not supported")
	}
	packedTrx, err := r.VarBytes()
	if err != nil {
		return nil, fmt.Errorf("codec: read packed_trx: %w", err)
	}
	return &PackedTransaction{Signatures: sigs, PackedTrx: append([]byte(nil), packedTrx...)}, nil
}

func decodeTransactionReceipt(r *Reader) (TransactionReceipt, error) {
	status, err := r.Byte()
	if err != nil {
		return TransactionReceipt{}, fmt.Errorf("codec: read receipt status: %w", err)
	}
	if _, err := r.VarUint32(); err != nil { // cpu_usage_us
		return TransactionReceipt{}, fmt.Errorf("codec: read cpu_usage_us: %w", err)
	}
	if _, err := r.VarUint32(); err != nil { // net_usage_words
		return TransactionReceipt{}, fmt.Errorf("codec: read net_usage_words: %w", err)
	}
	isPacked, err := r.Bool()
	if err != nil {
		return TransactionReceipt{}, fmt.Errorf("codec: read trx tag: %w", err)
	}
	if !isPacked {
		if _, err := r.Bytes(32); err != nil { // transaction id of an id-only receipt
			return TransactionReceipt{}, fmt.Errorf("codec: read receipt trx id: %w", err)
		}
		return TransactionReceipt{Status: status}, nil
	}
	packed, err := decodePackedTransaction(r)
	if err != nil {
		return TransactionReceipt{}, err
	}
	return TransactionReceipt{Status: status, Packed: packed}, nil
}

// decodeSignedBlockV1 decodes the subset of signed_block_v1 this pipeline
// needs: the header timestamp and the transaction list. Header fields
// between timestamp and the transaction list (producer, previous block
// hash, merkle roots, schedule, extensions, producer signature) are present
// on the wire but irrelevant to block assembly, so the reader walks past
// them structurally rather than binding them to named fields.
func decodeSignedBlockV1(r *Reader) (BlockBody, error) {
	ts, err := decodeBlockTimestamp(r)
	if err != nil {
		return BlockBody{}, fmt.Errorf("codec: read block timestamp: %w", err)
	}
	if _, err := r.String(); err != nil { // producer
		return BlockBody{}, fmt.Errorf("codec: read producer: %w", err)
	}
	if _, err := r.Uint16LE(); err != nil { // confirmed
		return BlockBody{}, fmt.Errorf("codec: read confirmed: %w", err)
	}
	if _, err := r.Bytes(32); err != nil { // previous
		return BlockBody{}, fmt.Errorf("codec: read previous: %w", err)
	}
	if _, err := r.Bytes(32); err != nil { // transaction_mroot
		return BlockBody{}, fmt.Errorf("codec: read transaction_mroot: %w", err)
	}
	if _, err := r.Bytes(32); err != nil { // action_mroot
		return BlockBody{}, fmt.Errorf("codec: read action_mroot: %w", err)
	}
	if _, err := r.Uint32LE(); err != nil { // schedule_version
		return BlockBody{}, fmt.Errorf("codec: read schedule_version: %w", err)
	}
	// new_producers is the legacy inline producer-schedule-change field.
	// Every chain this pipeline targets carries schedule changes via
	// header_extensions instead, so a present new_producers means the
	// wire shape disagrees with what this decoder expects; treat that as
	// a schema mismatch rather than guess at a skip and desync the rest
	// of the block.
	if hasNewProducers, err := r.Bool(); err != nil {
		return BlockBody{}, fmt.Errorf("codec: read new_producers presence: %w", err)
	} else if hasNewProducers {
		return BlockBody{}, fmt.Errorf("%w: legacy inline new_producers not supported", shiperr.ErrUnsupportedVariant)
	}
	extCount, err := r.VarUint32()
	if err != nil {
		return BlockBody{}, fmt.Errorf("codec: read header_extensions count: %w", err)
	}
	for i := uint32(0); i < extCount; i++ {
		if _, err := r.Uint32LE(); err != nil {
			return BlockBody{}, fmt.Errorf("codec: read header extension type: %w", err)
		}
		if _, err := r.VarBytes(); err != nil {
			return BlockBody{}, fmt.Errorf("codec: read header extension data: %w", err)
		}
	}
	if _, err := r.String(); err != nil { // producer_signature
		return BlockBody{}, fmt.Errorf("codec: read producer_signature: %w", err)
	}

	txCount, err := r.VarUint32()
	if err != nil {
		return BlockBody{}, fmt.Errorf("codec: read transaction count: %w", err)
	}
	txs := make([]TransactionReceipt, txCount)
	for i := range txs {
		txs[i], err = decodeTransactionReceipt(r)
		if err != nil {
			return BlockBody{}, fmt.Errorf("codec: read transaction %d: %w", i, err)
		}
	}
	return BlockBody{Timestamp: ts, Transactions: txs}, nil
}

// DecodeBlockBody decodes raw against the block-body variant resultVariant
// requires (§4.1): get_blocks_result_v0 → signed_block, v1 → signed_block_v1,
// v2 → signed_block_variant (itself a variant, which must resolve to
// signed_block_v1 — any other tag is a fatal UnsupportedVariant).
func DecodeBlockBody(schema *Schema, resultVariant string, raw []byte) (BlockBody, error) {
	bodyVariant, err := BlockBodyVariant(resultVariant)
	if err != nil {
		return BlockBody{}, err
	}

	if bodyVariant != "signed_block_variant" {
		// signed_block (v0) and signed_block_v1 share this pipeline's
		// decode shape; v0 blocks simply predate a couple of v1-only
		// header extensions that this decoder already treats as opaque.
		return Decode(raw, CheckLength, decodeSignedBlockV1)
	}

	return Decode(raw, CheckLength, func(r *Reader) (BlockBody, error) {
		tag, err := r.VarUint32()
		if err != nil {
			return BlockBody{}, fmt.Errorf("codec: read signed_block_variant tag: %w", err)
		}
		resolved, err := schema.ResolveVariant("signed_block_variant", tag)
		if err != nil {
			return BlockBody{}, err
		}
		if resolved != "signed_block_v1" {
			return BlockBody{}, fmt.Errorf("%w: signed_block_variant resolved to %q, want signed_block_v1", shiperr.ErrUnsupportedVariant, resolved)
		}
		return decodeSignedBlockV1(r)
	})
}
