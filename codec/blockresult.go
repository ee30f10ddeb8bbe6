package codec

import (
	"fmt"

	"github.com/telosevm/shipcore/shiperr"
	"github.com/telosevm/shipcore/types"
)

// resultVariantNames lists the top-level get_blocks_result variants this
// package accepts, in wire order (tag 0, 1, 2).
var resultVariantNames = []string{
	"get_blocks_result_v0",
	"get_blocks_result_v1",
	"get_blocks_result_v2",
}

// bodyVariantForResult maps a result version to the block-body type name
// its `block` payload must be decoded against (§4.1).
var bodyVariantForResult = map[string]string{
	"get_blocks_result_v0": "signed_block",
	"get_blocks_result_v1": "signed_block_v1",
	"get_blocks_result_v2": "signed_block_variant",
}

// DefaultSchema registers the fixed variant shapes this pipeline relies on.
// A real session loads its Schema from the node (LoadSchema); this helper
// exists so the three "get_blocks_result" and "signed_block_variant" tags
// are always resolvable even if the node's wire ABI happens not to spell
// them out explicitly as variants (older nodes encode the top-level result
// tag implicitly). Tests and the ship package call this once, after
// LoadSchema, to fill in the pipeline's own fixed expectations without
// overwriting anything the node did provide.
func DefaultSchema(s *Schema) {
	if _, ok := s.variants["result"]; !ok {
		s.RegisterVariant("result", resultVariantNames)
	}
	if _, ok := s.variants["signed_block_variant"]; !ok {
		s.RegisterVariant("signed_block_variant", []string{"signed_block_v0", "signed_block_v1"})
	}
}

// ResultEnvelope is the decoded get_blocks_result_v{0,1,2} frame: the
// position triple plus opaque payload blobs, not yet decoded further.
type ResultEnvelope struct {
	ResultVariant string
	ThisBlock     *types.BlockPosition
	Head          types.BlockPosition
	LastIrreversible types.BlockPosition
	Block         []byte
	Traces        []byte
	Deltas        []byte
}

func decodePosition(r *Reader) (types.BlockPosition, error) {
	num, err := r.Uint32LE()
	if err != nil {
		return types.BlockPosition{}, err
	}
	id, err := r.Bytes(32)
	if err != nil {
		return types.BlockPosition{}, err
	}
	idCopy := append([]byte(nil), id...)
	return types.BlockPosition{BlockNum: num, BlockID: idCopy}, nil
}

// DecodeGetBlocksResult decodes one STREAMING-state frame. It reads the
// frame's leading varuint32 tag itself and resolves it against the schema's
// "result" variant to learn which get_blocks_result_v{0,1,2} produced it.
func DecodeGetBlocksResult(schema *Schema, data []byte) (ResultEnvelope, error) {
	return Decode(data, CheckLength, func(r *Reader) (ResultEnvelope, error) {
		tag, err := r.VarUint32()
		if err != nil {
			return ResultEnvelope{}, fmt.Errorf("codec: read result tag: %w", err)
		}
		variant, err := schema.ResolveVariant("result", tag)
		if err != nil {
			return ResultEnvelope{}, err
		}

		var env ResultEnvelope
		env.ResultVariant = variant

		env.Head, err = decodePosition(r)
		if err != nil {
			return ResultEnvelope{}, fmt.Errorf("codec: read head position: %w", err)
		}
		env.LastIrreversible, err = decodePosition(r)
		if err != nil {
			return ResultEnvelope{}, fmt.Errorf("codec: read last_irreversible position: %w", err)
		}

		thisBlock, present, err := Optional(r, decodePosition)
		if err != nil {
			return ResultEnvelope{}, fmt.Errorf("codec: read this_block position: %w", err)
		}
		if present {
			env.ThisBlock = &thisBlock
		}

		// prev_block is part of the wire shape but unused by this pipeline.
		if _, _, err := Optional(r, decodePosition); err != nil {
			return ResultEnvelope{}, fmt.Errorf("codec: read prev_block position: %w", err)
		}

		env.Block, _, err = Optional(r, (*Reader).VarBytes)
		if err != nil {
			return ResultEnvelope{}, fmt.Errorf("codec: read block payload: %w", err)
		}
		env.Traces, _, err = Optional(r, (*Reader).VarBytes)
		if err != nil {
			return ResultEnvelope{}, fmt.Errorf("codec: read traces payload: %w", err)
		}
		env.Deltas, _, err = Optional(r, (*Reader).VarBytes)
		if err != nil {
			return ResultEnvelope{}, fmt.Errorf("codec: read deltas payload: %w", err)
		}
		return env, nil
	})
}

// BlockBodyVariant returns the block-body type name that resultVariant's
// `block` payload must decode as per §4.1.
func BlockBodyVariant(resultVariant string) (string, error) {
	v, ok := bodyVariantForResult[resultVariant]
	if !ok {
		return "", fmt.Errorf("%w: unknown result variant %q", shiperr.ErrUnsupportedVariant, resultVariant)
	}
	return v, nil
}
