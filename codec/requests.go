package codec

import "github.com/telosevm/shipcore/types"

// Outer request variant tags, mirroring the result/body variant tags this
// package already resolves on decode. Reasoned from the distilled spec's
// field list (§3 BlockRequest, §6 Upstream); no original-language source
// survived retrieval to verify exact wire ordering against (see
// DESIGN.md), so this encoding is the inverse of DecodeGetBlocksResult's
// own field order rather than a byte-verified trace of a real node.
const (
	requestTagGetBlocksRequestV0    = 0
	requestTagGetBlocksAckRequestV0 = 1
)

// EncodeBlocksRequestV0 builds the get_blocks_request_v0 frame ShipClient
// sends exactly once per session, after loading the schema and before
// entering STREAMING (§4.6 AWAITING_ABI).
func EncodeBlocksRequestV0(req types.BlockRequest) []byte {
	w := NewWriter()
	w.VarUint32(requestTagGetBlocksRequestV0)
	w.Bool(req.IrreversibleOnly)
	w.Uint32LE(req.StartBlockNum)
	w.Uint32LE(req.EndBlockNum)
	w.Uint32LE(req.MaxMessagesInFlight)
	w.Bool(req.Flags.FetchBlock)
	w.Bool(req.Flags.FetchTraces)
	w.Bool(req.Flags.FetchDeltas)
	w.VarUint32(uint32(len(req.HavePositions)))
	for _, p := range req.HavePositions {
		w.Uint32LE(p.BlockNum)
		w.RawBytes(p.BlockID)
	}
	return w.Bytes()
}

// EncodeBlocksAckRequestV0 builds the get_blocks_ack_request_v0 frame sent
// after unconfirmed reaches min_block_confirmation (§4.6 step 4).
func EncodeBlocksAckRequestV0(numMessages uint32) []byte {
	w := NewWriter()
	w.VarUint32(requestTagGetBlocksAckRequestV0)
	w.VarUint32(numMessages)
	return w.Bytes()
}
