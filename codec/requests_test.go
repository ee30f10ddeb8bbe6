package codec

import (
	"testing"

	"github.com/telosevm/shipcore/types"
)

func TestEncodeBlocksRequestV0StartsWithRequestTag(t *testing.T) {
	req := types.BlockRequest{
		StartBlockNum:       10,
		EndBlockNum:         types.DefaultEndBlockNum,
		MaxMessagesInFlight: 5,
		Flags:               types.FetchFlags{FetchBlock: true, FetchTraces: true, FetchDeltas: true},
		HavePositions: []types.BlockPosition{
			{BlockNum: 9, BlockID: make([]byte, 32)},
		},
	}
	buf := EncodeBlocksRequestV0(req)
	if len(buf) == 0 {
		t.Fatalf("expected non-empty buffer")
	}
	if buf[0] != requestTagGetBlocksRequestV0 {
		t.Fatalf("expected leading request tag %d, got %d", requestTagGetBlocksRequestV0, buf[0])
	}
}

func TestEncodeBlocksAckRequestV0(t *testing.T) {
	buf := EncodeBlocksAckRequestV0(3)
	if len(buf) != 2 {
		t.Fatalf("expected 2-byte ack frame (tag + count), got %d bytes", len(buf))
	}
	if buf[0] != requestTagGetBlocksAckRequestV0 {
		t.Fatalf("expected leading ack tag %d, got %d", requestTagGetBlocksAckRequestV0, buf[0])
	}
	if buf[1] != 3 {
		t.Fatalf("expected varuint32(3) to encode as single byte 3, got %d", buf[1])
	}
}
