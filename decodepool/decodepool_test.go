package decodepool

import (
	"testing"

	"github.com/telosevm/shipcore/codec"
)

func buildSchema() *codec.Schema {
	s := codec.EmptySchema()
	codec.DefaultSchema(s)
	return s
}

func TestInlineFallbackDecodesDeltas(t *testing.T) {
	p, err := New(0, buildSchema())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Release()

	// an empty deltas payload (zero table_delta entries) is valid input.
	res := p.Decode(Task{Type: TypeDeltas, Bytes: []byte{0}})
	if !res.Success {
		t.Fatalf("expected success, got message %q", res.Message)
	}
	deltas, ok := DeltasOf(res)
	if !ok || len(deltas) != 0 {
		t.Fatalf("unexpected deltas result: %+v ok=%v", deltas, ok)
	}
}

func TestPooledDecodeDecodesTraces(t *testing.T) {
	pooled, err := New(2, buildSchema())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer pooled.Release()

	res := pooled.Decode(Task{Type: TypeTraces, Bytes: []byte{0}})
	if !res.Success {
		t.Fatalf("expected success, got message %q", res.Message)
	}
	traces, ok := TracesOf(res)
	if !ok || len(traces) != 0 {
		t.Fatalf("unexpected traces result: %+v ok=%v", traces, ok)
	}
}

func TestDecodeBatchPreservesOrder(t *testing.T) {
	p, err := New(4, buildSchema())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Release()

	tasks := []Task{
		{Type: TypeDeltas, Bytes: []byte{0}},
		{Type: TypeTraces, Bytes: []byte{0}},
		{Type: "bogus", Bytes: nil},
	}
	results := p.DecodeBatch(tasks)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if _, ok := DeltasOf(results[0]); !ok {
		t.Fatalf("result[0] is not a deltas result: %+v", results[0])
	}
	if _, ok := TracesOf(results[1]); !ok {
		t.Fatalf("result[1] is not a traces result: %+v", results[1])
	}
	if results[2].Success {
		t.Fatalf("expected result[2] to fail for unknown task type")
	}
}

func TestUnknownTaskTypeFails(t *testing.T) {
	p, err := New(0, buildSchema())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Release()

	res := p.Decode(Task{Type: "nonsense", Bytes: []byte{0}})
	if res.Success {
		t.Fatalf("expected failure for unknown task type")
	}
	if res.Message == "" {
		t.Fatalf("expected a failure message")
	}
}

func TestBlockTaskTypeRoundTrip(t *testing.T) {
	if got := BlockTaskType("get_blocks_result_v1"); got != "block:get_blocks_result_v1" {
		t.Fatalf("unexpected task type: %q", got)
	}
}
