package codec

import (
	"fmt"

	"github.com/telosevm/shipcore/types"
)

// contractRowKind is the only table_delta entry kind this pipeline decodes
// further (§4.6 "per-row decode of whitelisted rows"): every other kind
// (account, contract_table, permission, ...) is skipped without decoding
// its rows, since extractGlobalRow only ever looks at contract_row entries.
const contractRowKind = "contract_row"

func decodeDeltaRow(r *Reader) (types.TableDelta, error) {
	code, err := r.String()
	if err != nil {
		return types.TableDelta{}, fmt.Errorf("codec: read row code: %w", err)
	}
	scope, err := r.String()
	if err != nil {
		return types.TableDelta{}, fmt.Errorf("codec: read row scope: %w", err)
	}
	table, err := r.String()
	if err != nil {
		return types.TableDelta{}, fmt.Errorf("codec: read row table: %w", err)
	}
	if _, err := r.Uint64LE(); err != nil { // primary_key, unused by this pipeline
		return types.TableDelta{}, fmt.Errorf("codec: read row primary_key: %w", err)
	}
	payload, err := r.VarBytes()
	if err != nil {
		return types.TableDelta{}, fmt.Errorf("codec: read row payload: %w", err)
	}
	return types.TableDelta{
		Code:    code,
		Scope:   scope,
		Table:   table,
		Payload: append([]byte(nil), payload...),
	}, nil
}

// DecodeTableDeltas decodes a deltas payload (a table_delta[] list). Only
// contract_row entries are decoded down to individual rows; every row's
// Present flag is preserved so a deleted global row is never mistaken for
// a live one (§4.3 extractGlobalRow).
func DecodeTableDeltas(raw []byte) ([]types.TableDelta, error) {
	return Decode(raw, CheckLength, func(r *Reader) ([]types.TableDelta, error) {
		deltaCount, err := r.VarUint32()
		if err != nil {
			return nil, fmt.Errorf("codec: read table_delta count: %w", err)
		}
		var out []types.TableDelta
		for i := uint32(0); i < deltaCount; i++ {
			kind, err := r.String()
			if err != nil {
				return nil, fmt.Errorf("codec: read table_delta %d kind: %w", i, err)
			}
			rowCount, err := r.VarUint32()
			if err != nil {
				return nil, fmt.Errorf("codec: read table_delta %d row count: %w", i, err)
			}
			for j := uint32(0); j < rowCount; j++ {
				present, err := r.Bool()
				if err != nil {
					return nil, fmt.Errorf("codec: read row %d/%d presence: %w", i, j, err)
				}
				data, err := r.VarBytes()
				if err != nil {
					return nil, fmt.Errorf("codec: read row %d/%d data: %w", i, j, err)
				}
				if kind != contractRowKind {
					continue
				}
				row, err := Decode(data, CheckLength, decodeDeltaRow)
				if err != nil {
					return nil, fmt.Errorf("codec: decode contract_row %d/%d: %w", i, j, err)
				}
				row.Present = present
				out = append(out, row)
			}
		}
		return out, nil
	})
}
