package codec

import "fmt"

// GlobalRowPayload is the decoded eosio/eosio/global row this chain carries
// an EVM block number on. BlockNum is the only field BlockAssembler reads
// (§4.7 step 3: evmBlockNumber ← decoded.block_num).
type GlobalRowPayload struct {
	BlockNum uint32
}

// DecodeGlobalRow decodes the payload returned by extract.GlobalRow.
func DecodeGlobalRow(raw []byte) (GlobalRowPayload, error) {
	return Decode(raw, CheckLength, func(r *Reader) (GlobalRowPayload, error) {
		blockNum, err := r.Uint32LE()
		if err != nil {
			return GlobalRowPayload{}, fmt.Errorf("codec: read global.block_num: %w", err)
		}
		return GlobalRowPayload{BlockNum: blockNum}, nil
	})
}
