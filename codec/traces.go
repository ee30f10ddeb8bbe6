package codec

import (
	"fmt"

	"github.com/telosevm/shipcore/types"
)

func decodeAuthorization(r *Reader) (types.Authorization, error) {
	actor, err := r.String()
	if err != nil {
		return types.Authorization{}, fmt.Errorf("codec: read actor: %w", err)
	}
	permission, err := r.String()
	if err != nil {
		return types.Authorization{}, fmt.Errorf("codec: read permission: %w", err)
	}
	return types.Authorization{Actor: actor, Permission: permission}, nil
}

func decodeAction(r *Reader) (types.Action, error) {
	account, err := r.String()
	if err != nil {
		return types.Action{}, fmt.Errorf("codec: read account: %w", err)
	}
	name, err := r.String()
	if err != nil {
		return types.Action{}, fmt.Errorf("codec: read action name: %w", err)
	}
	authCount, err := r.VarUint32()
	if err != nil {
		return types.Action{}, fmt.Errorf("codec: read authorization count: %w", err)
	}
	auths := make([]types.Authorization, authCount)
	for i := range auths {
		auths[i], err = decodeAuthorization(r)
		if err != nil {
			return types.Action{}, fmt.Errorf("codec: read authorization %d: %w", i, err)
		}
	}
	data, err := r.VarBytes()
	if err != nil {
		return types.Action{}, fmt.Errorf("codec: read action data: %w", err)
	}
	return types.Action{
		Account:       account,
		Name:          name,
		Authorization: auths,
		Data:          append([]byte(nil), data...),
	}, nil
}

func decodeRawActionTrace(r *Reader) (types.RawActionTrace, error) {
	receiver, err := r.String()
	if err != nil {
		return types.RawActionTrace{}, fmt.Errorf("codec: read receiver: %w", err)
	}
	act, err := decodeAction(r)
	if err != nil {
		return types.RawActionTrace{}, err
	}
	globalSeq, err := r.VarUint64()
	if err != nil {
		return types.RawActionTrace{}, fmt.Errorf("codec: read global_sequence: %w", err)
	}
	return types.RawActionTrace{Receiver: receiver, Act: act, GlobalSequence: globalSeq}, nil
}

func decodeTransactionTrace(r *Reader) (types.TransactionTrace, error) {
	trxID, err := r.String()
	if err != nil {
		return types.TransactionTrace{}, fmt.Errorf("codec: read trx id: %w", err)
	}
	status, err := r.Byte()
	if err != nil {
		return types.TransactionTrace{}, fmt.Errorf("codec: read trace status: %w", err)
	}
	actionCount, err := r.VarUint32()
	if err != nil {
		return types.TransactionTrace{}, fmt.Errorf("codec: read action_traces count: %w", err)
	}
	actions := make([]types.RawActionTrace, actionCount)
	for i := range actions {
		actions[i], err = decodeRawActionTrace(r)
		if err != nil {
			return types.TransactionTrace{}, fmt.Errorf("codec: read action_trace %d: %w", i, err)
		}
	}
	return types.TransactionTrace{TrxID: trxID, Status: status, ActionTraces: actions}, nil
}

// DecodeTransactionTraces decodes a traces payload (a transaction_trace[]
// list) into the flat list extract.Traces expects as input. Every top-level
// trace entry is required to be the v0 shape; this pipeline defines no
// other trace variant.
func DecodeTransactionTraces(raw []byte) ([]types.TransactionTrace, error) {
	return Decode(raw, CheckLength, func(r *Reader) ([]types.TransactionTrace, error) {
		count, err := r.VarUint32()
		if err != nil {
			return nil, fmt.Errorf("codec: read transaction_trace count: %w", err)
		}
		out := make([]types.TransactionTrace, count)
		for i := range out {
			out[i], err = decodeTransactionTrace(r)
			if err != nil {
				return nil, fmt.Errorf("codec: read transaction_trace %d: %w", i, err)
			}
		}
		return out, nil
	})
}
