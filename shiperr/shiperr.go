// Package shiperr defines the sentinel errors shared by the ship reader,
// the block assembler, and the ordered queue, following the small
// exported-sentinel convention used throughout go-ethereum's core and
// consensus packages.
package shiperr

import "errors"

var (
	// ErrTransport means the websocket session closed or errored. It is
	// recoverable: the caller should reconnect.
	ErrTransport = errors.New("shipcore: transport error")

	// ErrUnsupportedVariant means the codec was asked to decode a
	// tagged-union variant it does not recognize for the current context
	// (e.g. a get_blocks_result or signed_block tag outside the accepted
	// set). Fatal.
	ErrUnsupportedVariant = errors.New("shipcore: unsupported variant")

	// ErrTrailingBytes means a checkLength decode did not consume the
	// entire buffer. Fatal.
	ErrTrailingBytes = errors.New("shipcore: trailing bytes after decode")

	// ErrDecode means a decode task submitted to the worker pool failed.
	// Fatal to the current session; pauses the ordered queue.
	ErrDecode = errors.New("shipcore: decode error")

	// ErrGap means this_block.block_num skipped ahead of lastAccepted+1.
	// Fatal.
	ErrGap = errors.New("shipcore: block gap")

	// ErrFork means this_block.block_num was re-observed or receded.
	// Rollback is not implemented; fatal.
	ErrFork = errors.New("shipcore: fork detected")

	// ErrTxDeserialization means a per-action decoder collaborator failed.
	// Suppressed into ProcessedBlock.Errors under debug mode, otherwise
	// fatal.
	ErrTxDeserialization = errors.New("shipcore: tx deserialization error")

	// ErrMissingPayload means a fetch flag was requested but the node's
	// response omitted the corresponding payload and allow_empty_* is
	// false for that payload. Fatal to the current session.
	ErrMissingPayload = errors.New("shipcore: missing requested payload")

	// ErrQueuePaused means an enqueue was attempted while the ordered
	// queue is paused following a prior failure.
	ErrQueuePaused = errors.New("shipcore: queue paused")
)
