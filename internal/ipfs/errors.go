package ipfs

import "errors"

// Sentinel errors returned by Node implementations.
var (
	// ErrDisabled is returned by the Null node when publication is
	// turned off by configuration.
	ErrDisabled = errors.New("ipfs: publishing disabled")

	// ErrCIDMismatch is returned when the node reports a different
	// content id than the one computed locally for the uploaded bytes.
	ErrCIDMismatch = errors.New("ipfs: node returned mismatching cid")
)
