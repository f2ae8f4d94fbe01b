package core

import "hyperdrift-taker/internal/signer"

// noopSigner satisfies executor.ActionSigner for dry-run mode when no
// trading key was configured: it returns a fixed placeholder signature,
// not in the 32-byte r/s wire format, so the tick loop's signing
// step never nil-panics on a path that dry-run never actually posts.
type noopSigner struct{}

func (noopSigner) SignAction(action any, nonce int64, vaultAddress string, expiresAfterMs int64) (signer.Signature, error) {
	return signer.Signature{R: "0x0", S: "0x0", V: "0x1b"}, nil
}
