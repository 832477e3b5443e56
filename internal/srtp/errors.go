package srtp

import (
	"errors"

	"golang.org/x/xerrors"
)

// The three failure classes of the SRTP transform. Callers test for them with
// errors.Is; the more specific errors below wrap them.
var (
	// ErrInvalid reports a malformed packet or an unusable configuration
	// (EINVAL).
	ErrInvalid = errors.New("srtp: invalid argument")

	// ErrAccess reports an authentication or replay failure (EACCES). The
	// packet must be discarded, but the stream is otherwise healthy.
	ErrAccess = errors.New("srtp: access denied")

	// ErrNoSpace reports that the destination buffer cannot hold the ROC and
	// authentication tag (ENOSPC). The accompanying length is the size needed.
	ErrNoSpace = errors.New("srtp: no buffer space")
)

var (
	ErrAuth   = xerrors.Errorf("authentication tag mismatch: %w", ErrAccess)
	ErrReplay = xerrors.Errorf("replayed packet: %w", ErrAccess)

	errVersion     = xerrors.Errorf("bad RTP version: %w", ErrInvalid)
	errShortPacket = xerrors.Errorf("packet too short: %w", ErrInvalid)
	errEncryptBit  = xerrors.Errorf("SRTCP E flag does not match configuration: %w", ErrInvalid)
)
