// Package srtp implements the Secure Real-time Transport Protocol (SRTP) and
// its control-channel counterpart SRTCP, as defined in RFC 3711, together with
// the Roll-over Counter Carry transforms of RFC 4771.
//
// A Context protects one direction of one RTP session. Sender and receiver use
// independent contexts keyed from the same master key and salt.
package srtp

import (
	"encoding/hex"

	"golang.org/x/xerrors"
)

const (
	// Default SRTP key management parameters.
	// See https://tools.ietf.org/html/rfc3711#section-8.2
	masterKeyLength  = 16 // AES-128
	masterSaltLength = 14 // n_s = 112 bits
	authKeyLength    = 20 // n_a = 160 bits
	encryptKeyLength = 16 // n_e = 128 bits
	saltKeyLength    = 14 // n_s = 112 bits

	// DefaultTagLength is the HMAC-SHA1 tag length used when Config.TagLen is
	// zero (n_tag = 80 bits).
	DefaultTagLength = 10
	maxTagLength     = 20
	minTagLength     = 4
	rocLength        = 4

	// E-flag that gets combined with SRTCP index.
	eFlagMask = 1 << 31

	rtpHeaderLength  = 12
	rtcpHeaderLength = 8
)

// Key derivation labels.
// See https://tools.ietf.org/html/rfc3711#section-4.3.1
const (
	labelRTPEncryption  = 0x00
	labelRTPAuth        = 0x01
	labelRTPSalt        = 0x02
	labelRTCPEncryption = 0x03
	labelRTCPAuth       = 0x04
	labelRTCPSalt       = 0x05
)

// Cipher selects the SRTP encryption transform.
type Cipher int

const (
	// AES in counter mode (RFC 3711 section 4.1.1).
	CipherAESCM Cipher = iota

	// The NULL cipher leaves payloads in the clear (RFC 3711 section 4.1.3).
	CipherNull
)

// Auth selects the message authentication transform.
type Auth int

const (
	AuthHMACSHA1 Auth = iota
	AuthNull
)

// PRF selects the key derivation pseudo-random function. Only AES-CM is
// defined.
type PRF int

const (
	PRFAESCM PRF = iota
)

// Config holds the per-context SRTP parameters.
type Config struct {
	Cipher Cipher
	Auth   Auth
	PRF    PRF

	// Length of the authentication tag in bytes: 4 to 20 for HMAC-SHA1
	// (DefaultTagLength if zero), and 0 with AuthNull. With RCC enabled, the
	// 4-byte ROC is carved out of this length on ROC-carrying packets.
	TagLen int

	// Roll-over Counter Carry mode from RFC 4771, 0 to 3.
	//   0: no ROC is ever carried
	//   1: ROC carried every RCCRate packets; only those are authenticated
	//   2: ROC carried every RCCRate packets; every packet is authenticated
	//   3: ROC carried every RCCRate packets; nothing is authenticated
	RCCMode int

	// Number of packets between ROC-carrying packets (default 1).
	RCCRate uint16

	// Send SRTCP packets in the clear, with the E flag unset.
	UnencryptedRTCP bool
}

func (cfg *Config) validate() error {
	if cfg.PRF != PRFAESCM {
		return xerrors.Errorf("unsupported PRF %d: %w", cfg.PRF, ErrInvalid)
	}
	if cfg.Cipher != CipherAESCM && cfg.Cipher != CipherNull {
		return xerrors.Errorf("unsupported cipher %d: %w", cfg.Cipher, ErrInvalid)
	}
	if cfg.RCCMode < 0 || cfg.RCCMode > 3 {
		return xerrors.Errorf("invalid RCC mode %d: %w", cfg.RCCMode, ErrInvalid)
	}
	if cfg.RCCRate == 0 {
		cfg.RCCRate = 1
	}

	switch cfg.Auth {
	case AuthNull:
		if cfg.TagLen != 0 {
			return xerrors.Errorf("tag length %d without authentication: %w", cfg.TagLen, ErrInvalid)
		}
		if cfg.RCCMode != 0 {
			return xerrors.Errorf("RCC mode %d without authentication: %w", cfg.RCCMode, ErrInvalid)
		}
	case AuthHMACSHA1:
		if cfg.TagLen == 0 {
			cfg.TagLen = DefaultTagLength
		}
		if cfg.TagLen < minTagLength || cfg.TagLen > maxTagLength {
			return xerrors.Errorf("tag length %d outside [%d, %d]: %w", cfg.TagLen, minTagLength, maxTagLength, ErrInvalid)
		}
		// Modes 1 and 2 carve the ROC out of the tag, and must leave some tag.
		if (cfg.RCCMode == 1 || cfg.RCCMode == 2) && cfg.TagLen <= rocLength {
			return xerrors.Errorf("tag length %d leaves no tag with RCC mode %d: %w", cfg.TagLen, cfg.RCCMode, ErrInvalid)
		}
	default:
		return xerrors.Errorf("unsupported authentication %d: %w", cfg.Auth, ErrInvalid)
	}
	return nil
}

// One set of session keys, for either SRTP or SRTCP.
type sessionKeys struct {
	encrypt encryptFunc
	auth    authFunc
}

// Context is the cryptographic state for one direction of an SRTP session. It
// is not safe for concurrent use.
type Context struct {
	cfg Config

	rtp  sessionKeys
	rtcp sessionKeys

	// Highest accepted RTP packet index, split into ROC and sequence number,
	// plus the replay window below it.
	rtpStarted bool
	roc        uint32
	seq        uint16
	rtpWindow  replayWindow

	// SRTCP index: the last one sent, or the highest one received.
	rtcpStarted bool
	rtcpIndex   uint32
	rtcpWindow  replayWindow
}

// NewContext derives session keys from a 16-byte master key and a 14-byte
// master salt.
func NewContext(masterKey, masterSalt []byte, cfg Config) (*Context, error) {
	if len(masterKey) != masterKeyLength {
		return nil, xerrors.Errorf("master key is %d bytes, want %d: %w", len(masterKey), masterKeyLength, ErrInvalid)
	}
	if len(masterSalt) != masterSaltLength {
		return nil, xerrors.Errorf("master salt is %d bytes, want %d: %w", len(masterSalt), masterSaltLength, ErrInvalid)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Context{cfg: cfg}
	c.rtp = newSessionKeys(&cfg, masterKey, masterSalt, labelRTPEncryption, labelRTPAuth, labelRTPSalt)
	c.rtcp = newSessionKeys(&cfg, masterKey, masterSalt, labelRTCPEncryption, labelRTCPAuth, labelRTCPSalt)
	return c, nil
}

// NewContextFromHex is NewContext with the key and salt given as hexadecimal
// strings of 32 and 28 characters.
func NewContextFromHex(keyHex, saltHex string, cfg Config) (*Context, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, xerrors.Errorf("master key: %v: %w", err, ErrInvalid)
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return nil, xerrors.Errorf("master salt: %v: %w", err, ErrInvalid)
	}
	return NewContext(key, salt, cfg)
}

func newSessionKeys(cfg *Config, masterKey, masterSalt []byte, encLabel, authLabel, saltLabel byte) sessionKeys {
	var keys sessionKeys
	switch cfg.Cipher {
	case CipherNull:
		keys.encrypt = nullCipher(nil, nil)
	default:
		keys.encrypt = aesCounterMode(
			deriveKey(masterKey, masterSalt, 0, encLabel, encryptKeyLength),
			deriveKey(masterKey, masterSalt, 0, saltLabel, saltKeyLength))
	}
	if cfg.Auth == AuthHMACSHA1 {
		keys.auth = hmacSHA1(deriveKey(masterKey, masterSalt, 0, authLabel, authKeyLength))
	}
	return keys
}

// Config returns the validated configuration, with defaults filled in.
func (c *Context) Config() Config {
	return c.cfg
}

// Overhead returns the maximum number of bytes EncryptRTP appends to a packet.
func (c *Context) Overhead() int {
	if c.cfg.RCCMode == 3 {
		return rocLength
	}
	return c.cfg.TagLen
}

// ROC returns the roll-over counter of the highest accepted RTP packet.
func (c *Context) ROC() uint32 {
	return c.roc
}
