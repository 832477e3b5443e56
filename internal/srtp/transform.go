package srtp

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"hash"
	"sync"
)

// An encryptFunc encrypts an RTP/RTCP payload in place, using a unique
// cryptographic keystream for each combination of SSRC and index. Counter
// mode makes encryption and decryption the same operation.
type encryptFunc func(payload []byte, ssrc uint32, index uint64)

// An authFunc computes the full (untruncated) authentication tag over the
// concatenation of its arguments.
type authFunc func(m ...[]byte) []byte

// AES in counter mode (the default encryption transform for SRTP).
// See https://tools.ietf.org/html/rfc3711#section-4.1.1
func aesCounterMode(key, salt []byte) encryptFunc {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err) // invalid key size
	}
	// Reuse IV byte slices, to reduce heap allocations.
	ivPool := sync.Pool{
		New: func() interface{} {
			return make([]byte, aes.BlockSize)
		},
	}

	return func(payload []byte, ssrc uint32, index uint64) {
		iv := ivPool.Get().([]byte)
		defer ivPool.Put(iv)

		// From https://tools.ietf.org/html/rfc3711#section-4.1.1:
		//   IV = (k_s * 2^16) XOR (SSRC * 2^64) XOR (i * 2^16)
		//
		// Pictorally, this looks like:
		//   xxxxxxxxxxxxxx00  <- salt (112 bits = 14 bytes)
		//   0000xxxx00000000  <- SSRC (32 bits = 4 bytes)
		//   00000000xxxxxx00  <- index (48 bits = 6 bytes)
		copy(iv, salt)
		clear(iv[len(salt):])
		xor32(iv[4:], ssrc)
		xor64(iv[6:], trunc(index, 48))

		cipher.NewCTR(block, iv).XORKeyStream(payload, payload)
	}
}

// No-op encryption.
// See https://tools.ietf.org/html/rfc3711#section-4.1.3
func nullCipher(key, salt []byte) encryptFunc {
	return func(payload []byte, ssrc uint32, index uint64) {}
}

// HMAC-SHA1 (the default authentication transform for SRTP).
// See https://tools.ietf.org/html/rfc3711#section-4.2
func hmacSHA1(authKey []byte) authFunc {
	// A pool of reusable HMAC-SHA1 hash instances, to reduce heap allocations.
	hashPool := sync.Pool{
		New: func() interface{} {
			return hmac.New(sha1.New, authKey)
		},
	}
	return func(m ...[]byte) []byte {
		mac := hashPool.Get().(hash.Hash)
		for _, b := range m {
			mac.Write(b)
		}
		tag := mac.Sum(nil)

		mac.Reset()
		hashPool.Put(mac)
		return tag
	}
}

// Truncate a 64-bit value to its lowest n bits.
func trunc(v uint64, n uint8) uint64 {
	return v & ((1 << n) - 1)
}

// XOR the bytes of a buffer with the given value.
func xor32(buf []byte, v uint32) {
	buf[0] ^= byte(v >> 24)
	buf[1] ^= byte(v >> 16)
	buf[2] ^= byte(v >> 8)
	buf[3] ^= byte(v)
}

// XOR the bytes of a buffer with the given value.
func xor64(buf []byte, v uint64) {
	xor32(buf[0:4], uint32(v>>32))
	xor32(buf[4:8], uint32(v))
}
