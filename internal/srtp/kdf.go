package srtp

import (
	"crypto/aes"
	"crypto/cipher"
)

// SRTP key derivation algorithm.
//   - r = index DIV key_derivation_rate is the 48-bit packet index divided by
//     the key derivation rate (or 0 if the rate is 0).
//   - label indicates which type of key to produce.
//   - n is the length of the output key in bytes.
//
// Only a key derivation rate of 0 is supported, so callers pass r = 0.
// See https://tools.ietf.org/html/rfc3711#section-4.3
func deriveKey(masterKey, masterSalt []byte, r uint64, label byte, n int) []byte {
	// From https://tools.ietf.org/html/rfc3711#section-4.3:
	//   x = key_id XOR master_salt,
	// where
	//   key_id = <label> || r.
	// Then (https://tools.ietf.org/html/rfc3711#section-4.3.3) the IV for key
	// derivation is x*2^16. Pictorally, this looks like:
	//   xxxxxxxxxxxxxx00  <- salt (112 bits = 14 bytes)
	//   0000000x00000000  <- label
	//   00000000xxxxxx00  <- r
	x := make([]byte, aes.BlockSize)
	copy(x, masterSalt)

	if r > 0 {
		xor64(x[masterSaltLength-8:], trunc(r, 48))
	}
	x[masterSaltLength-7] ^= label

	// The derived key comes from the PRF keystream, which we get by XOR'ing
	// with zeros.
	key := make([]byte, n)
	aesPRF(masterKey, x).XORKeyStream(key, key)
	return key
}

// The default PRF for SRTP is AES-CM, keyed with the master key.
// https://tools.ietf.org/html/rfc3711#section-4.3.3
func aesPRF(masterKey, iv []byte) cipher.Stream {
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		panic(err) // key length is checked by NewContext
	}
	return cipher.NewCTR(block, iv)
}
