package srtp

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

var (
	testKey  = []byte("TopSecret128bits")
	testSalt = []byte("SodiumChloride")
)

func newPair(t *testing.T, cfg Config) (tx, rx *Context) {
	tx, err := NewContext(testKey, testSalt, cfg)
	require.NoError(t, err)
	rx, err = NewContext(testKey, testSalt, cfg)
	require.NoError(t, err)
	return tx, rx
}

func marshalRTP(t *testing.T, seq uint16, payload []byte) []byte {
	p := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    96,
			SequenceNumber: seq,
			Timestamp:      55555555,
			SSRC:           0x1337d00d,
		},
		Payload: payload,
	}
	b, err := p.Marshal()
	require.NoError(t, err)
	return b
}

func protect(t *testing.T, c *Context, plain []byte) []byte {
	buf := make([]byte, len(plain)+maxTagLength)
	copy(buf, plain)
	n, err := c.EncryptRTP(buf, len(plain))
	require.NoError(t, err)
	return buf[:n]
}

func TestRoundTripRCCModes(t *testing.T) {
	payloads := [][]byte{
		nil,
		[]byte("x"),
		[]byte("abcdefghijklmnopqrstuvwxyz"),
		bytes.Repeat([]byte{0xa5}, 1400),
	}

	for mode := 0; mode <= 3; mode++ {
		for _, rate := range []uint16{1, 3} {
			tx, rx := newPair(t, Config{RCCMode: mode, RCCRate: rate})
			// Cross a sequence number wrap so the ROC has to move.
			seq := uint16(65530)
			for i := 0; i < 12; i++ {
				payload := payloads[i%len(payloads)]
				plain := marshalRTP(t, seq, payload)

				sealed := protect(t, tx, plain)
				if len(payload) > 4 {
					assert.NotEqual(t, plain[12:], sealed[12:len(plain)], "mode %d seq %d", mode, seq)
				}

				opened, err := rx.DecryptRTP(sealed)
				require.NoError(t, err, "mode %d rate %d seq %d", mode, rate, seq)
				assert.Equal(t, plain, opened, "mode %d rate %d seq %d", mode, rate, seq)
				seq++
			}
			assert.Equal(t, uint32(1), rx.ROC(), "mode %d", mode)
		}
	}
}

func TestReplayRejected(t *testing.T) {
	tx, rx := newPair(t, Config{})

	first := protect(t, tx, marshalRTP(t, 100, []byte("one")))
	second := protect(t, tx, marshalRTP(t, 101, []byte("two")))
	replay := append([]byte(nil), first...)

	_, err := rx.DecryptRTP(first)
	require.NoError(t, err)
	_, err = rx.DecryptRTP(second)
	require.NoError(t, err)

	_, err = rx.DecryptRTP(replay)
	assert.True(t, xerrors.Is(err, ErrAccess))
	assert.Equal(t, ErrReplay, err)
}

func TestReorderWithinWindow(t *testing.T) {
	tx, rx := newPair(t, Config{})

	var sealed [][]byte
	for seq := uint16(0); seq < 70; seq++ {
		sealed = append(sealed, protect(t, tx, marshalRTP(t, seq, []byte{byte(seq)})))
	}

	// Deliver 69 first, then older ones: 6..68 fit in the window, 5 does not.
	_, err := rx.DecryptRTP(sealed[0])
	require.NoError(t, err)
	_, err = rx.DecryptRTP(sealed[69])
	require.NoError(t, err)
	_, err = rx.DecryptRTP(sealed[6])
	assert.NoError(t, err)
	_, err = rx.DecryptRTP(sealed[5])
	assert.True(t, xerrors.Is(err, ErrAccess))
}

func TestTamperedPacket(t *testing.T) {
	tx, rx := newPair(t, Config{TagLen: 20})

	sealed := protect(t, tx, marshalRTP(t, 7, []byte("payload")))
	sealed[13] ^= 0x01
	before := *rx

	_, err := rx.DecryptRTP(sealed)
	assert.Equal(t, ErrAuth, err)
	assert.Equal(t, before.rtpStarted, rx.rtpStarted)
	assert.Equal(t, before.rtpWindow, rx.rtpWindow)
}

func TestNoSpace(t *testing.T) {
	tx, _ := newPair(t, Config{})
	plain := marshalRTP(t, 1, []byte("payload"))
	buf := append([]byte(nil), plain...)

	need, err := tx.EncryptRTP(buf, len(buf))
	assert.Equal(t, ErrNoSpace, err)
	assert.Equal(t, len(plain)+DefaultTagLength, need)
	assert.Equal(t, plain, buf)

	buf = append(buf, make([]byte, need-len(buf))...)
	n, err := tx.EncryptRTP(buf, len(plain))
	require.NoError(t, err)
	assert.Equal(t, need, n)
}

func TestMalformed(t *testing.T) {
	_, rx := newPair(t, Config{Auth: AuthNull})

	_, err := rx.DecryptRTP(make([]byte, 8))
	assert.True(t, xerrors.Is(err, ErrInvalid))

	bad := marshalRTP(t, 1, []byte("v1"))
	bad[0] = 0x40
	_, err = rx.DecryptRTP(bad)
	assert.True(t, xerrors.Is(err, ErrInvalid))

	// Extension header claiming more words than the packet holds.
	ext := marshalRTP(t, 2, nil)
	ext[0] |= 0x10
	ext = append(ext, 0xbe, 0xde, 0x00, 0x09)
	_, err = rx.DecryptRTP(ext)
	assert.True(t, xerrors.Is(err, ErrInvalid))
}

func TestNullTransforms(t *testing.T) {
	tx, rx := newPair(t, Config{Cipher: CipherNull, Auth: AuthNull})
	plain := marshalRTP(t, 9, []byte("clear"))

	sealed := protect(t, tx, plain)
	assert.Equal(t, plain, sealed)

	opened, err := rx.DecryptRTP(sealed)
	require.NoError(t, err)
	assert.Equal(t, plain, opened)
}

func TestConfigErrors(t *testing.T) {
	for _, cfg := range []Config{
		{TagLen: 3},
		{TagLen: 21},
		{RCCMode: 4},
		{Auth: AuthNull, TagLen: 10},
		{Auth: AuthNull, RCCMode: 1},
		{RCCMode: 1, TagLen: 4},
		{RCCMode: 2, TagLen: 4},
		{Cipher: Cipher(7)},
		{PRF: PRF(1)},
	} {
		_, err := NewContext(testKey, testSalt, cfg)
		assert.True(t, xerrors.Is(err, ErrInvalid), "%+v", cfg)
	}

	_, err := NewContext(testKey[:15], testSalt, Config{})
	assert.True(t, xerrors.Is(err, ErrInvalid))
	_, err = NewContext(testKey, testSalt[:13], Config{})
	assert.True(t, xerrors.Is(err, ErrInvalid))

	_, err = NewContextFromHex("E1F97A0D3E018BE0D64FA32C06DE4139", "0EC675AD498AFEEBB6960B3AABE6", Config{})
	assert.NoError(t, err)
	_, err = NewContextFromHex("zz", "0EC675AD498AFEEBB6960B3AABE6", Config{})
	assert.True(t, xerrors.Is(err, ErrInvalid))

	_, err = NewContext(testKey, testSalt, Config{RCCMode: 3, TagLen: 4})
	assert.NoError(t, err)

	c, err := NewContext(testKey, testSalt, Config{RCCMode: 2})
	require.NoError(t, err)
	assert.Equal(t, DefaultTagLength, c.Config().TagLen)
	assert.Equal(t, uint16(1), c.Config().RCCRate)
}

func TestForgedROCRejected(t *testing.T) {
	for _, mode := range []int{1, 2} {
		_, rx := newPair(t, Config{RCCMode: mode, TagLen: 8})

		// Four tag bytes remain after the ROC, so a made-up trailer fails.
		forged := append(marshalRTP(t, 0, []byte("attacker-controlled")), 0, 0, 0, 7, 0, 0, 0, 0)
		_, err := rx.DecryptRTP(forged)
		assert.True(t, xerrors.Is(err, ErrAccess), "mode %d: %v", mode, err)
		assert.Equal(t, uint32(0), rx.ROC(), "mode %d", mode)
	}
}

// AES-CM Test Vectors: https://tools.ietf.org/html/rfc3711#appendix-B.2
func TestAESCounterMode(t *testing.T) {
	sessionKey, _ := hex.DecodeString("2B7E151628AED2A6ABF7158809CF4F3C")
	sessionSalt, _ := hex.DecodeString("F0F1F2F3F4F5F6F7F8F9FAFBFCFD")
	encrypt := aesCounterMode(sessionKey, sessionSalt)

	// Encrypt a block of zeros to get the keystream.
	keystream := make([]byte, 0xff020)
	encrypt(keystream, uint32(0), uint64(0))

	checkHex(t, keystream[0:48],
		"E03EAD0935C95E80E166B16DD92B4EB4"+
			"D23513162B02D0F72A43A2FE4A5F97AB"+
			"41E95B3BB0A2E8DD477901E4FCA894C0")
	checkHex(t, keystream[len(keystream)-48:],
		"EC8CDF7398607CB0F2D21675EA9EA1E4"+
			"362B7C3C6773516318A077D7FC5073AE"+
			"6A2CC3787889374FBEB4C81B17BA6C44")
}

// Key Derivation Test Vectors: https://tools.ietf.org/html/rfc3711#appendix-B.3
func TestDeriveKey(t *testing.T) {
	masterKey, _ := hex.DecodeString("E1F97A0D3E018BE0D64FA32C06DE4139")
	masterSalt, _ := hex.DecodeString("0EC675AD498AFEEBB6960B3AABE6")

	checkHex(t, deriveKey(masterKey, masterSalt, 0, labelRTPEncryption, 16),
		"C61E7A93744F39EE10734AFE3FF7A087")
	checkHex(t, deriveKey(masterKey, masterSalt, 0, labelRTPSalt, 14),
		"30CBBC08863D8C85D49DB34A9AE1")
	checkHex(t, deriveKey(masterKey, masterSalt, 0, labelRTPAuth, 94),
		"CEBE321F6FF7716B6FD4AB49AF256A15"+
			"6D38BAA48F0A0ACF3C34E2359E6CDBCE"+
			"E049646C43D9327AD175578EF7227098"+
			"6371C10C9A369AC2F94A8C5FBCDDDC25"+
			"6D6E919A48B610EF17C2041E47403576"+
			"6B68642C59BBFC2F34DB60DBDFB2")
}

func TestReplayWindow(t *testing.T) {
	var w replayWindow
	assert.True(t, w.accept(1))
	assert.False(t, w.accept(0))
	assert.True(t, w.accept(5))
	assert.True(t, w.accept(-3))
	assert.False(t, w.accept(-3))
	assert.False(t, w.accept(-64))
	assert.True(t, w.accept(100))
	assert.Equal(t, replayWindow(1), w)
}

func checkHex(t *testing.T, value []byte, expectedHex string) {
	t.Helper()
	assert.Equal(t, strings.ToLower(expectedHex), hex.EncodeToString(value))
}
