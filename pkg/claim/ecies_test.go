package claim

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

// eciesEncryptForTest mirrors ECIESDecrypter.Decrypt's wire format, used
// only to produce fixtures for the round-trip test below.
func eciesEncryptForTest(t *testing.T, pub *ecdsa.PublicKey, plaintext []byte) []byte {
	t.Helper()
	ephKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	shared := ecdhSharedSecret(ephKey, pub)
	encKey, macKey := eciesKDF(shared)

	iv := make([]byte, eciesIVLen)
	_, err = rand.Read(iv)
	require.NoError(t, err)

	block, err := aes.NewCipher(encKey)
	require.NoError(t, err)
	body := make([]byte, len(plaintext))
	cipher.NewCTR(block, iv).XORKeyStream(body, plaintext)

	mac := computeHMAC(macKey, iv, body)

	ephPubBytes := crypto.FromECDSAPub(&ephKey.PublicKey)
	out := make([]byte, 0, len(ephPubBytes)+len(iv)+len(body)+len(mac))
	out = append(out, ephPubBytes...)
	out = append(out, iv...)
	out = append(out, body...)
	out = append(out, mac...)
	return out
}

func TestECIESDecrypter_RoundTrips(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	plaintext := []byte("super secret nullifier bytes!!!")
	ciphertext := eciesEncryptForTest(t, &key.PublicKey, plaintext)

	dec := &ECIESDecrypter{privateKey: key}
	got, err := dec.Decrypt(ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestECIESDecrypter_RejectsTamperedMAC(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	ciphertext := eciesEncryptForTest(t, &key.PublicKey, []byte("hello"))
	ciphertext[len(ciphertext)-1] ^= 0xFF

	dec := &ECIESDecrypter{privateKey: key}
	_, err = dec.Decrypt(ciphertext)
	require.Error(t, err)
}

func TestECIESDecrypter_RejectsShortCiphertext(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	dec := &ECIESDecrypter{privateKey: key}
	_, err = dec.Decrypt([]byte("too short"))
	require.Error(t, err)
}

func TestNewECIESDecrypter_RejectsInvalidHex(t *testing.T) {
	_, err := NewECIESDecrypter("not-hex")
	require.Error(t, err)
}
