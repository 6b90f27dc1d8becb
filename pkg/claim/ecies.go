package claim

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// ECIES wire format, matching the format the intent-creation side uses to
// encrypt the nullifier and secret for the relayer's public key:
// [ephemeral_pubkey(65) || iv(16) || ciphertext || mac(32)].
const (
	eciesPubKeyLen = 65
	eciesIVLen     = 16
	eciesKeyLen    = 16
	eciesMACLen    = 32
)

// ECIESDecrypter implements Decrypter using ECIES on secp256k1 (ECDH key
// agreement, SHA-256 KDF, AES-128-CTR, HMAC-SHA-256), the curve already
// used throughout this module's signing and address derivation.
type ECIESDecrypter struct {
	privateKey *ecdsa.PrivateKey
}

// NewECIESDecrypter loads the relayer's ECIES private key from its hex
// encoding (the same key material format used for the signing keys
// elsewhere in this module).
func NewECIESDecrypter(privateKeyHex string) (*ECIESDecrypter, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("claim: parse ECIES private key: %w", err)
	}
	return &ECIESDecrypter{privateKey: key}, nil
}

// Decrypt implements Decrypter.
func (d *ECIESDecrypter) Decrypt(ciphertext []byte) ([]byte, error) {
	minSize := eciesPubKeyLen + eciesIVLen + eciesMACLen
	if len(ciphertext) < minSize {
		return nil, fmt.Errorf("claim: ciphertext too short, got %d bytes", len(ciphertext))
	}

	ephPubBytes := ciphertext[:eciesPubKeyLen]
	ephPub, err := crypto.UnmarshalPubkey(ephPubBytes)
	if err != nil {
		return nil, fmt.Errorf("claim: invalid ephemeral public key: %w", err)
	}

	iv := ciphertext[eciesPubKeyLen : eciesPubKeyLen+eciesIVLen]
	macStart := len(ciphertext) - eciesMACLen
	body := ciphertext[eciesPubKeyLen+eciesIVLen : macStart]
	msgMAC := ciphertext[macStart:]

	shared := ecdhSharedSecret(d.privateKey, ephPub)
	encKey, macKey := eciesKDF(shared)

	expectedMAC := computeHMAC(macKey, iv, body)
	if subtle.ConstantTimeCompare(msgMAC, expectedMAC) != 1 {
		return nil, fmt.Errorf("claim: ECIES MAC verification failed")
	}

	plaintext, err := aesCTR(encKey, iv, body)
	if err != nil {
		return nil, fmt.Errorf("claim: ECIES decrypt: %w", err)
	}
	return plaintext, nil
}

// ecdhSharedSecret returns the x-coordinate of prv*pub as a 32-byte
// big-endian value.
func ecdhSharedSecret(prv *ecdsa.PrivateKey, pub *ecdsa.PublicKey) []byte {
	x, _ := prv.Curve.ScalarMult(pub.X, pub.Y, prv.D.Bytes())
	shared := make([]byte, 32)
	xBytes := x.Bytes()
	copy(shared[32-len(xBytes):], xBytes)
	return shared
}

// eciesKDF derives a 16-byte encryption key and a 16-byte MAC key from the
// ECDH shared secret via SHA-256, matching the format the encrypting side
// uses (single-round KDF, split 16/16 out of a 32-byte digest).
func eciesKDF(shared []byte) (encKey, macKey []byte) {
	digest := sha256.Sum256(shared)
	return digest[:eciesKeyLen], digest[eciesKeyLen:]
}

func computeHMAC(macKey, iv, ciphertext []byte) []byte {
	mac := hmac.New(sha256.New, macKey)
	mac.Write(iv)
	mac.Write(ciphertext)
	return mac.Sum(nil)
}

func aesCTR(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	cipher.NewCTR(block, iv).XORKeyStream(out, data)
	return out, nil
}
