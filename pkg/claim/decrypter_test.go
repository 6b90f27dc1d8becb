package claim

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

type stubDecrypter struct {
	plain map[string][]byte
	err   error
}

func (s *stubDecrypter) Decrypt(ciphertext []byte) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.plain[string(ciphertext)]; ok {
		return v, nil
	}
	return ciphertext, nil
}

func validSignature() []byte {
	return make([]byte, signatureLength)
}

func TestDecode_RejectsWrongSignatureLength(t *testing.T) {
	dec := &stubDecrypter{}
	_, err := Decode(dec, []byte("n"), []byte("s"), common.HexToAddress("0x01"), []byte{0x01, 0x02})
	require.Error(t, err)
}

func TestDecode_AcceptsValidSignature(t *testing.T) {
	dec := &stubDecrypter{}
	claim, err := Decode(dec, []byte("nullifier-cipher"), []byte("secret-cipher"), common.HexToAddress("0x01"), validSignature())
	require.NoError(t, err)
	require.Equal(t, validSignature(), claim.ClaimAuth)
}

func TestDecode_PropagatesDecryptError(t *testing.T) {
	dec := &stubDecrypter{err: errors.New("bad key")}
	_, err := Decode(dec, []byte("n"), []byte("s"), common.HexToAddress("0x01"), validSignature())
	require.Error(t, err)
}
