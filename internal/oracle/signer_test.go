package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKeyHex  = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	testUser    = "0x2222222222222222222222222222222222222222"
	testVersion = 2
)

type fakeNonceReader struct {
	nonce uint64
	err   error
}

func (f *fakeNonceReader) CurrentNonce(ctx context.Context, user common.Address) (uint64, error) {
	return f.nonce, f.err
}

func TestSigner_Sign(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)

	signer := NewSigner(key, &fakeNonceReader{nonce: 7}, time.Hour)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return fixed }

	signed, err := signer.Sign(context.Background(), testUser, 750, testVersion)
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress(testUser).Hex(), signed.Update.User)
	assert.Equal(t, 750, signed.Update.Score)
	assert.Equal(t, testVersion, signed.Update.Version)
	assert.Equal(t, uint64(7), signed.Update.Nonce)
	assert.Equal(t, fixed.Add(time.Hour).Unix(), signed.Update.Deadline)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), signed.Signer)

	sig, err := hexutil.Decode(signed.Signature)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])
}

func TestSigner_SignDeterministic(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)

	signer := NewSigner(key, &fakeNonceReader{nonce: 3}, time.Hour)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return fixed }

	first, err := signer.Sign(context.Background(), testUser, 500, testVersion)
	require.NoError(t, err)
	second, err := signer.Sign(context.Background(), testUser, 500, testVersion)
	require.NoError(t, err)

	assert.Equal(t, first.Signature, second.Signature)
	assert.Equal(t, first.Update, second.Update)
}

func TestSigner_SignatureRecoversToSigner(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)

	signer := NewSigner(key, &fakeNonceReader{nonce: 9}, time.Hour)

	signed, err := signer.Sign(context.Background(), testUser, 812, testVersion)
	require.NoError(t, err)

	sig, err := hexutil.Decode(signed.Signature)
	require.NoError(t, err)

	digest := scoreUpdateDigest(
		common.HexToAddress(signed.Update.User),
		signed.Update.Score,
		signed.Update.Version,
		signed.Update.Nonce,
		signed.Update.Deadline,
	)

	recovery := make([]byte, 65)
	copy(recovery, sig)
	recovery[64] -= 27

	pub, err := crypto.SigToPub(digest, recovery)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), crypto.PubkeyToAddress(*pub))
}

func TestSigner_DistinctInputsDistinctSignatures(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)

	signer := NewSigner(key, &fakeNonceReader{nonce: 1}, time.Hour)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return fixed }

	a, err := signer.Sign(context.Background(), testUser, 500, testVersion)
	require.NoError(t, err)
	b, err := signer.Sign(context.Background(), testUser, 501, testVersion)
	require.NoError(t, err)

	assert.NotEqual(t, a.Signature, b.Signature)
}

func TestSigner_Unconfigured(t *testing.T) {
	var nilSigner *Signer
	assert.False(t, nilSigner.Configured())

	signer := NewSigner(nil, nil, time.Hour)
	_, err := signer.Sign(context.Background(), testUser, 100, testVersion)
	assert.ErrorIs(t, err, ErrSignerUnconfigured)
}

func TestSigner_NonceReadFailure(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)

	signer := NewSigner(key, &fakeNonceReader{err: errors.New("rpc down")}, time.Hour)

	_, err = signer.Sign(context.Background(), testUser, 100, testVersion)
	assert.Error(t, err)
}
