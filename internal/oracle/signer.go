package oracle

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/credo-protocol/credo-engine/internal/models"
)

// Signer produces signed score attestations. Signing is stateless and
// side-effect free: the only remote interaction is the read of the user's
// current replay nonce.
type Signer struct {
	key      *ecdsa.PrivateKey
	address  common.Address
	nonces   NonceReader
	validity time.Duration
	now      func() time.Time
}

func NewSigner(key *ecdsa.PrivateKey, nonces NonceReader, validity time.Duration) *Signer {
	var addr common.Address
	if key != nil {
		addr = crypto.PubkeyToAddress(key.PublicKey)
	}
	return &Signer{
		key:      key,
		address:  addr,
		nonces:   nonces,
		validity: validity,
		now:      time.Now,
	}
}

func (s *Signer) Configured() bool {
	return s != nil && s.key != nil && s.nonces != nil
}

// Address returns the signer identity derived from the key.
func (s *Signer) Address() common.Address {
	return s.address
}

// Sign reads the user's current on-chain nonce, stamps a deadline, and signs
// the domain-separated update hash. The nonce is read immediately before
// signing to minimize staleness; a concurrent external update can still
// invalidate the signature, bounded by the deadline window.
func (s *Signer) Sign(ctx context.Context, user string, score, version int) (*models.SignedAttestation, error) {
	if !s.Configured() {
		return nil, ErrSignerUnconfigured
	}

	userAddr := common.HexToAddress(user)

	nonce, err := s.nonces.CurrentNonce(ctx, userAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to read current nonce for %s: %w", user, err)
	}

	deadline := s.now().Add(s.validity).Unix()

	digest := scoreUpdateDigest(userAddr, score, version, nonce, deadline)
	signature, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign score update: %w", err)
	}
	// Normalize the recovery id to the 27/28 convention ecrecover expects.
	signature[64] += 27

	return &models.SignedAttestation{
		Update: models.AttestationUpdate{
			User:     userAddr.Hex(),
			Score:    score,
			Version:  version,
			Nonce:    nonce,
			Deadline: deadline,
		},
		Signature: hexutil.Encode(signature),
		Signer:    s.address.Hex(),
	}, nil
}

// scoreUpdateDigest builds the signable digest for an update tuple: the
// tightly packed preimage ("ScoreUpdate" tag, 20-byte address, four 32-byte
// big-endian words) is keccak-hashed, then wrapped with the standard Ethereum
// signed-message prefix. The byte layout must match the contract's
// getScoreUpdateHash exactly; any drift breaks on-chain verification.
func scoreUpdateDigest(user common.Address, score, version int, nonce uint64, deadline int64) []byte {
	var buf bytes.Buffer
	buf.WriteString("ScoreUpdate")
	buf.Write(user.Bytes())
	buf.Write(common.LeftPadBytes(big.NewInt(int64(score)).Bytes(), 32))
	buf.Write(common.LeftPadBytes(big.NewInt(int64(version)).Bytes(), 32))
	buf.Write(common.LeftPadBytes(new(big.Int).SetUint64(nonce).Bytes(), 32))
	buf.Write(common.LeftPadBytes(big.NewInt(deadline).Bytes(), 32))

	return accounts.TextHash(crypto.Keccak256(buf.Bytes()))
}
