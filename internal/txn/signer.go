package txn

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

// Signer produces a signature over a signing hash. chainID is nil for
// transactions without replay protection and selects how v is formed otherwise.
type Signer interface {
	SignHash(hash common.Hash, chainID *big.Int) (v, r, s *big.Int, err error)
}

// KeySigner signs with an in-memory secp256k1 key.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

var _ Signer = (*KeySigner)(nil)

// NewKeySigner returns a signer for key.
func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// Address is the account controlled by the key.
func (k *KeySigner) Address() common.Address {
	return k.address
}

// SignHash implements Signer. v is chainID*2+35+recid with a chain id and
// 27+recid without.
func (k *KeySigner) SignHash(hash common.Hash, chainID *big.Int) (*big.Int, *big.Int, *big.Int, error) {
	sig, err := crypto.Sign(hash[:], k.key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sign transaction: %w", err)
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	recID := big.NewInt(int64(sig[64]))

	if chainID == nil {
		return new(big.Int).Add(recID, big.NewInt(27)), r, s, nil
	}
	v := new(big.Int).Mul(chainID, big.NewInt(2))
	v.Add(v, big.NewInt(35))
	v.Add(v, recID)
	return v, r, s, nil
}

// Sign signs a signable record and returns the encoded signed transaction with
// its hash.
func Sign(signer Signer, s Signable) ([]byte, common.Hash, error) {
	if s.HasSignatureFields() && !(isZero(s.R) && isZero(s.S)) {
		return nil, common.Hash{}, web3err.Value("transaction is already signed")
	}

	hash, err := SigningHash(s)
	if err != nil {
		return nil, common.Hash{}, err
	}
	v, r, sig, err := signer.SignHash(hash, s.ChainID())
	if err != nil {
		return nil, common.Hash{}, err
	}

	raw, err := MergeSignature(s, v, r, sig)
	if err != nil {
		return nil, common.Hash{}, err
	}
	return raw, crypto.Keccak256Hash(raw), nil
}

// Sender recovers the address that signed an encoded 9-field transaction.
func Sender(raw []byte) (common.Address, error) {
	s, err := Decode(raw)
	if err != nil {
		return common.Address{}, err
	}
	if !s.HasSignatureFields() || isZero(s.R) {
		return common.Address{}, web3err.Value("transaction is not signed")
	}

	chainID := s.ChainID()
	var recID *big.Int
	unsigned := s
	switch {
	case chainID != nil:
		recID = new(big.Int).Sub(s.V, new(big.Int).Add(new(big.Int).Mul(chainID, big.NewInt(2)), big.NewInt(35)))
		unsigned.V, unsigned.R, unsigned.S = chainID, new(big.Int), new(big.Int)
	default:
		recID = new(big.Int).Sub(s.V, big.NewInt(27))
		unsigned.V, unsigned.R, unsigned.S = nil, nil, nil
	}
	if s.R.BitLen() > 256 || s.S.BitLen() > 256 {
		return common.Address{}, web3err.Value("signature values exceed 32 bytes")
	}
	if !recID.IsUint64() || recID.Uint64() > 1 {
		return common.Address{}, web3err.Value("invalid signature v %s", s.V)
	}

	hash, err := SigningHash(unsigned)
	if err != nil {
		return common.Address{}, err
	}
	sig := make([]byte, crypto.SignatureLength)
	s.R.FillBytes(sig[:32])
	s.S.FillBytes(sig[32:64])
	sig[64] = byte(recID.Uint64())

	pub, err := crypto.SigToPub(hash[:], sig)
	if err != nil {
		return common.Address{}, web3err.Value("recover sender: %v", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
