package txn

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

const (
	// UnsignedFieldCount is the length of the record without signature fields.
	UnsignedFieldCount = 6
	// SignedFieldCount is the length of the record with v, r and s.
	SignedFieldCount = 9
)

// Signable is a filled transaction in codec form. A nil V selects the 6-field
// unsigned record; otherwise V, R and S are encoded, either as the EIP-155
// placeholder (chainId, 0, 0) or as a real signature.
type Signable struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       *common.Address
	Value    *big.Int
	Data     []byte

	V, R, S *big.Int
}

// HasSignatureFields reports whether the record carries v, r and s.
func (s Signable) HasSignatureFields() bool {
	return s.V != nil
}

// ChainID returns the chain id carried by an EIP-155 placeholder or derived from
// a protected signature's v, and nil for unprotected records.
func (s Signable) ChainID() *big.Int {
	if s.V == nil {
		return nil
	}
	if isZero(s.R) && isZero(s.S) {
		return new(big.Int).Set(s.V)
	}
	// v = chainId*2 + 35 + recovery id
	if s.V.Cmp(big.NewInt(35)) < 0 {
		return nil
	}
	id := new(big.Int).Sub(s.V, big.NewInt(35))
	return id.Rsh(id, 1)
}

type unsignedRecord struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       []byte
	Value    *big.Int
	Data     []byte
}

type signedRecord struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       []byte
	Value    *big.Int
	Data     []byte
	V        *big.Int
	R        *big.Int
	S        *big.Int
}

type decodedRecord struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       []byte
	Value    *big.Int
	Data     []byte
	V        *big.Int `rlp:"optional"`
	R        *big.Int `rlp:"optional"`
	S        *big.Int `rlp:"optional"`
}

// ApplyReplayProtection converts a filled request into its signable form. A chain
// id becomes the placeholder v=chainId, r=0, s=0; without one no signature fields
// are added. Every field except chainId and to must be present.
func ApplyReplayProtection(req Request) (Signable, error) {
	switch {
	case req.Nonce == nil:
		return Signable{}, missing(ParamNonce)
	case req.GasPrice == nil:
		return Signable{}, missing(ParamGasPrice)
	case req.Gas == nil:
		return Signable{}, missing(ParamGas)
	case req.Value == nil:
		return Signable{}, missing(ParamValue)
	case req.Data == nil:
		return Signable{}, missing(ParamData)
	}

	s := Signable{
		Nonce:    uint64(*req.Nonce),
		GasPrice: new(big.Int).Set(req.GasPrice.ToInt()),
		Gas:      uint64(*req.Gas),
		Value:    new(big.Int).Set(req.Value.ToInt()),
		Data:     append([]byte{}, *req.Data...),
	}
	if req.To != nil {
		to := *req.To
		s.To = &to
	}
	if req.ChainID != nil && !req.Unprotected {
		s.V = new(big.Int).Set(req.ChainID.ToInt())
		s.R = new(big.Int)
		s.S = new(big.Int)
	}
	return s, nil
}

func missing(param string) error {
	return web3err.Value("transaction is missing %s", param)
}

// Encode serializes s as the 9-field record when it has signature fields and the
// 6-field record otherwise.
func Encode(s Signable) ([]byte, error) {
	var to []byte
	if s.To != nil {
		to = s.To.Bytes()
	}

	if !s.HasSignatureFields() {
		return rlp.EncodeToBytes(&unsignedRecord{
			Nonce:    s.Nonce,
			GasPrice: orZero(s.GasPrice),
			Gas:      s.Gas,
			To:       to,
			Value:    orZero(s.Value),
			Data:     s.Data,
		})
	}

	return rlp.EncodeToBytes(&signedRecord{
		Nonce:    s.Nonce,
		GasPrice: orZero(s.GasPrice),
		Gas:      s.Gas,
		To:       to,
		Value:    orZero(s.Value),
		Data:     s.Data,
		V:        orZero(s.V),
		R:        orZero(s.R),
		S:        orZero(s.S),
	})
}

// Decode parses a 6- or 9-field record.
func Decode(encoded []byte) (Signable, error) {
	var rec decodedRecord
	if err := rlp.DecodeBytes(encoded, &rec); err != nil {
		return Signable{}, web3err.Value("decode transaction: %v", err)
	}
	if (rec.V == nil) != (rec.S == nil) {
		return Signable{}, web3err.Value("decode transaction: incomplete signature fields")
	}
	if len(rec.To) != 0 && len(rec.To) != common.AddressLength {
		return Signable{}, web3err.Value("decode transaction: recipient must be empty or %d bytes, got %d", common.AddressLength, len(rec.To))
	}

	s := Signable{
		Nonce:    rec.Nonce,
		GasPrice: rec.GasPrice,
		Gas:      rec.Gas,
		Value:    rec.Value,
		Data:     rec.Data,
		V:        rec.V,
		R:        rec.R,
		S:        rec.S,
	}
	if len(rec.To) == common.AddressLength {
		to := common.BytesToAddress(rec.To)
		s.To = &to
	}
	return s, nil
}

// SplitFields returns the raw encoded fields of a record.
func SplitFields(encoded []byte) ([]rlp.RawValue, error) {
	var fields []rlp.RawValue
	if err := rlp.DecodeBytes(encoded, &fields); err != nil {
		return nil, web3err.Value("split transaction: %v", err)
	}
	return fields, nil
}

// EncodeFields assembles raw encoded fields into a record.
func EncodeFields(fields []rlp.RawValue) ([]byte, error) {
	return rlp.EncodeToBytes(fields)
}

// StripSignature truncates a record's fields to the first N-3, the unsigned
// equivalent of a record carrying v, r and s.
func StripSignature(fields []rlp.RawValue) ([]rlp.RawValue, error) {
	if len(fields) != SignedFieldCount {
		return nil, web3err.Value("expected %d transaction fields, got %d", SignedFieldCount, len(fields))
	}
	out := make([]rlp.RawValue, len(fields)-3)
	copy(out, fields)
	return out, nil
}

// MergeSignature drops any v, r and s of s, attaches the given triple and encodes
// the 9-field record.
func MergeSignature(s Signable, v, r, sig *big.Int) ([]byte, error) {
	if v == nil || r == nil || sig == nil {
		return nil, web3err.Value("signature requires v, r and s")
	}
	signed := s
	signed.V = new(big.Int).Set(v)
	signed.R = new(big.Int).Set(r)
	signed.S = new(big.Int).Set(sig)
	return Encode(signed)
}

// SigningHash is the keccak256 of the encoded record, the digest a signer signs.
func SigningHash(s Signable) (common.Hash, error) {
	encoded, err := Encode(s)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(encoded), nil
}

func orZero(b *big.Int) *big.Int {
	if b == nil {
		return new(big.Int)
	}
	return b
}

func isZero(b *big.Int) bool {
	return b == nil || b.Sign() == 0
}
