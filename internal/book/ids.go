package book

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// DerivePoolID derives a stable pool identifier from the token pair and bin
// step. Token order matters: (X, Y) and (Y, X) are distinct pools.
func DerivePoolID(tokenX, tokenY common.Address, binStep uint16) common.Hash {
	buf := make([]byte, 0, 2*common.AddressLength+2)
	buf = append(buf, tokenX.Bytes()...)
	buf = append(buf, tokenY.Bytes()...)
	buf = binary.BigEndian.AppendUint16(buf, binStep)
	return crypto.Keccak256Hash(buf)
}

// deriveReceiptID derives a receipt identifier from the pool, owner, and a
// pool-local nonce, so replaying the same journal yields the same ids.
func deriveReceiptID(poolID common.Hash, owner common.Address, nonce uint64) common.Hash {
	buf := make([]byte, 0, common.HashLength+common.AddressLength+8)
	buf = append(buf, poolID.Bytes()...)
	buf = append(buf, owner.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, nonce)
	return crypto.Keccak256Hash(buf)
}
