package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// fieldShift drops the lowest byte of a keccak256 digest so the value fits the
// 254 bit scalar field of the proof system.
const fieldShift = 8

// Calculate returns the hex encoded sha256 digest of data.
func Calculate(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func CalculateFromStr(data string) string {
	return Calculate([]byte(data))
}

// Fieldify maps arbitrary bytes to a field element: keccak256(data) >> 8.
func Fieldify(data []byte) *big.Int {
	digest := new(big.Int).SetBytes(crypto.Keccak256(data))
	return digest.Rsh(digest, fieldShift)
}

func FieldifyStr(data string) *big.Int {
	return Fieldify([]byte(data))
}
