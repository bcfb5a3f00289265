package storage

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zeebo/blake3"
)

// Kind tags the record type inside a pool namespace.
type Kind byte

const (
	KindSlot0       Kind = 0x01
	KindTick        Kind = 0x02
	KindWord        Kind = 0x03
	KindPosition    Kind = 0x04
	KindObservation Kind = 0x05
	KindMeta        Kind = 0x06
)

// Namespace prefixes every key of one pool.
type Namespace [32]byte

// PoolID derives the namespace from the pool's immutable parameters.
func PoolID(token0, token1 common.Address, fee uint32, tickSpacing int32) Namespace {
	h := blake3.New()
	h.Write(token0.Bytes())
	h.Write(token1.Bytes())

	var feeBytes [4]byte
	binary.BigEndian.PutUint32(feeBytes[:], fee)
	h.Write(feeBytes[1:])

	var spacingBytes [4]byte
	binary.BigEndian.PutUint32(spacingBytes[:], uint32(tickSpacing))
	h.Write(spacingBytes[1:])

	var id Namespace
	h.Digest().Read(id[:])
	return id
}

func (n Namespace) Hex() string {
	return common.Hash(n).Hex()
}

// Prefix returns the key prefix of all records of kind.
func (n Namespace) Prefix(kind Kind) []byte {
	out := make([]byte, 0, len(n)+1)
	out = append(out, n[:]...)
	return append(out, byte(kind))
}

// Key returns the key of one record.
func (n Namespace) Key(kind Kind, id []byte) []byte {
	return append(n.Prefix(kind), id...)
}

// SignedID encodes a signed index so that byte order matches numeric order.
func SignedID(v int32) []byte {
	var out [4]byte
	binary.BigEndian.PutUint32(out[:], uint32(v)^0x80000000)
	return out[:]
}

// ParseSignedID reverses SignedID.
func ParseSignedID(b []byte) int32 {
	return int32(binary.BigEndian.Uint32(b) ^ 0x80000000)
}

// IndexID encodes an unsigned index.
func IndexID(v uint16) []byte {
	var out [2]byte
	binary.BigEndian.PutUint16(out[:], v)
	return out[:]
}

// ParseIndexID reverses IndexID.
func ParseIndexID(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}
