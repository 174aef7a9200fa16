// Package p2p implements the MSNSLP/P2P binary sub-protocol used to
// transfer display pictures over a switchboard session.
package p2p

import (
	"encoding/binary"
	"fmt"

	"github.com/msnp11/msnp11go/msnp"
)

// HeaderSize is the fixed size in bytes of a BinaryHeader on the wire.
const HeaderSize = 48

// BinaryHeader is the 48-byte little-endian header that precedes every
// MSNSLP message body, mirroring the reference implementation's deku
// layout field for field.
type BinaryHeader struct {
	SessionID     uint32
	Identifier    uint32
	DataOffset    uint64
	TotalDataSize uint64
	Length        uint32
	Flag          uint32
	AckIdentifier uint32
	AckUniqueID   uint32
	AckDataSize   uint64
}

// Flag values observed on the wire.
const (
	FlagControl = 0x00
	FlagAck     = 0x02
	FlagData    = 0x20
)

func (h BinaryHeader) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.SessionID)
	binary.LittleEndian.PutUint32(buf[4:8], h.Identifier)
	binary.LittleEndian.PutUint64(buf[8:16], h.DataOffset)
	binary.LittleEndian.PutUint64(buf[16:24], h.TotalDataSize)
	binary.LittleEndian.PutUint32(buf[24:28], h.Length)
	binary.LittleEndian.PutUint32(buf[28:32], h.Flag)
	binary.LittleEndian.PutUint32(buf[32:36], h.AckIdentifier)
	binary.LittleEndian.PutUint32(buf[36:40], h.AckUniqueID)
	binary.LittleEndian.PutUint64(buf[40:48], h.AckDataSize)
	return buf
}

func DecodeHeader(data []byte) (BinaryHeader, error) {
	if len(data) < HeaderSize {
		return BinaryHeader{}, fmt.Errorf("%w: need %d bytes, got %d", msnp.ErrBinaryHeaderReading, HeaderSize, len(data))
	}
	return BinaryHeader{
		SessionID:     binary.LittleEndian.Uint32(data[0:4]),
		Identifier:    binary.LittleEndian.Uint32(data[4:8]),
		DataOffset:    binary.LittleEndian.Uint64(data[8:16]),
		TotalDataSize: binary.LittleEndian.Uint64(data[16:24]),
		Length:        binary.LittleEndian.Uint32(data[24:28]),
		Flag:          binary.LittleEndian.Uint32(data[28:32]),
		AckIdentifier: binary.LittleEndian.Uint32(data[32:36]),
		AckUniqueID:   binary.LittleEndian.Uint32(data[36:40]),
		AckDataSize:   binary.LittleEndian.Uint64(data[40:48]),
	}, nil
}
