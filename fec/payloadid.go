package fec

import (
	"encoding/binary"

	"github.com/flute-go/flute/cmn"
)

// PayloadID identifies the source block and encoding symbol carried by an
// ALC/LCT packet's payload.
type PayloadID struct {
	SBN               uint32
	ESI               uint32
	SourceBlockLength uint32 // only meaningful for RS-GF28-under-specified
	HasSourceBlockLength bool
}

// PayloadIDBlockLength returns the wire size, in bytes, of the FEC Payload
// ID field for the given scheme.
func PayloadIDBlockLength(encodingID EncodingID) int {
	if encodingID == ReedSolomonGF28UnderSpecified {
		return 8
	}
	return 4
}

// AddPayloadID appends the FEC Payload ID for (sbn, esi) to buf.
func AddPayloadID(buf []byte, oti Oti, sbn, esi uint32, sourceBlockLength uint32) []byte {
	switch oti.EncodingID {
	case ReedSolomonGF28:
		header := ((sbn & 0xFFFFFF) << 8) | (esi & 0xFF)
		return appendUint32(buf, header)
	case ReedSolomonGF28UnderSpecified:
		var b [8]byte
		binary.BigEndian.PutUint32(b[0:4], sbn)
		binary.BigEndian.PutUint16(b[4:6], uint16(sourceBlockLength))
		binary.BigEndian.PutUint16(b[6:8], uint16(esi))
		return append(buf, b[:]...)
	case Raptor:
		header := ((sbn & 0xFFFF) << 16) | (esi & 0xFFFF)
		return appendUint32(buf, header)
	case RaptorQ:
		header := ((sbn & 0xFF) << 24) | (esi & 0xFFFFFF)
		return appendUint32(buf, header)
	default: // NoCode
		header := ((sbn & 0xFFFF) << 16) | (esi & 0xFFFF)
		return appendUint32(buf, header)
	}
}

func appendUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

// ParsePayloadID decodes the FEC Payload ID from the start of payloadIDBytes.
func ParsePayloadID(payloadIDBytes []byte, oti Oti) (PayloadID, error) {
	want := PayloadIDBlockLength(oti.EncodingID)
	if len(payloadIDBytes) < want {
		return PayloadID{}, cmn.NewErrMalformed("payload id too short: %d < %d", len(payloadIDBytes), want)
	}

	switch oti.EncodingID {
	case ReedSolomonGF28:
		header := binary.BigEndian.Uint32(payloadIDBytes[:4])
		return PayloadID{SBN: header >> 8, ESI: header & 0xFF}, nil

	case ReedSolomonGF28UnderSpecified:
		header := binary.BigEndian.Uint64(payloadIDBytes[:8])
		sbn := uint32(header >> 32)
		sourceBlockLength := uint32((header >> 16) & 0xFFFF)
		esi := uint32(header & 0xFFFF)
		return PayloadID{SBN: sbn, ESI: esi, SourceBlockLength: sourceBlockLength, HasSourceBlockLength: true}, nil

	case ReedSolomonGF2M:
		m := uint8(8)
		if oti.ReedSolomonGF2M != nil && oti.ReedSolomonGF2M.M != 0 {
			m = oti.ReedSolomonGF2M.M
		}
		header := binary.BigEndian.Uint32(payloadIDBytes[:4])
		esiMask := (uint32(1) << m) - 1
		return PayloadID{SBN: header >> m, ESI: header & esiMask}, nil

	case Raptor:
		header := binary.BigEndian.Uint32(payloadIDBytes[:4])
		return PayloadID{SBN: header >> 16, ESI: header & 0xFFFF}, nil

	case RaptorQ:
		header := binary.BigEndian.Uint32(payloadIDBytes[:4])
		return PayloadID{SBN: header >> 24, ESI: header & 0xFFFFFF}, nil

	default: // NoCode
		header := binary.BigEndian.Uint32(payloadIDBytes[:4])
		return PayloadID{SBN: header >> 16, ESI: header & 0xFFFF}, nil
	}
}
