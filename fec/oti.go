// Package fec implements the Object Transmission Information and FEC
// encoding/decoding schemes used by FLUTE (RFC 6726) block partitioning:
// NoCode, Reed-Solomon over GF(2^8) (fully and under specified), Reed-Solomon
// over GF(2^m), Raptor and RaptorQ.
package fec

import (
	"encoding/base64"

	"github.com/flute-go/flute/cmn"
)

// EncodingID identifies a FEC scheme per RFC 5052 / RFC 6726 section 5.
type EncodingID uint8

const (
	NoCode                        EncodingID = 0
	Raptor                        EncodingID = 1
	ReedSolomonGF2M               EncodingID = 2
	ReedSolomonGF28               EncodingID = 5
	RaptorQ                       EncodingID = 6
	ReedSolomonGF28UnderSpecified EncodingID = 129
)

func (e EncodingID) String() string {
	switch e {
	case NoCode:
		return "no-code"
	case Raptor:
		return "raptor"
	case ReedSolomonGF2M:
		return "reed-solomon-gf2m"
	case ReedSolomonGF28:
		return "reed-solomon-gf28"
	case RaptorQ:
		return "raptorq"
	case ReedSolomonGF28UnderSpecified:
		return "reed-solomon-gf28-under-specified"
	default:
		return "unknown"
	}
}

// ReedSolomonGF2MScheme carries the FEC-Scheme-Specific-Info for RS-GF(2^m).
type ReedSolomonGF2MScheme struct {
	M uint8 // finite field element width, in bits
	G uint8 // number of encoding symbols per group, default 1
}

func (s ReedSolomonGF2MScheme) encode() string {
	return base64.StdEncoding.EncodeToString([]byte{s.M, s.G})
}

func DecodeReedSolomonGF2MScheme(s string) (ReedSolomonGF2MScheme, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) != 2 {
		return ReedSolomonGF2MScheme{}, cmn.NewErrMalformed("invalid RS-GF2M scheme-specific info")
	}
	return ReedSolomonGF2MScheme{M: raw[0], G: raw[1]}, nil
}

// RaptorQScheme carries the FEC-Scheme-Specific-Info for RaptorQ (RFC 6330 §3.3.3).
type RaptorQScheme struct {
	SourceBlocksLength uint8  // Z
	SubBlocksLength    uint16 // N
	SymbolAlignment    uint8  // Al
}

func (s RaptorQScheme) encode() string {
	buf := make([]byte, 0, 4)
	buf = append(buf, s.SourceBlocksLength)
	buf = append(buf, byte(s.SubBlocksLength>>8), byte(s.SubBlocksLength))
	buf = append(buf, s.SymbolAlignment)
	return base64.StdEncoding.EncodeToString(buf)
}

func DecodeRaptorQScheme(s string) (RaptorQScheme, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) != 4 {
		return RaptorQScheme{}, cmn.NewErrMalformed("invalid RaptorQ scheme-specific info")
	}
	return RaptorQScheme{
		SourceBlocksLength: raw[0],
		SubBlocksLength:    uint16(raw[1])<<8 | uint16(raw[2]),
		SymbolAlignment:    raw[3],
	}, nil
}

// RaptorScheme carries the FEC-Scheme-Specific-Info for Raptor (RFC 5053 §3.2.3).
type RaptorScheme struct {
	SourceBlocksLength uint16 // Z
	SubBlocksLength    uint8  // N
	SymbolAlignment    uint8  // Al
}

func (s RaptorScheme) encode() string {
	buf := make([]byte, 0, 4)
	buf = append(buf, byte(s.SourceBlocksLength>>8), byte(s.SourceBlocksLength))
	buf = append(buf, s.SubBlocksLength, s.SymbolAlignment)
	return base64.StdEncoding.EncodeToString(buf)
}

func DecodeRaptorScheme(s string) (RaptorScheme, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) != 4 {
		return RaptorScheme{}, cmn.NewErrMalformed("invalid Raptor scheme-specific info")
	}
	return RaptorScheme{
		SourceBlocksLength: uint16(raw[0])<<8 | uint16(raw[1]),
		SubBlocksLength:    raw[2],
		SymbolAlignment:    raw[3],
	}, nil
}

// Oti is the Object Transmission Information: the parameters needed to
// partition an object into source blocks and encoding symbols, and to
// reconstruct it via the chosen FEC scheme.
type Oti struct {
	EncodingID                EncodingID
	InstanceID                uint16
	MaxSourceBlockLength      uint32
	EncodingSymbolLength      uint16
	MaxNumberOfParitySymbols  uint32
	InbandFTI                 bool

	ReedSolomonGF2M *ReedSolomonGF2MScheme
	RaptorQ         *RaptorQScheme
	Raptor          *RaptorScheme
}

// NewNoCode builds an Oti for the NoCode scheme.
func NewNoCode(encodingSymbolLength uint16, maxSourceBlockLength uint32) Oti {
	return Oti{
		EncodingID:           NoCode,
		MaxSourceBlockLength: maxSourceBlockLength,
		EncodingSymbolLength: encodingSymbolLength,
		InbandFTI:            true,
	}
}

// NewReedSolomonGF28 builds an Oti for the fully-specified RS-GF(2^8) scheme.
// The encoding block length (source + parity) must fit in a byte.
func NewReedSolomonGF28(encodingSymbolLength uint16, maxSourceBlockLength, maxNumberOfParitySymbols uint8) (Oti, error) {
	if int(maxSourceBlockLength)+int(maxNumberOfParitySymbols) > 255 {
		return Oti{}, cmn.NewErrMalformed("RS-GF28 encoding block length must be <= 255")
	}
	return Oti{
		EncodingID:               ReedSolomonGF28,
		MaxSourceBlockLength:     uint32(maxSourceBlockLength),
		EncodingSymbolLength:     encodingSymbolLength,
		MaxNumberOfParitySymbols: uint32(maxNumberOfParitySymbols),
		InbandFTI:                true,
	}, nil
}

// NewReedSolomonGF28UnderSpecified builds an Oti for the under-specified
// small-block-systematic RS-GF(2^8) scheme (FEC Encoding ID 129).
func NewReedSolomonGF28UnderSpecified(encodingSymbolLength uint16, maxSourceBlockLength, maxNumberOfParitySymbols uint16) (Oti, error) {
	if int(maxSourceBlockLength)+int(maxNumberOfParitySymbols) > 0xFFFF {
		return Oti{}, cmn.NewErrMalformed("RS-GF28-under-specified encoding block length must be <= 65535")
	}
	return Oti{
		EncodingID:               ReedSolomonGF28UnderSpecified,
		MaxSourceBlockLength:     uint32(maxSourceBlockLength),
		EncodingSymbolLength:     encodingSymbolLength,
		MaxNumberOfParitySymbols: uint32(maxNumberOfParitySymbols),
		InbandFTI:                true,
	}, nil
}

// NewReedSolomonGF2M builds an Oti for RS over GF(2^m). Decode-only: this
// module never encodes with this scheme, only reconstructs blocks received
// from a third-party sender.
func NewReedSolomonGF2M(encodingSymbolLength uint16, maxSourceBlockLength, maxNumberOfParitySymbols uint32, m, g uint8) Oti {
	if g == 0 {
		g = 1
	}
	if m == 0 {
		m = 8
	}
	return Oti{
		EncodingID:               ReedSolomonGF2M,
		MaxSourceBlockLength:     maxSourceBlockLength,
		EncodingSymbolLength:     encodingSymbolLength,
		MaxNumberOfParitySymbols: maxNumberOfParitySymbols,
		ReedSolomonGF2M:          &ReedSolomonGF2MScheme{M: m, G: g},
		InbandFTI:                true,
	}
}

// NewRaptorQ builds an Oti for the RaptorQ scheme. encodingSymbolLength must
// be a multiple of symbolAlignment.
func NewRaptorQ(encodingSymbolLength uint16, maxSourceBlockLength, maxNumberOfParitySymbols uint16, subBlocksLength uint16, symbolAlignment uint8) (Oti, error) {
	if symbolAlignment == 0 || encodingSymbolLength%uint16(symbolAlignment) != 0 {
		return Oti{}, cmn.NewErrMalformed("encoding symbol length must be a multiple of Al")
	}
	return Oti{
		EncodingID:               RaptorQ,
		MaxSourceBlockLength:     uint32(maxSourceBlockLength),
		EncodingSymbolLength:     encodingSymbolLength,
		MaxNumberOfParitySymbols: uint32(maxNumberOfParitySymbols),
		RaptorQ: &RaptorQScheme{
			SourceBlocksLength: 1,
			SubBlocksLength:    subBlocksLength,
			SymbolAlignment:    symbolAlignment,
		},
		InbandFTI: true,
	}, nil
}

// NewRaptor builds an Oti for the Raptor scheme. encodingSymbolLength must
// be a multiple of symbolAlignment.
func NewRaptor(encodingSymbolLength uint16, maxSourceBlockLength, maxNumberOfParitySymbols uint16, subBlocksLength, symbolAlignment uint8) (Oti, error) {
	if symbolAlignment == 0 || encodingSymbolLength%uint16(symbolAlignment) != 0 {
		return Oti{}, cmn.NewErrMalformed("encoding symbol length must be a multiple of Al")
	}
	return Oti{
		EncodingID:               Raptor,
		MaxSourceBlockLength:     uint32(maxSourceBlockLength),
		EncodingSymbolLength:     encodingSymbolLength,
		MaxNumberOfParitySymbols: uint32(maxNumberOfParitySymbols),
		Raptor: &RaptorScheme{
			SourceBlocksLength: uint16(maxSourceBlockLength),
			SubBlocksLength:    subBlocksLength,
			SymbolAlignment:    symbolAlignment,
		},
		InbandFTI: true,
	}, nil
}

// MaxSourceBlocksNumber returns the maximum number of source blocks an
// object can be split into under this scheme.
func (o Oti) MaxSourceBlocksNumber() uint64 {
	switch o.EncodingID {
	case ReedSolomonGF28:
		return 0xFF
	case ReedSolomonGF28UnderSpecified:
		return 0xFFFFFFFF
	case RaptorQ:
		return 0xFF
	case Raptor, NoCode:
		return 0xFFFF
	case ReedSolomonGF2M:
		return 0xFFFFFF // 24-bit SBN field width when m=8, conservative bound
	default:
		return 0xFFFF
	}
}

// MaxTransferLength returns the largest object size, in bytes, that this
// Oti can describe, bounded both by the wire Transfer-Length field width
// and by MaxSourceBlocksNumber * MaxSourceBlockLength * EncodingSymbolLength.
func (o Oti) MaxTransferLength() uint64 {
	var wireMax uint64 = 0xFFFFFFFFFFFF // 48 bits, most schemes
	if o.EncodingID == RaptorQ || o.EncodingID == Raptor {
		wireMax = 0xFFFFFFFFFF // 40 bits: the FTI Transfer Length field is 40 bits wide for fountain codes
	}
	blockSize := uint64(o.EncodingSymbolLength) * uint64(o.MaxSourceBlockLength)
	size := blockSize * o.MaxSourceBlocksNumber()
	if size == 0 || size > wireMax {
		return wireMax
	}
	return size
}

// SchemeSpecificInfo returns the base64 FEC-Object-Transmission-Information
// Scheme-Specific-Info attribute for this Oti, or "" when the scheme does
// not carry one.
func (o Oti) SchemeSpecificInfo() string {
	switch o.EncodingID {
	case ReedSolomonGF2M:
		if o.ReedSolomonGF2M != nil {
			return o.ReedSolomonGF2M.encode()
		}
	case RaptorQ:
		if o.RaptorQ != nil {
			return o.RaptorQ.encode()
		}
	case Raptor:
		if o.Raptor != nil {
			return o.Raptor.encode()
		}
	}
	return ""
}
