package fec

import (
	"encoding/binary"

	"github.com/flute-go/flute/cmn"
	"github.com/flute-go/flute/lct"
)

// AddFTI appends the File Transfer Information header extension (HET=64) to
// an in-progress LCT header, in the wire layout mandated by oti's FEC
// scheme (RFC 5445 / RFC 6726 section 3.2).
func AddFTI(buf []byte, oti Oti, transferLength uint64) []byte {
	switch oti.EncodingID {
	case ReedSolomonGF28:
		return addFTIRS28(buf, oti, transferLength)
	case ReedSolomonGF28UnderSpecified:
		return addFTIRS28UnderSpecified(buf, oti, transferLength)
	case ReedSolomonGF2M:
		return addFTIRSGF2M(buf, oti, transferLength)
	case Raptor:
		return addFTIRaptor(buf, oti, transferLength)
	case RaptorQ:
		return addFTIRaptorQ(buf, oti, transferLength)
	default:
		return addFTINoCode(buf, oti, transferLength)
	}
}

// GetFTI parses the FTI extension out of data for the given LCT header. The
// caller must already know the FEC scheme in use (from the FDT instance or
// a previously learned default), since the body layout is scheme-specific.
// Returns ok=false when no FTI extension is present in this packet.
func GetFTI(data []byte, hdr lct.Header, encodingID EncodingID) (oti Oti, transferLength uint64, ok bool, err error) {
	ext, err := lct.GetExt(data, hdr, lct.ExtFTI)
	if err != nil {
		return Oti{}, 0, false, err
	}
	if ext == nil {
		return Oti{}, 0, false, nil
	}

	switch encodingID {
	case ReedSolomonGF28:
		oti, transferLength, err = getFTIRS28(ext)
	case ReedSolomonGF28UnderSpecified:
		oti, transferLength, err = getFTIRS28UnderSpecified(ext)
	case ReedSolomonGF2M:
		oti, transferLength, err = getFTIRSGF2M(ext)
	case Raptor:
		oti, transferLength, err = getFTIRaptor(ext)
	case RaptorQ:
		oti, transferLength, err = getFTIRaptorQ(ext)
	default:
		oti, transferLength, err = getFTINoCode(ext)
	}
	if err != nil {
		return Oti{}, 0, false, err
	}
	return oti, transferLength, true, nil
}

func addFTINoCode(buf []byte, oti Oti, transferLength uint64) []byte {
	header := uint16(lct.ExtFTI)<<8 | 4
	var b2 [2]byte
	binary.BigEndian.PutUint16(b2[:], header)
	buf = append(buf, b2[:]...)

	var b8 [8]byte
	binary.BigEndian.PutUint64(b8[:], transferLength<<16)
	buf = append(buf, b8[:]...)

	binary.BigEndian.PutUint16(b2[:], oti.EncodingSymbolLength)
	buf = append(buf, b2[:]...)
	binary.BigEndian.PutUint16(b2[:], uint16(oti.MaxSourceBlockLength>>16))
	buf = append(buf, b2[:]...)
	binary.BigEndian.PutUint16(b2[:], uint16(oti.MaxSourceBlockLength))
	buf = append(buf, b2[:]...)

	lct.IncHdrLen(buf, 4)
	return buf
}

func getFTINoCode(fti []byte) (Oti, uint64, error) {
	if len(fti) != 16 {
		return Oti{}, 0, cmn.NewErrMalformed("nocode fti wrong size %d", len(fti))
	}
	transferLength := binary.BigEndian.Uint64(fti[2:10]) >> 16
	esl := binary.BigEndian.Uint16(fti[10:12])
	sblMSB := binary.BigEndian.Uint16(fti[12:14])
	sblLSB := binary.BigEndian.Uint16(fti[14:16])
	sbl := uint32(sblMSB)<<16 | uint32(sblLSB)
	return Oti{
		EncodingID:           NoCode,
		MaxSourceBlockLength: sbl,
		EncodingSymbolLength: esl,
		InbandFTI:            true,
	}, transferLength, nil
}

func addFTIRS28(buf []byte, oti Oti, transferLength uint64) []byte {
	extHeaderL := uint64(lct.ExtFTI)<<56 | uint64(3)<<48 | (transferLength & 0xFFFFFFFFFFFF)
	var b8 [8]byte
	binary.BigEndian.PutUint64(b8[:], extHeaderL)
	buf = append(buf, b8[:]...)

	maxN := (oti.MaxNumberOfParitySymbols + oti.MaxSourceBlockLength) & 0xFF
	ebn := oti.EncodingSymbolLength
	var b4 [4]byte
	binary.BigEndian.PutUint16(b4[0:2], ebn)
	b4[2] = byte(oti.MaxSourceBlockLength & 0xFF)
	b4[3] = byte(maxN)
	buf = append(buf, b4[:]...)

	lct.IncHdrLen(buf, 3)
	return buf
}

func getFTIRS28(fti []byte) (Oti, uint64, error) {
	if len(fti) != 12 {
		return Oti{}, 0, cmn.NewErrMalformed("rs28 fti wrong size %d", len(fti))
	}
	transferLength := binary.BigEndian.Uint64(fti[0:8]) & 0xFFFFFFFFFFFF
	esl := binary.BigEndian.Uint16(fti[8:10])
	sbl := uint32(fti[10])
	maxN := uint32(fti[11])
	return Oti{
		EncodingID:               ReedSolomonGF28,
		MaxSourceBlockLength:     sbl,
		EncodingSymbolLength:     esl,
		MaxNumberOfParitySymbols: maxN - sbl,
		InbandFTI:                true,
	}, transferLength, nil
}

func addFTIRS28UnderSpecified(buf []byte, oti Oti, transferLength uint64) []byte {
	header := uint16(lct.ExtFTI)<<8 | 4
	var b2 [2]byte
	binary.BigEndian.PutUint16(b2[:], header)
	buf = append(buf, b2[:]...)

	var b8 [8]byte
	binary.BigEndian.PutUint64(b8[:], (transferLength<<16)|uint64(oti.InstanceID))
	buf = append(buf, b8[:]...)

	binary.BigEndian.PutUint16(b2[:], oti.EncodingSymbolLength)
	buf = append(buf, b2[:]...)
	binary.BigEndian.PutUint16(b2[:], uint16(oti.MaxSourceBlockLength))
	buf = append(buf, b2[:]...)
	mne := uint16(oti.MaxNumberOfParitySymbols + oti.MaxSourceBlockLength)
	binary.BigEndian.PutUint16(b2[:], mne)
	buf = append(buf, b2[:]...)

	lct.IncHdrLen(buf, 4)
	return buf
}

func getFTIRS28UnderSpecified(fti []byte) (Oti, uint64, error) {
	if len(fti) != 16 {
		return Oti{}, 0, cmn.NewErrMalformed("rs28-under-specified fti wrong size %d", len(fti))
	}
	transferLength := binary.BigEndian.Uint64(fti[2:10]) >> 16
	instanceID := binary.BigEndian.Uint16(fti[8:10])
	esl := binary.BigEndian.Uint16(fti[10:12])
	sbl := binary.BigEndian.Uint16(fti[12:14])
	mne := binary.BigEndian.Uint16(fti[14:16])
	var parity uint32
	if uint32(mne) > uint32(sbl) {
		parity = uint32(mne) - uint32(sbl)
	}
	return Oti{
		EncodingID:               ReedSolomonGF28UnderSpecified,
		InstanceID:               instanceID,
		MaxSourceBlockLength:     uint32(sbl),
		EncodingSymbolLength:     esl,
		MaxNumberOfParitySymbols: parity,
		InbandFTI:                true,
	}, transferLength, nil
}

func addFTIRSGF2M(buf []byte, oti Oti, transferLength uint64) []byte {
	extHeaderL := uint64(lct.ExtFTI)<<56 | uint64(4)<<48 | (transferLength & 0xFFFFFFFFFFFF)
	var b8 [8]byte
	binary.BigEndian.PutUint64(b8[:], extHeaderL)
	buf = append(buf, b8[:]...)

	scheme := oti.ReedSolomonGF2M
	if scheme == nil {
		scheme = &ReedSolomonGF2MScheme{M: 8, G: 1}
	}
	buf = append(buf, scheme.M, scheme.G)

	var b2 [2]byte
	binary.BigEndian.PutUint16(b2[:], oti.EncodingSymbolLength)
	buf = append(buf, b2[:]...)
	binary.BigEndian.PutUint16(b2[:], uint16(oti.MaxSourceBlockLength))
	buf = append(buf, b2[:]...)
	maxN := uint16(oti.MaxNumberOfParitySymbols + oti.MaxSourceBlockLength)
	binary.BigEndian.PutUint16(b2[:], maxN)
	buf = append(buf, b2[:]...)

	lct.IncHdrLen(buf, 4)
	return buf
}

func getFTIRSGF2M(fti []byte) (Oti, uint64, error) {
	if len(fti) != 16 {
		return Oti{}, 0, cmn.NewErrMalformed("rs-gf2m fti wrong size %d", len(fti))
	}
	transferLength := binary.BigEndian.Uint64(fti[0:8]) & 0xFFFFFFFFFFFF
	m := fti[8]
	g := fti[9]
	if g == 0 {
		g = 1
	}
	if m == 0 {
		m = 8
	}
	esl := binary.BigEndian.Uint16(fti[10:12])
	b := binary.BigEndian.Uint16(fti[12:14])
	maxN := binary.BigEndian.Uint16(fti[14:16])
	return Oti{
		EncodingID:               ReedSolomonGF2M,
		MaxSourceBlockLength:     uint32(b),
		EncodingSymbolLength:     esl,
		MaxNumberOfParitySymbols: uint32(maxN) - uint32(b),
		ReedSolomonGF2M:          &ReedSolomonGF2MScheme{M: m, G: g},
		InbandFTI:                true,
	}, transferLength, nil
}

func addFTIRaptor(buf []byte, oti Oti, transferLength uint64) []byte {
	header := uint16(lct.ExtFTI)<<8 | 4
	var b2 [2]byte
	binary.BigEndian.PutUint16(b2[:], header)
	buf = append(buf, b2[:]...)

	var b8 [8]byte
	binary.BigEndian.PutUint64(b8[:], (transferLength<<24)|uint64(oti.EncodingSymbolLength))
	buf = append(buf, b8[:]...)

	scheme := oti.Raptor
	if scheme == nil {
		scheme = &RaptorScheme{}
	}
	binary.BigEndian.PutUint16(b2[:], scheme.SourceBlocksLength)
	buf = append(buf, b2[:]...)
	buf = append(buf, scheme.SubBlocksLength, scheme.SymbolAlignment, 0, 0)

	lct.IncHdrLen(buf, 4)
	return buf
}

func getFTIRaptor(fti []byte) (Oti, uint64, error) {
	if len(fti) != 16 {
		return Oti{}, 0, cmn.NewErrMalformed("raptor fti wrong size %d", len(fti))
	}
	transferLength := binary.BigEndian.Uint64(fti[2:10]) >> 24
	symbolSize := binary.BigEndian.Uint16(fti[8:10])
	z := binary.BigEndian.Uint16(fti[10:12])
	n := fti[12]
	al := fti[13]

	if z == 0 {
		return Oti{}, 0, cmn.NewErrMalformed("raptor fti: Z is null")
	}
	if al == 0 {
		return Oti{}, 0, cmn.NewErrMalformed("raptor fti: Al must be at least 1")
	}
	if symbolSize%uint16(al) != 0 {
		return Oti{}, 0, cmn.NewErrMalformed("raptor fti: symbol size not aligned to Al")
	}

	blockSize := ceilDiv(transferLength, uint64(z))
	maxSourceBlockLength := ceilDiv(blockSize, uint64(symbolSize))

	return Oti{
		EncodingID:           Raptor,
		MaxSourceBlockLength: uint32(maxSourceBlockLength),
		EncodingSymbolLength: symbolSize,
		Raptor: &RaptorScheme{
			SourceBlocksLength: z,
			SubBlocksLength:    n,
			SymbolAlignment:    al,
		},
		InbandFTI: true,
	}, transferLength, nil
}

func addFTIRaptorQ(buf []byte, oti Oti, transferLength uint64) []byte {
	header := uint16(lct.ExtFTI)<<8 | 4
	var b2 [2]byte
	binary.BigEndian.PutUint16(b2[:], header)
	buf = append(buf, b2[:]...)

	var b8 [8]byte
	binary.BigEndian.PutUint64(b8[:], (transferLength<<24)|uint64(oti.EncodingSymbolLength))
	buf = append(buf, b8[:]...)

	scheme := oti.RaptorQ
	if scheme == nil {
		scheme = &RaptorQScheme{}
	}
	buf = append(buf, scheme.SourceBlocksLength)
	binary.BigEndian.PutUint16(b2[:], scheme.SubBlocksLength)
	buf = append(buf, b2[:]...)
	buf = append(buf, scheme.SymbolAlignment, 0, 0)

	lct.IncHdrLen(buf, 4)
	return buf
}

func getFTIRaptorQ(fti []byte) (Oti, uint64, error) {
	if len(fti) != 16 {
		return Oti{}, 0, cmn.NewErrMalformed("raptorq fti wrong size %d", len(fti))
	}
	transferLength := binary.BigEndian.Uint64(fti[2:10]) >> 24
	symbolSize := binary.BigEndian.Uint16(fti[8:10])
	z := fti[10]
	n := binary.BigEndian.Uint16(fti[11:13])
	al := fti[13]

	if z == 0 {
		return Oti{}, 0, cmn.NewErrMalformed("raptorq fti: Z is null")
	}
	if al == 0 {
		return Oti{}, 0, cmn.NewErrMalformed("raptorq fti: Al must be at least 1")
	}
	if symbolSize%uint16(al) != 0 {
		return Oti{}, 0, cmn.NewErrMalformed("raptorq fti: symbol size not aligned to Al")
	}

	blockSize := ceilDiv(transferLength, uint64(z))
	maxSourceBlockLength := ceilDiv(blockSize, uint64(symbolSize))

	return Oti{
		EncodingID:           RaptorQ,
		MaxSourceBlockLength: uint32(maxSourceBlockLength),
		EncodingSymbolLength: symbolSize,
		RaptorQ: &RaptorQScheme{
			SourceBlocksLength: z,
			SubBlocksLength:    n,
			SymbolAlignment:    al,
		},
		InbandFTI: true,
	}, transferLength, nil
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
