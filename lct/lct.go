// Package lct implements the Layered Coding Transport common header and its
// typed extensions (RFC 5651): the fixed 4-byte header, CCI/TSI/TOI field
// sizing, and the FDT/FTI/CENC/Time header extensions.
/*
 * Copyright (c) 2024, FLUTE-Go Authors. All rights reserved.
 */
package lct

import (
	"encoding/binary"
	"fmt"

	"github.com/flute-go/flute/cmn"
)

// Cenc is the Content Encoding applied to an object's bytes end to end.
type Cenc uint8

const (
	CencNull    Cenc = 0
	CencZlib    Cenc = 1
	CencDeflate Cenc = 2
	CencGzip    Cenc = 3
)

func (c Cenc) String() string {
	switch c {
	case CencNull:
		return "null"
	case CencZlib:
		return "zlib"
	case CencDeflate:
		return "deflate"
	case CencGzip:
		return "gzip"
	default:
		return fmt.Sprintf("cenc(%d)", uint8(c))
	}
}

// ParseCenc parses the string form used by FDT's Content-Encoding attribute.
func ParseCenc(s string) (Cenc, bool) {
	switch s {
	case "null", "":
		return CencNull, true
	case "zlib":
		return CencZlib, true
	case "deflate":
		return CencDeflate, true
	case "gzip":
		return CencGzip, true
	default:
		return 0, false
	}
}

// CencFromByte converts the wire byte carried by the CENC extension.
func CencFromByte(v uint8) (Cenc, bool) {
	switch Cenc(v) {
	case CencNull, CencZlib, CencDeflate, CencGzip:
		return Cenc(v), true
	default:
		return 0, false
	}
}

// Ext is a header-extension type (HET) code.
type Ext uint8

const (
	ExtTime Ext = 2
	ExtFTI  Ext = 64
	ExtFDT  Ext = 192
	ExtCenc Ext = 193
)

// ToiFDT is the reserved TOI that always names the File Delivery Table.
const ToiFDT uint64 = 0

// Header is the parsed view of an LCT common header.
type Header struct {
	Len             int
	CCI             uint64
	TSI             uint64
	TOI             uint64
	CP              uint8
	CloseObject     bool
	CloseSession    bool
	HeaderExtOffset int
}

// nbBytes returns the minimal byte count in {0,2,4,6,8} needed to hold n,
// never less than min.
func nbBytes(n uint64, min int) int {
	switch {
	case n&0xFFFF000000000000 != 0:
		return 8
	case n&0x0000FFFF00000000 != 0:
		return 6
	case n&0x00000000FFFF0000 != 0:
		return 4
	case n&0x000000000000FFFF != 0:
		return 2
	default:
		return min
	}
}

// PushHeader appends an LCT common header plus CCI/TSI/TOI fields to buf and
// returns the updated buffer, or an error if a field does not fit. HDR_LEN
// sits at byte 2 of the header, where later extensions bump it with
// IncHdrLen. CCI, TSI and TOI are sized to the smallest
// wire encoding that fits, with TSI capped at 48 bits and TOI at 64 bits.
func PushHeader(buf []byte, psi uint8, cci, tsi, toi uint64, codepoint uint8, closeObject, closeSession bool) ([]byte, error) {
	tsiSize := nbBytes(tsi, 2)
	if tsiSize > 6 {
		return nil, cmn.NewErrSizeLimit("tsi %d exceeds 48-bit wire width", tsi)
	}
	toiSize := nbBytes(toi, 2)
	if toiSize > 8 {
		return nil, cmn.NewErrSizeLimit("toi %d exceeds 64-bit wire width", toi)
	}
	cciSize := nbBytes(cci, 0)
	if cciSize > 8 {
		return nil, cmn.NewErrSizeLimit("cci %d exceeds 64-bit wire width", cci)
	}

	// The H bit (RFC 5651 §4.2) is shared between the TSI and TOI length
	// fields: a field's wire length is s*4+h*2 (TSI) or o*4+h*2 (TOI), so
	// both fields must agree on one h. tsiSize of 6 (a 48-bit TSI) has no
	// h=0 encoding that fits in 6 bytes, so h is forced to 1 whenever the
	// TSI needs it; every other tsiSize has an h=0 form. Picking h from
	// TSI's requirement first, then sizing both fields' codes against
	// that h, keeps the two fields consistent instead of OR-ing each
	// field's own independently preferred h and risking a TOI width (e.g.
	// a 64-bit TOI) that no longer fits once h is forced to 1.
	h := uint32(0)
	if tsiSize == 6 {
		h = 1
	}
	if h == 1 && toiSize == 8 {
		return nil, cmn.NewErrSizeLimit("tsi %d (48-bit) and toi %d (64-bit) cannot share an lct header", tsi, toi)
	}

	s, err := lenCode(tsiSize, h, 1)
	if err != nil {
		return nil, err
	}
	o, err := lenCode(toiSize, h, 2)
	if err != nil {
		return nil, err
	}

	var c uint32
	if cciSize > 4 {
		c = 1
	}

	var b, a uint32
	if closeObject {
		b = 1
	}
	if closeSession {
		a = 1
	}

	hdrLen := uint8(2 + o + s + h + c)
	const version = 1
	word := uint32(codepoint) |
		uint32(hdrLen)<<8 |
		b<<16 |
		a<<17 |
		h<<20 |
		o<<21 |
		s<<23 |
		uint32(psi)<<24 |
		c<<26 |
		uint32(version)<<28

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], word)
	buf = append(buf, hdr[:]...)

	var wide [8]byte
	binary.BigEndian.PutUint64(wide[:], cci)
	buf = append(buf, wide[8-cciFieldLen(c):]...)

	binary.BigEndian.PutUint64(wide[:], tsi)
	buf = append(buf, wide[8-int(s<<2+h<<1):]...)

	binary.BigEndian.PutUint64(wide[:], toi)
	buf = append(buf, wide[8-int(o<<2+h<<1):]...)

	return buf, nil
}

func cciFieldLen(c uint32) int {
	return 4 * int(c+1)
}

// lenCode returns the smallest code (0..2^bits-1) such that the resulting
// wire field length code*4+h*2 is at least size, i.e. the field can hold a
// value of that many bytes under the shared h bit already chosen by the
// caller.
func lenCode(size int, h uint32, bits uint) (uint32, error) {
	for code := uint32(0); code < 1<<bits; code++ {
		if int(code)*4+int(h)*2 >= size {
			return code, nil
		}
	}
	return 0, cmn.NewErrSizeLimit("no lct field width of %d bits fits a %d-byte value under h=%d", bits, size, h)
}

// IncHdrLen adds val 32-bit words to the HDR_LEN field of an in-progress LCT
// header (byte offset 2), called once per extension appended after PushHeader.
func IncHdrLen(data []byte, val uint8) {
	data[2] += val
}

// ParseHeader parses the LCT common header at the start of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < 4 {
		return Header{}, cmn.NewErrMalformed("packet too short for lct header: %d bytes", len(data))
	}

	length := int(data[2]) << 2
	if length > len(data) {
		return Header{}, cmn.NewErrMalformed("lct header size %d exceeds packet size %d", length, len(data))
	}

	cp := data[3]
	flags1 := data[0]
	flags2 := data[1]

	s := (flags2 >> 7) & 0x1
	o := (flags2 >> 5) & 0x3
	h := (flags2 >> 4) & 0x1
	c := (flags1 >> 2) & 0x3
	a := (flags2 >> 1) & 0x1
	b := flags2 & 0x1
	version := flags1 >> 4

	if version != 1 && version != 2 {
		return Header{}, cmn.NewErrUnsupported("lct version %d not supported", version)
	}

	cciLen := (int(c) + 1) << 2
	tsiLen := (int(s) << 2) + (int(h) << 1)
	toiLen := (int(o) << 2) + (int(h) << 1)

	if cciLen > 16 || tsiLen > 8 || toiLen > 16 {
		return Header{}, cmn.NewErrMalformed("lct field widths out of range (cci=%d tsi=%d toi=%d)", cciLen, tsiLen, toiLen)
	}
	if cciLen > 8 || toiLen > 8 {
		return Header{}, cmn.NewErrSizeLimit("lct cci/toi width exceeds 64 bits (cci=%d toi=%d)", cciLen, toiLen)
	}

	cciFrom := 4
	cciTo := cciFrom + cciLen
	tsiTo := cciTo + tsiLen
	toiTo := tsiTo + toiLen
	headerExtOffset := toiTo

	if toiTo > len(data) {
		return Header{}, cmn.NewErrMalformed("toi ends at offset %d but packet is %d bytes", toiTo, len(data))
	}
	if headerExtOffset > length {
		return Header{}, cmn.NewErrMalformed("header extension offset %d outside lct header of length %d", headerExtOffset, length)
	}

	var cciBuf, tsiBuf, toiBuf [8]byte
	copy(cciBuf[8-cciLen:], data[cciFrom:cciTo])
	copy(tsiBuf[8-tsiLen:], data[cciTo:tsiTo])
	copy(toiBuf[8-toiLen:], data[tsiTo:toiTo])

	return Header{
		Len:             length,
		CCI:             binary.BigEndian.Uint64(cciBuf[:]),
		TSI:             binary.BigEndian.Uint64(tsiBuf[:]),
		TOI:             binary.BigEndian.Uint64(toiBuf[:]),
		CP:              cp,
		CloseObject:     b != 0,
		CloseSession:    a != 0,
		HeaderExtOffset: headerExtOffset,
	}, nil
}

// GetExt walks the LCT header extensions of data looking for het, returning
// the raw extension bytes (header word(s) included) if found.
func GetExt(data []byte, hdr Header, het Ext) ([]byte, error) {
	rest := data[hdr.HeaderExtOffset:hdr.Len]
	for len(rest) >= 4 {
		curHet := Ext(rest[0])
		var hel int
		if curHet >= 128 {
			hel = 4
		} else {
			hel = int(rest[1]) << 2
		}

		if hel == 0 || hel > len(rest) {
			return nil, cmn.NewErrMalformed("lct extension size %d/%d het=%d offset=%d", hel, len(rest), curHet, hdr.HeaderExtOffset)
		}

		if curHet == het {
			return rest[:hel], nil
		}
		rest = rest[hel:]
	}
	return nil, nil
}

// PushFDTExt appends the FDT extension (HET=192) carrying the FDT instance
// version (always 2 in this engine) and the 20-bit fdt_id.
func PushFDTExt(data []byte, fdtID uint32) []byte {
	word := uint32(ExtFDT)<<24 | uint32(2)<<20 | (fdtID & 0xFFFFF)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], word)
	data = append(data, b[:]...)
	IncHdrLen(data, 1)
	return data
}

// ParseFDTExt decodes the FDT extension body (as returned by GetExt).
func ParseFDTExt(ext []byte) (fdtID uint32, version uint32, err error) {
	if len(ext) != 4 {
		return 0, 0, cmn.NewErrMalformed("fdt extension wrong size %d", len(ext))
	}
	word := binary.BigEndian.Uint32(ext)
	version = (word >> 20) & 0xF
	fdtID = word & 0xFFFFF
	return fdtID, version, nil
}

// PushCencExt appends the CENC extension (HET=193).
func PushCencExt(data []byte, cenc Cenc) []byte {
	word := uint32(ExtCenc)<<24 | uint32(cenc)<<16
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], word)
	data = append(data, b[:]...)
	IncHdrLen(data, 1)
	return data
}

// ParseCencExt decodes the CENC extension body.
func ParseCencExt(ext []byte) (Cenc, error) {
	if len(ext) != 4 {
		return 0, cmn.NewErrMalformed("cenc extension wrong size %d", len(ext))
	}
	cenc, ok := CencFromByte(ext[1])
	if !ok {
		return 0, cmn.NewErrUnsupported("cenc %d not supported", ext[1])
	}
	return cenc, nil
}

// PushTimeExt appends the Time extension carrying the sender's current time
// as an NTP64 timestamp, setting both SCT-high and SCT-low.
func PushTimeExt(data []byte, ntp64 uint64) []byte {
	header := uint32(ExtTime)<<24 | uint32(3)<<16 | uint32(1)<<15 | uint32(1)<<14
	var hb [4]byte
	binary.BigEndian.PutUint32(hb[:], header)
	data = append(data, hb[:]...)
	var tb [8]byte
	binary.BigEndian.PutUint64(tb[:], ntp64)
	data = append(data, tb[:]...)
	IncHdrLen(data, 3)
	return data
}

// ParseTimeExt decodes the Time extension, returning the NTP64 SCT value
// when present (SCT-high bit set).
func ParseTimeExt(ext []byte) (ntp64 uint64, ok bool, err error) {
	if len(ext) < 4 {
		return 0, false, cmn.NewErrMalformed("time extension too short: %d", len(ext))
	}
	useBits := ext[2]
	sctHi := (useBits >> 7) & 1
	sctLow := (useBits >> 6) & 1
	ert := (useBits >> 5) & 1
	slc := (useBits >> 4) & 1

	expectedLen := int(sctHi+sctLow+ert+slc+1) * 4
	if len(ext) != expectedLen {
		return 0, false, cmn.NewErrMalformed("time extension length %d, expected %d", len(ext), expectedLen)
	}

	if sctHi == 0 {
		return 0, false, nil
	}

	sec := binary.BigEndian.Uint32(ext[4:8])
	var frac uint32
	if sctLow == 1 {
		frac = binary.BigEndian.Uint32(ext[8:12])
	}
	return (uint64(sec) << 32) | uint64(frac), true, nil
}
