// Package alc builds and parses ALC/LCT packets (RFC 5775), tying the lct
// and fec packages together into the wire format FLUTE carries over UDP.
package alc

import (
	"encoding/binary"
	"hash"

	"github.com/OneOfOne/xxhash"
	"github.com/flute-go/flute/cmn"
	"github.com/flute-go/flute/fec"
	"github.com/flute-go/flute/lct"
)

// UDPEndpoint identifies a FLUTE transport session at the network layer: a
// destination multicast or unicast group address, port, and an optional
// source address used for source-specific multicast.
type UDPEndpoint struct {
	SourceAddress           string // "" when unset (any source)
	DestinationGroupAddress string
	Port                    uint16
}

// TraceID derives a 64-bit value identifying one object transfer within one
// session on one day, for use as a short, human-scannable log correlation
// tag. It is never carried on the wire.
func (e UDPEndpoint) TraceID(tsi, toi uint64, fdtInstanceID *uint32, dayOfMonth int) uint64 {
	he := xxhash.New64()
	writeString(he, e.SourceAddress)
	writeString(he, e.DestinationGroupAddress)
	writeUint16(he, e.Port)

	ht := xxhash.New64()
	writeUint64(ht, tsi)
	writeUint64(ht, toi)
	if fdtInstanceID != nil {
		writeUint32(ht, *fdtInstanceID)
	}
	writeUint64(ht, uint64(dayOfMonth))

	return he.Sum64()&0xFFFFFFFF<<32 | ht.Sum64()&0xFFFFFFFF
}

func writeString(h hash.Hash64, s string) { _, _ = h.Write([]byte(s)) }

func writeUint16(h hash.Hash64, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, _ = h.Write(b[:])
}

func writeUint32(h hash.Hash64, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, _ = h.Write(b[:])
}

func writeUint64(h hash.Hash64, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, _ = h.Write(b[:])
}

// ExtFDT is the decoded body of the FDT header extension (HET=192): the FDT
// instance ID a TOI-0 packet belongs to.
type ExtFDT struct {
	Version       uint32
	FDTInstanceID uint32
}

// Pkt is the sender's description of one packet's worth of payload, ready to
// be serialized by BuildPacket.
type Pkt struct {
	Payload           []byte
	ESI               uint32
	SBN               uint32
	TOI               uint64
	FDTID             *uint32 // set only when TOI == lct.ToiFDT
	Cenc              lct.Cenc
	InbandCenc        bool
	TransferLength    uint64
	CloseObject       bool
	SourceBlockLength uint32 // only meaningful for RS-GF28-under-specified
	SenderCurrentTime *uint64 // NTP64, nil: no Time extension
}

// AlcPkt is a parsed ALC/LCT packet borrowing its payload from the buffer
// passed to ParsePacket. Use ToCache to obtain an owned copy that outlives
// that buffer.
type AlcPkt struct {
	LCT                 lct.Header
	Oti                 *fec.Oti
	TransferLength      *uint64
	Cenc                *lct.Cenc
	SenderCurrentTime   *uint64
	FDTInfo             *ExtFDT
	Data                []byte
	DataAlcHeaderOffset int
	DataPayloadOffset   int
}

// AlcPktCache is an owned copy of AlcPkt, safe to retain past the lifetime of
// the network buffer it was parsed from.
type AlcPktCache struct {
	LCT                 lct.Header
	Oti                 *fec.Oti
	TransferLength      *uint64
	Cenc                *lct.Cenc
	SenderCurrentTime   *uint64
	FDTInfo             *ExtFDT
	Data                []byte
	DataAlcHeaderOffset int
	DataPayloadOffset   int
}

// ToCache copies p's payload into an owned AlcPktCache.
func (p AlcPkt) ToCache() AlcPktCache {
	data := make([]byte, len(p.Data))
	copy(data, p.Data)
	return AlcPktCache{
		LCT:                 p.LCT,
		Oti:                 p.Oti,
		TransferLength:      p.TransferLength,
		Cenc:                p.Cenc,
		SenderCurrentTime:   p.SenderCurrentTime,
		FDTInfo:             p.FDTInfo,
		Data:                data,
		DataAlcHeaderOffset: p.DataAlcHeaderOffset,
		DataPayloadOffset:   p.DataPayloadOffset,
	}
}

// ToPkt returns a view onto c's owned buffer, for code that wants to treat a
// cached packet uniformly with one freshly parsed off the wire.
func (c AlcPktCache) ToPkt() AlcPkt {
	return AlcPkt{
		LCT:                 c.LCT,
		Oti:                 c.Oti,
		TransferLength:      c.TransferLength,
		Cenc:                c.Cenc,
		SenderCurrentTime:   c.SenderCurrentTime,
		FDTInfo:             c.FDTInfo,
		Data:                c.Data,
		DataAlcHeaderOffset: c.DataAlcHeaderOffset,
		DataPayloadOffset:   c.DataPayloadOffset,
	}
}

// BuildCloseSessionPacket builds the zero-payload packet that signals the
// end of a TSI's session: an LCT header with the close-session flag set and
// no extensions or payload.
func BuildCloseSessionPacket(cci, tsi uint64) []byte {
	data, _ := lct.PushHeader(nil, 0, cci, tsi, lct.ToiFDT, uint8(fec.NoCode), false, true)
	return data
}

// BuildPacket serializes pkt into a single ALC/LCT packet under oti, with
// cci/tsi identifying the session. The FTI extension is attached whenever
// this is the FDT object (TOI 0) or oti.InbandFTI requests it on every
// packet.
func BuildPacket(oti fec.Oti, cci, tsi uint64, pkt Pkt) ([]byte, error) {
	data := make([]byte, 0, 64+len(pkt.Payload))

	data, err := lct.PushHeader(data, 0, cci, tsi, pkt.TOI, uint8(oti.EncodingID), pkt.CloseObject, false)
	if err != nil {
		return nil, err
	}

	if pkt.TOI == lct.ToiFDT {
		if pkt.FDTID == nil {
			return nil, cmn.NewErrState("FDT packet built without an FDT instance id")
		}
		data = lct.PushFDTExt(data, *pkt.FDTID)
	}

	if (pkt.TOI == lct.ToiFDT && pkt.Cenc != lct.CencNull) || pkt.InbandCenc {
		data = lct.PushCencExt(data, pkt.Cenc)
	}

	if pkt.SenderCurrentTime != nil {
		data = lct.PushTimeExt(data, *pkt.SenderCurrentTime)
	}

	if pkt.TOI == lct.ToiFDT || oti.InbandFTI {
		data = fec.AddFTI(data, oti, pkt.TransferLength)
	}

	data = fec.AddPayloadID(data, oti, pkt.SBN, pkt.ESI, pkt.SourceBlockLength)
	data = append(data, pkt.Payload...)
	return data, nil
}

// ParsePacket parses data as an ALC/LCT packet. The FEC encoding id is read
// from the LCT header's codepoint field, so no out-of-band scheme knowledge
// is required to decode the common header, the FTI and the payload ID.
func ParsePacket(data []byte) (AlcPkt, error) {
	hdr, err := lct.ParseHeader(data)
	if err != nil {
		return AlcPkt{}, err
	}

	encodingID := fec.EncodingID(hdr.CP)
	payloadIDLen := fec.PayloadIDBlockLength(encodingID)
	if hdr.Len+payloadIDLen > len(data) {
		return AlcPkt{}, cmn.NewErrMalformed("alc packet too short for fec payload id")
	}

	oti, transferLength, hasFTI, err := fec.GetFTI(data, hdr, encodingID)
	if err != nil {
		return AlcPkt{}, err
	}

	dataAlcHeaderOffset := hdr.Len
	dataPayloadOffset := hdr.Len + payloadIDLen

	var cenc *lct.Cenc
	if ext, err := lct.GetExt(data, hdr, lct.ExtCenc); err != nil {
		return AlcPkt{}, err
	} else if ext != nil {
		c, err := lct.ParseCencExt(ext)
		if err != nil {
			return AlcPkt{}, err
		}
		cenc = &c
	}

	var fdtInfo *ExtFDT
	if hdr.TOI == lct.ToiFDT {
		ext, err := lct.GetExt(data, hdr, lct.ExtFDT)
		if err != nil {
			return AlcPkt{}, err
		}
		if ext != nil {
			fdtID, version, err := lct.ParseFDTExt(ext)
			if err != nil {
				return AlcPkt{}, err
			}
			fdtInfo = &ExtFDT{Version: version, FDTInstanceID: fdtID}
		}
	}

	var sct *uint64
	if ext, err := lct.GetExt(data, hdr, lct.ExtTime); err != nil {
		return AlcPkt{}, err
	} else if ext != nil {
		ntp64, ok, err := lct.ParseTimeExt(ext)
		if err != nil {
			return AlcPkt{}, err
		}
		if ok {
			sct = &ntp64
		}
	}

	pkt := AlcPkt{
		LCT:                 hdr,
		Cenc:                cenc,
		SenderCurrentTime:   sct,
		FDTInfo:             fdtInfo,
		Data:                data,
		DataAlcHeaderOffset: dataAlcHeaderOffset,
		DataPayloadOffset:   dataPayloadOffset,
	}
	if hasFTI {
		pkt.Oti = &oti
		pkt.TransferLength = &transferLength
	}
	return pkt, nil
}

// ParsePayloadID decodes the FEC Payload ID of pkt under oti, which the
// caller must have already resolved (from this FDT instance or a previously
// learned default).
func ParsePayloadID(pkt AlcPkt, oti fec.Oti) (fec.PayloadID, error) {
	payloadIDLen := fec.PayloadIDBlockLength(oti.EncodingID)
	start := pkt.DataAlcHeaderOffset
	end := start + payloadIDLen
	if end > len(pkt.Data) {
		return fec.PayloadID{}, cmn.NewErrMalformed("alc packet too short for fec payload id")
	}
	return fec.ParsePayloadID(pkt.Data[start:end], oti)
}

// Payload returns the packet's payload bytes, after the FEC payload ID.
func (p AlcPkt) Payload() []byte {
	return p.Data[p.DataPayloadOffset:]
}
