package fdt

import (
	"strconv"
	"time"

	"github.com/flute-go/flute/cmn"
	"github.com/flute-go/flute/fec"
	"github.com/flute-go/flute/partition"
)

// FileDesc is the sender-side envelope around an ObjectDesc: the OTI
// actually in effect for it (the object's own override, or the Fdt's
// default), its allocated TOI, and its transfer-queue lifecycle state.
//
// The lifecycle fields are plain (no mutex): the sender core runs as a
// single cooperative control flow, so unlike the multi-threaded reference
// implementation this state never needs synchronization of its own.
type FileDesc struct {
	Object            *ObjectDesc
	Oti               fec.Oti
	TOI               uint64
	FdtID             *uint32 // set only when this FileDesc carries an FDT instance (TOI 0)
	SenderCurrentTime bool

	transferring  bool
	transferCount uint32
	lastTransfer  time.Time
	hasTransfer   bool
}

// NewFileDesc builds a FileDesc, resolving the object's OTI against the
// Fdt's default and validating the object's size against the OTI's
// capacity. For RaptorQ and Raptor, the scheme-specific source-blocks
// length (Z) is computed per object from its actual transfer length,
// since it varies block-count to block-count.
func NewFileDesc(object *ObjectDesc, defaultOti fec.Oti, toi uint64, fdtID *uint32, senderCurrentTime bool) (*FileDesc, error) {
	if err := object.validate(); err != nil {
		return nil, err
	}

	oti := defaultOti
	if object.Oti != nil {
		oti = *object.Oti
	}

	if maxLen := oti.MaxTransferLength(); object.TransferLength > maxLen {
		return nil, cmn.NewErrSizeLimit(
			"object transfer length %d exceeds %d, the maximum for its OTI", object.TransferLength, maxLen)
	}

	if oti.EncodingID == fec.RaptorQ || oti.EncodingID == fec.Raptor {
		_, _, _, nbBlocks := partition.Partition(uint64(oti.MaxSourceBlockLength), object.TransferLength, uint64(oti.EncodingSymbolLength))

		if oti.EncodingID == fec.RaptorQ {
			if oti.RaptorQ == nil {
				return nil, cmn.NewErrState("FEC RaptorQ selected but scheme parameters are not defined")
			}
			if nbBlocks > 0xFF {
				return nil, cmn.NewErrSizeLimit(
					"object requires %d source blocks, RaptorQ allows at most 255", nbBlocks)
			}
			scheme := *oti.RaptorQ
			scheme.SourceBlocksLength = uint8(nbBlocks)
			oti.RaptorQ = &scheme
		} else {
			if oti.Raptor == nil {
				return nil, cmn.NewErrState("FEC Raptor selected but scheme parameters are not defined")
			}
			if nbBlocks > 0xFFFF {
				return nil, cmn.NewErrSizeLimit(
					"object requires %d source blocks, Raptor allows at most 65535", nbBlocks)
			}
			scheme := *oti.Raptor
			scheme.SourceBlocksLength = uint16(nbBlocks)
			oti.Raptor = &scheme
		}
	}

	return &FileDesc{
		Object:            object,
		Oti:               oti,
		TOI:               toi,
		FdtID:             fdtID,
		SenderCurrentTime: senderCurrentTime,
	}, nil
}

// TransferStarted marks this file as actively being sent, resetting the
// transfer count when a carousel is about to wrap it around again.
func (f *FileDesc) TransferStarted() {
	f.transferring = true
	if f.transferCount == f.Object.MaxTransferCount && f.Object.CarouselDelay > 0 {
		f.transferCount = 0
	}
}

// TransferDone marks the current transfer as finished.
func (f *FileDesc) TransferDone(now time.Time) {
	f.transferring = false
	f.transferCount++
	f.lastTransfer = now
	f.hasTransfer = true
}

// IsExpired reports whether this file has exhausted its transfer budget
// and carries no carousel delay to bring it back.
func (f *FileDesc) IsExpired() bool {
	if f.Object.MaxTransferCount > f.transferCount {
		return false
	}
	return f.Object.CarouselDelay <= 0
}

// IsTransferring reports whether a transfer of this file is in flight.
func (f *FileDesc) IsTransferring() bool {
	return f.transferring
}

// ShouldTransferNow reports whether this file is due for (re)transfer:
// its transfer budget is not exhausted, it has no carousel delay, it has
// never completed a transfer, or its carousel delay has elapsed since the
// last transfer.
func (f *FileDesc) ShouldTransferNow(now time.Time) bool {
	if f.Object.MaxTransferCount > f.transferCount {
		return true
	}
	if f.Object.CarouselDelay <= 0 || !f.hasTransfer {
		return true
	}
	return now.Sub(f.lastTransfer) > f.Object.CarouselDelay
}

// XML builds the FDT <File> element for this file. A per-file OTI override
// is emitted only when the object explicitly set one, or the scheme is
// RaptorQ/Raptor (whose per-object source-blocks length always needs
// stamping, since it cannot be inherited from the FDT's default OTI).
func (f *FileDesc) XML() File {
	file := File{
		ContentLocation: f.Object.ContentLocation,
		TOI:             strconv.FormatUint(f.TOI, 10),
		ContentType:     f.Object.ContentType,
		ContentEncoding: f.Object.ContentEncodingString(),
		ContentMD5:      f.Object.MD5,
		Group:           f.Object.Groups,
	}

	contentLength := f.Object.ContentLength
	file.ContentLength = &contentLength
	transferLength := f.Object.TransferLength
	file.TransferLength = &transferLength

	if f.Object.Oti != nil || f.Oti.EncodingID == fec.RaptorQ || f.Oti.EncodingID == fec.Raptor {
		file.otiAttrs = otiAttrsFrom(f.Oti)
	}

	if f.Object.CacheControl != nil {
		file.SetCacheControl(f.Object.CacheControl)
	}

	return file
}
