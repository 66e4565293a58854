package sender

import (
	"time"

	"github.com/flute-go/flute/alc"
	"github.com/flute-go/flute/cmn/nlog"
	"github.com/flute-go/flute/fdt"
	"github.com/flute-go/flute/ntp"
	"github.com/flute-go/flute/partition"
)

// blockEncoder reads one file's content out as a stream of ALC packets. It
// partitions the object into source blocks per RFC 5052, FEC-encodes each
// block as it is first needed, and interleaves up to multiplexWindows
// blocks at a time so a burst loss on the wire does not wipe out one whole
// block's worth of symbols in a row.
type blockEncoder struct {
	file *fdt.FileDesc

	aLarge, aSmall, nbLarge, nbBlocks uint64

	contentOffset uint64
	curSBN        uint32
	readEnd       bool

	blocks           []*block
	multiplexWindows int
	multiplexIndex   int

	sourceBytesSent uint64
}

// newBlockEncoder partitions file's content and prepares to read it out,
// multiplexWindows source blocks at a time.
func newBlockEncoder(file *fdt.FileDesc, multiplexWindows int) *blockEncoder {
	oti := file.Oti
	aLarge, aSmall, nbLarge, nbBlocks := partition.Partition(
		uint64(oti.MaxSourceBlockLength), file.Object.TransferLength, uint64(oti.EncodingSymbolLength))

	if multiplexWindows < 1 {
		multiplexWindows = 1
	}

	return &blockEncoder{
		file:             file,
		aLarge:           aLarge,
		aSmall:           aSmall,
		nbLarge:          nbLarge,
		nbBlocks:         nbBlocks,
		multiplexWindows: multiplexWindows,
	}
}

// Read returns the next packet of the file's transfer, or ok=false once
// every block has been fully read.
func (e *blockEncoder) Read(now time.Time) (alc.Pkt, bool) {
	for {
		e.fillWindow()

		if len(e.blocks) == 0 {
			return alc.Pkt{}, false
		}

		if e.multiplexIndex >= len(e.blocks) {
			e.multiplexIndex = 0
		}

		cur := e.blocks[e.multiplexIndex]
		sym, ok := cur.read()
		if !ok {
			e.blocks = append(e.blocks[:e.multiplexIndex], e.blocks[e.multiplexIndex+1:]...)
			continue
		}

		e.multiplexIndex++
		if sym.isSource {
			e.sourceBytesSent += uint64(len(sym.symbol))
		}

		var sct *uint64
		if e.file.SenderCurrentTime {
			ts := ntp.Timestamp64(now)
			sct = &ts
		}

		return alc.Pkt{
			Payload:           sym.symbol,
			ESI:               sym.esi,
			SBN:               sym.sbn,
			TOI:               e.file.TOI,
			FDTID:             e.file.FdtID,
			Cenc:              e.file.Object.Cenc,
			InbandCenc:        e.file.Object.InbandCenc,
			TransferLength:    e.file.Object.TransferLength,
			CloseObject:       e.sourceBytesSent >= e.file.Object.TransferLength,
			SourceBlockLength: uint32(cur.nbSource),
			SenderCurrentTime: sct,
		}, true
	}
}

func (e *blockEncoder) fillWindow() {
	for !e.readEnd && len(e.blocks) < e.multiplexWindows {
		if err := e.readNextBlock(); err != nil {
			nlog.Errorf("toi=%d: failed to encode source block %d: %v", e.file.TOI, e.curSBN, err)
			e.readEnd = true
		}
	}
}

func (e *blockEncoder) readNextBlock() error {
	content := e.file.Object.Content
	if content == nil {
		e.readEnd = true
		return nil
	}

	blockLength := e.aSmall
	if uint64(e.curSBN) < e.nbLarge {
		blockLength = e.aLarge
	}

	start := e.contentOffset
	end := start + blockLength*uint64(e.file.Oti.EncodingSymbolLength)
	if end > uint64(len(content)) {
		end = uint64(len(content))
	}

	b, err := newBlockFromBuffer(e.curSBN, content[start:end], e.file.Oti)
	if err != nil {
		return err
	}
	e.blocks = append(e.blocks, b)
	e.curSBN++
	e.contentOffset = end
	e.readEnd = end == uint64(len(content))
	return nil
}
