package sender

import (
	"time"

	"github.com/flute-go/flute/alc"
	"github.com/flute-go/flute/fdt"
)

// senderSession drives one file (or, for the dedicated FDT session, the FDT
// instance stream) through a blockEncoder, producing wire packets until the
// file is exhausted and the next one needs to be pulled from the Fdt.
type senderSession struct {
	tsi              uint64
	file             *fdt.FileDesc
	encoder          *blockEncoder
	interleaveBlocks int
	fdtOnly          bool
}

func newSenderSession(tsi uint64, interleaveBlocks int, fdtOnly bool) *senderSession {
	return &senderSession{tsi: tsi, interleaveBlocks: interleaveBlocks, fdtOnly: fdtOnly}
}

// Run produces the next wire packet for this session, pulling a new file
// from f whenever the current one's encoder is exhausted. It returns
// ok=false only once a full cycle finds nothing left to send right now.
func (s *senderSession) Run(f *Fdt, now time.Time) ([]byte, bool) {
	for {
		if s.encoder == nil {
			s.getNext(f, now)
		}
		if s.encoder == nil {
			return nil, false
		}

		pkt, ok := s.encoder.Read(now)
		if !ok {
			s.releaseFile(f, now)
			continue
		}

		wire, err := alc.BuildPacket(s.file.Oti, 0, s.tsi, pkt)
		if err != nil {
			s.releaseFile(f, now)
			continue
		}
		return wire, true
	}
}

func (s *senderSession) getNext(f *Fdt, now time.Time) {
	s.encoder = nil

	var file *fdt.FileDesc
	var ok bool
	if s.fdtOnly {
		file, ok = f.GetNextFdtTransfer(now)
	} else {
		file, ok = f.GetNextFileTransfer(now)
	}
	if !ok {
		s.file = nil
		return
	}

	s.file = file
	s.encoder = newBlockEncoder(file, s.interleaveBlocks)
}

func (s *senderSession) releaseFile(f *Fdt, now time.Time) {
	if s.file != nil {
		f.TransferDone(s.file, now)
	}
	s.file = nil
	s.encoder = nil
}
