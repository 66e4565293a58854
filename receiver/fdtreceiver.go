package receiver

import (
	"time"

	"github.com/flute-go/flute/alc"
	"github.com/flute-go/flute/fdt"
	"github.com/flute-go/flute/lct"
	"github.com/flute-go/flute/ntp"
	"github.com/flute-go/flute/writer"
)

// FDTState is an FdtReceiver's lifecycle state.
type FDTState uint8

const (
	FDTReceiving FDTState = iota
	FDTComplete
	FDTError
	FDTExpired
)

// fdtReceiver reconstructs one FDT instance (TOI 0, one fdtID) using an
// objectReceiver wired to an in-memory sink, then holds the parsed result
// and tracks the clock offset implied by the sender's announced current
// time, so expiration can be judged against the sender's clock rather than
// the local one.
type fdtReceiver struct {
	FdtID uint32

	obj   *objectReceiver
	inst  *fdt.Instance
	state FDTState

	rawXML         []byte
	expires        *time.Time
	receptionStart time.Time

	senderTimeOffset time.Duration
	senderTimeLate   bool
	hasSenderTime    bool
}

func newFdtReceiver(endpoint alc.UDPEndpoint, tsi uint64, fdtID uint32, now time.Time) *fdtReceiver {
	f := &fdtReceiver{FdtID: fdtID, state: FDTReceiving, receptionStart: now}
	f.obj = newObjectReceiver(endpoint, tsi, lct.ToiFDT, &fdtSinkBuilder{recv: f}, now)
	return f
}

func (f *fdtReceiver) push(pkt alc.AlcPkt, now time.Time) {
	if pkt.SenderCurrentTime != nil {
		sct := ntp.FromTimestamp64(*pkt.SenderCurrentTime)
		if sct.Before(now) {
			f.senderTimeLate = true
			f.senderTimeOffset = now.Sub(sct)
		} else {
			f.senderTimeLate = false
			f.senderTimeOffset = sct.Sub(now)
		}
		f.hasSenderTime = true
	}

	if f.obj == nil {
		return
	}

	f.obj.push(pkt, now)
	switch f.obj.State {
	case StateReceiving:
	case StateCompleted:
		f.obj = nil
	case StateError:
		f.state = FDTError
	}
}

// serverTime estimates the sender's clock at now, from the offset observed
// in the last Time extension carried by this FDT instance's packets.
func (f *fdtReceiver) serverTime(now time.Time) time.Time {
	if !f.hasSenderTime {
		return now
	}
	if f.senderTimeLate {
		return now.Add(-f.senderTimeOffset)
	}
	return now.Add(f.senderTimeOffset)
}

func (f *fdtReceiver) fdtInstance() *fdt.Instance { return f.inst }

func (f *fdtReceiver) rawXMLString() string { return string(f.rawXML) }

func (f *fdtReceiver) expiresTime(now time.Time) time.Time {
	if f.expires == nil {
		return now
	}
	return *f.expires
}

func (f *fdtReceiver) updateExpiredState(now time.Time, enableExpirationCheck bool) {
	if f.state != FDTComplete {
		return
	}
	if !enableExpirationCheck {
		return
	}
	if f.isExpired(now) {
		f.state = FDTExpired
	}
}

func (f *fdtReceiver) isExpired(now time.Time) bool {
	if f.expires == nil {
		return true
	}
	return f.serverTime(now).After(*f.expires)
}

// fdtSinkBuilder is the ObjectWriterBuilder an fdtReceiver wires its
// internal objectReceiver to: it just accumulates the FDT's raw bytes and,
// on completion, parses them into the instance held by recv.
type fdtSinkBuilder struct {
	recv *fdtReceiver
}

func (b *fdtSinkBuilder) NewObjectWriter(alc.UDPEndpoint, uint64, uint64, *writer.ObjectMetadata, time.Time) writer.ObjectWriter {
	return &fdtSink{recv: b.recv}
}

func (b *fdtSinkBuilder) SetCacheDuration(alc.UDPEndpoint, uint64, uint64, string, time.Duration) {}

func (b *fdtSinkBuilder) FDTReceived(alc.UDPEndpoint, uint64, string, time.Time, time.Time) {}

type fdtSink struct {
	recv *fdtReceiver
	data []byte
}

func (s *fdtSink) Open() error { return nil }

func (s *fdtSink) Write(data []byte) {
	s.data = append(s.data, data...)
}

func (s *fdtSink) Complete() {
	inst, err := fdt.Parse(s.data)
	if err != nil {
		s.recv.state = FDTError
		return
	}

	if seconds, err := inst.ExpiresSeconds(); err == nil {
		exp := ntp.FromSeconds(seconds)
		s.recv.expires = &exp
	}
	s.recv.rawXML = s.data
	s.recv.inst = inst
	s.recv.state = FDTComplete
}

func (s *fdtSink) Error() {
	s.recv.state = FDTError
}
