package sender

import (
	"time"

	"github.com/flute-go/flute/alc"
	"github.com/flute-go/flute/fdt"
	"github.com/flute-go/flute/fec"
)

// Sender transforms a set of objects into the ALC/LCT packet stream that
// delivers them. FDT packets are always sent first when one is due; the
// objects currently being transferred are multiplexed round-robin.
type Sender struct {
	fdt        *Fdt
	fdtSession *senderSession
	sessions   []*senderSession
	sessionIdx int
	observers  *observerList
	tsi        uint64
	endpoint   alc.UDPEndpoint
}

// New builds a Sender for endpoint/tsi, transferring objects under the
// given default OTI and Config.
func New(endpoint alc.UDPEndpoint, tsi uint64, oti fec.Oti, cfg Config) *Sender {
	observers := &observerList{}
	f := newFdt(tsi, oti, cfg, observers)

	multiplexFiles := int(cfg.MultiplexFiles) + 1
	if cfg.MultiplexFiles == 0 {
		multiplexFiles = 2
	}

	fdtSession := newSenderSession(tsi, int(cfg.InterleaveBlocks), true)

	sessions := make([]*senderSession, multiplexFiles-1)
	for i := range sessions {
		sessions[i] = newSenderSession(tsi, int(cfg.InterleaveBlocks), false)
	}

	return &Sender{
		fdt:        f,
		fdtSession: fdtSession,
		sessions:   sessions,
		observers:  observers,
		tsi:        tsi,
		endpoint:   endpoint,
	}
}

// Subscribe registers s to receive transfer start/stop events.
func (s *Sender) Subscribe(sub Subscriber) { s.observers.Subscribe(sub) }

// Unsubscribe removes a previously registered subscriber.
func (s *Sender) Unsubscribe(sub Subscriber) { s.observers.Unsubscribe(sub) }

// UDPEndpoint returns the transport endpoint this session delivers to.
func (s *Sender) UDPEndpoint() alc.UDPEndpoint { return s.endpoint }

// TSI returns the transport session identifier.
func (s *Sender) TSI() uint64 { return s.tsi }

// AddObject registers obj for transfer. Call Publish afterward to advertise
// it in a new FDT instance.
func (s *Sender) AddObject(obj *fdt.ObjectDesc) (uint64, error) {
	return s.fdt.AddObject(obj)
}

// IsAdded reports whether toi is currently registered.
func (s *Sender) IsAdded(toi uint64) bool { return s.fdt.IsAdded(toi) }

// RemoveObject unregisters toi. An in-flight transfer of it is not
// canceled. Call Publish afterward to advertise the change.
func (s *Sender) RemoveObject(toi uint64) bool { return s.fdt.RemoveObject(toi) }

// NbObjects returns the number of objects currently registered in the FDT.
func (s *Sender) NbObjects() int { return s.fdt.NbObjects() }

// Publish builds and enqueues a fresh FDT instance reflecting every
// AddObject/RemoveObject/SetComplete call made since the last publish.
func (s *Sender) Publish(now time.Time) error { return s.fdt.Publish(now) }

// SetComplete marks the FDT final: no object may be added after this call.
func (s *Sender) SetComplete() { s.fdt.SetComplete() }

// AllocateToi reserves a TOI without registering an object for it yet. The
// caller assigns it to an ObjectDesc passed to AddObject; Sender has no call
// that returns an unused TOI to the pool.
func (s *Sender) AllocateToi() uint64 { return s.fdt.AllocateToi() }

// ReadCloseSession builds the packet that signals the end of this TSI's
// session.
func (s *Sender) ReadCloseSession() []byte {
	return alc.BuildCloseSessionPacket(0, s.tsi)
}

// Read returns the next wire packet of the transfer, or ok=false if nothing
// is currently ready to send.
func (s *Sender) Read(now time.Time) ([]byte, bool) {
	if data, ok := s.fdtSession.Run(s.fdt, now); ok {
		return data, true
	}

	if len(s.sessions) == 0 {
		return nil, false
	}

	start := s.sessionIdx
	for {
		session := s.sessions[s.sessionIdx]
		data, ok := session.Run(s.fdt, now)

		s.sessionIdx++
		if s.sessionIdx == len(s.sessions) {
			s.sessionIdx = 0
		}

		if ok {
			return data, true
		}
		if s.sessionIdx == start {
			return nil, false
		}
	}
}
