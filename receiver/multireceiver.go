package receiver

import (
	"time"

	"github.com/flute-go/flute/alc"
	"github.com/flute-go/flute/cmn/nlog"
	"github.com/flute-go/flute/writer"
)

// MultiReceiver demultiplexes one wire feed carrying several transport
// sessions (TSIs) to a Receiver per TSI, optionally restricted to an
// allow-list of TSIs.
type MultiReceiver struct {
	receivers map[uint64]*Receiver

	tsiAllowList  []uint64
	writerBuilder writer.ObjectWriterBuilder
	config        *Config
	endpoint      alc.UDPEndpoint
}

// NewMultiReceiver creates a MultiReceiver for endpoint. A nil tsi slice
// accepts packets for any TSI; otherwise only the listed TSIs are
// reconstructed and everything else is dropped.
func NewMultiReceiver(endpoint alc.UDPEndpoint, tsi []uint64, writerBuilder writer.ObjectWriterBuilder, config *Config) *MultiReceiver {
	return &MultiReceiver{
		receivers:     make(map[uint64]*Receiver),
		tsiAllowList:  tsi,
		writerBuilder: writerBuilder,
		config:        config,
		endpoint:      endpoint,
	}
}

func (m *MultiReceiver) tsiAllowed(tsi uint64) bool {
	if m.tsiAllowList == nil {
		return true
	}
	for _, t := range m.tsiAllowList {
		if t == tsi {
			return true
		}
	}
	return false
}

// Push parses data as an ALC/LCT packet and routes it to the Receiver for
// its TSI, creating one on first sight unless the packet is a close-session
// for a TSI this MultiReceiver has never seen.
func (m *MultiReceiver) Push(data []byte, now time.Time) error {
	pkt, err := alc.ParsePacket(data)
	if err != nil {
		return err
	}

	tsi := pkt.LCT.TSI
	if !m.tsiAllowed(tsi) {
		return nil
	}

	if pkt.LCT.CloseSession {
		r := m.getReceiver(tsi)
		if r == nil {
			nlog.Warningf("tsi=%d: close session received for unknown receiver", tsi)
			return nil
		}
		return r.Push(pkt, now)
	}

	r := m.getReceiverOrCreate(tsi, now)
	return r.Push(pkt, now)
}

// Cleanup removes expired receivers and runs housekeeping on the survivors.
func (m *MultiReceiver) Cleanup(now time.Time) {
	for tsi, r := range m.receivers {
		if r.IsExpired(now) {
			delete(m.receivers, tsi)
			continue
		}
		r.Cleanup(now)
	}
}

func (m *MultiReceiver) getReceiver(tsi uint64) *Receiver {
	return m.receivers[tsi]
}

func (m *MultiReceiver) getReceiverOrCreate(tsi uint64, now time.Time) *Receiver {
	if r, ok := m.receivers[tsi]; ok {
		return r
	}
	r := New(m.endpoint, tsi, m.writerBuilder, m.config)
	m.receivers[tsi] = r
	return r
}
