package receiver

import (
	"time"

	"github.com/flute-go/flute/alc"
	"github.com/flute-go/flute/cmn"
	"github.com/flute-go/flute/cmn/nlog"
	"github.com/flute-go/flute/lct"
	"github.com/flute-go/flute/writer"
)

// Receiver reconstructs objects delivered over one transport session (TSI)
// from the ALC/LCT packets pushed to it.
type Receiver struct {
	tsi              uint64
	objects          map[uint64]*objectReceiver
	objectsCompleted map[uint64]*writer.ObjectMetadata
	objectsError     map[uint64]bool
	objectsErrorFIFO []uint64

	fdtReceivers map[uint32]*fdtReceiver
	fdtCurrent   []*fdtReceiver // index 0 is the most recently completed

	writerBuilder writer.ObjectWriterBuilder
	config        Config

	lastActivity     time.Time
	closedIsImminent bool
	endpoint         alc.UDPEndpoint
}

// New creates a Receiver for one TSI of endpoint, writing reconstructed
// objects via writerBuilder.
func New(endpoint alc.UDPEndpoint, tsi uint64, writerBuilder writer.ObjectWriterBuilder, cfg *Config) *Receiver {
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	return &Receiver{
		tsi:              tsi,
		objects:          make(map[uint64]*objectReceiver),
		objectsCompleted: make(map[uint64]*writer.ObjectMetadata),
		objectsError:     make(map[uint64]bool),
		fdtReceivers:     make(map[uint32]*fdtReceiver),
		writerBuilder:    writerBuilder,
		config:           c,
		lastActivity:     time.Now(),
		endpoint:         endpoint,
	}
}

// IsExpired reports whether this receiver's session timeout has elapsed
// with no activity, meaning it should be torn down.
func (r *Receiver) IsExpired(now time.Time) bool {
	if r.config.SessionTimeout == nil {
		return false
	}
	return now.Sub(r.lastActivity) > *r.config.SessionTimeout
}

// NbObjects returns the number of objects currently being received.
func (r *Receiver) NbObjects() int { return len(r.objects) }

// NbObjectsError returns the number of objects currently in the error state.
func (r *Receiver) NbObjectsError() int { return len(r.objectsError) }

// Cleanup expires stalled objects and FDT instances. Call it periodically;
// it is never run implicitly from Push.
func (r *Receiver) Cleanup(now time.Time) {
	r.cleanupObjects(now)
	r.cleanupFdt(now)
}

func (r *Receiver) cleanupFdt(now time.Time) {
	for id, f := range r.fdtReceivers {
		f.updateExpiredState(now, r.config.EnableFDTExpirationCheck)
		if f.state != FDTComplete && f.state != FDTReceiving {
			delete(r.fdtReceivers, id)
		}
	}
}

func (r *Receiver) cleanupObjects(now time.Time) {
	if r.config.ObjectTimeout == nil {
		return
	}

	for toi, obj := range r.objects {
		if obj.lastActivityDuration(now) <= *r.config.ObjectTimeout {
			continue
		}
		nlog.Warningf("tsi=%d toi=%d: object expired, state=%v location=%s blocks=%d/%d left=%d",
			r.tsi, toi, obj.State, obj.ContentLocation, obj.nbBlockCompleted(), obj.nbBlock(), obj.byteLeft())
		delete(r.objectsError, toi)
		delete(r.objects, toi)
	}
}

// PushData parses data as an ALC/LCT packet and, if its TSI matches this
// receiver's, pushes it onward. Packets for another TSI are silently
// ignored, since a demultiplexer may fan the same wire feed to several
// receivers.
func (r *Receiver) PushData(data []byte, now time.Time) error {
	pkt, err := alc.ParsePacket(data)
	if err != nil {
		return err
	}
	if pkt.LCT.TSI != r.tsi {
		return nil
	}
	return r.Push(pkt, now)
}

// Push hands a parsed ALC/LCT packet, already known to belong to this
// receiver's TSI, to the object or FDT instance it targets.
func (r *Receiver) Push(pkt alc.AlcPkt, now time.Time) error {
	r.lastActivity = now

	if pkt.LCT.CloseSession {
		nlog.Infoln("tsi", r.tsi, "close session")
		r.closedIsImminent = true
	}

	if pkt.LCT.TOI == lct.ToiFDT {
		return r.pushFdtObj(pkt, now)
	}
	return r.pushObj(pkt, now)
}

func (r *Receiver) isFdtReceived(fdtInstanceID uint32) bool {
	for _, f := range r.fdtCurrent {
		if f.FdtID == fdtInstanceID {
			return true
		}
	}
	return false
}

func (r *Receiver) pushFdtObj(pkt alc.AlcPkt, now time.Time) error {
	if pkt.FDTInfo == nil {
		if pkt.LCT.CloseObject || pkt.LCT.CloseSession {
			return nil
		}
		return cmn.NewErrMalformed("fdt packet received without fdt extension")
	}
	fdtInstanceID := pkt.FDTInfo.FDTInstanceID

	if r.config.ObjectReceiveOnce && r.isFdtReceived(fdtInstanceID) {
		return nil
	}

	f, ok := r.fdtReceivers[fdtInstanceID]
	if !ok {
		f = newFdtReceiver(r.endpoint, r.tsi, fdtInstanceID, now)
		r.fdtReceivers[fdtInstanceID] = f
	}

	if f.state != FDTReceiving {
		nlog.Warningf("tsi=%d: fdt %d state is %v, ignoring packet", r.tsi, fdtInstanceID, f.state)
		return nil
	}

	f.push(pkt, now)
	if f.state == FDTComplete {
		f.updateExpiredState(now, r.config.EnableFDTExpirationCheck)
	}

	switch f.state {
	case FDTReceiving:
		return nil
	case FDTComplete:
	case FDTError:
		return cmn.NewErrState("failed to decode fdt instance %d", fdtInstanceID)
	case FDTExpired:
		nlog.Warningf("tsi=%d: fdt %d received but already expired", r.tsi, fdtInstanceID)
		return nil
	}

	delete(r.fdtReceivers, fdtInstanceID)
	r.writerBuilder.FDTReceived(r.endpoint, r.tsi, f.rawXMLString(), f.expiresTime(now), now)

	r.fdtCurrent = append([]*fdtReceiver{f}, r.fdtCurrent...)
	r.attachLatestFdtToObjects(now)
	r.gcObjectCompleted()
	r.updateCompletedObjectsCacheControl(now)

	if len(r.fdtCurrent) > 10 {
		r.fdtCurrent = r.fdtCurrent[:10]
	}
	return nil
}

func (r *Receiver) attachLatestFdtToObjects(now time.Time) {
	if len(r.fdtCurrent) == 0 {
		return
	}
	f := r.fdtCurrent[0]
	inst := f.fdtInstance()
	if inst == nil {
		return
	}

	serverTime := f.serverTime(now)
	var toCheck []uint64
	for toi, obj := range r.objects {
		if obj.attachFdt(f.FdtID, inst, now, serverTime) {
			toCheck = append(toCheck, toi)
		}
	}
	for _, toi := range toCheck {
		r.checkObjectState(toi)
	}
}

func (r *Receiver) updateCompletedObjectsCacheControl(now time.Time) {
	if len(r.fdtCurrent) == 0 {
		return
	}
	f := r.fdtCurrent[0]
	inst := f.fdtInstance()
	if inst == nil {
		return
	}
	serverTime := f.serverTime(now)

	for i := range inst.Files {
		file := &inst.Files[i]
		toi, err := file.TOIValue()
		if err != nil {
			continue
		}
		meta, ok := r.objectsCompleted[toi]
		if !ok {
			continue
		}

		cc := file.GetCacheControl()
		if cc == nil {
			continue
		}
		expiresSeconds, _ := inst.ExpiresSeconds()
		duration, cacheable := cacheControlDuration(*cc, expiresSeconds, serverTime)
		if !cacheable {
			delete(r.objectsCompleted, toi)
			continue
		}
		if duration == nil {
			continue
		}
		r.writerBuilder.SetCacheDuration(r.endpoint, r.tsi, toi, meta.ContentLocation, *duration)
	}
}

func (r *Receiver) pushObj(pkt alc.AlcPkt, now time.Time) error {
	toi := pkt.LCT.TOI

	if _, ok := r.objectsCompleted[toi]; ok {
		if r.config.ObjectReceiveOnce {
			return nil
		}
		payloadID, err := payloadIDForRetransmit(pkt)
		if err != nil {
			return err
		}
		if payloadID.SBN == 0 && payloadID.ESI == 0 {
			delete(r.objectsCompleted, toi)
		} else {
			return nil
		}
	}

	if r.objectsError[toi] {
		payloadID, err := payloadIDForRetransmit(pkt)
		if err != nil {
			return err
		}
		if payloadID.SBN == 0 && payloadID.ESI == 0 {
			nlog.Warningf("tsi=%d toi=%d: re-downloading object after errors", r.tsi, toi)
			delete(r.objectsError, toi)
		} else {
			return nil
		}
	}

	obj, ok := r.objects[toi]
	if !ok {
		obj = r.createObj(toi, now)
		r.objects[toi] = obj
	}

	obj.push(pkt, now)
	r.checkObjectState(toi)
	return nil
}

func payloadIDForRetransmit(pkt alc.AlcPkt) (payloadID struct{ SBN, ESI uint32 }, err error) {
	if pkt.Oti == nil {
		return payloadID, cmn.NewErrMalformed("cannot determine payload id without a known oti")
	}
	id, err := alc.ParsePayloadID(pkt, *pkt.Oti)
	if err != nil {
		return payloadID, err
	}
	payloadID.SBN, payloadID.ESI = id.SBN, id.ESI
	return payloadID, nil
}

func (r *Receiver) checkObjectState(toi uint64) {
	obj, ok := r.objects[toi]
	if !ok {
		return
	}

	remove := false
	switch obj.State {
	case StateReceiving:
	case StateCompleted:
		remove = true
		if !obj.noCache {
			r.objectsCompleted[toi] = obj.createMeta()
		}
	case StateError:
		nlog.Errorf("tsi=%d toi=%d: object in error state", r.tsi, toi)
		remove = true
		r.objectsError[toi] = true
		r.gcObjectError()
	}

	if remove {
		delete(r.objects, toi)
	}
}

func (r *Receiver) gcObjectCompleted() {
	if len(r.fdtCurrent) == 0 {
		return
	}
	inst := r.fdtCurrent[0].fdtInstance()
	if inst == nil {
		return
	}

	current := make(map[uint64]struct{}, len(inst.Files))
	for _, file := range inst.Files {
		if toi, err := file.TOIValue(); err == nil {
			current[toi] = struct{}{}
		}
	}
	for toi := range r.objectsCompleted {
		if _, ok := current[toi]; !ok {
			delete(r.objectsCompleted, toi)
		}
	}
}

func (r *Receiver) gcObjectError() {
	for len(r.objectsErrorFIFO) > 0 && len(r.objectsError) > r.config.MaxObjectsError {
		toi := r.objectsErrorFIFO[0]
		r.objectsErrorFIFO = r.objectsErrorFIFO[1:]
		delete(r.objectsError, toi)
		delete(r.objects, toi)
	}
}

func (r *Receiver) createObj(toi uint64, now time.Time) *objectReceiver {
	maxCache := r.config.ObjectMaxCacheSize
	_ = maxCache // reserved for a future cache-size enforcing ObjectWriterBuilder

	obj := newObjectReceiver(r.endpoint, r.tsi, toi, r.writerBuilder, now)

	attached := false
	for i, f := range r.fdtCurrent {
		f.updateExpiredState(now, r.config.EnableFDTExpirationCheck)
		if f.state != FDTComplete {
			continue
		}
		inst := f.fdtInstance()
		if inst == nil {
			continue
		}
		if obj.attachFdt(f.FdtID, inst, now, f.serverTime(now)) {
			attached = true
			if i != 0 {
				nlog.Warningf("tsi=%d toi=%d: attached to fdt %d which is not the latest (index %d)", r.tsi, toi, f.FdtID, i)
			}
			break
		}
	}

	if !attached {
		nlog.Warningf("tsi=%d toi=%d: object received before its fdt", r.tsi, toi)
	}

	r.objectsErrorFIFO = append(r.objectsErrorFIFO, toi)
	return obj
}
