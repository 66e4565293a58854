package receiver

import (
	"net/url"
	"time"

	"github.com/flute-go/flute/alc"
	"github.com/flute-go/flute/cmn"
	"github.com/flute-go/flute/cmn/nlog"
	"github.com/flute-go/flute/fdt"
	"github.com/flute-go/flute/fec"
	"github.com/flute-go/flute/lct"
	"github.com/flute-go/flute/ntp"
	"github.com/flute-go/flute/partition"
	"github.com/flute-go/flute/writer"
)

// State is an objectReceiver's lifecycle state.
type State uint8

const (
	StateReceiving State = iota
	StateCompleted
	StateError
)

type writerState uint8

const (
	writerIdle writerState = iota
	writerOpened
	writerClosed
	writerError
)

// objectReceiver reassembles one object (identified by its TOI within a
// TSI) from the ALC/LCT packets pushed to it, writing completed source
// blocks out through an ObjectWriter as soon as they arrive in order.
type objectReceiver struct {
	State    State
	TOI      uint64
	TSI      uint64
	Endpoint alc.UDPEndpoint

	oti                *fec.Oti
	cache              []alc.AlcPktCache
	blocks             []*blockDecoder
	blocksVariableSize bool
	transferLength     *uint64
	cenc               *lct.Cenc
	contentMD5         string
	noCache            bool
	aLarge, aSmall     uint64
	nbALarge           uint64

	writerBuilder writer.ObjectWriterBuilder
	objWriter     writer.ObjectWriter
	objWriterSt   writerState
	block         *blockWriter

	fdtInstanceID *uint32
	meta          *writer.ObjectMetadata
	lastActivity  time.Time

	CacheExpirationDate *time.Time
	ContentLocation     string
}

func newObjectReceiver(endpoint alc.UDPEndpoint, tsi, toi uint64, writerBuilder writer.ObjectWriterBuilder, now time.Time) *objectReceiver {
	return &objectReceiver{
		TOI:           toi,
		TSI:           tsi,
		Endpoint:      endpoint,
		writerBuilder: writerBuilder,
		lastActivity:  now,
	}
}

func (o *objectReceiver) lastActivityDuration(now time.Time) time.Duration {
	return now.Sub(o.lastActivity)
}

func (o *objectReceiver) nbBlock() int { return len(o.blocks) }

func (o *objectReceiver) nbBlockCompleted() int {
	n := 0
	for _, b := range o.blocks {
		if b.completed {
			n++
		}
	}
	return n
}

func (o *objectReceiver) byteLeft() uint64 {
	if o.block == nil {
		return 0
	}
	return o.block.left()
}

// push hands pkt to the object, advancing its reconstruction.
func (o *objectReceiver) push(pkt alc.AlcPkt, now time.Time) {
	if o.State != StateReceiving {
		return
	}

	o.lastActivity = now
	o.setFdtIDFromPkt(pkt)
	o.setCencFromPkt(pkt)
	o.setOtiFromPkt(pkt)

	o.initBlocksPartitioning()
	o.initObjectWriter(now)
	o.pushFromCache(now)

	if o.oti == nil {
		o.cachePkt(pkt)
		return
	}

	if err := o.pushToBlock(pkt, now); err != nil {
		nlog.Errorf("tsi=%d toi=%d: %v", o.TSI, o.TOI, err)
		o.markError()
	}
}

func (o *objectReceiver) pushToBlock(pkt alc.AlcPkt, now time.Time) error {
	payloadID, err := alc.ParsePayloadID(pkt, *o.oti)
	if err != nil {
		return err
	}

	if *o.transferLength == 0 {
		o.complete(now)
		return nil
	}

	if int(payloadID.SBN) >= len(o.blocks) {
		if !o.blocksVariableSize {
			return cmn.NewErrMalformed("sbn %d exceeds max sbn %d", payloadID.SBN, len(o.blocks))
		}
		for len(o.blocks) <= int(payloadID.SBN) {
			o.blocks = append(o.blocks, newBlockDecoder())
		}
	}

	block := o.blocks[payloadID.SBN]
	if block.completed {
		return nil
	}

	if !block.init {
		sourceBlockLength := payloadID.SourceBlockLength
		if !payloadID.HasSourceBlockLength {
			if payloadID.SBN < uint32(o.nbALarge) {
				sourceBlockLength = uint32(o.aLarge)
			} else {
				sourceBlockLength = uint32(o.aSmall)
			}
		}

		if err := block.initBlock(*o.oti, int(sourceBlockLength), payloadID.SBN); err != nil {
			o.State = StateError
			return cmn.NewErrState("failed to init block decoder: %v", err)
		}
	}

	block.push(payloadID.ESI, pkt.Payload())
	if block.completed {
		return o.writeBlocks(payloadID.SBN, now)
	}
	return nil
}

// attachFdt binds this object to the File entry named by its TOI in a
// freshly completed FDT instance. Returns false when the FDT carries no
// matching entry, or this object is already attached to one.
func (o *objectReceiver) attachFdt(fdtInstanceID uint32, inst *fdt.Instance, now, serverTime time.Time) bool {
	if o.fdtInstanceID != nil {
		return false
	}

	file := inst.FileByTOI(o.TOI)
	if file == nil {
		return false
	}

	if o.cenc == nil {
		cenc := file.Cenc()
		o.cenc = &cenc
	}

	if o.oti == nil {
		if oti, ok := inst.OtiForFile(file); ok {
			o.oti = &oti
			tl := file.TransferLengthOrContentLength()
			o.transferLength = &tl
		}
	}

	o.ContentLocation = resolveContentLocation(file.ContentLocation)
	o.contentMD5 = file.ContentMD5
	id := fdtInstanceID
	o.fdtInstanceID = &id

	var cacheDuration *time.Duration
	if cc := file.GetCacheControl(); cc != nil {
		expiresSeconds, _ := inst.ExpiresSeconds()
		d, cacheable := cacheControlDuration(*cc, expiresSeconds, serverTime)
		o.noCache = !cacheable
		cacheDuration = d
	}
	if cacheDuration != nil {
		exp := now.Add(*cacheDuration)
		o.CacheExpirationDate = &exp
	}

	o.meta = &writer.ObjectMetadata{
		ContentLocation: o.ContentLocation,
		ContentLength:   file.ContentLength,
		ContentType:     file.ContentType,
		CacheDuration:   cacheDuration,
		Groups:          file.Group,
		MD5:             o.contentMD5,
	}

	o.initBlocksPartitioning()
	o.initObjectWriter(now)
	o.pushFromCache(now)
	if err := o.writeBlocks(0, now); err != nil {
		o.markError()
	}
	return true
}

// createMeta snapshots this object's metadata, for retention once it has
// completed and its working state has been freed.
func (o *objectReceiver) createMeta() *writer.ObjectMetadata {
	return o.meta
}

func resolveContentLocation(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.IsAbs() {
		return u.String()
	}
	base, _ := url.Parse("file:///")
	if joined, err := base.Parse(raw); err == nil {
		return joined.String()
	}
	return raw
}

// cacheControlDuration turns a File's Cache-Control element into a caching
// duration measured from serverTime. cacheable is false for NoCache, which
// means the object must never be retained in the completed-object cache.
func cacheControlDuration(cc fdt.CacheControl, fdtExpiresNTP uint32, serverTime time.Time) (duration *time.Duration, cacheable bool) {
	switch cc.Kind {
	case fdt.CacheControlNoCache:
		return nil, false
	case fdt.CacheControlMaxStale:
		d := ntp.FromSeconds(fdtExpiresNTP).Sub(serverTime)
		return &d, true
	case fdt.CacheControlExpires:
		d := ntp.FromSeconds(cc.ExpiresNTP).Sub(serverTime)
		return &d, true
	default:
		return nil, true
	}
}

func (o *objectReceiver) initObjectWriter(now time.Time) {
	if o.objWriter != nil {
		return
	}
	if o.fdtInstanceID == nil || o.cenc == nil || o.transferLength == nil {
		return
	}

	o.objWriter = o.writerBuilder.NewObjectWriter(o.Endpoint, o.TSI, o.TOI, o.meta, now)
	o.objWriterSt = writerIdle

	if err := o.objWriter.Open(); err != nil {
		nlog.Errorf("tsi=%d toi=%d: failed to open destination: %v", o.TSI, o.TOI, err)
		o.markError()
		return
	}

	if *o.transferLength != 0 {
		o.block = newBlockWriter(*o.transferLength, *o.cenc, o.contentMD5 != "")
	}
	o.objWriterSt = writerOpened
}

func (o *objectReceiver) writeBlocks(sbnStart uint32, now time.Time) error {
	if o.objWriter == nil || o.objWriterSt != writerOpened || o.block == nil {
		return nil
	}

	sbn := int(sbnStart)
	for sbn < len(o.blocks) {
		block := o.blocks[sbn]
		if !block.completed {
			break
		}

		before := o.block.sbn
		if err := o.block.write(uint32(sbn), block, o.objWriter); err != nil {
			return err
		}
		if o.block.sbn == before {
			break
		}
		block.deallocate()
		sbn++

		if o.block.isCompleted() {
			md5Valid := o.contentMD5 == "" || o.block.checkMD5(o.contentMD5)
			if md5Valid {
				o.complete(now)
			} else {
				nlog.Errorf("tsi=%d toi=%d: md5 mismatch expected=%s got=%s location=%s",
					o.TSI, o.TOI, o.contentMD5, o.block.md5Sum(), o.ContentLocation)
				o.markError()
			}
			break
		}
	}
	return nil
}

func (o *objectReceiver) complete(time.Time) {
	o.State = StateCompleted
	if o.objWriter != nil {
		o.objWriterSt = writerClosed
		o.objWriter.Complete()
	}
	o.blocks = nil
	o.cache = nil
}

func (o *objectReceiver) markError() {
	o.State = StateError
	if o.objWriter != nil {
		o.objWriterSt = writerError
		o.objWriter.Error()
	}
	o.blocks = nil
	o.cache = nil
}

func (o *objectReceiver) pushFromCache(now time.Time) {
	if len(o.blocks) == 0 {
		return
	}

	for len(o.cache) > 0 {
		last := len(o.cache) - 1
		item := o.cache[last]
		o.cache = o.cache[:last]

		if err := o.pushToBlock(item.ToPkt(), now); err != nil {
			o.markError()
			break
		}
	}
}

func (o *objectReceiver) setCencFromPkt(pkt alc.AlcPkt) {
	if o.cenc != nil {
		return
	}
	o.cenc = pkt.Cenc
	if o.TOI == lct.ToiFDT && o.cenc == nil {
		null := lct.CencNull
		o.cenc = &null
	}
}

func (o *objectReceiver) setFdtIDFromPkt(pkt alc.AlcPkt) {
	if o.fdtInstanceID != nil || pkt.LCT.TOI != lct.ToiFDT {
		return
	}
	if pkt.FDTInfo != nil {
		id := pkt.FDTInfo.FDTInstanceID
		o.fdtInstanceID = &id
	}
}

func (o *objectReceiver) setOtiFromPkt(pkt alc.AlcPkt) {
	if o.oti != nil {
		return
	}
	if pkt.Oti == nil {
		return
	}

	o.oti = pkt.Oti
	o.transferLength = pkt.TransferLength
	if pkt.TransferLength == nil {
		nlog.Warningf("tsi=%d toi=%d: oti received without a transfer length", o.TSI, o.TOI)
		o.markError()
	}
}

func (o *objectReceiver) cachePkt(pkt alc.AlcPkt) {
	o.cache = append(o.cache, pkt.ToCache())
}

// initBlocksPartitioning partitions the object into source blocks per
// RFC 5052, once both its OTI and transfer length are known.
func (o *objectReceiver) initBlocksPartitioning() {
	if len(o.blocks) != 0 {
		return
	}
	if o.oti == nil || o.transferLength == nil {
		return
	}

	aLarge, aSmall, nbALarge, nbBlocks := partition.Partition(
		uint64(o.oti.MaxSourceBlockLength), *o.transferLength, uint64(o.oti.EncodingSymbolLength))

	o.aLarge = aLarge
	o.aSmall = aSmall
	o.nbALarge = nbALarge
	o.blocksVariableSize = o.oti.EncodingID == fec.ReedSolomonGF28UnderSpecified

	o.blocks = make([]*blockDecoder, nbBlocks)
	for i := range o.blocks {
		o.blocks[i] = newBlockDecoder()
	}
}
