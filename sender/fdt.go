package sender

import (
	"time"

	"github.com/flute-go/flute/cmn"
	"github.com/flute-go/flute/cmn/nlog"
	"github.com/flute-go/flute/fdt"
	"github.com/flute-go/flute/fec"
	"github.com/flute-go/flute/lct"
	"github.com/flute-go/flute/ntp"
)

// Fdt owns every object a Sender has been told to transfer: the FDT
// instance describing them, the queues deciding what to send next, and the
// TOI allocator handing out identifiers for new objects.
type Fdt struct {
	tsi   uint64
	fdtID uint32
	oti   fec.Oti

	files              map[uint64]*fdt.FileDesc
	filesTransferQueue []*fdt.FileDesc
	fdtTransferQueue   []*fdt.FileDesc
	currentFdtTransfer *fdt.FileDesc

	complete bool

	cenc         lct.Cenc
	duration     time.Duration
	carousel     time.Duration
	inbandSCT    bool
	lastPublish  time.Time
	hasPublished bool
	groups       []string
	publishMode  FDTPublishMode
	toiAllocator *toiAllocator
	observers    *observerList
}

func newFdt(tsi uint64, defaultOti fec.Oti, cfg Config, observers *observerList) *Fdt {
	return &Fdt{
		tsi:          tsi,
		fdtID:        cfg.FDTStartID,
		oti:          defaultOti,
		files:        make(map[uint64]*fdt.FileDesc),
		cenc:         cfg.FDTCenc,
		duration:     cfg.FDTDuration,
		carousel:     cfg.FDTCarousel,
		inbandSCT:    cfg.FDTInbandSCT,
		groups:       cfg.Groups,
		publishMode:  cfg.PublishMode,
		toiAllocator: newToiAllocator(cfg.TOIMaxLength, cfg.TOIInitialValue),
		observers:    observers,
	}
}

// getInstance builds the FDT-Instance XML document describing every file
// this publish mode wants advertised. RaptorQ's default OTI is omitted: its
// source-blocks-length scheme parameter varies per object, so it can never
// be meaningfully inherited and is always stamped on the per-file override
// instead (fdt.FileDesc.XML already does this).
func (f *Fdt) getInstance(now time.Time) *fdt.Instance {
	expires := ntp.ToSeconds(now) + uint32(f.duration/time.Second)
	in := fdt.NewInstance(expires)

	if f.oti.EncodingID != fec.RaptorQ {
		in.SetDefaultOti(f.oti)
	}

	in.Group = f.groups
	if f.publishMode == FDTPublishFullFDT {
		full := true
		in.FullFDT = &full
	}
	if f.complete {
		complete := true
		in.Complete = &complete
	}

	for _, file := range f.filesToPublish() {
		in.Files = append(in.Files, file.XML())
	}
	return in
}

func (f *Fdt) filesToPublish() []*fdt.FileDesc {
	if f.publishMode == FDTPublishFullFDT {
		out := make([]*fdt.FileDesc, 0, len(f.files))
		for _, file := range f.files {
			out = append(out, file)
		}
		return out
	}

	var out []*fdt.FileDesc
	for _, file := range f.files {
		if file.IsTransferring() {
			out = append(out, file)
		}
	}
	return out
}

// AllocateToi returns a new TOI for an object this Fdt has not yet seen.
func (f *Fdt) AllocateToi() uint64 {
	return f.toiAllocator.Allocate()
}

// AddObject registers obj for transfer, allocating it a TOI unless one was
// already requested.
func (f *Fdt) AddObject(obj *fdt.ObjectDesc) (uint64, error) {
	if f.complete {
		return 0, cmn.NewErrState("fdt is complete, no new object should be added")
	}

	if obj.TOI == nil {
		toi := f.AllocateToi()
		obj.TOI = &toi
	}

	fileDesc, err := fdt.NewFileDesc(obj, f.oti, *obj.TOI, nil, false)
	if err != nil {
		return 0, err
	}

	f.files[fileDesc.TOI] = fileDesc
	f.filesTransferQueue = append(f.filesTransferQueue, fileDesc)
	return fileDesc.TOI, nil
}

// IsAdded reports whether toi is currently registered with this Fdt.
func (f *Fdt) IsAdded(toi uint64) bool {
	_, ok := f.files[toi]
	return ok
}

// RemoveObject unregisters toi, dropping it from the transfer queue and
// returning its TOI to the allocator's free pool.
func (f *Fdt) RemoveObject(toi uint64) bool {
	if _, ok := f.files[toi]; !ok {
		return false
	}
	delete(f.files, toi)

	kept := f.filesTransferQueue[:0]
	for _, file := range f.filesTransferQueue {
		if file.TOI != toi {
			kept = append(kept, file)
		}
	}
	f.filesTransferQueue = kept

	f.toiAllocator.Release(toi)
	return true
}

// NbObjects returns the number of objects currently registered.
func (f *Fdt) NbObjects() int {
	if len(f.files) > 100 {
		locations := make([]string, 0, len(f.files))
		for _, file := range f.files {
			locations = append(locations, file.Object.ContentLocation)
		}
		nlog.Errorf("fdt tsi=%d: %d objects registered: %v", f.tsi, len(f.files), locations)
	}
	return len(f.files)
}

// SetComplete marks the FDT as final: no further objects may be added, and
// the next published instance carries Complete="true".
func (f *Fdt) SetComplete() {
	f.complete = true
}

// Publish serializes the current FDT instance and enqueues it for transfer
// as object TOI 0.
func (f *Fdt) Publish(now time.Time) error {
	content, err := f.getInstance(now).Marshal()
	if err != nil {
		return err
	}

	obj, err := fdt.NewObjectDesc(content, "text/xml", "file:///", f.cenc, false)
	if err != nil {
		return err
	}
	obj.MaxTransferCount = 1
	obj.CarouselDelay = f.carousel
	obj.Groups = f.groups

	fdtID := f.fdtID
	fileDesc, err := fdt.NewFileDesc(obj, f.oti, lct.ToiFDT, &fdtID, f.inbandSCT)
	if err != nil {
		return err
	}

	f.fdtTransferQueue = append(f.fdtTransferQueue, fileDesc)
	f.fdtID = (f.fdtID + 1) & 0xFFFFF
	f.lastPublish = now
	f.hasPublished = true
	return nil
}

// NeedTransferFDT reports whether a freshly published FDT instance is
// waiting to be sent.
func (f *Fdt) NeedTransferFDT() bool {
	return len(f.fdtTransferQueue) > 0
}

func (f *Fdt) currentFdtWillExpire(now time.Time) bool {
	if len(f.fdtTransferQueue) > 0 {
		return false
	}
	if f.currentFdtTransfer == nil || !f.hasPublished {
		return true
	}

	elapsed := now.Sub(f.lastPublish)
	if f.duration > 30*time.Second {
		return f.duration+5*time.Second < elapsed
	}
	return f.duration <= elapsed
}

// GetNextFdtTransfer returns the FileDesc for the FDT instance that should
// be sent next, republishing a new instance first if the current one is
// about to expire.
func (f *Fdt) GetNextFdtTransfer(now time.Time) (*fdt.FileDesc, bool) {
	if f.currentFdtTransfer != nil && f.currentFdtTransfer.IsTransferring() {
		return nil, false
	}

	if f.currentFdtWillExpire(now) {
		if err := f.Publish(now); err != nil {
			nlog.Errorf("fdt tsi=%d: failed to publish: %v", f.tsi, err)
		}
	}

	if len(f.fdtTransferQueue) > 0 {
		f.currentFdtTransfer = f.fdtTransferQueue[0]
		f.fdtTransferQueue = f.fdtTransferQueue[1:]
	}

	if f.currentFdtTransfer == nil || !f.currentFdtTransfer.ShouldTransferNow(now) {
		return nil, false
	}

	f.currentFdtTransfer.TransferStarted()
	return f.currentFdtTransfer, true
}

// GetNextFileTransfer returns the FileDesc of the next object due for
// transfer, if any.
func (f *Fdt) GetNextFileTransfer(now time.Time) (*fdt.FileDesc, bool) {
	index := -1
	for i, file := range f.filesTransferQueue {
		if file.ShouldTransferNow(now) {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, false
	}

	file := f.filesTransferQueue[index]
	f.filesTransferQueue = append(f.filesTransferQueue[:index], f.filesTransferQueue[index+1:]...)

	f.observers.Dispatch(Event{Kind: EventStartTransfer, File: FileInfo{TOI: file.TOI}}, now)
	file.TransferStarted()

	if f.publishMode == FDTPublishObjectsBeingTransferred {
		if err := f.Publish(now); err != nil {
			nlog.Errorf("fdt tsi=%d: failed to publish: %v", f.tsi, err)
		}
	}

	return file, true
}

// TransferDone marks file's current transfer as finished, requeueing it if
// its carousel is still active or retiring it otherwise.
func (f *Fdt) TransferDone(file *fdt.FileDesc, now time.Time) {
	file.TransferDone(now)

	if file.TOI == lct.ToiFDT {
		if file.IsExpired() {
			f.currentFdtTransfer = nil
		}
		return
	}

	f.observers.Dispatch(Event{Kind: EventStopTransfer, File: FileInfo{TOI: file.TOI}}, now)

	if _, ok := f.files[file.TOI]; !ok {
		return
	}
	if !file.IsExpired() {
		f.filesTransferQueue = append(f.filesTransferQueue, file)
	} else {
		delete(f.files, file.TOI)
	}
}
