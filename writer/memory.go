package writer

import (
	"time"

	"github.com/flute-go/flute/alc"
)

// MemoryObject holds one object's reconstructed bytes, kept around after
// the transfer finishes so the caller can retrieve them.
type MemoryObject struct {
	Complete bool
	Error    bool
	Data     []byte
	Meta     *ObjectMetadata
}

// MemoryWriterBuilder collects every object a receiver reconstructs into
// in-memory buffers, for tests and small embedded use cases that have no
// destination filesystem of their own.
type MemoryWriterBuilder struct {
	Objects []*MemoryObject
}

// NewMemoryWriterBuilder returns an empty MemoryWriterBuilder.
func NewMemoryWriterBuilder() *MemoryWriterBuilder {
	return &MemoryWriterBuilder{}
}

func (b *MemoryWriterBuilder) NewObjectWriter(_ alc.UDPEndpoint, _, _ uint64, meta *ObjectMetadata, _ time.Time) ObjectWriter {
	obj := &MemoryObject{Meta: meta}
	b.Objects = append(b.Objects, obj)
	return &memoryObjectWriter{obj: obj}
}

func (b *MemoryWriterBuilder) SetCacheDuration(alc.UDPEndpoint, uint64, uint64, string, time.Duration) {}

func (b *MemoryWriterBuilder) FDTReceived(alc.UDPEndpoint, uint64, string, time.Time, time.Time) {}

type memoryObjectWriter struct {
	obj *MemoryObject
}

func (w *memoryObjectWriter) Open() error { return nil }

func (w *memoryObjectWriter) Write(data []byte) {
	w.obj.Data = append(w.obj.Data, data...)
}

func (w *memoryObjectWriter) Complete() {
	w.obj.Complete = true
}

func (w *memoryObjectWriter) Error() {
	w.obj.Error = true
}

var _ ObjectWriterBuilder = (*MemoryWriterBuilder)(nil)
