// Package writer defines the destination side of a FLUTE receiver: where a
// fully (or partially, on error) received object's bytes end up once the
// receiver has reconstructed them.
package writer

import (
	"time"

	"github.com/flute-go/flute/alc"
)

// ObjectMetadata describes an object as announced in the FDT, passed to
// ObjectWriterBuilder.NewObjectWriter before any bytes have arrived.
type ObjectMetadata struct {
	ContentLocation string
	ContentLength   *uint64
	ContentType     string
	CacheDuration   *time.Duration
	Groups          []string
	MD5             string
}

// ObjectWriter receives one object's bytes as the receiver reconstructs it.
// Write is called zero or more times with the object's content in order;
// exactly one of Complete or Error is called at the end of the object's
// lifetime, never both.
type ObjectWriter interface {
	Open() error
	Write(data []byte)
	Complete()
	Error()
}

// ObjectWriterBuilder creates an ObjectWriter for each object a receiver
// starts reconstructing, and receives side-channel notifications about
// cache hints and FDT arrivals that don't belong to any single object.
type ObjectWriterBuilder interface {
	NewObjectWriter(endpoint alc.UDPEndpoint, tsi, toi uint64, meta *ObjectMetadata, now time.Time) ObjectWriter
	SetCacheDuration(endpoint alc.UDPEndpoint, tsi, toi uint64, contentLocation string, duration time.Duration)
	FDTReceived(endpoint alc.UDPEndpoint, tsi uint64, fdtXML string, expires, now time.Time)
}
