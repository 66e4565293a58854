// Package compress implements the FLUTE Content-Encoding (CENC) transforms:
// whole-object compression on the sender side, and a streaming decoder on
// the receiver side that can be fed compressed bytes incrementally as
// out-of-order FEC blocks are reassembled into order.
package compress

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"io"

	"github.com/flute-go/flute/cmn"
	"github.com/flute-go/flute/cmn/cos"
	"github.com/flute-go/flute/lct"
)

// Compress returns data encoded under cenc. CencNull is rejected: an object
// with no content encoding is never run through this function.
func Compress(data []byte, cenc lct.Cenc) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser

	switch cenc {
	case lct.CencGzip:
		w = gzip.NewWriter(&buf)
	case lct.CencZlib:
		w = zlib.NewWriter(&buf)
	case lct.CencDeflate:
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, cmn.NewErrState("failed to create deflate writer: %v", err)
		}
		w = fw
	default:
		return nil, cmn.NewErrUnsupported("cannot compress with cenc %s", cenc)
	}

	if _, err := w.Write(data); err != nil {
		return nil, cmn.NewErrIo(err)
	}
	if err := w.Close(); err != nil {
		return nil, cmn.NewErrIo(err)
	}
	return buf.Bytes(), nil
}

// Decompressor streams decompressed bytes of a CENC-compressed object
// straight to a sink as compressed bytes arrive out of the receiver's
// block reassembly. Write is non-blocking and is the only call made from
// the engine's steady-state packet loop; a single private goroutine drives
// the stdlib flate/zlib/gzip reader against an input ring buffer and
// writes decoded bytes to sink as they become available. Finish is called
// once, at object completion, to drain whatever compressed bytes remain.
type Decompressor struct {
	in   *cos.RingBuffer
	done chan error
}

// NewDecompressor starts streaming decompression for cenc, writing
// decompressed bytes to sink as they become available. capacity bounds the
// input ring buffer, in bytes.
func NewDecompressor(cenc lct.Cenc, capacity int, sink io.Writer) (*Decompressor, error) {
	switch cenc {
	case lct.CencGzip, lct.CencZlib, lct.CencDeflate:
	default:
		return nil, cmn.NewErrUnsupported("cannot decompress cenc %s", cenc)
	}

	d := &Decompressor{
		in:   cos.NewRingBuffer(capacity),
		done: make(chan error, 1),
	}
	go d.pump(cenc, sink)
	return d, nil
}

func (d *Decompressor) pump(cenc lct.Cenc, sink io.Writer) {
	var r io.Reader
	var err error
	switch cenc {
	case lct.CencGzip:
		r, err = gzip.NewReader(d.in)
	case lct.CencZlib:
		r, err = zlib.NewReader(d.in)
	case lct.CencDeflate:
		r = flate.NewReader(d.in)
	}
	if err != nil {
		d.done <- cmn.NewErrIo(err)
		return
	}

	if _, err := io.Copy(sink, r); err != nil && err != io.EOF {
		d.done <- cmn.NewErrIo(err)
		return
	}
	d.done <- nil
}

// Write feeds compressed bytes into the decoder pipeline. Non-blocking.
func (d *Decompressor) Write(p []byte) (int, error) {
	return d.in.Write(p)
}

// Finish signals that no more compressed bytes will be written and blocks
// until the background decoder has flushed everything to sink, returning
// any decode or sink-write error it encountered.
func (d *Decompressor) Finish() error {
	d.in.CloseWrite()
	return <-d.done
}

// Abort stops the background decoder without waiting for it to drain.
func (d *Decompressor) Abort() {
	d.in.Abort()
}
