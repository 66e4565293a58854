package receiver

import (
	"crypto/md5"
	"encoding/base64"
	"hash"

	"github.com/flute-go/flute/compress"
	"github.com/flute-go/flute/lct"
	"github.com/flute-go/flute/writer"
)

// blockWriter drains completed source blocks in order, decompressing them
// (when the object carries a Content-Encoding) and handing the resulting
// bytes to an ObjectWriter, while tracking the object's running MD5 digest
// over the uncompressed content.
type blockWriter struct {
	sbn       uint32
	bytesLeft uint64
	cenc      lct.Cenc

	decompressor *compress.Decompressor
	sink         *blockSink
	md5          hash.Hash
	sum          string
}

func newBlockWriter(transferLength uint64, cenc lct.Cenc, computeMD5 bool) *blockWriter {
	w := &blockWriter{bytesLeft: transferLength, cenc: cenc}
	if computeMD5 {
		w.md5 = md5.New()
	}
	return w
}

// checkMD5 reports whether the digest computed so far matches expected. It
// is vacuously true until a digest has actually been finalized.
func (w *blockWriter) checkMD5(expected string) bool {
	if w.sum == "" {
		return true
	}
	return w.sum == expected
}

func (w *blockWriter) md5Sum() string { return w.sum }

// write drains block's content into objWriter if block is the next one
// expected (sbn); otherwise it is a no-op, since blocks complete out of
// order but must be written to the destination in order.
func (w *blockWriter) write(sbn uint32, block *blockDecoder, objWriter writer.ObjectWriter) error {
	if w.sbn != sbn {
		return nil
	}

	data := block.sourceBlock()
	if uint64(len(data)) > w.bytesLeft {
		data = data[:w.bytesLeft]
	}

	if w.cenc == lct.CencNull {
		if w.md5 != nil {
			w.md5.Write(data)
		}
		objWriter.Write(data)
	} else {
		if w.decompressor == nil {
			w.sink = &blockSink{objWriter: objWriter, md5: w.md5}
			dec, err := compress.NewDecompressor(w.cenc, 256*1024, w.sink)
			if err != nil {
				return err
			}
			w.decompressor = dec
		}
		if _, err := w.decompressor.Write(data); err != nil {
			return err
		}
	}

	w.bytesLeft -= uint64(len(data))
	w.sbn++

	if w.isCompleted() {
		if w.decompressor != nil {
			if err := w.decompressor.Finish(); err != nil {
				return err
			}
		}
		if w.md5 != nil {
			w.sum = base64.StdEncoding.EncodeToString(w.md5.Sum(nil))
		}
	}

	return nil
}

func (w *blockWriter) left() uint64 { return w.bytesLeft }

func (w *blockWriter) isCompleted() bool { return w.bytesLeft == 0 }

// blockSink adapts an ObjectWriter into an io.Writer, feeding the same
// bytes through the running MD5 digest before forwarding them.
type blockSink struct {
	objWriter writer.ObjectWriter
	md5       hash.Hash
}

func (s *blockSink) Write(p []byte) (int, error) {
	if s.md5 != nil {
		s.md5.Write(p)
	}
	s.objWriter.Write(p)
	return len(p), nil
}
