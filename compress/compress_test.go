package compress

import (
	"bytes"
	"testing"

	"github.com/flute-go/flute/lct"
)

func TestCompressRejectsNull(t *testing.T) {
	if _, err := Compress([]byte("hello"), lct.CencNull); err == nil {
		t.Fatal("expected error compressing with CencNull")
	}
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	cencs := []lct.Cenc{lct.CencGzip, lct.CencZlib, lct.CencDeflate}
	original := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 500)

	for _, cenc := range cencs {
		t.Run(cenc.String(), func(t *testing.T) {
			compressed, err := Compress(original, cenc)
			if err != nil {
				t.Fatal(err)
			}
			if len(compressed) == 0 {
				t.Fatal("expected non-empty compressed output")
			}

			var sink bytes.Buffer
			dec, err := NewDecompressor(cenc, len(compressed)+64, &sink)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := dec.Write(compressed); err != nil {
				t.Fatal(err)
			}
			if err := dec.Finish(); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(sink.Bytes(), original) {
				t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", sink.Len(), len(original))
			}
		})
	}
}

func TestNewDecompressorRejectsNull(t *testing.T) {
	var sink bytes.Buffer
	if _, err := NewDecompressor(lct.CencNull, 1024, &sink); err == nil {
		t.Fatal("expected error for CencNull")
	}
}
