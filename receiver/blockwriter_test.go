package receiver

import (
	"bytes"
	"testing"
	"time"

	"github.com/flute-go/flute/compress"
	"github.com/flute-go/flute/fec"
	"github.com/flute-go/flute/lct"
	"github.com/flute-go/flute/writer"
)

func nowZero() time.Time { return time.Time{} }

func blockOf(data []byte, nbSource int) *blockDecoder {
	oti := fec.NewNoCode(uint16(len(data)/nbSource), uint32(nbSource))
	b := newBlockDecoder()
	_ = b.initBlock(oti, nbSource, 0)
	shardLen := len(data) / nbSource
	for i := 0; i < nbSource; i++ {
		b.push(uint32(i), data[i*shardLen:(i+1)*shardLen])
	}
	return b
}

func TestBlockWriterWritesUncompressedInOrder(t *testing.T) {
	wb := writer.NewMemoryWriterBuilder()
	ow := wb.NewObjectWriter(endpoint(), 1, 5, nil, nowZero())
	if err := ow.Open(); err != nil {
		t.Fatal(err)
	}

	content := bytes.Repeat([]byte("abcdefgh"), 4)
	bw := newBlockWriter(uint64(len(content)), lct.CencNull, false)

	block := blockOf(content, 4)
	if err := bw.write(0, block, ow); err != nil {
		t.Fatal(err)
	}
	if !bw.isCompleted() {
		t.Fatal("expected block writer to be completed after its only block")
	}
	if !bytes.Equal(wb.Objects[0].Data, content) {
		t.Fatalf("got %q, want %q", wb.Objects[0].Data, content)
	}
}

func TestBlockWriterHoldsOutOfOrderBlocks(t *testing.T) {
	wb := writer.NewMemoryWriterBuilder()
	ow := wb.NewObjectWriter(endpoint(), 1, 5, nil, nowZero())
	if err := ow.Open(); err != nil {
		t.Fatal(err)
	}

	first := bytes.Repeat([]byte{0xAA}, 16)
	second := bytes.Repeat([]byte{0xBB}, 16)
	bw := newBlockWriter(uint64(len(first)+len(second)), lct.CencNull, false)

	if err := bw.write(1, blockOf(second, 4), ow); err != nil {
		t.Fatal(err)
	}
	if len(wb.Objects[0].Data) != 0 {
		t.Fatal("expected block 1 to be withheld until block 0 arrives")
	}

	if err := bw.write(0, blockOf(first, 4), ow); err != nil {
		t.Fatal(err)
	}
	// The writer keeps no reference to a withheld block; like
	// objectReceiver.writeBlocks, hand block 1 over again once block 0 is in.
	if err := bw.write(1, blockOf(second, 4), ow); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(wb.Objects[0].Data, append(append([]byte{}, first...), second...)) {
		t.Fatal("expected blocks to be written in order once block 0 arrived")
	}
}

func TestBlockWriterDecompressesGzip(t *testing.T) {
	plain := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 20)
	compressed, err := compress.Compress(plain, lct.CencGzip)
	if err != nil {
		t.Fatal(err)
	}

	// Pad compressed content to a multiple of 4 so it partitions evenly.
	for len(compressed)%4 != 0 {
		compressed = append(compressed, 0)
	}

	wb := writer.NewMemoryWriterBuilder()
	ow := wb.NewObjectWriter(endpoint(), 1, 5, nil, nowZero())
	if err := ow.Open(); err != nil {
		t.Fatal(err)
	}

	bw := newBlockWriter(uint64(len(compressed)), lct.CencGzip, false)
	block := blockOf(compressed, 4)
	if err := bw.write(0, block, ow); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(wb.Objects[0].Data, plain) {
		t.Fatalf("decompressed content mismatch: got %d bytes, want %d", len(wb.Objects[0].Data), len(plain))
	}
}
