package receiver

import (
	"bytes"
	"testing"

	"github.com/flute-go/flute/fec"
)

func TestBlockDecoderCompletesWithoutLoss(t *testing.T) {
	oti := fec.NewNoCode(16, 4)
	b := newBlockDecoder()
	if err := b.initBlock(oti, 4, 0); err != nil {
		t.Fatal(err)
	}

	shards := [][]byte{
		bytes.Repeat([]byte{1}, 16),
		bytes.Repeat([]byte{2}, 16),
		bytes.Repeat([]byte{3}, 16),
		bytes.Repeat([]byte{4}, 16),
	}
	for i, s := range shards {
		b.push(uint32(i), s)
	}

	if !b.completed {
		t.Fatal("expected block to be completed once every source shard arrives")
	}

	want := bytes.Join(shards, nil)
	if !bytes.Equal(b.sourceBlock(), want) {
		t.Fatal("reassembled source block does not match input shards")
	}
}

func TestBlockDecoderRepairsMissingSourceShard(t *testing.T) {
	oti, err := fec.NewReedSolomonGF28(16, 4, 2)
	if err != nil {
		t.Fatal(err)
	}

	source := [][]byte{
		bytes.Repeat([]byte{1}, 16),
		bytes.Repeat([]byte{2}, 16),
		bytes.Repeat([]byte{3}, 16),
		bytes.Repeat([]byte{4}, 16),
	}
	shards := make([][]byte, 6)
	copy(shards, source)
	shards[4] = make([]byte, 16)
	shards[5] = make([]byte, 16)

	codec, err := fec.NewBlockCodec(oti)
	if err != nil {
		t.Fatal(err)
	}
	if err := codec.Encode(shards, 4, 2); err != nil {
		t.Fatal(err)
	}

	b := newBlockDecoder()
	if err := b.initBlock(oti, 4, 0); err != nil {
		t.Fatal(err)
	}

	// Drop source shard 1 but deliver every other shard, including parity.
	b.push(0, shards[0])
	b.push(2, shards[2])
	b.push(3, shards[3])
	b.push(4, shards[4])
	b.push(5, shards[5])

	if !b.completed {
		t.Fatal("expected fec repair to complete the block")
	}
	if !bytes.Equal(b.sourceBlock(), bytes.Join(source, nil)) {
		t.Fatal("repaired source block does not match original content")
	}
}

func TestBlockDecoderIgnoresDuplicateShard(t *testing.T) {
	oti := fec.NewNoCode(16, 2)
	b := newBlockDecoder()
	if err := b.initBlock(oti, 2, 0); err != nil {
		t.Fatal(err)
	}

	b.push(0, bytes.Repeat([]byte{1}, 16))
	b.push(0, bytes.Repeat([]byte{9}, 16))
	if b.nbShards != 1 {
		t.Fatalf("expected duplicate shard to be ignored, nbShards=%d", b.nbShards)
	}
}
