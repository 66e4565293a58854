package receiver

import "github.com/flute-go/flute/fec"

// blockDecoder reassembles one source block's shards as they arrive off the
// wire, running the block's FEC codec as soon as enough shards are present
// to reconstruct whatever source shards are still missing.
type blockDecoder struct {
	sbn       uint32
	completed bool
	init      bool

	shards         [][]byte
	nbSource       int
	nbParity       int
	nbShards       int
	nbSourceShards int

	codec fec.BlockCodec
}

func newBlockDecoder() *blockDecoder {
	return &blockDecoder{}
}

// initBlock prepares the decoder to receive nbSource+parity shards of sbn,
// under oti's FEC scheme. Calling it twice is a no-op.
func (b *blockDecoder) initBlock(oti fec.Oti, nbSource int, sbn uint32) error {
	if b.init {
		return nil
	}

	codec, err := fec.NewBlockCodec(oti)
	if err != nil {
		return err
	}

	b.sbn = sbn
	b.nbSource = nbSource
	b.nbParity = int(oti.MaxNumberOfParitySymbols)
	b.shards = make([][]byte, nbSource+b.nbParity)
	b.codec = codec
	b.init = true
	return nil
}

// sourceBlock concatenates every source shard into the block's content.
// Callers must only call this once completed is true.
func (b *blockDecoder) sourceBlock() []byte {
	out := make([]byte, 0, b.nbSource*len(b.shards[0]))
	for i := 0; i < b.nbSource; i++ {
		out = append(out, b.shards[i]...)
	}
	return out
}

// push hands the decoder one received shard. It is a no-op if that shard
// position already holds data or lies outside the block's shard count.
func (b *blockDecoder) push(esi uint32, payload []byte) {
	if int(esi) >= len(b.shards) {
		return
	}
	if b.shards[esi] != nil {
		return
	}

	cp := make([]byte, len(payload))
	copy(cp, payload)
	b.shards[esi] = cp
	b.nbShards++
	if int(esi) < b.nbSource {
		b.nbSourceShards++
	}

	b.repair()
	if b.nbSourceShards == b.nbSource {
		b.completed = true
	}
}

// repair attempts FEC reconstruction of any missing source shards, once
// enough total shards have arrived to make that possible.
func (b *blockDecoder) repair() {
	if b.nbSourceShards == b.nbSource || b.nbShards < b.nbSource {
		return
	}
	if !b.codec.CanDecode(b.shards, b.nbSource, b.nbParity) {
		return
	}
	if err := b.codec.Decode(b.shards, b.nbSource, b.nbParity); err != nil {
		return
	}

	b.nbSourceShards = 0
	for i := 0; i < b.nbSource; i++ {
		if b.shards[i] != nil {
			b.nbSourceShards++
		}
	}
}

// deallocate frees the block's shard buffers once they are no longer needed.
func (b *blockDecoder) deallocate() {
	b.shards = nil
}
