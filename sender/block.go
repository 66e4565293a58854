package sender

import "github.com/flute-go/flute/fec"

// block holds one source block's FEC-encoded shards (source followed by
// parity), read out one encoding symbol at a time.
type block struct {
	sbn       uint32
	shards    [][]byte
	nbSource  int
	readIndex int
}

// encodingSymbol is one shard of a block, ready to become a packet payload.
type encodingSymbol struct {
	sbn      uint32
	esi      uint32
	symbol   []byte
	isSource bool
}

// newBlockFromBuffer FEC-encodes buffer, one source block's worth of an
// object's content, into its source and parity shards under oti.
func newBlockFromBuffer(sbn uint32, buffer []byte, oti fec.Oti) (*block, error) {
	esl := int(oti.EncodingSymbolLength)
	nbSource := ceilDivInt(len(buffer), esl)
	if nbSource == 0 {
		nbSource = 1
	}
	nbParity := int(oti.MaxNumberOfParitySymbols)

	shards := make([][]byte, nbSource+nbParity)
	for i := 0; i < nbSource; i++ {
		start := i * esl
		end := start + esl
		if end > len(buffer) {
			end = len(buffer)
		}
		chunk := buffer[start:end]
		// NoCode transmits the final symbol at its natural (possibly
		// short) length; every FEC scheme needs uniform-size shards to
		// compute parity, so it gets zero-padded instead.
		if oti.EncodingID != fec.NoCode && len(chunk) < esl {
			padded := make([]byte, esl)
			copy(padded, chunk)
			chunk = padded
		}
		shards[i] = chunk
	}
	for i := nbSource; i < nbSource+nbParity; i++ {
		shards[i] = make([]byte, esl)
	}

	codec, err := fec.NewBlockCodec(oti)
	if err != nil {
		return nil, err
	}
	if err := codec.Encode(shards, nbSource, nbParity); err != nil {
		return nil, err
	}

	return &block{sbn: sbn, shards: shards, nbSource: nbSource}, nil
}

func (b *block) isEmpty() bool {
	return b.readIndex == len(b.shards)
}

// read returns the next encoding symbol of the block, or ok=false once every
// shard has been read.
func (b *block) read() (sym encodingSymbol, ok bool) {
	if b.isEmpty() {
		return encodingSymbol{}, false
	}
	esi := uint32(b.readIndex)
	sym = encodingSymbol{
		sbn:      b.sbn,
		esi:      esi,
		symbol:   b.shards[b.readIndex],
		isSource: int(esi) < b.nbSource,
	}
	b.readIndex++
	return sym, true
}

func ceilDivInt(a, b int) int {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
