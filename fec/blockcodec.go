package fec

import "github.com/flute-go/flute/cmn"

// BlockCodec encodes and reconstructs the encoding symbols of a single
// source block. shards is sized nbSource+nbParity; source shards occupy
// indices [0, nbSource) and parity shards [nbSource, nbSource+nbParity).
// A nil entry means the symbol has not been received.
type BlockCodec interface {
	// Encode fills the parity shards from the (fully populated) source shards.
	Encode(shards [][]byte, nbSource, nbParity int) error
	// Decode reconstructs any nil source shards, given enough shards are
	// present to do so. The FEC codecs return an error when reconstruction
	// is not possible; callers check CanDecode first.
	Decode(shards [][]byte, nbSource, nbParity int) error
	// CanDecode reports whether enough shards are present to reconstruct
	// every source shard.
	CanDecode(shards [][]byte, nbSource, nbParity int) bool
}

// NewBlockCodec returns the BlockCodec implementing oti's FEC scheme.
func NewBlockCodec(oti Oti) (BlockCodec, error) {
	switch oti.EncodingID {
	case NoCode:
		return noCodeCodec{}, nil
	case ReedSolomonGF28, ReedSolomonGF28UnderSpecified:
		return newReedSolomonCodec(int(oti.MaxSourceBlockLength), int(oti.MaxNumberOfParitySymbols), int(oti.EncodingSymbolLength))
	case ReedSolomonGF2M:
		m := uint8(8)
		if oti.ReedSolomonGF2M != nil && oti.ReedSolomonGF2M.M != 0 {
			m = oti.ReedSolomonGF2M.M
		}
		return newReedSolomonGF2MCodec(m)
	case Raptor, RaptorQ:
		return newFountainCodec(int(oti.EncodingSymbolLength)), nil
	default:
		return nil, cmn.NewErrUnsupported("no block codec for FEC scheme %s", oti.EncodingID)
	}
}

type noCodeCodec struct{}

func (noCodeCodec) Encode([][]byte, int, int) error { return nil }

func (noCodeCodec) Decode([][]byte, int, int) error { return nil }

func (noCodeCodec) CanDecode(shards [][]byte, nbSource, _ int) bool {
	for i := 0; i < nbSource; i++ {
		if shards[i] == nil {
			return false
		}
	}
	return true
}
