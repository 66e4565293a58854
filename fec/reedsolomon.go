package fec

import (
	"github.com/klauspost/reedsolomon"

	"github.com/flute-go/flute/cmn"
)

// reedSolomonCodec wraps klauspost/reedsolomon for the fully-specified and
// under-specified RS-GF(2^8) schemes, grounded on the original's rscodec.rs.
type reedSolomonCodec struct {
	nbSource int
	nbParity int
	enc      reedsolomon.Encoder
}

func newReedSolomonCodec(nbSource, nbParity, encodingSymbolLength int) (*reedSolomonCodec, error) {
	if nbSource <= 0 {
		return nil, cmn.NewErrMalformed("reed-solomon: nb source symbols must be > 0")
	}
	if nbParity == 0 {
		enc, err := reedsolomon.New(nbSource, 1)
		if err != nil {
			return nil, cmn.NewErrState("failed to create reed-solomon codec: %v", err)
		}
		return &reedSolomonCodec{nbSource: nbSource, nbParity: 0, enc: enc}, nil
	}
	enc, err := reedsolomon.New(nbSource, nbParity)
	if err != nil {
		return nil, cmn.NewErrState("failed to create reed-solomon codec: %v", err)
	}
	return &reedSolomonCodec{nbSource: nbSource, nbParity: nbParity, enc: enc}, nil
}

func (c *reedSolomonCodec) Encode(shards [][]byte, nbSource, nbParity int) error {
	if nbParity == 0 {
		return nil
	}
	if err := c.enc.Encode(shards[:nbSource+nbParity]); err != nil {
		return cmn.NewErrState("reed-solomon encode failed: %v", err)
	}
	return nil
}

func (c *reedSolomonCodec) Decode(shards [][]byte, nbSource, nbParity int) error {
	if nbParity == 0 {
		return nil
	}
	if err := c.enc.Reconstruct(shards[:nbSource+nbParity]); err != nil {
		return cmn.NewErrIntegrity("reed-solomon reconstruct failed: %v", err)
	}
	return nil
}

func (c *reedSolomonCodec) CanDecode(shards [][]byte, nbSource, nbParity int) bool {
	if nbParity == 0 {
		for i := 0; i < nbSource; i++ {
			if shards[i] == nil {
				return false
			}
		}
		return true
	}
	present := 0
	for i := 0; i < nbSource+nbParity; i++ {
		if shards[i] != nil {
			present++
		}
	}
	return present >= nbSource
}
