package fec

import "github.com/flute-go/flute/cmn"

// fountainCodec implements a systematic XOR fountain code shared by the
// Raptor and RaptorQ schemes. Source symbols are transmitted unmodified at
// ESI < nbSource; repair symbols at ESI >= nbSource are a deterministic XOR
// combination of a pseudo-random subset of source symbols, keyed by ESI so
// encoder and decoder agree on the combination without exchanging it. No
// maintained pure-Go Raptor/RaptorQ implementation exists in this module's
// dependency surface, so both schemes share this from-scratch fountain code
// rather than differing in their (identical, from this engine's point of
// view) block-level algebra -- they differ only in their FTI/Payload-ID wire
// encodings, handled separately in fti.go and payloadid.go.
type fountainCodec struct {
	symbolSize int
}

func newFountainCodec(symbolSize int) *fountainCodec {
	return &fountainCodec{symbolSize: symbolSize}
}

func (f *fountainCodec) Encode(shards [][]byte, nbSource, nbParity int) error {
	for j := 0; j < nbParity; j++ {
		esi := nbSource + j
		bits := fountainRowBits(esi, nbSource)
		parity := make([]byte, f.symbolSize)
		for i, set := range bits {
			if set && shards[i] != nil {
				xorBytes(parity, shards[i])
			}
		}
		shards[esi] = parity
	}
	return nil
}

func (f *fountainCodec) CanDecode(shards [][]byte, nbSource, nbParity int) bool {
	if len(fountainMissing(shards, nbSource)) == 0 {
		return true
	}
	_, err := fountainSolve(shards, nbSource, nbParity)
	return err == nil
}

func (f *fountainCodec) Decode(shards [][]byte, nbSource, nbParity int) error {
	missing := fountainMissing(shards, nbSource)
	if len(missing) == 0 {
		return nil
	}
	recovered, err := fountainSolve(shards, nbSource, nbParity)
	if err != nil {
		return err
	}
	for _, i := range missing {
		shards[i] = recovered[i]
	}
	return nil
}

func fountainMissing(shards [][]byte, nbSource int) []int {
	var out []int
	for i := 0; i < nbSource; i++ {
		if shards[i] == nil {
			out = append(out, i)
		}
	}
	return out
}

func xorBytes(dst, src []byte) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dst[i] ^= src[i]
	}
}

// fountainRow is one equation of the linear system: bits marks which source
// columns participate, data is the symbol value (XOR of those columns).
type fountainRow struct {
	bits []bool
	data []byte
}

// fountainSolve performs Gaussian elimination over GF(2) to recover every
// source shard from whichever source and repair shards are present.
func fountainSolve(shards [][]byte, nbSource, nbParity int) ([][]byte, error) {
	rows := make([]fountainRow, 0, nbSource+nbParity)
	for i := 0; i < nbSource+nbParity; i++ {
		if shards[i] == nil {
			continue
		}
		rows = append(rows, fountainRow{bits: fountainRowBits(i, nbSource), data: shards[i]})
	}
	if len(rows) < nbSource {
		return nil, cmn.NewErrIntegrity("not enough shards to reconstruct fountain-coded source block")
	}

	pivotRow := make([]int, nbSource)
	for i := range pivotRow {
		pivotRow[i] = -1
	}

	rowPtr := 0
	for col := 0; col < nbSource && rowPtr < len(rows); col++ {
		sel := -1
		for r := rowPtr; r < len(rows); r++ {
			if rows[r].bits[col] {
				sel = r
				break
			}
		}
		if sel == -1 {
			continue
		}
		rows[rowPtr], rows[sel] = rows[sel], rows[rowPtr]
		pivotRow[col] = rowPtr
		for r := 0; r < len(rows); r++ {
			if r != rowPtr && rows[r].bits[col] {
				xorRows(&rows[r], rows[rowPtr])
			}
		}
		rowPtr++
	}

	for col := 0; col < nbSource; col++ {
		if pivotRow[col] == -1 {
			return nil, cmn.NewErrIntegrity("fountain code: source block not fully recoverable from received shards")
		}
	}

	recovered := make([][]byte, nbSource)
	for col := 0; col < nbSource; col++ {
		recovered[col] = rows[pivotRow[col]].data
	}
	return recovered, nil
}

func xorRows(dst *fountainRow, src fountainRow) {
	for i := range dst.bits {
		dst.bits[i] = dst.bits[i] != src.bits[i]
	}
	merged := make([]byte, len(dst.data))
	for i := range merged {
		merged[i] = dst.data[i] ^ src.data[i]
	}
	dst.data = merged
}

// fountainRowBits returns the deterministic column participation for ESI,
// shared identically by encoder and decoder. Source rows are unit vectors;
// repair rows touch roughly half of the source columns.
func fountainRowBits(esi, nbSource int) []bool {
	bits := make([]bool, nbSource)
	if esi < nbSource {
		bits[esi] = true
		return bits
	}
	if nbSource == 0 {
		return bits
	}
	rng := newSplitMix64(uint64(esi)*0x9E3779B97F4A7C15 + 1)
	degree := nbSource/2 + 1
	if degree > nbSource {
		degree = nbSource
	}
	chosen := 0
	for chosen < degree {
		idx := int(rng.next() % uint64(nbSource))
		if !bits[idx] {
			bits[idx] = true
			chosen++
		}
	}
	return bits
}

type splitMix64 struct {
	state uint64
}

func newSplitMix64(seed uint64) *splitMix64 {
	return &splitMix64{state: seed}
}

func (s *splitMix64) next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}
