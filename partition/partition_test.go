package partition

import "testing"

func TestPartitionLaw(t *testing.T) {
	cases := []struct {
		b, l, e uint64
	}{
		{64, 0, 1024},
		{64, 100000, 1024},
		{10, 1, 1400},
		{255, 1_000_000, 1400},
		{1, 5000, 1000},
	}

	for _, c := range cases {
		aLarge, aSmall, nbLarge, nbBlocks := Partition(c.b, c.l, c.e)
		if c.l == 0 {
			if nbBlocks != 0 {
				t.Fatalf("expected 0 blocks for empty transfer, got %d", nbBlocks)
			}
			continue
		}

		t_ := ceilDiv(c.l, c.e)
		sum := nbLarge*aLarge + (nbBlocks-nbLarge)*aSmall
		if sum != t_ {
			t.Fatalf("b=%d l=%d e=%d: nbLarge*aLarge+(N-nbLarge)*aSmall = %d, want T = %d", c.b, c.l, c.e, sum, t_)
		}
		if aLarge-aSmall > 1 {
			t.Fatalf("b=%d l=%d e=%d: aLarge (%d) and aSmall (%d) differ by more than 1", c.b, c.l, c.e, aLarge, aSmall)
		}
		if aLarge > c.b {
			t.Fatalf("aLarge %d exceeds max source block length %d", aLarge, c.b)
		}
	}
}

func TestBlockLengthSumsToTransferLength(t *testing.T) {
	b, l, e := uint64(10), uint64(12345), uint64(1024)
	aLarge, aSmall, nbLarge, nbBlocks := Partition(b, l, e)

	var total uint64
	for sbn := uint32(0); sbn < uint32(nbBlocks); sbn++ {
		total += BlockLength(aLarge, aSmall, nbLarge, l, e, sbn)
	}
	if total != l {
		t.Fatalf("sum of block lengths = %d, want transfer length %d", total, l)
	}
}
