package sender

import (
	"math/rand"
	"sync"

	"github.com/flute-go/flute/cmn/nlog"
	"github.com/flute-go/flute/lct"
)

// TOIMaxLength bounds the TOI field width the allocator hands out, letting a
// session stay compatible with receivers that only support a narrower LCT
// TOI field.
type TOIMaxLength uint8

const (
	ToiMax16 TOIMaxLength = iota
	ToiMax32
	ToiMax48
	ToiMax64
)

func (m TOIMaxLength) mask(toi uint64) uint64 {
	switch m {
	case ToiMax16:
		return toi & 0xFFFF
	case ToiMax32:
		return toi & 0xFFFFFFFF
	case ToiMax48:
		return toi & 0xFFFFFFFFFFFF
	default:
		return toi
	}
}

// toiAllocator hands out TOI values unique among those currently in use by
// this session, wrapping back to 1 (TOI 0 is reserved for the FDT) once the
// configured width is exhausted. Release is the one operation allowed to run
// from outside the engine's cooperative control flow, so both Allocate and
// Release take the allocator's mutex.
type toiAllocator struct {
	mu       sync.Mutex
	reserved map[uint64]struct{}
	next     uint64
	maxLen   TOIMaxLength
}

// newToiAllocator builds an allocator. initial, if non-nil, seeds the first
// TOI handed out; otherwise a random starting point is chosen.
func newToiAllocator(maxLen TOIMaxLength, initial *uint64) *toiAllocator {
	var toi uint64
	if initial != nil {
		toi = *initial
		if toi == 0 {
			toi = 1
		}
	} else {
		toi = rand.Uint64()
	}

	toi = maxLen.mask(toi)
	if toi == lct.ToiFDT {
		toi++
	}

	return &toiAllocator{
		reserved: make(map[uint64]struct{}),
		next:     toi,
		maxLen:   maxLen,
	}
}

// Allocate returns the next free TOI and marks it reserved.
func (a *toiAllocator) Allocate() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	ret := a.next
	a.reserved[ret] = struct{}{}

	for {
		a.next = a.maxLen.mask(a.next + 1)
		if a.next == lct.ToiFDT {
			a.next = 1
		}
		if _, taken := a.reserved[a.next]; !taken {
			break
		}
		nlog.Warningf("toi %d is already used by a file or reserved", a.next)
	}
	return ret
}

// Release returns toi to the free pool. Releasing TOI 0 (the FDT) is a no-op
// since it is never allocated from the pool.
func (a *toiAllocator) Release(toi uint64) {
	if toi == lct.ToiFDT {
		return
	}
	a.mu.Lock()
	delete(a.reserved, toi)
	a.mu.Unlock()
}
