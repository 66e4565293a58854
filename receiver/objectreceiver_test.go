package receiver

import (
	"bytes"
	"testing"
	"time"

	"github.com/flute-go/flute/alc"
	"github.com/flute-go/flute/fdt"
	"github.com/flute-go/flute/fec"
	"github.com/flute-go/flute/writer"
)

// pushRaw feeds content to o as a single source block's worth of shards
// (the oti's max source block length must be large enough to hold all of
// them), assigning consecutive encoding symbol IDs.
func pushRaw(t *testing.T, o *objectReceiver, oti fec.Oti, tsi, toi uint64, content []byte, shardLen int, now time.Time) {
	t.Helper()

	for esi := 0; esi*shardLen < len(content); esi++ {
		start := esi * shardLen
		end := start + shardLen
		if end > len(content) {
			end = len(content)
		}
		payload := content[start:end]

		p := alc.Pkt{
			Payload:        payload,
			ESI:            uint32(esi),
			SBN:            0,
			TOI:            toi,
			TransferLength: uint64(len(content)),
		}
		raw, err := alc.BuildPacket(oti, 0, tsi, p)
		if err != nil {
			t.Fatal(err)
		}
		pkt, err := alc.ParsePacket(raw)
		if err != nil {
			t.Fatal(err)
		}
		o.push(pkt, now)
	}
}

func TestObjectReceiverCompletesAfterFDTAttach(t *testing.T) {
	oti := fec.NewNoCode(8, 64)
	now := time.Now()
	content := bytes.Repeat([]byte{0x42}, 8*3)

	inst := fdt.NewInstance(0)
	inst.SetDefaultOti(oti)
	length := uint64(len(content))
	inst.Files = []fdt.File{{TOI: "5", ContentLocation: "file:///x.bin", ContentLength: &length}}

	wb := writer.NewMemoryWriterBuilder()
	o := newObjectReceiver(endpoint(), 1, 5, wb, now)
	if !o.attachFdt(1, inst, now, now) {
		t.Fatal("expected attachFdt to find the matching File entry")
	}

	pushRaw(t, o, oti, 1, 5, content, 8, now)

	if o.State != StateCompleted {
		t.Fatalf("expected object to complete, state=%v", o.State)
	}
	if !bytes.Equal(wb.Objects[0].Data, content) {
		t.Fatalf("got %q, want %q", wb.Objects[0].Data, content)
	}
}

func TestObjectReceiverAttachFdtIgnoresUnrelatedFile(t *testing.T) {
	oti := fec.NewNoCode(8, 64)
	now := time.Now()

	inst := fdt.NewInstance(0)
	inst.SetDefaultOti(oti)
	length := uint64(8)
	inst.Files = []fdt.File{{TOI: "99", ContentLocation: "file:///other.bin", ContentLength: &length}}

	o := newObjectReceiver(endpoint(), 1, 5, writer.NewMemoryWriterBuilder(), now)
	if o.attachFdt(1, inst, now, now) {
		t.Fatal("expected attachFdt to report no match for a TOI absent from the instance")
	}
}

func TestObjectReceiverCachesPacketsUntilOtiKnown(t *testing.T) {
	now := time.Now()
	o := newObjectReceiver(endpoint(), 1, 5, writer.NewMemoryWriterBuilder(), now)

	oti := fec.NewNoCode(8, 64)
	p := alc.Pkt{Payload: bytes.Repeat([]byte{1}, 8), ESI: 0, SBN: 0, TOI: 5}
	raw, err := alc.BuildPacket(oti, 0, 1, p)
	if err != nil {
		t.Fatal(err)
	}
	// Strip the FTI extension by reparsing a packet built with no transfer
	// length info: emulate a retransmitted data packet that doesn't itself
	// carry OTI. Instead, just verify caching directly via the internal state.
	pkt, err := alc.ParsePacket(raw)
	if err != nil {
		t.Fatal(err)
	}
	pkt.Oti = nil
	pkt.TransferLength = nil

	o.push(pkt, now)
	if len(o.cache) != 1 {
		t.Fatalf("expected packet with unknown oti to be cached, got %d cached", len(o.cache))
	}
	if o.State != StateReceiving {
		t.Fatalf("expected object to still be receiving, state=%v", o.State)
	}
}
