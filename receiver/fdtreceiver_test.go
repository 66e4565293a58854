package receiver

import (
	"bytes"
	"testing"
	"time"

	"github.com/flute-go/flute/alc"
	"github.com/flute-go/flute/fdt"
	"github.com/flute-go/flute/fec"
	"github.com/flute-go/flute/lct"
	"github.com/flute-go/flute/ntp"
)

func fdtPackets(t *testing.T, oti fec.Oti, tsi uint64, fdtID uint32, xmlBody []byte, sct *uint64) [][]byte {
	t.Helper()

	shardLen := int(oti.EncodingSymbolLength)
	var out [][]byte
	for esi := 0; esi*shardLen < len(xmlBody); esi++ {
		start := esi * shardLen
		end := start + shardLen
		if end > len(xmlBody) {
			end = len(xmlBody)
		}
		p := alc.Pkt{
			Payload:           xmlBody[start:end],
			ESI:               uint32(esi),
			SBN:               0,
			TOI:               lct.ToiFDT,
			FDTID:             &fdtID,
			TransferLength:    uint64(len(xmlBody)),
			SenderCurrentTime: sct,
		}
		raw, err := alc.BuildPacket(oti, 0, tsi, p)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, raw)
	}
	return out
}

func TestFdtReceiverParsesCompleteInstance(t *testing.T) {
	now := time.Now()
	oti := fec.NewNoCode(64, 64)

	inst := fdt.NewInstance(0)
	inst.SetDefaultOti(oti)
	length := uint64(1024)
	inst.Files = []fdt.File{{TOI: "7", ContentLocation: "file:///x.bin", ContentLength: &length}}
	xmlBody, err := inst.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	// pad to a multiple of the encoding symbol length
	for len(xmlBody)%int(oti.EncodingSymbolLength) != 0 {
		xmlBody = append(xmlBody, ' ')
	}

	f := newFdtReceiver(endpoint(), 1, 42, now)
	for _, raw := range fdtPackets(t, oti, 1, 42, xmlBody, nil) {
		pkt, err := alc.ParsePacket(raw)
		if err != nil {
			t.Fatal(err)
		}
		f.push(pkt, now)
	}

	if f.state != FDTComplete {
		t.Fatalf("expected fdt instance to complete, state=%v", f.state)
	}
	if f.fdtInstance() == nil {
		t.Fatal("expected a parsed fdt instance")
	}
	file := f.fdtInstance().FileByTOI(7)
	if file == nil {
		t.Fatal("expected to find File with TOI 7 in the reconstructed instance")
	}
}

func TestFdtReceiverTracksSenderClockOffset(t *testing.T) {
	now := time.Now()
	f := newFdtReceiver(endpoint(), 1, 1, now)

	behind := now.Add(-5 * time.Second)
	sct := ntp.Timestamp64(behind)

	oti := fec.NewNoCode(64, 64)
	p := alc.Pkt{
		Payload:           bytes.Repeat([]byte{0}, 64),
		ESI:               0,
		SBN:               0,
		TOI:               lct.ToiFDT,
		FDTID:             new(uint32),
		TransferLength:    64,
		SenderCurrentTime: &sct,
	}
	raw, err := alc.BuildPacket(oti, 0, 1, p)
	if err != nil {
		t.Fatal(err)
	}
	pkt, err := alc.ParsePacket(raw)
	if err != nil {
		t.Fatal(err)
	}
	f.push(pkt, now)

	if !f.hasSenderTime {
		t.Fatal("expected sender clock offset to be recorded")
	}
	estimated := f.serverTime(now)
	if estimated.Sub(behind) > time.Second || behind.Sub(estimated) > time.Second {
		t.Fatalf("estimated sender time %v too far from actual %v", estimated, behind)
	}
}
