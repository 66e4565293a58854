package alc

import (
	"testing"

	"github.com/flute-go/flute/fec"
	"github.com/flute-go/flute/lct"
)

func TestBuildParseRoundTrip(t *testing.T) {
	oti := fec.NewNoCode(1400, 64)
	const cci, tsi uint64 = 0x804754755879, 0x055789451234
	payload := []byte("hello")

	pkt := Pkt{
		Payload:        payload,
		ESI:            1,
		SBN:            2,
		TOI:            3,
		Cenc:           lct.CencNull,
		InbandCenc:     true,
		TransferLength: uint64(len(payload)),
	}

	wire, err := BuildPacket(oti, cci, tsi, pkt)
	if err != nil {
		t.Fatal(err)
	}

	got, err := ParsePacket(wire)
	if err != nil {
		t.Fatal(err)
	}
	if got.LCT.TOI != pkt.TOI {
		t.Fatalf("toi: got %d want %d", got.LCT.TOI, pkt.TOI)
	}
	if got.LCT.CCI != cci {
		t.Fatalf("cci: got %d want %d", got.LCT.CCI, cci)
	}
	if got.LCT.TSI != tsi {
		t.Fatalf("tsi: got %d want %d", got.LCT.TSI, tsi)
	}
	if got.Cenc == nil || *got.Cenc != lct.CencNull {
		t.Fatalf("cenc: got %v want CencNull", got.Cenc)
	}
	if string(got.Payload()) != string(payload) {
		t.Fatalf("payload: got %q want %q", got.Payload(), payload)
	}

	pid, err := ParsePayloadID(got, oti)
	if err != nil {
		t.Fatal(err)
	}
	if pid.SBN != pkt.SBN || pid.ESI != pkt.ESI {
		t.Fatalf("payload id: got sbn=%d esi=%d want sbn=%d esi=%d", pid.SBN, pid.ESI, pkt.SBN, pkt.ESI)
	}
}

func TestBuildParseFDTPacket(t *testing.T) {
	oti := fec.NewNoCode(1400, 64)
	fdtID := uint32(42)
	pkt := Pkt{
		Payload:        []byte("<FDT-Instance/>"),
		TOI:            lct.ToiFDT,
		FDTID:          &fdtID,
		Cenc:           lct.CencGzip,
		TransferLength: 15,
	}

	wire, err := BuildPacket(oti, 1, 2, pkt)
	if err != nil {
		t.Fatal(err)
	}

	got, err := ParsePacket(wire)
	if err != nil {
		t.Fatal(err)
	}
	if got.LCT.TOI != lct.ToiFDT {
		t.Fatalf("expected TOI 0, got %d", got.LCT.TOI)
	}
	if got.FDTInfo == nil || got.FDTInfo.FDTInstanceID != fdtID {
		t.Fatalf("fdt info: got %+v want fdtID=%d", got.FDTInfo, fdtID)
	}
	if got.Cenc == nil || *got.Cenc != lct.CencGzip {
		t.Fatalf("cenc: got %v want CencGzip", got.Cenc)
	}
	if got.Oti == nil {
		t.Fatal("expected FTI to be present on the FDT packet")
	}
	if got.TransferLength == nil || *got.TransferLength != 15 {
		t.Fatalf("transfer length: got %v want 15", got.TransferLength)
	}
}

func TestBuildPacketRejectsFDTWithoutID(t *testing.T) {
	oti := fec.NewNoCode(1400, 64)
	pkt := Pkt{TOI: lct.ToiFDT}
	if _, err := BuildPacket(oti, 1, 2, pkt); err == nil {
		t.Fatal("expected error building an FDT packet without an FDT instance id")
	}
}

func TestUDPEndpointTraceID(t *testing.T) {
	e := UDPEndpoint{DestinationGroupAddress: "239.0.0.1", Port: 3400}
	id1 := e.TraceID(1, 2, nil, 15)
	id2 := e.TraceID(1, 2, nil, 15)
	if id1 != id2 {
		t.Fatal("trace id must be deterministic for identical inputs")
	}
	id3 := e.TraceID(1, 3, nil, 15)
	if id1 == id3 {
		t.Fatal("trace id should differ when toi differs")
	}
}
