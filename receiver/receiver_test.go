package receiver

import (
	"bytes"
	"testing"
	"time"

	"github.com/flute-go/flute/alc"
	"github.com/flute-go/flute/fdt"
	"github.com/flute-go/flute/fec"
	"github.com/flute-go/flute/lct"
	"github.com/flute-go/flute/sender"
	"github.com/flute-go/flute/writer"
)

func endpoint() alc.UDPEndpoint {
	return alc.UDPEndpoint{DestinationGroupAddress: "224.0.0.1", Port: 1234}
}

func drain(s *sender.Sender, now time.Time) [][]byte {
	var out [][]byte
	for {
		pkt, ok := s.Read(now)
		if !ok {
			break
		}
		out = append(out, pkt)
	}
	return out
}

func TestReceiverReconstructsObject(t *testing.T) {
	oti := fec.NewNoCode(1400, 64)
	now := time.Now()
	ep := endpoint()

	s := sender.New(ep, 1, oti, sender.DefaultConfig())
	content := bytes.Repeat([]byte("flute-content-"), 500)
	obj, err := fdt.NewObjectDesc(content, "application/octet-stream", "file:///payload.bin", lct.CencNull, true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddObject(obj); err != nil {
		t.Fatal(err)
	}
	if err := s.Publish(now); err != nil {
		t.Fatal(err)
	}
	s.SetComplete()

	wb := writer.NewMemoryWriterBuilder()
	r := New(ep, 1, wb, nil)

	for i := 0; i < 100000; i++ {
		pkts := drain(s, now)
		if len(pkts) == 0 {
			break
		}
		for _, pkt := range pkts {
			if err := r.PushData(pkt, now); err != nil {
				t.Fatal(err)
			}
		}
	}

	if len(wb.Objects) != 1 {
		t.Fatalf("expected 1 object written, got %d", len(wb.Objects))
	}
	if !wb.Objects[0].Complete {
		t.Fatal("expected object to be complete")
	}
	if !bytes.Equal(wb.Objects[0].Data, content) {
		t.Fatalf("reconstructed content mismatch: got %d bytes, want %d", len(wb.Objects[0].Data), len(content))
	}
}

func TestReceiverRejectsOtherTSI(t *testing.T) {
	oti := fec.NewNoCode(1400, 64)
	now := time.Now()
	ep := endpoint()

	wb := writer.NewMemoryWriterBuilder()
	r := New(ep, 1, wb, nil)

	hdr, err := lct.PushHeader(nil, 0, 0, 2, 5, 0, false, false)
	if err != nil {
		t.Fatal(err)
	}
	hdr = fec.AddFTI(hdr, oti, 100)
	hdr = append(hdr, make([]byte, 100)...)

	if err := r.PushData(hdr, now); err != nil {
		t.Fatal(err)
	}
	if r.NbObjects() != 0 {
		t.Fatalf("expected packet for a different tsi to be ignored, got %d objects", r.NbObjects())
	}
}

func TestMultiReceiverDemultiplexesByTSI(t *testing.T) {
	oti := fec.NewNoCode(1400, 64)
	now := time.Now()
	ep := endpoint()

	s1 := sender.New(ep, 1, oti, sender.DefaultConfig())
	s2 := sender.New(ep, 2, oti, sender.DefaultConfig())

	content1 := []byte("object for session one")
	content2 := []byte("object for session two, slightly longer")

	obj1, err := fdt.NewObjectDesc(content1, "text/plain", "file:///one.txt", lct.CencNull, true)
	if err != nil {
		t.Fatal(err)
	}
	obj2, err := fdt.NewObjectDesc(content2, "text/plain", "file:///two.txt", lct.CencNull, true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s1.AddObject(obj1); err != nil {
		t.Fatal(err)
	}
	if _, err := s2.AddObject(obj2); err != nil {
		t.Fatal(err)
	}
	if err := s1.Publish(now); err != nil {
		t.Fatal(err)
	}
	if err := s2.Publish(now); err != nil {
		t.Fatal(err)
	}
	s1.SetComplete()
	s2.SetComplete()

	wb := writer.NewMemoryWriterBuilder()
	m := NewMultiReceiver(ep, nil, wb, nil)

	for i := 0; i < 100000; i++ {
		p1 := drain(s1, now)
		p2 := drain(s2, now)
		if len(p1) == 0 && len(p2) == 0 {
			break
		}
		for _, pkt := range p1 {
			if err := m.Push(pkt, now); err != nil {
				t.Fatal(err)
			}
		}
		for _, pkt := range p2 {
			if err := m.Push(pkt, now); err != nil {
				t.Fatal(err)
			}
		}
	}

	if len(wb.Objects) != 2 {
		t.Fatalf("expected 2 objects across both sessions, got %d", len(wb.Objects))
	}
	got := map[string]bool{string(wb.Objects[0].Data): true, string(wb.Objects[1].Data): true}
	if !got[string(content1)] || !got[string(content2)] {
		t.Fatalf("reconstructed content does not match either source object")
	}
}
