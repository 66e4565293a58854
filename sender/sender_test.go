package sender

import (
	"testing"
	"time"

	"github.com/flute-go/flute/alc"
	"github.com/flute-go/flute/fdt"
	"github.com/flute-go/flute/fec"
	"github.com/flute-go/flute/lct"
)

func createObj(t *testing.T, length int) *fdt.ObjectDesc {
	t.Helper()
	obj, err := fdt.NewObjectDesc(make([]byte, length), "text", "file:///hello", lct.CencNull, true)
	if err != nil {
		t.Fatal(err)
	}
	return obj
}

func TestSenderDrainsObjectTransfer(t *testing.T) {
	oti := fec.NewNoCode(1400, 64)
	endpoint := alc.UDPEndpoint{DestinationGroupAddress: "224.0.0.1", Port: 1234}
	s := New(endpoint, 1, oti, DefaultConfig())

	if _, err := s.AddObject(createObj(t, int(oti.EncodingSymbolLength)*3)); err != nil {
		t.Fatal(err)
	}
	if err := s.Publish(time.Now()); err != nil {
		t.Fatal(err)
	}

	count := 0
	for {
		_, ok := s.Read(time.Now())
		if !ok {
			break
		}
		count++
		if count > 100000 {
			t.Fatal("sender did not terminate")
		}
	}
	if count == 0 {
		t.Fatal("expected at least one packet")
	}
}

func TestSenderRejectsObjectTooLarge(t *testing.T) {
	oti, err := fec.NewReedSolomonGF28(4, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	endpoint := alc.UDPEndpoint{DestinationGroupAddress: "224.0.0.1", Port: 1234}
	s := New(endpoint, 1, oti, DefaultConfig())

	object := createObj(t, int(oti.MaxTransferLength())+1)
	if _, err := s.AddObject(object); err == nil {
		t.Fatal("expected an error adding an object larger than the OTI allows")
	}
}

func TestSenderRemoveObject(t *testing.T) {
	oti := fec.NewNoCode(1400, 64)
	endpoint := alc.UDPEndpoint{DestinationGroupAddress: "224.0.0.1", Port: 1234}
	s := New(endpoint, 1, oti, DefaultConfig())

	if s.NbObjects() != 0 {
		t.Fatalf("expected 0 objects, got %d", s.NbObjects())
	}

	toi, err := s.AddObject(createObj(t, 1024))
	if err != nil {
		t.Fatal(err)
	}
	if s.NbObjects() != 1 {
		t.Fatalf("expected 1 object, got %d", s.NbObjects())
	}

	if !s.RemoveObject(toi) {
		t.Fatal("expected RemoveObject to succeed")
	}
	if s.NbObjects() != 0 {
		t.Fatalf("expected 0 objects after removal, got %d", s.NbObjects())
	}
}

func TestSenderComplete(t *testing.T) {
	oti := fec.NewNoCode(1400, 64)
	endpoint := alc.UDPEndpoint{DestinationGroupAddress: "224.0.0.1", Port: 1234}
	s := New(endpoint, 1, oti, DefaultConfig())

	if _, err := s.AddObject(createObj(t, 1024)); err != nil {
		t.Fatal(err)
	}

	s.SetComplete()
	if _, err := s.AddObject(createObj(t, 1024)); err == nil {
		t.Fatal("expected an error adding an object after SetComplete")
	}
}
