package writer

import (
	"testing"
	"time"

	"github.com/flute-go/flute/alc"
)

func TestMemoryWriterBuilderCollectsObjects(t *testing.T) {
	b := NewMemoryWriterBuilder()
	endpoint := alc.UDPEndpoint{DestinationGroupAddress: "224.0.0.1", Port: 1234}

	meta := &ObjectMetadata{ContentLocation: "http://x/a.bin"}
	w := b.NewObjectWriter(endpoint, 1, 5, meta, time.Now())
	if err := w.Open(); err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("hello "))
	w.Write([]byte("world"))
	w.Complete()

	if len(b.Objects) != 1 {
		t.Fatalf("expected 1 object, got %d", len(b.Objects))
	}
	obj := b.Objects[0]
	if !obj.Complete {
		t.Fatal("expected object to be marked complete")
	}
	if string(obj.Data) != "hello world" {
		t.Fatalf("got %q", obj.Data)
	}
	if obj.Meta != meta {
		t.Fatal("expected meta to be preserved")
	}
}

func TestMemoryWriterBuilderErrorPath(t *testing.T) {
	b := NewMemoryWriterBuilder()
	endpoint := alc.UDPEndpoint{DestinationGroupAddress: "224.0.0.1", Port: 1234}

	w := b.NewObjectWriter(endpoint, 1, 5, nil, time.Now())
	w.Write([]byte("partial"))
	w.Error()

	if !b.Objects[0].Error {
		t.Fatal("expected object to be marked as error")
	}
	if b.Objects[0].Complete {
		t.Fatal("object should not be marked complete on error")
	}
}
