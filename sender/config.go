package sender

import (
	"time"

	"github.com/flute-go/flute/lct"
)

// FDTPublishMode selects which File entries a published FDT instance
// describes.
type FDTPublishMode uint8

const (
	// FDTPublishObjectsBeingTransferred lists only files currently in
	// flight, shrinking the FDT at the cost of republishing it on every
	// new transfer.
	FDTPublishObjectsBeingTransferred FDTPublishMode = iota
	// FDTPublishFullFDT lists every file ever added to the session.
	FDTPublishFullFDT
)

// Config configures a Sender.
type Config struct {
	// FDTDuration is the lifetime advertised in each FDT instance's
	// Expires attribute.
	FDTDuration time.Duration
	// FDTCarousel is the minimum gap between repeated transmissions of the
	// current FDT instance. Republishing a new instance is driven by
	// FDTDuration.
	FDTCarousel time.Duration
	// FDTStartID seeds the FDT instance id counter (wraps at 20 bits).
	FDTStartID uint32
	// FDTCenc is the Content-Encoding applied to the FDT instance itself.
	FDTCenc lct.Cenc
	// FDTInbandSCT adds a sender-current-time extension to every packet
	// carrying the FDT.
	FDTInbandSCT bool
	// MultiplexFiles bounds how many files may be transferred in
	// parallel; 0 means files are sent one at a time.
	MultiplexFiles uint8
	// InterleaveBlocks bounds how many source blocks of one file are
	// interleaved in the packet stream, spreading out the effect of a
	// burst loss.
	InterleaveBlocks uint8
	// TOIMaxLength bounds the wire width of TOIs this session hands out.
	TOIMaxLength TOIMaxLength
	// TOIInitialValue, if non-nil, seeds the TOI allocator; otherwise a
	// random starting TOI is chosen.
	TOIInitialValue *uint64
	// Groups is copied into every published FDT instance's Group list.
	Groups []string
	// PublishMode selects which files a published FDT instance lists.
	PublishMode FDTPublishMode
}

// DefaultConfig returns the Config a new Sender should start from absent
// other instruction.
func DefaultConfig() Config {
	return Config{
		FDTDuration:      time.Hour,
		FDTCarousel:      time.Second,
		FDTStartID:       1,
		FDTCenc:          lct.CencNull,
		FDTInbandSCT:     true,
		MultiplexFiles:   3,
		InterleaveBlocks: 4,
		TOIMaxLength:     ToiMax64,
		PublishMode:      FDTPublishFullFDT,
	}
}
