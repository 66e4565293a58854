package fdt

import (
	"crypto/md5"
	"encoding/base64"
	"time"

	"github.com/flute-go/flute/cmn"
	"github.com/flute-go/flute/compress"
	"github.com/flute-go/flute/fec"
	"github.com/flute-go/flute/lct"
)

// ObjectDesc is the sender's description of one object to publish: its
// content, transport-coding choices, and delivery policy. It is the input
// to Fdt.AddObject; FileDesc is the sender-side state built from it.
type ObjectDesc struct {
	ContentLocation string
	Path            string // informational only; the content itself lives in Content
	Content         []byte

	ContentType    string
	ContentLength  uint64 // uncompressed size
	TransferLength uint64 // size after Cenc has been applied

	Cenc       lct.Cenc
	InbandCenc bool

	MD5 string // base64 MD5 digest of the uncompressed content, "" if disabled

	Oti *fec.Oti // nil: inherit the Fdt's default OTI

	MaxTransferCount uint32
	CarouselDelay    time.Duration // zero: no carousel, object is sent MaxTransferCount times and retired

	CacheControl *CacheControl
	Groups       []string

	TOI *uint64 // nil: Fdt allocates one
}

// NewObjectDesc builds an ObjectDesc from in-memory content, applying cenc
// compression and computing the MD5 digest (over the uncompressed bytes,
// per RFC 2616 14.15) before the content is ever handed to a sender
// session. CencNull leaves content untouched.
func NewObjectDesc(content []byte, contentType, contentLocation string, cenc lct.Cenc, computeMD5 bool) (*ObjectDesc, error) {
	contentLength := uint64(len(content))

	var md5sum string
	if computeMD5 {
		sum := md5.Sum(content)
		md5sum = base64.StdEncoding.EncodeToString(sum[:])
	}

	if cenc != lct.CencNull {
		compressed, err := compress.Compress(content, cenc)
		if err != nil {
			return nil, err
		}
		content = compressed
	}

	return &ObjectDesc{
		ContentLocation:  contentLocation,
		Content:          content,
		ContentType:      contentType,
		ContentLength:    contentLength,
		TransferLength:   uint64(len(content)),
		Cenc:             cenc,
		InbandCenc:       true,
		MD5:              md5sum,
		MaxTransferCount: 1,
	}, nil
}

// ContentEncodingString returns the FDT Content-Encoding attribute value
// for this object's Cenc, or "" for CencNull so the attribute is omitted
// from the XML rather than written as the literal string "null".
func (o *ObjectDesc) ContentEncodingString() string {
	if o.Cenc == lct.CencNull {
		return ""
	}
	return o.Cenc.String()
}

func (o *ObjectDesc) validate() error {
	if o.MaxTransferCount == 0 {
		return cmn.NewErrState("ObjectDesc.MaxTransferCount must be >= 1")
	}
	return nil
}
