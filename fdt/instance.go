// Package fdt implements the File Delivery Table XML instance document
// (RFC 6726 section 3.2) plus the sender/receiver side envelopes around an
// object description, ObjectDesc and FileDesc.
package fdt

import (
	"encoding/xml"
	"strconv"

	"github.com/flute-go/flute/cmn"
	"github.com/flute-go/flute/fec"
	"github.com/flute-go/flute/lct"
)

const (
	xmlnsDefault  = "urn:IETF:metadata:2005:FLUTE:FDT"
	xmlnsXsi      = "http://www.w3.org/2001/XMLSchema-instance"
	xmlnsMbms2005 = "urn:3GPP:metadata:2005:MBMS:FLUTE:FDT"
	xmlnsMbms2007 = "urn:3GPP:metadata:2007:MBMS:FLUTE:FDT"
)

// otiAttrs is the set of FEC-OTI-* attributes shared by the FDT-Instance
// root element and each File child, mirroring RFC 6726's default-OTI /
// per-file-OTI-override attribute sets.
type otiAttrs struct {
	FECEncodingID            *uint8  `xml:"FEC-OTI-FEC-Encoding-ID,attr,omitempty"`
	FECInstanceID            *uint64 `xml:"FEC-OTI-FEC-Instance-ID,attr,omitempty"`
	FECMaxSourceBlockLength  *uint64 `xml:"FEC-OTI-Maximum-Source-Block-Length,attr,omitempty"`
	FECEncodingSymbolLength  *uint64 `xml:"FEC-OTI-Encoding-Symbol-Length,attr,omitempty"`
	FECMaxNumEncodingSymbols *uint64 `xml:"FEC-OTI-Max-Number-of-Encoding-Symbols,attr,omitempty"`
	FECSchemeSpecificInfo    string  `xml:"FEC-OTI-Scheme-Specific-Info,attr,omitempty"`
}

func otiAttrsFrom(oti fec.Oti) otiAttrs {
	encodingID := uint8(oti.EncodingID)
	instanceID := uint64(oti.InstanceID)
	maxBlock := uint64(oti.MaxSourceBlockLength)
	symbolLen := uint64(oti.EncodingSymbolLength)
	maxSymbols := maxBlock + uint64(oti.MaxNumberOfParitySymbols)
	return otiAttrs{
		FECEncodingID:            &encodingID,
		FECInstanceID:            &instanceID,
		FECMaxSourceBlockLength:  &maxBlock,
		FECEncodingSymbolLength:  &symbolLen,
		FECMaxNumEncodingSymbols: &maxSymbols,
		FECSchemeSpecificInfo:    oti.SchemeSpecificInfo(),
	}
}

// oti reconstructs an Oti from the attribute set, returning ok=false when
// the mandatory triple (encoding id, max source block length, encoding
// symbol length) is not fully present.
func (a otiAttrs) oti() (fec.Oti, bool) {
	if a.FECEncodingID == nil || a.FECMaxSourceBlockLength == nil || a.FECEncodingSymbolLength == nil {
		return fec.Oti{}, false
	}

	encodingID := fec.EncodingID(*a.FECEncodingID)
	maxBlock := uint32(*a.FECMaxSourceBlockLength)
	symbolLen := uint16(*a.FECEncodingSymbolLength)
	maxSymbols := maxBlock
	if a.FECMaxNumEncodingSymbols != nil {
		maxSymbols = uint32(*a.FECMaxNumEncodingSymbols)
	}
	parity := maxSymbols - maxBlock

	var instanceID uint16
	if a.FECInstanceID != nil {
		instanceID = uint16(*a.FECInstanceID)
	}

	oti := fec.Oti{
		EncodingID:               encodingID,
		InstanceID:               instanceID,
		MaxSourceBlockLength:     maxBlock,
		EncodingSymbolLength:     symbolLen,
		MaxNumberOfParitySymbols: parity,
		InbandFTI:                false,
	}

	switch encodingID {
	case fec.ReedSolomonGF2M:
		if a.FECSchemeSpecificInfo != "" {
			scheme, err := fec.DecodeReedSolomonGF2MScheme(a.FECSchemeSpecificInfo)
			if err == nil {
				oti.ReedSolomonGF2M = &scheme
			}
		}
	case fec.RaptorQ:
		if a.FECSchemeSpecificInfo != "" {
			scheme, err := fec.DecodeRaptorQScheme(a.FECSchemeSpecificInfo)
			if err == nil {
				oti.RaptorQ = &scheme
			}
		}
	case fec.Raptor:
		if a.FECSchemeSpecificInfo != "" {
			scheme, err := fec.DecodeRaptorScheme(a.FECSchemeSpecificInfo)
			if err == nil {
				oti.Raptor = &scheme
			}
		}
	}

	return oti, true
}

// CacheControlKind is the discriminant of a File's Cache-Control child.
type CacheControlKind uint8

const (
	CacheControlNone CacheControlKind = iota
	CacheControlNoCache
	CacheControlMaxStale
	CacheControlExpires
)

// CacheControl models the <mbms2007:Cache-Control> child element, which is
// a choice of three variants per RFC 6726 section 3.4.
type CacheControl struct {
	Kind       CacheControlKind
	ExpiresNTP uint32 // valid only when Kind == CacheControlExpires
}

// cacheControlXML is the wire shape: encoding/xml cannot marshal Go "sum
// types" directly, so each variant is its own optional child element and
// at most one is ever populated.
type cacheControlXML struct {
	NoCache  *string `xml:"mbms2007:no-cache,omitempty"`
	MaxStale *string `xml:"mbms2007:max-stale,omitempty"`
	Expires  *uint32 `xml:"mbms2007:Expires,omitempty"`
}

func (c CacheControl) toXML() *cacheControlXML {
	empty := ""
	switch c.Kind {
	case CacheControlNoCache:
		return &cacheControlXML{NoCache: &empty}
	case CacheControlMaxStale:
		return &cacheControlXML{MaxStale: &empty}
	case CacheControlExpires:
		v := c.ExpiresNTP
		return &cacheControlXML{Expires: &v}
	default:
		return nil
	}
}

func (c *cacheControlXML) toCacheControl() *CacheControl {
	if c == nil {
		return nil
	}
	switch {
	case c.NoCache != nil:
		return &CacheControl{Kind: CacheControlNoCache}
	case c.MaxStale != nil:
		return &CacheControl{Kind: CacheControlMaxStale}
	case c.Expires != nil:
		return &CacheControl{Kind: CacheControlExpires, ExpiresNTP: *c.Expires}
	default:
		return nil
	}
}

// File is one <File> child of an FDT-Instance.
type File struct {
	XMLName xml.Name `xml:"File"`
	otiAttrs

	ContentLocation string  `xml:"Content-Location,attr"`
	TOI             string  `xml:"TOI,attr"`
	ContentLength   *uint64 `xml:"Content-Length,attr,omitempty"`
	TransferLength  *uint64 `xml:"Transfer-Length,attr,omitempty"`
	ContentType     string  `xml:"Content-Type,attr,omitempty"`
	ContentEncoding string  `xml:"Content-Encoding,attr,omitempty"`
	ContentMD5      string  `xml:"Content-MD5,attr,omitempty"`

	CacheControl *cacheControlXML `xml:"mbms2007:Cache-Control"`
	Group        []string         `xml:"mbms2005:Group,omitempty"`
}

// TOIValue parses the File's TOI attribute (decimal, up to 112 bits — held
// here as uint64 since this engine's toi_max_length never exceeds 64 bits).
func (f *File) TOIValue() (uint64, error) {
	v, err := strconv.ParseUint(f.TOI, 10, 64)
	if err != nil {
		return 0, cmn.NewErrMalformed("invalid File TOI %q: %v", f.TOI, err)
	}
	return v, nil
}

// Oti reconstructs this File's per-file OTI override, if fully specified.
func (f *File) Oti() (fec.Oti, bool) {
	return f.otiAttrs.oti()
}

// Cenc returns this File's Content-Encoding, defaulting to Null when absent.
func (f *File) Cenc() lct.Cenc {
	if f.ContentEncoding == "" {
		return lct.CencNull
	}
	cenc, ok := lct.ParseCenc(f.ContentEncoding)
	if !ok {
		return lct.CencNull
	}
	return cenc
}

// SetCacheControl sets or clears this File's Cache-Control child.
func (f *File) SetCacheControl(cc *CacheControl) {
	if cc == nil {
		f.CacheControl = nil
		return
	}
	f.CacheControl = cc.toXML()
}

// GetCacheControl returns this File's Cache-Control child, or nil if absent.
func (f *File) GetCacheControl() *CacheControl {
	return f.CacheControl.toCacheControl()
}

// TransferLengthOrContentLength returns Transfer-Length when present,
// falling back to Content-Length, or 0 if neither is set.
func (f *File) TransferLengthOrContentLength() uint64 {
	if f.TransferLength != nil {
		return *f.TransferLength
	}
	if f.ContentLength != nil {
		return *f.ContentLength
	}
	return 0
}

// Instance is the FDT-Instance root XML element.
type Instance struct {
	XMLName xml.Name `xml:"FDT-Instance"`

	Xmlns         string `xml:"xmlns,attr"`
	XmlnsXsi      string `xml:"xmlns:xsi,attr"`
	XmlnsMbms2005 string `xml:"xmlns:mbms2005,attr"`
	XmlnsMbms2007 string `xml:"xmlns:mbms2007,attr"`

	otiAttrs

	Expires         string `xml:"Expires,attr"`
	Complete        *bool  `xml:"Complete,attr,omitempty"`
	ContentType     string `xml:"Content-Type,attr,omitempty"`
	ContentEncoding string `xml:"Content-Encoding,attr,omitempty"`
	FullFDT         *bool  `xml:"FullFDT,attr,omitempty"`

	Group []string `xml:"mbms2005:Group,omitempty"`
	Files []File   `xml:"File"`
}

// NewInstance builds an empty Instance with the namespace attributes and
// Expires populated; callers then append Files.
func NewInstance(expiresNTPSeconds uint32) *Instance {
	return &Instance{
		Xmlns:         xmlnsDefault,
		XmlnsXsi:      xmlnsXsi,
		XmlnsMbms2005: xmlnsMbms2005,
		XmlnsMbms2007: xmlnsMbms2007,
		Expires:       strconv.FormatUint(uint64(expiresNTPSeconds), 10),
	}
}

// SetDefaultOti mirrors oti into the FDT-Instance's default FEC-OTI-*
// attributes, used when a File omits its own per-file override.
func (in *Instance) SetDefaultOti(oti fec.Oti) {
	in.otiAttrs = otiAttrsFrom(oti)
}

// Marshal serializes the instance to FDT XML bytes, including the XML
// declaration RFC 6726 examples carry.
func (in *Instance) Marshal() ([]byte, error) {
	body, err := xml.MarshalIndent(in, "", "  ")
	if err != nil {
		return nil, cmn.NewErrState("failed to marshal FDT instance: %v", err)
	}
	out := append([]byte(xml.Header), body...)
	return out, nil
}

// Parse decodes FDT XML bytes into an Instance.
func Parse(data []byte) (*Instance, error) {
	var in Instance
	if err := xml.Unmarshal(data, &in); err != nil {
		return nil, cmn.NewErrMalformed("failed to parse FDT instance: %v", err)
	}
	return &in, nil
}

// ExpiresSeconds parses the Expires attribute as NTP seconds.
func (in *Instance) ExpiresSeconds() (uint32, error) {
	v, err := strconv.ParseUint(in.Expires, 10, 32)
	if err != nil {
		return 0, cmn.NewErrMalformed("invalid FDT Expires %q: %v", in.Expires, err)
	}
	return uint32(v), nil
}

// DefaultOti reconstructs the FDT-Instance's default OTI, if fully
// specified.
func (in *Instance) DefaultOti() (fec.Oti, bool) {
	return in.otiAttrs.oti()
}

// OtiForFile returns the per-file OTI override when the File carries one,
// else falls back to the FDT-Instance's default OTI.
func (in *Instance) OtiForFile(f *File) (fec.Oti, bool) {
	if oti, ok := f.Oti(); ok {
		return oti, true
	}
	return in.DefaultOti()
}

// FileByTOI finds a File entry by its decimal TOI attribute.
func (in *Instance) FileByTOI(toi uint64) *File {
	s := strconv.FormatUint(toi, 10)
	for i := range in.Files {
		if in.Files[i].TOI == s {
			return &in.Files[i]
		}
	}
	return nil
}
