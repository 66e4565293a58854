package fdt_test

import (
	"github.com/flute-go/flute/fdt"
	"github.com/flute-go/flute/fec"
	"github.com/flute-go/flute/lct"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Instance", func() {
	Describe("marshal/parse round trip", func() {
		It("should carry default OTI attributes and files through XML", func() {
			in := fdt.NewInstance(3900000000)
			oti := fec.NewNoCode(1400, 64)
			in.SetDefaultOti(oti)

			fileDesc, err := fdt.NewFileDesc(mustObject("http://x/a.bin", 1000), oti, 5, nil, false)
			Expect(err).NotTo(HaveOccurred())
			in.Files = append(in.Files, fileDesc.XML())

			data, err := in.Marshal()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("FDT-Instance"))
			Expect(string(data)).To(ContainSubstring(`Content-Location="http://x/a.bin"`))

			parsed, err := fdt.Parse(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed.Expires).To(Equal("3900000000"))
			Expect(parsed.Files).To(HaveLen(1))

			gotOti, ok := parsed.DefaultOti()
			Expect(ok).To(BeTrue())
			Expect(gotOti.EncodingID).To(Equal(fec.NoCode))
			Expect(gotOti.MaxSourceBlockLength).To(BeEquivalentTo(64))
			Expect(gotOti.EncodingSymbolLength).To(BeEquivalentTo(1400))

			f := parsed.FileByTOI(5)
			Expect(f).NotTo(BeNil())
			toi, err := f.TOIValue()
			Expect(err).NotTo(HaveOccurred())
			Expect(toi).To(BeEquivalentTo(5))
		})

		It("should omit unset optional attributes rather than emit them empty", func() {
			in := fdt.NewInstance(100)
			data, err := in.Marshal()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).NotTo(ContainSubstring("Complete="))
			Expect(string(data)).NotTo(ContainSubstring("FullFDT="))
			Expect(string(data)).NotTo(ContainSubstring("FEC-OTI-FEC-Encoding-ID="))
		})

		It("should round-trip each CacheControl variant", func() {
			cases := []fdt.CacheControl{
				{Kind: fdt.CacheControlNoCache},
				{Kind: fdt.CacheControlMaxStale},
				{Kind: fdt.CacheControlExpires, ExpiresNTP: 123456},
			}
			for _, cc := range cases {
				f := &fdt.File{ContentLocation: "http://x/b.bin", TOI: "7"}
				f.SetCacheControl(&cc)

				in := fdt.NewInstance(100)
				in.Files = append(in.Files, *f)
				data, err := in.Marshal()
				Expect(err).NotTo(HaveOccurred())

				parsed, err := fdt.Parse(data)
				Expect(err).NotTo(HaveOccurred())
				got := parsed.Files[0].GetCacheControl()
				Expect(got).NotTo(BeNil())
				Expect(got.Kind).To(Equal(cc.Kind))
				if cc.Kind == fdt.CacheControlExpires {
					Expect(got.ExpiresNTP).To(Equal(cc.ExpiresNTP))
				}
			}
		})

		It("should default a file's content encoding to Null when absent", func() {
			f := &fdt.File{ContentLocation: "http://x/c.bin", TOI: "1"}
			Expect(f.Cenc()).To(Equal(lct.CencNull))
		})
	})

	Describe("RaptorQ per-file OTI stamping", func() {
		It("should always emit per-file OTI attributes for RaptorQ", func() {
			oti, err := fec.NewRaptorQ(1024, 10, 2, 0, 4)
			Expect(err).NotTo(HaveOccurred())

			fileDesc, err := fdt.NewFileDesc(mustObject("http://x/d.bin", 20480), oti, 9, nil, false)
			Expect(err).NotTo(HaveOccurred())

			x := fileDesc.XML()
			Expect(x.FECSchemeSpecificInfo).NotTo(BeEmpty())
			gotOti, ok := x.Oti()
			Expect(ok).To(BeTrue())
			Expect(gotOti.RaptorQ).NotTo(BeNil())
			Expect(gotOti.RaptorQ.SourceBlocksLength).To(BeNumerically(">", 0))
		})
	})
})

func mustObject(location string, transferLength uint64) *fdt.ObjectDesc {
	return &fdt.ObjectDesc{
		ContentLocation:  location,
		ContentType:      "application/octet-stream",
		ContentLength:    transferLength,
		TransferLength:   transferLength,
		MaxTransferCount: 1,
	}
}
