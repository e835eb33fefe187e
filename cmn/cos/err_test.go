package cos_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/zenoh-go/zenoh-lite/cmn/cos"
)

var _ = Describe("errors", func() {
	It("tags codec errors by kind", func() {
		err := cos.NewCodecErr(cos.Truncated, "need %d more bytes", 3)
		Expect(cos.IsCodecErr(err, cos.Truncated)).To(BeTrue())
		Expect(cos.IsCodecErr(err, cos.Malformed)).To(BeFalse())
	})

	It("accumulates distinct errors up to the cap", func() {
		var errs cos.Errs
		for i := 0; i < 10; i++ {
			errs.Add(cos.NewErrNotFound("thing-%d", i%2))
		}
		Expect(errs.Cnt()).To(Equal(2))
	})

	It("generates ZIDs within the wire bounds", func() {
		z := cos.GenZID(8)
		Expect(len(z)).To(Equal(8))
		z2 := cos.GenZID(32)
		Expect(len(z2)).To(Equal(cos.MaxZIDLen))
	})
})
