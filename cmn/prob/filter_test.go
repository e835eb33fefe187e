package prob_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/zenoh-go/zenoh-lite/cmn/prob"
)

var _ = Describe("Filter", func() {
	It("never produces a false negative for recorded keys", func() {
		f := prob.New(64)
		for i := uint64(0); i < 200; i++ {
			f.Record(i)
		}
		for i := uint64(0); i < 200; i++ {
			Expect(f.Seen(i)).To(BeTrue())
		}
	})

	It("forgets a key", func() {
		f := prob.New(64)
		f.Record(42)
		Expect(f.Seen(42)).To(BeTrue())
		f.Forget(42)
		Expect(f.Count()).To(BeZero())
	})
})
