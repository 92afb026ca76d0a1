package quant_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/snnstage/quant"
	"github.com/sarchlab/snnstage/snn"
)

func row(vs ...float32) snn.FloatMatrix {
	m, err := snn.NewFloatMatrix(1, len(vs), vs)
	Expect(err).NotTo(HaveOccurred())
	return m
}

var _ = Describe("Quantize", func() {
	It("should use scale 1 for an all-zero matrix", func() {
		q := quant.Quantize(row(0, 0, 0))

		Expect(q.Scale()).To(Equal(float32(1)))
		Expect(q.Matrix().Flat()).To(Equal([]int8{0, 0, 0}))
	})

	It("should map the largest magnitude to 127", func() {
		q := quant.Quantize(row(-2.54, 1.0, 0, 0.5))

		Expect(q.Scale()).To(BeNumerically("~", 0.02, 1e-7))
		Expect(q.Matrix().Flat()).To(Equal([]int8{-127, 50, 0, 25}))
	})

	It("should be symmetric", func() {
		pos := quant.Quantize(row(0.3, 0.7, 1.0))
		neg := quant.Quantize(row(-0.3, -0.7, -1.0))

		Expect(neg.Scale()).To(Equal(pos.Scale()))
		for i, v := range pos.Matrix().Flat() {
			Expect(neg.Matrix().Flat()[i]).To(Equal(-v))
		}
	})

	It("should never produce -128", func() {
		q := quant.Quantize(row(-1, 1, -0.999, 0.001))

		for _, v := range q.Matrix().Flat() {
			Expect(v).To(BeNumerically(">=", -127))
		}
	})

	It("should round halves to even", func() {
		q := quant.Quantize(row(127, 2.5, 3.5, -0.5))

		Expect(q.Matrix().Flat()).To(Equal([]int8{127, 2, 4, 0}))
	})

	It("should reconstruct within half a step", func() {
		orig := row(0.11, -0.37, 0.92, -0.05, 0.64)
		q := quant.Quantize(orig)

		e := quant.Stats(orig, q)

		Expect(e.MaxAbs).To(BeNumerically("<=", float64(q.Scale())/2+1e-6))
		Expect(e.MeanAbs).To(BeNumerically("<=", e.MaxAbs))
	})
})

var _ = Describe("IntThreshold", func() {
	It("should divide by the scale and round", func() {
		Expect(quant.IntThreshold(0.64, 0.01)).To(Equal(int16(64)))
		Expect(quant.IntThreshold(1, 0.3)).To(Equal(int16(3)))
	})

	It("should never go below 1", func() {
		Expect(quant.IntThreshold(0.001, 1)).To(Equal(int16(1)))
		Expect(quant.IntThreshold(-4, 1)).To(Equal(int16(1)))
	})

	It("should clamp to int16", func() {
		Expect(quant.IntThreshold(1e9, 1e-3)).To(Equal(int16(32767)))
	})
})
