package snn_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/snnstage/internal/testmodel"
	"github.com/sarchlab/snnstage/snn"
)

var _ = Describe("FloatEngine", func() {
	scalar := func(v float32) snn.FloatMatrix {
		m, err := snn.NewFloatMatrix(1, 1, []float32{v})
		Expect(err).NotTo(HaveOccurred())
		return m
	}

	It("should leak by 1 - 2^-shift", func() {
		Expect(snn.ShiftToAlpha(1)).To(Equal(float32(0.5)))
		Expect(snn.ShiftToAlpha(4)).To(Equal(float32(0.9375)))
		Expect(snn.ShiftToAlpha(0)).To(Equal(float32(0.5)))
	})

	It("should integrate, fire and reset", func() {
		p := snn.FloatParams{
			Shape:           snn.Shape{Inputs: 1, Hidden: 1, Outputs: 1, WindowLen: 4},
			LeakShiftHidden: 1,
			LeakShiftOutput: 1,
			ThresholdHidden: 1.5,
			ThresholdOutput: 1,
		}
		e, err := snn.NewFloatEngine(scalar(1), scalar(1), p)
		Expect(err).NotTo(HaveOccurred())

		res := e.Infer(snn.NewWindow(1, 1, 1, 1))

		Expect(res.Counts).To(Equal([]uint32{2}))
		Expect(res.Class).To(Equal(0))
		Expect(res.Overflows).To(BeZero())
	})

	It("should stay silent on an empty window", func() {
		e, err := testmodel.Model().DequantizedEngine()
		Expect(err).NotTo(HaveOccurred())

		res := e.Infer(testmodel.Repeat(0, 10))

		Expect(res.Counts).To(Equal([]uint32{0, 0, 0}))
		Expect(res.Confidence()).To(BeZero())
	})

	It("should match Infer when stepped", func() {
		e, err := testmodel.Model().DequantizedEngine()
		Expect(err).NotTo(HaveOccurred())
		w := snn.NewWindow(0xFFF, 0x1F, 0xFE0, 0, 0x555, 0xAAA)

		inf := e.Begin()
		for t := 0; t < w.Len(); t++ {
			inf.Step(w.At(t))
		}

		Expect(inf.Result()).To(Equal(e.Infer(w)))
	})

	It("should reject mismatched weights", func() {
		_, err := snn.NewFloatEngine(scalar(1), scalar(1), snn.DefaultFloatParams())
		Expect(err).To(MatchError(snn.ErrShapeMismatch))
	})
})
