package snn_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/snnstage/internal/testmodel"
	"github.com/sarchlab/snnstage/snn"
)

func tinyParams(inputs int) snn.Params {
	return snn.Params{
		Shape: snn.Shape{
			Inputs:    inputs,
			Hidden:    1,
			Outputs:   1,
			WindowLen: 10,
		},
		LeakShiftHidden: 1,
		LeakShiftOutput: 0,
		ThresholdHidden: 64,
		ThresholdOutput: 1,
	}
}

func column(v int8, rows int) snn.Int8Matrix {
	data := make([]int8, rows)
	for i := range data {
		data[i] = v
	}
	m, err := snn.NewInt8Matrix(rows, 1, data)
	Expect(err).NotTo(HaveOccurred())
	return m
}

var _ = Describe("FixedPointEngine", func() {
	var eng *snn.FixedPointEngine

	BeforeEach(func() {
		eng = testmodel.Engine()
	})

	It("should classify silence as class 0 with no spikes", func() {
		res := eng.Infer(testmodel.Repeat(0, 10))

		Expect(res.Class).To(Equal(0))
		Expect(res.Counts).To(Equal([]uint32{0, 0, 0}))
		Expect(res.Confidence()).To(BeZero())
		Expect(res.ConfidenceQ8()).To(BeZero())
	})

	It("should break ties towards the lowest class", func() {
		res := eng.Infer(testmodel.Repeat(0x0FF, 10))

		Expect(res.Counts).To(Equal([]uint32{0, 5, 5}))
		Expect(res.Class).To(Equal(1))
		Expect(res.Confidence()).To(Equal(0.5))
		Expect(res.ConfidenceQ8()).To(Equal(uint32(128)))
	})

	It("should let the high channels win when every channel fires", func() {
		res := eng.Infer(testmodel.Repeat(0xFFF, 10))

		Expect(res.Counts).To(Equal([]uint32{0, 0, 10}))
		Expect(res.Class).To(Equal(2))
		Expect(res.Confidence()).To(Equal(1.0))
		Expect(res.ConfidenceQ8()).To(Equal(uint32(256)))
	})

	It("should classify a sparser stimulus differently with fewer spikes", func() {
		dense := eng.Infer(testmodel.Repeat(0xFFF, 10))
		sparse := eng.Infer(testmodel.Repeat(0x1F, 10))

		Expect(sparse.Counts).To(Equal([]uint32{0, 10, 5}))
		Expect(sparse.Class).To(Equal(1))
		Expect(sparse.Class).NotTo(Equal(dense.Class))
		Expect(sparse.Total()).To(BeNumerically("<", dense.Total()))
	})

	It("should route high channels to class 2", func() {
		res := eng.Infer(testmodel.Repeat(0xFE0, 10))

		Expect(res.Counts).To(Equal([]uint32{3, 0, 10}))
		Expect(res.Class).To(Equal(2))
	})

	It("should handle alternating masks", func() {
		w := snn.WindowFromWords([]uint32{
			0x555, 0xAAA, 0x555, 0xAAA, 0x555,
			0xAAA, 0x555, 0xAAA, 0x555, 0xAAA,
		})

		res := eng.Infer(w)

		Expect(res.Counts).To(Equal([]uint32{0, 1, 5}))
		Expect(res.Class).To(Equal(2))
	})

	It("should ignore bits above the input count", func() {
		a := eng.Infer(testmodel.Repeat(0xFFF, 10))
		b := eng.Infer(testmodel.Repeat(0xFFFFFFFF, 10))

		Expect(b).To(Equal(a))
	})

	It("should only run the first WindowLen timesteps", func() {
		res := eng.Infer(testmodel.Repeat(0xFFF, 20))

		Expect(res.Counts).To(Equal([]uint32{0, 0, 10}))
	})

	It("should run short windows as they are", func() {
		res := eng.Infer(testmodel.Repeat(0x1F, 3))

		Expect(res.Counts).To(Equal([]uint32{0, 3, 1}))
	})

	It("should be deterministic", func() {
		w := snn.NewWindow(0x123, 0x456, 0x789, 0xABC, 0xDEF, 0x0F0, 0xF0F)

		first := eng.Infer(w)
		for i := 0; i < 5; i++ {
			Expect(eng.Infer(w)).To(Equal(first))
		}
	})

	It("should match Infer when stepped", func() {
		w := testmodel.Repeat(0x1F, 10)

		inf := eng.Begin()
		for t := 0; t < w.Len(); t++ {
			inf.Step(w.At(t))
		}

		Expect(inf.Steps()).To(Equal(10))
		Expect(inf.Result()).To(Equal(eng.Infer(w)))
	})

	It("should record one trace entry per timestep", func() {
		res, traces := eng.Trace(testmodel.Repeat(0xFFF, 10))

		Expect(res.Counts).To(Equal([]uint32{0, 0, 10}))
		Expect(traces).To(HaveLen(10))
		for i, tr := range traces {
			Expect(tr.T).To(Equal(i))
			Expect(tr.Mask).To(Equal(snn.Mask(0xFFF)))
			Expect(tr.Hidden).To(HaveLen(32))
			Expect(tr.Output).To(HaveLen(3))
		}
	})

	Context("leak arithmetic", func() {
		It("should shift negative potentials arithmetically", func() {
			e, err := snn.NewFixedPointEngine(
				column(-100, 1), column(1, 1), tinyParams(1))
			Expect(err).NotTo(HaveOccurred())

			_, traces := e.Trace(snn.NewWindow(1, 1, 1, 1))

			var hidden []int16
			for _, tr := range traces {
				hidden = append(hidden, tr.Hidden[0])
			}
			Expect(hidden).To(Equal([]int16{-100, -150, -175, -187}))
		})
	})

	Context("narrowing", func() {
		var (
			p  snn.Params
			w1 snn.Int8Matrix
			w  snn.Window
		)

		BeforeEach(func() {
			p = tinyParams(32)
			p.WindowLen = 9
			p.LeakShiftHidden = 15
			p.ThresholdHidden = 32767
			w1 = column(127, 32)
			w = testmodel.Repeat(0xFFFFFFFF, 9)
		})

		It("should wrap and count the overflow", func() {
			e, err := snn.NewFixedPointEngine(w1, column(1, 1), p)
			Expect(err).NotTo(HaveOccurred())

			res, traces := e.Trace(w)

			Expect(res.Overflows).To(Equal(1))
			Expect(res.Counts).To(Equal([]uint32{0}))
			Expect(traces[8].Hidden[0]).To(Equal(int16(36576 - 65536)))
		})

		It("should saturate and count the overflow", func() {
			p.Narrowing = snn.NarrowSaturate
			e, err := snn.NewFixedPointEngine(w1, column(1, 1), p)
			Expect(err).NotTo(HaveOccurred())

			res, traces := e.Trace(w)

			Expect(res.Overflows).To(Equal(1))
			Expect(res.Counts).To(Equal([]uint32{1}))
			Expect(traces[8].HiddenSpikes).To(Equal([]bool{true}))
			Expect(traces[8].HiddenBits()).To(Equal(uint64(1)))
			Expect(traces[8].Hidden[0]).To(BeZero())
		})
	})

	Context("validation", func() {
		It("should reject mismatched weights", func() {
			p := snn.DefaultParams()
			_, err := snn.NewFixedPointEngine(testmodel.W2(), testmodel.W2(), p)
			Expect(err).To(MatchError(snn.ErrShapeMismatch))
		})

		It("should reject out-of-range leak shifts", func() {
			p := snn.DefaultParams()
			p.LeakShiftHidden = 16
			_, err := snn.NewFixedPointEngine(testmodel.W1(), testmodel.W2(), p)
			Expect(err).To(MatchError(snn.ErrInvalidParams))
		})

		It("should reject more than 32 inputs", func() {
			p := snn.DefaultParams()
			p.Inputs = 33
			Expect(p.Validate()).To(MatchError(snn.ErrInvalidParams))
		})
	})
})
