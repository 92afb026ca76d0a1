package emu_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/snnstage/emu"
	"github.com/sarchlab/snnstage/internal/testmodel"
	"github.com/sarchlab/snnstage/mmio"
	"github.com/sarchlab/snnstage/snn"
)

func repeat(w uint32, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = w
	}
	return out
}

var _ = Describe("Emulator", func() {
	var e *emu.Emulator

	BeforeEach(func() {
		e = emu.MakeBuilder().Build("SNN")
		Expect(e.LoadModel(testmodel.Model())).To(Succeed())
	})

	It("should report the topology", func() {
		Expect(e.ReadReg(mmio.OffWindowLen)).To(Equal(uint32(10)))
		Expect(e.ReadReg(mmio.OffNIn)).To(Equal(uint32(12)))
		Expect(e.ReadReg(mmio.OffNHidden)).To(Equal(uint32(32)))
		Expect(e.ReadReg(mmio.OffNOut)).To(Equal(uint32(3)))
		Expect(e.State()).To(Equal(mmio.Idle))
	})

	It("should run a full window", func() {
		e.StreamSend(repeat(0xFFF, 10)...)
		e.WriteReg(mmio.OffControl, mmio.CtrlStart)

		Expect(e.State()).To(Equal(mmio.Done))
		Expect(e.ReadReg(mmio.OffStatus)).To(Equal(mmio.StsDone))
		Expect(e.ReadReg(mmio.OffResultClass)).To(Equal(uint32(2)))
		Expect(e.ReadReg(mmio.OffCount0)).To(Equal(uint32(0)))
		Expect(e.ReadReg(mmio.OffCount1)).To(Equal(uint32(0)))
		Expect(e.ReadReg(mmio.OffCount2)).To(Equal(uint32(10)))
		Expect(e.ReadReg(mmio.OffConfQ15)).To(Equal(uint32(32767)))
		Expect(e.ReadReg(mmio.OffLatencyCycles)).To(Equal(uint32(350)))
		Expect(e.ReadReg(mmio.OffWordsRx)).To(Equal(uint32(10)))
		Expect(e.ReadReg(mmio.OffTotalPop)).To(Equal(uint32(120)))
		Expect(e.Pending()).To(BeZero())
	})

	It("should consume exactly one window in stream order", func() {
		e.StreamSend(repeat(0xFE0, 10)...)
		e.StreamSend(repeat(0x1F, 10)...)

		e.WriteReg(mmio.OffControl, mmio.CtrlStart)
		Expect(e.ReadReg(mmio.OffResultClass)).To(Equal(uint32(2)))
		Expect(e.ReadReg(mmio.OffCount0)).To(Equal(uint32(3)))
		Expect(e.Pending()).To(Equal(10))

		e.WriteReg(mmio.OffControl, mmio.CtrlStart)
		Expect(e.ReadReg(mmio.OffResultClass)).To(Equal(uint32(1)))
		Expect(e.ReadReg(mmio.OffCount2)).To(Equal(uint32(5)))
		Expect(e.Pending()).To(BeZero())
	})

	It("should honor a shorter WINDOW_LEN", func() {
		e.WriteReg(mmio.OffWindowLen, 3)
		e.StreamSend(repeat(0x1F, 5)...)

		e.WriteReg(mmio.OffControl, mmio.CtrlStart)

		Expect(e.ReadReg(mmio.OffCount1)).To(Equal(uint32(3)))
		Expect(e.ReadReg(mmio.OffCount2)).To(Equal(uint32(1)))
		Expect(e.ReadReg(mmio.OffLatencyCycles)).To(Equal(uint32(105)))
		Expect(e.Pending()).To(Equal(2))
	})

	It("should fail on a short stream and keep previous results", func() {
		e.StreamSend(repeat(0xFFF, 10)...)
		e.WriteReg(mmio.OffControl, mmio.CtrlStart)

		e.StreamSend(repeat(0x1F, 4)...)
		e.WriteReg(mmio.OffControl, mmio.CtrlStart)

		Expect(e.State()).To(Equal(mmio.Err))
		Expect(e.ReadReg(mmio.OffResultClass)).To(Equal(uint32(2)))
		Expect(e.ReadReg(mmio.OffCount2)).To(Equal(uint32(10)))
		Expect(e.Pending()).To(Equal(4))
	})

	It("should fail without a model", func() {
		bare := emu.MakeBuilder().Build("Bare")
		bare.StreamSend(repeat(0xFFF, 10)...)

		bare.WriteReg(mmio.OffControl, mmio.CtrlStart)

		Expect(bare.State()).To(Equal(mmio.Err))
		Expect(bare.ReadReg(mmio.OffCount1)).To(BeZero())
		Expect(bare.Pending()).To(Equal(10))
	})

	It("should clear everything on reset", func() {
		e.StreamSend(repeat(0xFFF, 15)...)
		e.WriteReg(mmio.OffControl, mmio.CtrlStart)

		e.WriteReg(mmio.OffControl, mmio.CtrlReset)

		Expect(e.State()).To(Equal(mmio.Idle))
		Expect(e.Pending()).To(BeZero())
		for _, off := range []uint32{
			mmio.OffStatus, mmio.OffResultClass,
			mmio.OffCount0, mmio.OffCount1, mmio.OffCount2,
			mmio.OffConfQ15, mmio.OffLatencyCycles,
			mmio.OffWordsRx, mmio.OffTotalPop,
		} {
			Expect(e.ReadReg(off)).To(BeZero())
		}
		Expect(e.ReadReg(mmio.OffNHidden)).To(Equal(uint32(32)))
	})

	It("should reset before starting when both bits are set", func() {
		e.StreamSend(repeat(0xFFF, 10)...)

		e.WriteReg(mmio.OffControl, mmio.CtrlReset|mmio.CtrlStart)

		Expect(e.State()).To(Equal(mmio.Err))
		Expect(e.ReadReg(mmio.OffControl)).
			To(Equal(mmio.CtrlReset | mmio.CtrlStart))
	})

	It("should ignore host writes to read-only registers", func() {
		e.WriteReg(mmio.OffStatus, mmio.StsDone)
		e.WriteReg(mmio.OffCount0, 99)
		e.WriteReg(mmio.OffNIn, 5)

		Expect(e.ReadReg(mmio.OffStatus)).To(BeZero())
		Expect(e.ReadReg(mmio.OffCount0)).To(BeZero())
		Expect(e.ReadReg(mmio.OffNIn)).To(Equal(uint32(12)))
	})

	It("should read unmapped offsets as zero", func() {
		Expect(e.ReadReg(0x100)).To(BeZero())
		Expect(e.ReadReg(0x02)).To(BeZero())
		e.WriteReg(0x100, 1)
	})

	It("should run the float backend", func() {
		f := emu.MakeBuilder().WithBackend(emu.BackendFloat).Build("Float")
		Expect(f.LoadModel(testmodel.Model())).To(Succeed())
		Expect(f.Engine()).To(BeAssignableToTypeOf(&snn.FloatEngine{}))

		f.StreamSend(repeat(0, 10)...)
		f.WriteReg(mmio.OffControl, mmio.CtrlStart)

		Expect(f.State()).To(Equal(mmio.Done))
		Expect(f.ReadReg(mmio.OffResultClass)).To(BeZero())
		Expect(f.ReadReg(mmio.OffConfQ15)).To(BeZero())
	})

	It("should reject an engine of another topology", func() {
		p := snn.DefaultParams()
		p.Hidden = 4
		small := emu.MakeBuilder().WithShape(p.Shape).Build("Small")

		Expect(small.LoadModel(testmodel.Model())).
			To(MatchError(snn.ErrShapeMismatch))
		Expect(small.Loaded()).To(BeFalse())
	})

	It("should refuse more outputs than count registers", func() {
		p := snn.DefaultParams()
		p.Outputs = 4

		Expect(func() {
			emu.MakeBuilder().WithShape(p.Shape).Build("Wide")
		}).To(Panic())
	})

	It("should print the register file", func() {
		var buf bytes.Buffer

		emu.PrintRegisters(&buf, e.Registers())

		Expect(buf.String()).To(ContainSubstring("WINDOW_LEN"))
		Expect(buf.String()).To(ContainSubstring("0x0000000A"))
	})
})

var _ = Describe("ConfQ15", func() {
	It("should encode and clamp", func() {
		Expect(emu.ConfQ15(0)).To(BeZero())
		Expect(emu.ConfQ15(0.5)).To(Equal(uint32(16384)))
		Expect(emu.ConfQ15(1)).To(Equal(uint32(32767)))
		Expect(emu.ConfQ15(-0.2)).To(BeZero())
	})
})

var _ = Describe("Backend", func() {
	It("should parse names", func() {
		b, err := emu.ParseBackend("float")
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(Equal(emu.BackendFloat))
		Expect(b.String()).To(Equal("float"))

		_, err = emu.ParseBackend("gpu")
		Expect(err).To(HaveOccurred())
	})
})
