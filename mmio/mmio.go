// Package mmio defines the memory-mapped control interface of the SNN
// accelerator: register offsets, control and status bits, and the Device
// contract shared by every software model of the hardware.
package mmio

import "fmt"

// Reg enumerates the 32-bit registers of the accelerator.
type Reg int

const (
	Control Reg = iota
	Status
	WindowLen
	NIn
	NHidden
	NOut
	ResultClass
	Count0
	Count1
	Count2
	ConfQ15
	LatencyCycles
	WordsRx
	TotalPop

	NumRegs
)

// Byte offsets of the registers.
const (
	OffControl       uint32 = 0x00
	OffStatus        uint32 = 0x04
	OffWindowLen     uint32 = 0x08
	OffNIn           uint32 = 0x0C
	OffNHidden       uint32 = 0x10
	OffNOut          uint32 = 0x14
	OffResultClass   uint32 = 0x18
	OffCount0        uint32 = 0x1C
	OffCount1        uint32 = 0x20
	OffCount2        uint32 = 0x24
	OffConfQ15       uint32 = 0x28
	OffLatencyCycles uint32 = 0x2C
	OffWordsRx       uint32 = 0x30
	OffTotalPop      uint32 = 0x34
)

// CONTROL bits.
const (
	CtrlStart uint32 = 1 << 0
	CtrlReset uint32 = 1 << 1
	CtrlIntEn uint32 = 1 << 2
)

// STATUS bits.
const (
	StsDone uint32 = 1 << 0
	StsBusy uint32 = 1 << 1
	StsErr  uint32 = 1 << 2
)

// NumCountRegs is the number of class counters exposed as registers.
const NumCountRegs = 3

var regNames = [NumRegs]string{
	"CONTROL", "STATUS", "WINDOW_LEN", "N_IN", "N_HIDDEN", "N_OUT",
	"RESULT_CLASS", "COUNT0", "COUNT1", "COUNT2", "CONF_Q15",
	"LATENCY_CYCLES", "WORDS_RX", "TOTAL_POP",
}

// Offset returns the byte offset of the register.
func (r Reg) Offset() uint32 {
	if r < 0 || r >= NumRegs {
		panic(fmt.Sprintf("invalid register %d", int(r)))
	}
	return uint32(r) * 4
}

// Name returns the register name used in the hardware documentation.
func (r Reg) Name() string {
	if r < 0 || r >= NumRegs {
		panic(fmt.Sprintf("invalid register %d", int(r)))
	}
	return regNames[r]
}

// CountReg returns the counter register of class i.
func CountReg(i int) Reg {
	if i < 0 || i >= NumCountRegs {
		panic(fmt.Sprintf("invalid count register %d", i))
	}
	return Count0 + Reg(i)
}

// RegAt maps a byte offset to its register. Unaligned or unmapped offsets
// return false.
func RegAt(offset uint32) (Reg, bool) {
	if offset%4 != 0 {
		return 0, false
	}

	r := Reg(offset / 4)
	if r >= NumRegs {
		return 0, false
	}

	return r, true
}

// State is the protocol state derived from STATUS.
type State int

const (
	Idle State = iota
	Busy
	Done
	Err
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Busy:
		return "BUSY"
	case Done:
		return "DONE"
	case Err:
		return "ERR"
	default:
		panic("invalid state")
	}
}

// StateOf decodes a STATUS value. ERR wins over BUSY, BUSY over DONE.
func StateOf(status uint32) State {
	switch {
	case status&StsErr != 0:
		return Err
	case status&StsBusy != 0:
		return Busy
	case status&StsDone != 0:
		return Done
	default:
		return Idle
	}
}

// Device is anything that answers the accelerator's register and stream
// protocol: the synchronous emulator, the cycle-level core, or a real
// overlay behind a bus.
type Device interface {
	// ReadReg returns the current value of the register at offset. Reads
	// never change device state.
	ReadReg(offset uint32) uint32

	// WriteReg writes a register. Writing CONTROL with START or RESET set
	// triggers the corresponding action.
	WriteReg(offset uint32, value uint32)

	// StreamSend appends spike-mask words to the input stream.
	StreamSend(words ...uint32)
}
