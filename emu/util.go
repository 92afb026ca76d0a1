package emu

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sarchlab/snnstage/mmio"
)

// LevelTrace sits just above Info so that protocol traces can be enabled
// without drowning the log in debug output.
const LevelTrace slog.Level = slog.LevelInfo + 1

// Trace logs a protocol event at LevelTrace.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}

// PrintRegisters renders the register file as a table.
func PrintRegisters(w io.Writer, rf *RegisterFile) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Register File")
	t.AppendHeader(table.Row{"Offset", "Name", "Value", "Hex"})

	for r := mmio.Reg(0); r < mmio.NumRegs; r++ {
		v := rf.Get(r)
		t.AppendRow(table.Row{
			fmt.Sprintf("0x%02X", r.Offset()),
			r.Name(),
			v,
			fmt.Sprintf("0x%08X", v),
		})
	}

	t.Render()
}
