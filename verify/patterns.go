// Package verify produces golden test vectors for RTL simulation and checks
// that the numeric backends of the classifier agree with each other.
package verify

import (
	"math/rand/v2"

	"github.com/sarchlab/snnstage/snn"
)

// Pattern is a named stimulus window.
type Pattern struct {
	Name   string
	Window snn.Window
}

// Patterns returns the standard stimulus set used to exercise the RTL. The
// two random windows are seeded and therefore stable across runs.
func Patterns(windowLen int) []Pattern {
	return []Pattern{
		{"tc0_zeros", fill(windowLen, func(int) snn.Mask { return 0 })},
		{"tc1_allones", fill(windowLen, func(int) snn.Mask { return snn.ChannelMask })},
		{"tc2_ch0_only", fill(windowLen, func(int) snn.Mask { return 0x001 })},
		{"tc3_alternating", fill(windowLen, func(t int) snn.Mask {
			if t%2 == 0 {
				return 0x555
			}
			return 0xAAA
		})},
		{"tc4_ramp", fill(windowLen, func(t int) snn.Mask {
			return snn.Mask(1)<<uint(min(t+1, 12)) - 1
		})},
		{"tc5_burst_then_silence", fill(windowLen, func(t int) snn.Mask {
			if t == 0 {
				return snn.ChannelMask
			}
			return 0
		})},
		{"tc6_random_seed42", random(windowLen, 42)},
		{"tc7_random_seed123", random(windowLen, 123)},
	}
}

func fill(n int, at func(t int) snn.Mask) snn.Window {
	masks := make([]snn.Mask, n)
	for t := range masks {
		masks[t] = at(t)
	}
	return snn.NewWindow(masks...)
}

func random(n int, seed uint64) snn.Window {
	rng := rand.New(rand.NewPCG(seed, seed))
	return fill(n, func(int) snn.Mask {
		return snn.Mask(rng.IntN(int(snn.ChannelMask) + 1))
	})
}
