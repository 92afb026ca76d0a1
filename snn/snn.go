// Package snn defines the data model of the spiking classifier and the two
// inference engines that run it: the bit-exact fixed-point engine that the
// RTL must reproduce, and the floating-point reference used to calibrate it.
//
// # Layers
//
// The network has two fully connected leaky-integrate-and-fire layers:
//
//	input spikes [C] ── W1 [C x Nh] ──> hidden LIF [Nh]
//	hidden spikes    ── W2 [Nh x No] ──> output LIF [No] ──> class counters
//
// Every timestep each layer (1) sums the weight rows of its active inputs,
// (2) leaks its membrane state, (3) integrates the summed input and (4)
// fires and hard-resets every neuron at or above threshold. Hidden spikes
// feed the output layer within the same timestep. The predicted class is
// the output neuron that fired most often; ties go to the lowest index.
package snn

import (
	"errors"
	"math/bits"
)

// ChannelMask selects the significant bits of a spike mask in the reference
// 12-channel configuration.
const ChannelMask Mask = 0xFFF

// Mask is one timestep of a spike window. Bit i is set when input channel i
// spiked during that timestep.
type Mask uint32

// Active reports whether channel ch spiked.
func (m Mask) Active(ch int) bool {
	return (m>>uint(ch))&1 == 1
}

// Significant keeps only the low n channel bits.
func (m Mask) Significant(n int) Mask {
	if n >= 32 {
		return m
	}
	return m & (Mask(1)<<uint(n) - 1)
}

// PopCount returns the number of active channels among the low n bits.
func (m Mask) PopCount(n int) int {
	return bits.OnesCount32(uint32(m.Significant(n)))
}

// Window is an immutable sequence of spike masks, one per timestep.
type Window struct {
	masks []Mask
}

// NewWindow creates a window from the given masks. The masks are copied.
func NewWindow(masks ...Mask) Window {
	w := Window{masks: make([]Mask, len(masks))}
	copy(w.masks, masks)
	return w
}

// WindowFromWords creates a window from raw stream words.
func WindowFromWords(words []uint32) Window {
	w := Window{masks: make([]Mask, len(words))}
	for i, word := range words {
		w.masks[i] = Mask(word)
	}
	return w
}

// WindowFromSpikes converts a [T][C] spike raster into a window.
func WindowFromSpikes(spikes [][]bool) Window {
	w := Window{masks: make([]Mask, len(spikes))}
	for t, row := range spikes {
		var m Mask
		for ch, s := range row {
			if s {
				m |= 1 << uint(ch)
			}
		}
		w.masks[t] = m
	}
	return w
}

// WindowFromEvents converts per-timestep lists of active channel indices
// into a window.
func WindowFromEvents(events [][]int) Window {
	w := Window{masks: make([]Mask, len(events))}
	for t, ev := range events {
		var m Mask
		for _, ch := range ev {
			m |= 1 << uint(ch)
		}
		w.masks[t] = m
	}
	return w
}

// Len returns the number of timesteps.
func (w Window) Len() int {
	return len(w.masks)
}

// At returns the mask of timestep t.
func (w Window) At(t int) Mask {
	return w.masks[t]
}

// Masks returns a copy of the masks.
func (w Window) Masks() []Mask {
	out := make([]Mask, len(w.masks))
	copy(out, w.masks)
	return out
}

// Words returns the masks as stream words.
func (w Window) Words() []uint32 {
	out := make([]uint32, len(w.masks))
	for i, m := range w.masks {
		out[i] = uint32(m)
	}
	return out
}

// Truncate returns the first n timesteps, or the whole window if it is
// shorter.
func (w Window) Truncate(n int) Window {
	if n >= len(w.masks) {
		return w
	}
	return Window{masks: w.masks[:n]}
}

// Configuration errors.
var (
	ErrInvalidParams = errors.New("invalid engine parameters")
	ErrShapeMismatch = errors.New("weight shape mismatch")
)
