package opm

import (
	"testing"

	"github.com/cat2151/ym2151play/internal/chip"
)

var _ chip.Emulator = (*Chip)(nil)

func TestNewChipIsSilent(t *testing.T) {
	c := New()
	for i := 0; i < 1000; i++ {
		l, r := c.ClockSample()
		if l != 0 || r != 0 {
			t.Fatalf("sample %d: expected silence before any key-on, got (%d, %d)", i, l, r)
		}
	}
}

func writeRegister(c *Chip, addr, data uint8) {
	c.Write(0, addr)
	c.Write(1, data)
}

func TestKeyOnProducesSound(t *testing.T) {
	c := New()
	writeRegister(c, 0x28, 0x4A) // channel 0 key code
	writeRegister(c, 0x48, 0x01) // carrier MUL=1
	writeRegister(c, 0x68, 0x00) // carrier total level = loudest
	writeRegister(c, 0x08, 0x78) // key on channel 0

	sawSound := false
	for i := 0; i < 2000; i++ {
		l, r := c.ClockSample()
		if l != 0 || r != 0 {
			sawSound = true
			break
		}
	}
	if !sawSound {
		t.Fatal("expected nonzero output after key-on, got silence throughout")
	}
}

func TestKeyOffDecaysToSilence(t *testing.T) {
	c := New()
	writeRegister(c, 0x28, 0x4A)
	writeRegister(c, 0x48, 0x01)
	writeRegister(c, 0x68, 0x00)
	writeRegister(c, 0xE0, 0x1F) // fastest release
	writeRegister(c, 0x08, 0x78) // key on

	for i := 0; i < 100; i++ {
		c.ClockSample()
	}

	writeRegister(c, 0x08, 0x00) // key off channel 0

	consecutiveSilent := 0
	for i := 0; i < 20000 && consecutiveSilent < 100; i++ {
		l, r := c.ClockSample()
		if l == 0 && r == 0 {
			consecutiveSilent++
		} else {
			consecutiveSilent = 0
		}
	}
	if consecutiveSilent < 100 {
		t.Fatal("expected output to decay to sustained silence after key-off")
	}
}

func TestResetSilencesAllChannels(t *testing.T) {
	c := New()
	for ch := uint8(0); ch < numChannels; ch++ {
		writeRegister(c, 0x28+ch, 0x4A)
		writeRegister(c, 0x48+ch, 0x01)
		writeRegister(c, 0x68+ch, 0x00)
		writeRegister(c, 0x08, 0x08|ch)
	}

	c.Reset()

	for i := 0; i < 100; i++ {
		l, r := c.ClockSample()
		if l != 0 || r != 0 {
			t.Fatalf("sample %d: expected silence after Reset, got (%d, %d)", i, l, r)
		}
	}
}

func TestInterPortDelayIsTwo(t *testing.T) {
	c := New()
	if got := c.InterPortDelay(); got != 2 {
		t.Errorf("InterPortDelay() = %d, want 2", got)
	}
}

func TestFrequencyFromKeyCodeIncreasesWithOctave(t *testing.T) {
	low := frequencyFromKeyCode(0x00)
	high := frequencyFromKeyCode(0x70)
	if high <= low {
		t.Errorf("expected higher octave to produce higher frequency: low=%v high=%v", low, high)
	}
}
