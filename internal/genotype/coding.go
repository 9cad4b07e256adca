package genotype

import (
	"errors"
	"fmt"
)

var ErrLengthMismatch = errors.New("genotype length mismatch")

// CodedLength is the number of bits needed to hold one code per width.
func CodedLength(widths []int) int {
	total := 0
	for _, w := range widths {
		total += w
	}
	return total
}

// DecodeCodes reads consecutive unsigned integers, most significant bit
// first, one per entry of widths. The genotype must be exactly as long as
// the widths add up to.
func DecodeCodes(g *Genotype, widths []int) ([]int, error) {
	want := CodedLength(widths)
	if g.Len() != want {
		return nil, fmt.Errorf("decode: got %d bits want %d: %w", g.Len(), want, ErrLengthMismatch)
	}
	codes := make([]int, len(widths))
	pos := 0
	for i, w := range widths {
		v := 0
		for b := 0; b < w; b++ {
			v <<= 1
			if g.bits.Test(uint(pos)) {
				v |= 1
			}
			pos++
		}
		codes[i] = v
	}
	return codes, nil
}

// EncodeCodes is the inverse of DecodeCodes. Codes wider than their slot
// keep only their low bits.
func EncodeCodes(codes, widths []int) (*Genotype, error) {
	if len(codes) != len(widths) {
		return nil, fmt.Errorf("encode: %d codes for %d widths: %w", len(codes), len(widths), ErrLengthMismatch)
	}
	g := New(CodedLength(widths))
	pos := 0
	for i, w := range widths {
		for b := w - 1; b >= 0; b-- {
			if codes[i]>>uint(b)&1 == 1 {
				g.bits.Set(uint(pos))
			}
			pos++
		}
	}
	return g, nil
}

// MaxCode is the largest value representable with width bits.
func MaxCode(width int) int {
	if width <= 0 {
		return 0
	}
	return 1<<uint(width) - 1
}
