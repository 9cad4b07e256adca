package genotype

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/bits-and-blooms/bitset"
)

var ErrIndexOutOfRange = errors.New("bit index out of range")

// Genotype is a fixed-length bit sequence. The zero value is an empty genotype.
type Genotype struct {
	bits   *bitset.BitSet
	length int
}

func New(length int) *Genotype {
	if length < 0 {
		length = 0
	}
	return &Genotype{bits: bitset.New(uint(length)), length: length}
}

func (g *Genotype) Len() int {
	if g == nil {
		return 0
	}
	return g.length
}

func (g *Genotype) Copy() *Genotype {
	if g == nil {
		return nil
	}
	if g.bits == nil {
		return New(g.length)
	}
	return &Genotype{bits: g.bits.Clone(), length: g.length}
}

func (g *Genotype) Bit(i int) (bool, error) {
	if err := g.check(i); err != nil {
		return false, err
	}
	return g.bits.Test(uint(i)), nil
}

func (g *Genotype) SetBit(i int, v bool) error {
	if err := g.check(i); err != nil {
		return err
	}
	g.bits.SetTo(uint(i), v)
	return nil
}

func (g *Genotype) Flip(i int) error {
	if err := g.check(i); err != nil {
		return err
	}
	g.bits.Flip(uint(i))
	return nil
}

// Randomize assigns every bit an independent fair coin flip.
func (g *Genotype) Randomize(rng *rand.Rand) {
	for i := 0; i < g.length; i++ {
		g.bits.SetTo(uint(i), rng.Intn(2) == 1)
	}
}

// SwapTail exchanges every bit at index >= cut between g and other.
func (g *Genotype) SwapTail(other *Genotype, cut int) error {
	if other == nil || other.length != g.length {
		return fmt.Errorf("swap tail: length mismatch %d vs %d", g.Len(), other.Len())
	}
	if cut < 0 || cut > g.length {
		return fmt.Errorf("swap tail at %d: %w", cut, ErrIndexOutOfRange)
	}
	for i := cut; i < g.length; i++ {
		a, b := g.bits.Test(uint(i)), other.bits.Test(uint(i))
		if a != b {
			g.bits.SetTo(uint(i), b)
			other.bits.SetTo(uint(i), a)
		}
	}
	return nil
}

// String renders the bits most significant first, as they are laid out.
func (g *Genotype) String() string {
	buf := make([]byte, g.Len())
	for i := range buf {
		if g.bits.Test(uint(i)) {
			buf[i] = '1'
		} else {
			buf[i] = '0'
		}
	}
	return string(buf)
}

// Parse is the inverse of String.
func Parse(s string) (*Genotype, error) {
	g := New(len(s))
	for i, c := range s {
		switch c {
		case '0':
		case '1':
			g.bits.Set(uint(i))
		default:
			return nil, fmt.Errorf("parse genotype: invalid character %q at %d", c, i)
		}
	}
	return g, nil
}

func (g *Genotype) check(i int) error {
	if g == nil || i < 0 || i >= g.length {
		return fmt.Errorf("index %d for length %d: %w", i, g.Len(), ErrIndexOutOfRange)
	}
	return nil
}
