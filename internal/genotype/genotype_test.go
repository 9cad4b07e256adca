package genotype

import (
	"errors"
	"math/rand"
	"testing"
)

func TestNewIsZeroFilled(t *testing.T) {
	g := New(12)
	if g.Len() != 12 {
		t.Fatalf("unexpected length: %d", g.Len())
	}
	for i := 0; i < g.Len(); i++ {
		v, err := g.Bit(i)
		if err != nil {
			t.Fatalf("bit %d: %v", i, err)
		}
		if v {
			t.Fatalf("expected bit %d to be zero", i)
		}
	}
}

func TestBitBoundsChecked(t *testing.T) {
	g := New(4)
	if _, err := g.Bit(4); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected out of range on read, got %v", err)
	}
	if err := g.SetBit(-1, true); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected out of range on write, got %v", err)
	}
	if err := g.Flip(10); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected out of range on flip, got %v", err)
	}
}

func TestCopyDoesNotAlias(t *testing.T) {
	g, err := Parse("1010")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	c := g.Copy()
	if err := c.Flip(0); err != nil {
		t.Fatalf("flip: %v", err)
	}
	if g.String() != "1010" {
		t.Fatalf("original changed: %s", g)
	}
	if c.String() != "0010" {
		t.Fatalf("unexpected copy: %s", c)
	}
}

func TestEntityCloneIsIndependent(t *testing.T) {
	g, err := Parse("101")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	e := &PopEntity{Genotype: g, Fitness: 0.75}
	c := e.Clone()
	if c.Fitness != e.Fitness || c.Genotype.String() != e.Genotype.String() {
		t.Fatalf("clone differs: %+v", c)
	}
	if err := c.Genotype.SetBit(1, true); err != nil {
		t.Fatalf("set: %v", err)
	}
	if e.Genotype.String() != "101" {
		t.Fatalf("clone aliases original genotype: %s", e.Genotype)
	}
}

func TestZeroValueIsEmpty(t *testing.T) {
	var g Genotype
	c := g.Copy()
	if c.Len() != 0 || c.String() != "" {
		t.Fatalf("unexpected copy of zero value: len=%d %q", c.Len(), c)
	}
	if g.String() != "" {
		t.Fatalf("unexpected zero value string: %q", g.String())
	}
	if _, err := g.Bit(0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected out of range on zero value, got %v", err)
	}
}

func TestSwapTail(t *testing.T) {
	a, _ := Parse("111111")
	b, _ := Parse("000000")
	if err := a.SwapTail(b, 2); err != nil {
		t.Fatalf("swap: %v", err)
	}
	if a.String() != "110000" || b.String() != "001111" {
		t.Fatalf("unexpected swap result: %s %s", a, b)
	}
}

func TestRandomizeDeterministicForSeed(t *testing.T) {
	a := New(64)
	b := New(64)
	a.Randomize(rand.New(rand.NewSource(7)))
	b.Randomize(rand.New(rand.NewSource(7)))
	if a.String() != b.String() {
		t.Fatalf("same seed produced different genotypes: %s %s", a, b)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	if _, err := Parse("10x1"); err == nil {
		t.Fatal("expected parse error")
	}
}
