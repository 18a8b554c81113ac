package space

import (
	"iter"
	"math"
)

// Generator lazily walks a Space: every length from MinLength to MaxLength in
// ascending order, and within a length the cartesian product of the alphabet
// in alphabet order. It holds one odometer of digit positions, so memory does
// not depend on the size of the space. A Generator cannot be restarted.
type Generator struct {
	space  Space
	length int   // length of the next candidate; > MaxLength once exhausted
	digits []int // alphabet positions of the next candidate
	pos    uint64
	buf    []rune
}

// NewGenerator positions a generator at the first candidate of s. An invalid
// space yields nothing.
func NewGenerator(s Space) *Generator {
	g := &Generator{space: s}
	if s.Validate() != nil {
		g.exhaust()
		return g
	}
	g.length = s.MinLength
	g.digits = make([]int, s.MinLength)
	g.buf = make([]rune, 0, s.MaxLength)
	return g
}

// Next returns the next candidate, or false once the space is exhausted.
func (g *Generator) Next() (Candidate, bool) {
	if g.length > g.space.MaxLength {
		return "", false
	}
	g.buf = g.buf[:0]
	for _, d := range g.digits {
		g.buf = append(g.buf, g.space.Alphabet[d])
	}
	c := Candidate(g.buf)
	g.advance()
	return c, true
}

func (g *Generator) advance() {
	g.pos++
	base := len(g.space.Alphabet)
	for i := len(g.digits) - 1; i >= 0; i-- {
		g.digits[i]++
		if g.digits[i] < base {
			return
		}
		g.digits[i] = 0
	}
	g.length++
	g.digits = make([]int, g.length)
}

// Position is the index of the next candidate Next will return.
func (g *Generator) Position() uint64 {
	return g.pos
}

// Skip advances the generator by n candidates without producing them.
// Skipping past the end exhausts the generator.
func (g *Generator) Skip(n uint64) {
	if n == 0 || g.length > g.space.MaxLength {
		return
	}
	if g.pos > math.MaxUint64-n {
		g.exhaust()
		return
	}
	target := g.pos + n
	g.pos = target
	rem := target
	for l := g.space.MinLength; l <= g.space.MaxLength; l++ {
		count, ok := g.space.countOfLength(l)
		if !ok || rem < count {
			g.length = l
			g.digits = make([]int, l)
			base := uint64(len(g.space.Alphabet))
			for i := l - 1; i >= 0; i-- {
				g.digits[i] = int(rem % base)
				rem /= base
			}
			return
		}
		rem -= count
	}
	g.exhaust()
}

func (g *Generator) exhaust() {
	g.length = g.space.MaxLength + 1
	g.digits = nil
}

// All yields the remaining candidates.
func (g *Generator) All() iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for {
			c, ok := g.Next()
			if !ok || !yield(c) {
				return
			}
		}
	}
}
