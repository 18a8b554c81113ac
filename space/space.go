package space

import (
	"errors"
	"fmt"
	"math/big"
	"math/bits"
)

// Candidate is one string drawn from a Space.
type Candidate string

// Space is every string over Alphabet whose length lies in
// [MinLength, MaxLength]. It is never materialized.
type Space struct {
	Alphabet  Alphabet
	MinLength int
	MaxLength int
}

func New(a Alphabet, minLength, maxLength int) (Space, error) {
	s := Space{Alphabet: a, MinLength: minLength, MaxLength: maxLength}
	return s, s.Validate()
}

func (s Space) Validate() error {
	if len(s.Alphabet) == 0 {
		return ErrEmptyAlphabet
	}
	if s.MinLength < 0 {
		return errors.New("minimum length must not be negative")
	}
	if s.MaxLength < s.MinLength {
		return fmt.Errorf("maximum length %d is below minimum length %d", s.MaxLength, s.MinLength)
	}
	return nil
}

// Size is the exact number of candidates: the sum of |alphabet|^L over the
// length range.
func (s Space) Size() *big.Int {
	total := new(big.Int)
	base := big.NewInt(int64(len(s.Alphabet)))
	for l := s.MinLength; l <= s.MaxLength; l++ {
		total.Add(total, new(big.Int).Exp(base, big.NewInt(int64(l)), nil))
	}
	return total
}

// Size64 returns the size when it fits in a uint64.
func (s Space) Size64() (uint64, bool) {
	var total uint64
	for l := s.MinLength; l <= s.MaxLength; l++ {
		n, ok := s.countOfLength(l)
		if !ok {
			return 0, false
		}
		var carry uint64
		total, carry = bits.Add64(total, n, 0)
		if carry != 0 {
			return 0, false
		}
	}
	return total, true
}

// countOfLength returns |alphabet|^l, with ok=false on overflow.
func (s Space) countOfLength(l int) (uint64, bool) {
	base := uint64(len(s.Alphabet))
	n := uint64(1)
	for i := 0; i < l; i++ {
		hi, lo := bits.Mul64(n, base)
		if hi != 0 {
			return 0, false
		}
		n = lo
	}
	return n, true
}

func (s Space) String() string {
	return fmt.Sprintf("'%s' length %d..%d", s.Alphabet, s.MinLength, s.MaxLength)
}
