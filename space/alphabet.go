package space

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Alphabet is the ordered set of symbols candidates are built from. The order
// of the symbols fixes the enumeration order.
type Alphabet []rune

var ErrEmptyAlphabet = errors.New("alphabet is empty")

var presets = map[string]string{
	"lower":  "abcdefghijklmnopqrstuvwxyz",
	"upper":  "ABCDEFGHIJKLMNOPQRSTUVWXYZ",
	"digits": "0123456789",
	"alpha":  "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ",
	"alnum":  "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789",
	"hex":    "0123456789abcdef",
}

// Presets returns the names of the built-in alphabets, sorted.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for k := range presets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// NewAlphabet builds an alphabet from a literal string of symbols.
func NewAlphabet(symbols string) (Alphabet, error) {
	if symbols == "" {
		return nil, ErrEmptyAlphabet
	}
	seen := make(map[rune]bool)
	var out Alphabet
	for _, r := range symbols {
		if seen[r] {
			return nil, fmt.Errorf("alphabet has duplicate symbol %q", r)
		}
		seen[r] = true
		out = append(out, r)
	}
	return out, nil
}

// ParseAlphabet resolves a preset name, falling back to treating the
// argument as a literal symbol list.
func ParseAlphabet(s string) (Alphabet, error) {
	if p, ok := presets[strings.ToLower(s)]; ok {
		return NewAlphabet(p)
	}
	return NewAlphabet(s)
}

func (a Alphabet) Len() int {
	return len(a)
}

func (a Alphabet) String() string {
	return string(a)
}
