// Package mnemonic issues and checks the 12-word recovery phrases handed to
// identities at registration.
package mnemonic

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// PhraseLength is the number of words in a recovery phrase.
const PhraseLength = 12

// ErrMalformedPhrase indicates a phrase with the wrong word count or a word
// outside the word source.
var ErrMalformedPhrase = errors.New("malformed recovery phrase")

var wordIndex = func() map[string]struct{} {
	idx := make(map[string]struct{}, len(words))
	for _, w := range words {
		idx[w] = struct{}{}
	}
	return idx
}()

// Generator draws recovery phrases from the fixed word source.
type Generator struct {
	entropy io.Reader
}

// NewGenerator returns a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// Issue draws PhraseLength words independently and uniformly at random and
// joins them with single spaces. Uniqueness against stored phrases is the
// caller's concern.
func (g *Generator) Issue() (string, error) {
	bound := big.NewInt(int64(len(words)))
	picked := make([]string, PhraseLength)
	for i := range picked {
		n, err := rand.Int(g.entropy, bound)
		if err != nil {
			return "", fmt.Errorf("draw word: %w", err)
		}
		picked[i] = words[n.Int64()]
	}
	return strings.Join(picked, " "), nil
}

// Words returns a copy of the word source.
func Words() []string {
	out := make([]string, len(words))
	copy(out, words[:])
	return out
}

// Normalize trims the phrase and collapses whitespace runs to a single space.
// Case is preserved; matching stays case-sensitive.
func Normalize(phrase string) string {
	return strings.Join(strings.Fields(phrase), " ")
}

// Validate reports ErrMalformedPhrase unless the normalized phrase has exactly
// PhraseLength words, all drawn from the word source.
func Validate(phrase string) error {
	fields := strings.Fields(phrase)
	if len(fields) != PhraseLength {
		return ErrMalformedPhrase
	}
	for _, f := range fields {
		if _, ok := wordIndex[f]; !ok {
			return ErrMalformedPhrase
		}
	}
	return nil
}
