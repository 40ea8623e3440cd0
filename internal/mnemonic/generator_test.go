package mnemonic

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueProducesTwelveKnownWords(t *testing.T) {
	g := NewGenerator()
	for i := 0; i < 200; i++ {
		phrase, err := g.Issue()
		require.NoError(t, err)

		tokens := strings.Split(phrase, " ")
		require.Len(t, tokens, PhraseLength)
		for _, tok := range tokens {
			_, ok := wordIndex[tok]
			assert.Truef(t, ok, "word %q not in word source", tok)
		}
		assert.Equal(t, phrase, Normalize(phrase))
		assert.NoError(t, Validate(phrase))
	}
}

func TestWordSourceIsLargeAndUnique(t *testing.T) {
	list := Words()
	assert.GreaterOrEqual(t, len(list), 50)
	assert.Len(t, wordIndex, len(list))
	for _, w := range list {
		assert.Equal(t, strings.ToLower(w), w)
		assert.NotContains(t, w, " ")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy unavailable") }

func TestIssueSurfacesEntropyFailure(t *testing.T) {
	g := &Generator{entropy: failingReader{}}
	_, err := g.Issue()
	require.Error(t, err)
}

func TestNormalizeCollapsesWhitespaceButKeepsCase(t *testing.T) {
	assert.Equal(t, "apple Arrow autumn", Normalize("  apple \t Arrow\n\nautumn  "))
	assert.Equal(t, "", Normalize("   "))
}

func TestValidate(t *testing.T) {
	good := strings.TrimSpace(strings.Repeat("apple ", PhraseLength))
	assert.NoError(t, Validate(good))
	assert.ErrorIs(t, Validate(good+" apple"), ErrMalformedPhrase)
	assert.ErrorIs(t, Validate(strings.Replace(good, "apple", "Apple", 1)), ErrMalformedPhrase)
	assert.ErrorIs(t, Validate("apple"), ErrMalformedPhrase)
}
