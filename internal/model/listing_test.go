package model

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestItemKey_PrefersIDOverURL(t *testing.T) {
	l := Listing{ID: "item-1", URL: "https://example.com/item-1"}
	assert.Equal(t, "item-1", l.ItemKey())

	l.ID = ""
	assert.Equal(t, "https://example.com/item-1", l.ItemKey())
}

func TestItemKey_TruncatesOnRuneBoundary(t *testing.T) {
	// A multi-byte rune straddling the cut must not leave a dangling byte:
	// the ledger column is UTF-8 and rejects broken sequences.
	l := Listing{URL: strings.Repeat("a", 199) + "üü"}

	key := l.ItemKey()

	assert.True(t, utf8.ValidString(key))
	assert.Equal(t, 200, utf8.RuneCountInString(key))
	assert.Equal(t, strings.Repeat("a", 199)+"ü", key)
}

func TestItemKey_ShortKeysUntouched(t *testing.T) {
	l := Listing{URL: "https://example.com/ü"}
	assert.Equal(t, "https://example.com/ü", l.ItemKey())
}
