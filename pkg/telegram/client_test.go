package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateCaption_ShortTextUntouched(t *testing.T) {
	assert.Equal(t, "new listing: Käfer", truncateCaption("new listing: Käfer"))
}

func TestTruncateCaption_CutsOnRuneBoundary(t *testing.T) {
	text := strings.Repeat("a", captionLimit-1) + "üü"

	caption := truncateCaption(text)

	assert.True(t, utf8.ValidString(caption))
	assert.Equal(t, captionLimit, utf8.RuneCountInString(caption))
	assert.True(t, strings.HasSuffix(caption, "ü"))
}
