package msnp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeStringLeavesUnreservedAlone(t *testing.T) {
	assert.Equal(t, "abc123-_.~", EscapeString("abc123-_.~"))
}

func TestEscapeStringEncodesSpaceAsPercent20(t *testing.T) {
	assert.Equal(t, "hello%20world", EscapeString("hello world"))
}

func TestEscapeStringEncodesReservedBytes(t *testing.T) {
	assert.Equal(t, "a%2Fb%3Dc", EscapeString("a/b=c"))
}

func TestUnescapeStringReversesEscapeString(t *testing.T) {
	in := "a display name / with = odd chars"
	assert.Equal(t, in, UnescapeString(EscapeString(in)))
}

func TestUnescapeStringPassesThroughMalformedEscapes(t *testing.T) {
	assert.Equal(t, "100% done", UnescapeString("100% done"))
}
