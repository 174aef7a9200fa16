package p2p

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMsnObjectDefaultsLocationToPICTmp(t *testing.T) {
	obj := NewMsnObject("me@example.com", []byte("picture bytes"))
	assert.Equal(t, "PIC.tmp", obj.Location)
	assert.Equal(t, 3, obj.Type)
}

func TestSHA1CHashesLiteralFieldConcatenation(t *testing.T) {
	obj := NewMsnObject("me@example.com", []byte("picture bytes"))

	canonical := fmt.Sprintf(
		"Creator%sSize%dType%dLocation%sFriendly%sSHA1D%s",
		obj.Creator, obj.Size, obj.Type, obj.Location, obj.Friendly, obj.SHA1D,
	)
	sum := sha1.Sum([]byte(canonical))
	want := base64.StdEncoding.EncodeToString(sum[:])

	assert.Equal(t, want, obj.SHA1C())
}

func TestParseMsnObjectRoundTrip(t *testing.T) {
	obj := NewMsnObject("me@example.com", []byte("another picture"))
	encoded := obj.String()

	parsed, err := ParseMsnObject(encoded)
	require.NoError(t, err)
	assert.Equal(t, obj.Creator, parsed.Creator)
	assert.Equal(t, obj.Size, parsed.Size)
	assert.Equal(t, obj.Type, parsed.Type)
	assert.Equal(t, obj.Location, parsed.Location)
	assert.Equal(t, obj.SHA1D, parsed.SHA1D)
	assert.Equal(t, obj.SHA1C(), parsed.SHA1C())
}
