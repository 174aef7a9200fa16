package p2p

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/msnp11/msnp11go/msnp"
)

// MsnObject is the small XML descriptor MSNP clients exchange (in NLN/ILN's
// MsnObject field and in an MSNSLP INVITE's Context) to advertise a display
// picture without sending its bytes up front: the SHA1D digest over the raw
// picture bytes and the SHA1C digest over the descriptor's other fields let the
// receiving client decide whether it already has this picture cached.
type MsnObject struct {
	Creator  string
	Size     int
	Type     int
	Location string
	Friendly string
	SHA1D    string
}

// NewMsnObject builds the descriptor for picture as owned by creator.
// Type 3 is a display picture; Location/Friendly are cosmetic fields the
// reference client leaves as fixed placeholders for display pictures.
func NewMsnObject(creator string, picture []byte) MsnObject {
	sum := sha1.Sum(picture)
	return MsnObject{
		Creator:  creator,
		Size:     len(picture),
		Type:     3,
		Location: "PIC.tmp",
		Friendly: "AAA=",
		SHA1D:    base64.StdEncoding.EncodeToString(sum[:]),
	}
}

// String renders the descriptor's XML form, as placed in NLN/ILN's
// MsnObject field or an MSNSLP INVITE's Context.
func (m MsnObject) String() string {
	return fmt.Sprintf(
		`<msnobj Creator="%s" Size="%d" Type="%d" Location="%s" Friendly="%s" SHA1D="%s" SHA1C="%s"/>`,
		m.Creator, m.Size, m.Type, m.Location, m.Friendly, m.SHA1D, m.SHA1C(),
	)
}

// SHA1C computes the SHA1C digest: the base64-encoded SHA-1 hash of the
// literal field-concatenation string the reference client hashes, not the
// descriptor's XML form.
func (m MsnObject) SHA1C() string {
	canonical := fmt.Sprintf(
		"Creator%sSize%dType%dLocation%sFriendly%sSHA1D%s",
		m.Creator, m.Size, m.Type, m.Location, m.Friendly, m.SHA1D,
	)
	sum := sha1.Sum([]byte(canonical))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ParseMsnObject is a minimal parser for the wire-encoded msnobj XML,
// enough to recover the fields Client callers need without pulling in a
// full XML decoder for a single-element, attribute-only document.
func ParseMsnObject(encoded string) (MsnObject, error) {
	raw := msnp.UnescapeString(encoded)
	var m MsnObject
	attrs := map[string]string{}
	for _, name := range []string{"Creator", "Size", "Type", "Location", "Friendly", "SHA1D"} {
		v, ok := extractAttr(raw, name)
		if !ok {
			continue
		}
		attrs[name] = v
	}
	m.Creator = attrs["Creator"]
	m.Location = attrs["Location"]
	m.Friendly = attrs["Friendly"]
	m.SHA1D = attrs["SHA1D"]
	fmt.Sscanf(attrs["Size"], "%d", &m.Size)
	fmt.Sscanf(attrs["Type"], "%d", &m.Type)
	return m, nil
}

func extractAttr(raw, name string) (string, bool) {
	marker := name + `="`
	idx := strings.Index(raw, marker)
	if idx < 0 {
		return "", false
	}
	rest := raw[idx+len(marker):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}
