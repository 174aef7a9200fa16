package msnp

import "fmt"

// Plain-text message colours (the CO= field of the X-MMS-IM-Format header)
// travel on the wire as BGR hex, the opposite byte order from the RGB
// values callers naturally think in.

// ColorToWire converts an 0xRRGGBB colour into the BGR hex string MSNP
// expects, e.g. 0xRRGGBB -> "bbggrr", with no leading-zero padding beyond
// the six significant digits (a colour of 0x010000 is sent as "1").
func ColorToWire(rgb uint32) string {
	r := (rgb >> 16) & 0xff
	g := (rgb >> 8) & 0xff
	b := rgb & 0xff
	bgr := b<<16 | g<<8 | r
	return fmt.Sprintf("%x", bgr)
}

// ColorFromWire parses a BGR hex string as produced by ColorToWire back into
// an 0xRRGGBB colour. Short strings are left-padded with zeros, mirroring
// how the wire omits leading zeros on emission.
func ColorFromWire(s string) (uint32, error) {
	for len(s) < 6 {
		s = "0" + s
	}
	if len(s) > 6 {
		s = s[:6]
	}
	var bgr uint32
	if _, err := fmt.Sscanf(s, "%06x", &bgr); err != nil {
		return 0, fmt.Errorf("%w: color %q: %v", ErrInvalidArgument, s, err)
	}
	b := (bgr >> 16) & 0xff
	g := (bgr >> 8) & 0xff
	r := bgr & 0xff
	return r<<16 | g<<8 | b, nil
}
