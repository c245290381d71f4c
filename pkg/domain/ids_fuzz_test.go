//go:build go1.18

package domain

import (
	"testing"
)

// FuzzParseHash32 checks that hash parsing never panics on arbitrary input
// and that accepted values round-trip through their hex encoding.
func FuzzParseHash32(f *testing.F) {
	f.Add("")
	f.Add("aa11223344556677889900112233445566778899001122334455667788990011")
	f.Add("0xaa11223344556677889900112233445566778899001122334455667788990011")
	f.Add("not-hex")
	f.Add("'; DROP TABLE commitments;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		h, err := ParseHash32(input)
		if err != nil {
			return
		}
		roundTrip, err2 := ParseHash32(h.String())
		if err2 != nil {
			t.Errorf("accepted hash failed round-trip: %v", err2)
		}
		if roundTrip != h {
			t.Error("round-trip changed hash value")
		}
	})
}

// FuzzParsePrincipal checks that principal parsing never panics and that
// accepted values re-parse to themselves.
func FuzzParsePrincipal(f *testing.F) {
	f.Add("")
	f.Add("holder-1")
	f.Add("  padded  ")
	f.Add(string([]byte{0x00}))

	f.Fuzz(func(t *testing.T, input string) {
		p, err := ParsePrincipal(input)
		if err != nil {
			return
		}
		roundTrip, err2 := ParsePrincipal(p.String())
		if err2 != nil {
			t.Errorf("accepted principal failed round-trip: %v", err2)
		}
		if roundTrip != p {
			t.Error("round-trip changed principal value")
		}
	})
}
