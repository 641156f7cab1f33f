package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParsePAN checks that parsing never panics and that accepted values are
// canonical and stable.
func FuzzParsePAN(f *testing.F) {
	f.Add("")
	f.Add("ABCDE1234F")
	f.Add("abcde1234f")
	f.Add("INVALID123")
	f.Add("'; DROP TABLE applications;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		pan, err := ParsePAN(input)
		if err != nil {
			return
		}
		again, err := ParsePAN(pan.String())
		if err != nil || again != pan {
			t.Errorf("accepted PAN %q did not round-trip", pan)
		}
		if len(pan) != 10 || !utf8.ValidString(pan.String()) {
			t.Errorf("accepted PAN %q is not canonical", pan)
		}
	})
}
