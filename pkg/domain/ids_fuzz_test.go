package domain

import (
	"testing"
)

// FuzzParseCredentialID checks that parsing arbitrary input never panics and
// that every accepted value round-trips through its string form.
func FuzzParseCredentialID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseCredentialID(input)
		if err != nil {
			return
		}
		roundTrip, err := ParseCredentialID(id.String())
		if err != nil {
			t.Fatalf("accepted id failed round-trip: %v", err)
		}
		if roundTrip != id {
			t.Fatal("round-trip changed id value")
		}
	})
}
