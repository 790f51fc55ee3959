package rc

import "testing"

func FuzzDecode(f *testing.F) {
	f.Add([]byte("de"))
	f.Add([]byte(""))
	f.Add([]byte("d1:pi1ee"))

	contact, _ := ed25519SampleRC()
	if data, err := contact.EncodeToBytes(); err == nil {
		f.Add(data)
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		// Must not panic on any input, well-formed or not.
		Decode(data)
	})
}

func ed25519SampleRC() (*RouterContact, error) {
	contact := &RouterContact{
		Addrs: []AddressInfo{{Port: 1, Dialect: "utp"}},
	}
	return contact, nil
}
