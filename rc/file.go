package rc

import (
	"fmt"
	"os"
)

// Read loads and decodes the bencoded RC stored at fname. It fails on
// I/O error or malformed bencoding, and produces an RC that will fail
// VerifySignature if the file was tampered with.
func (rc *RouterContact) Read(fname string) bool {
	data, err := os.ReadFile(fname)
	if err != nil {
		return false
	}
	decoded, ok := Decode(data)
	if !ok {
		return false
	}
	*rc = *decoded
	return true
}

// Write encodes rc and writes it to fname. It fails on encode error or
// I/O error; no partial file is left on encode failure.
func (rc *RouterContact) Write(fname string) bool {
	data, err := rc.EncodeToBytes()
	if err != nil {
		return false
	}
	if err := os.WriteFile(fname, data, 0600); err != nil {
		return false
	}
	return true
}

// WriteAtomic writes the RC to a temp file in the same directory as
// fname then renames it into place, so a concurrent reader never
// observes a partially-written contact.
func (rc *RouterContact) WriteAtomic(fname string) error {
	data, err := rc.EncodeToBytes()
	if err != nil {
		return err
	}
	tmp := fname + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write temp rc: %w", err)
	}
	if err := os.Rename(tmp, fname); err != nil {
		return fmt.Errorf("rename rc into place: %w", err)
	}
	return nil
}
