package xnode

import (
	"crypto/ed25519"
	"time"
)

// Signer signs a buffer with a secret key, a narrow crypto capability
// used instead of a direct dependency on one curve implementation.
type Signer interface {
	Sign(secret ed25519.PrivateKey, buf []byte) ([]byte, error)
}

// Verifier checks a signature against a public key.
type Verifier interface {
	Verify(pub ed25519.PublicKey, buf, sig []byte) bool
}

// Clock supplies the current time for timestamping signed artifacts.
type Clock interface {
	NowMillis() uint64
}

// Ed25519Crypto is the default Signer/Verifier/Clock, backed by
// crypto/ed25519 and the system wall clock. Grounded on link/certs.go's
// use of ed25519.Verify directly against raw public key bytes.
type Ed25519Crypto struct{}

func (Ed25519Crypto) Sign(secret ed25519.PrivateKey, buf []byte) ([]byte, error) {
	return ed25519.Sign(secret, buf), nil
}

func (Ed25519Crypto) Verify(pub ed25519.PublicKey, buf, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, buf, sig)
}

func (Ed25519Crypto) NowMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}
