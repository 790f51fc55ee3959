package rc

import (
	"fmt"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/sha3"

	"github.com/tzf-key/loki-network/xnode"
)

// deriveBlindString is the constant domain-separation prefix for
// sub-identity derivation, mirrored from the Ed25519 point-blinding
// construction used to derive per-service keys from a long-term
// identity (h = H(prefix | A | label), A' = h*A).
var deriveBlindString = []byte("loki-network sub-identity derivation\x00")

// DeriveSubIdentity derives a blinded public key scoped to label (for
// example a nickname or service tag) from an RC's long-term PubKey,
// without exposing or needing the secret key. A node can publish one
// RC and hand out distinct per-service public keys derived from it,
// each unlinkable to the others without the blinding factor.
//
// This has no counterpart among the RC's own fields; it is an optional
// extension a caller may use when a deployment wants pseudonymous
// sub-identities scoped to a single router's signing key.
func DeriveSubIdentity(pub xnode.RouterID, label string) (xnode.RouterID, error) {
	var blinded xnode.RouterID

	h := sha3.New256()
	h.Write(deriveBlindString)
	h.Write(pub[:])
	h.Write([]byte(label))
	hBytes := h.Sum(nil)

	hScalar, err := new(edwards25519.Scalar).SetBytesWithClamping(hBytes)
	if err != nil {
		return blinded, fmt.Errorf("sub-identity scalar: %w", err)
	}

	A, err := new(edwards25519.Point).SetBytes(pub[:])
	if err != nil {
		return blinded, fmt.Errorf("sub-identity base point: %w", err)
	}

	Aprime := new(edwards25519.Point).ScalarMult(hScalar, A)
	copy(blinded[:], Aprime.Bytes())
	return blinded, nil
}
