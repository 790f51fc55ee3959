package rc

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"

	"github.com/tzf-key/loki-network/xnode"
)

func newSignedRC(t *testing.T) (*RouterContact, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	contact := &RouterContact{
		Addrs: []AddressInfo{{Port: 1090, Dialect: "utp"}},
		Exits: []ExitInfo{{Range: "0.0.0.0/0"}},
	}
	copy(contact.PubKey[:], pub)
	contact.SetNick("alice")

	crypto := xnode.Ed25519Crypto{}
	if !contact.Sign(crypto, priv) {
		t.Fatalf("Sign failed")
	}
	return contact, priv
}

func TestSignAndVerify(t *testing.T) {
	contact, _ := newSignedRC(t)
	if !contact.VerifySignature(xnode.Ed25519Crypto{}) {
		t.Fatal("expected signature to verify")
	}
}

func TestVerifyFailsOnTamperedAddress(t *testing.T) {
	contact, _ := newSignedRC(t)
	contact.Addrs[0].Port ^= 0xff
	if contact.VerifySignature(xnode.Ed25519Crypto{}) {
		t.Fatal("expected tampered RC to fail verification")
	}
}

func TestVerifyFailsOnTamperedSignature(t *testing.T) {
	contact, _ := newSignedRC(t)
	contact.Signature[0] ^= 0xff
	if contact.VerifySignature(xnode.Ed25519Crypto{}) {
		t.Fatal("expected tampered signature to fail verification")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	contact, _ := newSignedRC(t)
	data, err := contact.EncodeToBytes()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(data) > MaxSize {
		t.Fatalf("encoded RC exceeds MaxSize: %d", len(data))
	}

	decoded, ok := Decode(data)
	if !ok {
		t.Fatal("decode failed")
	}
	if !decoded.VerifySignature(xnode.Ed25519Crypto{}) {
		t.Fatal("decoded RC should still verify")
	}
	if decoded.Nick() != "alice" {
		t.Fatalf("nick: got %q, want alice", decoded.Nick())
	}
	if !decoded.IsPublicRouter() {
		t.Fatal("expected IsPublicRouter to be true with one exit")
	}

	data2, err := decoded.EncodeToBytes()
	if err != nil || string(data) != string(data2) {
		t.Fatal("re-encode should be byte-identical")
	}
}

func TestHasNick(t *testing.T) {
	var rc RouterContact
	if rc.HasNick() {
		t.Fatal("fresh RC should have no nickname")
	}
	rc.SetNick("bob")
	if !rc.HasNick() {
		t.Fatal("expected HasNick after SetNick")
	}
}

func TestSetNickTruncatesTo32Bytes(t *testing.T) {
	var rc RouterContact
	long := "a_very_long_nickname_exceeding_32_bytes_easily"
	rc.SetNick(long)
	if len(rc.Nick()) != NickLen {
		t.Fatalf("expected exactly %d bytes, got %d", NickLen, len(rc.Nick()))
	}
	if rc.Nick() != long[:NickLen] {
		t.Fatalf("got %q, want %q", rc.Nick(), long[:NickLen])
	}
}

func TestIsPublicRouterRequiresExit(t *testing.T) {
	var rc RouterContact
	if rc.IsPublicRouter() {
		t.Fatal("RC with no exits should not be a public router")
	}
	rc.Exits = []ExitInfo{{}}
	if !rc.IsPublicRouter() {
		t.Fatal("RC with an exit should be a public router")
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	contact, _ := newSignedRC(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "rc.signed")

	if !contact.Write(path) {
		t.Fatal("Write failed")
	}

	var loaded RouterContact
	if !loaded.Read(path) {
		t.Fatal("Read failed")
	}
	if !loaded.VerifySignature(xnode.Ed25519Crypto{}) {
		t.Fatal("loaded RC should verify")
	}
}

func TestReadFailsOnTamperedFile(t *testing.T) {
	contact, _ := newSignedRC(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "rc.signed")
	if !contact.Write(path) {
		t.Fatal("Write failed")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	var loaded RouterContact
	if loaded.Read(path) && loaded.VerifySignature(xnode.Ed25519Crypto{}) {
		t.Fatal("tampered file should fail to verify")
	}
}

func TestDeriveSubIdentityDeterministic(t *testing.T) {
	contact, _ := newSignedRC(t)
	a, err := DeriveSubIdentity(contact.PubKey, "service-a")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, err := DeriveSubIdentity(contact.PubKey, "service-a")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if a != b {
		t.Fatal("expected deterministic derivation for the same label")
	}

	c, err := DeriveSubIdentity(contact.PubKey, "service-b")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if a == c {
		t.Fatal("expected distinct labels to derive distinct sub-identities")
	}
}
