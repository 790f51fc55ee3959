package router

import (
	"crypto/ed25519"
	"path/filepath"
	"testing"

	"github.com/tzf-key/loki-network/rc"
	"github.com/tzf-key/loki-network/xnode"
)

func newTestRouter(t *testing.T) (*Router, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	contact := &rc.RouterContact{Addrs: []rc.AddressInfo{{Port: 1090, Dialect: "utp"}}}
	copy(contact.PubKey[:], pub)
	if !contact.Sign(xnode.Ed25519Crypto{}, priv) {
		t.Fatalf("sign failed")
	}
	return New(contact, 4, nil), priv
}

func TestRouterIDMatchesContactPubKey(t *testing.T) {
	r, _ := newTestRouter(t)
	if r.ID() != r.Contact.PubKey {
		t.Fatal("expected ID() to equal the contact's public key")
	}
}

func TestPersistAndLoadContact(t *testing.T) {
	r, _ := newTestRouter(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "rc.signed")

	if err := r.PersistContact(path); err != nil {
		t.Fatalf("persist: %v", err)
	}

	other := New(&rc.RouterContact{}, 4, nil)
	if err := other.LoadContact(path, xnode.Ed25519Crypto{}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if other.ID() != r.ID() {
		t.Fatal("expected loaded router's ID to match the persisted one")
	}
}

func TestLoadContactRejectsTampered(t *testing.T) {
	r, _ := newTestRouter(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "rc.signed")
	if err := r.PersistContact(path); err != nil {
		t.Fatalf("persist: %v", err)
	}

	r.Contact.Addrs[0].Port ^= 1
	_ = r.PersistContact(path) // overwrite with a tampered-but-unsigned contact

	other := New(&rc.RouterContact{}, 4, nil)
	if err := other.LoadContact(path, xnode.Ed25519Crypto{}); err == nil {
		t.Fatal("expected load of a contact with a stale signature to fail verification")
	}
}

func TestTickDoesNotPanicWithNoPaths(t *testing.T) {
	r, _ := newTestRouter(t)
	r.Tick()
}
