// Package router wires a node's identity, its PathSet, and its inbound
// message parser into the single object the rest of the stack drives:
// a thin composition, not a protocol implementation of its own.
package router

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tzf-key/loki-network/pathset"
	"github.com/tzf-key/loki-network/rc"
	"github.com/tzf-key/loki-network/routing"
	"github.com/tzf-key/loki-network/xnode"
)

// Router owns one node's router contact, its PathSet, and the parser
// used to decode messages arriving on its paths.
type Router struct {
	Contact *rc.RouterContact
	Paths   *pathset.PathSet
	Parser  *routing.InboundMessageParser
	logger  *slog.Logger
}

// New constructs a Router from an already-signed contact and a PathSet
// target size. logger is shared by the PathSet and the parser; nil
// defaults to slog.Default().
func New(contact *rc.RouterContact, numPaths int, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		Contact: contact,
		Paths:   pathset.New(numPaths, logger),
		Parser:  routing.NewInboundMessageParser(logger),
		logger:  logger,
	}
}

// Now satisfies routing.Router, letting message handlers read the
// wall-clock time this node is operating on.
func (r *Router) Now() int64 {
	return time.Now().UnixMilli()
}

// ID returns this router's identity, equal to its signing public key.
func (r *Router) ID() xnode.RouterID {
	return r.Contact.PubKey
}

// LoadContact reads and verifies a router contact from fname, replacing
// r.Contact only if it loads and verifies cleanly.
func (r *Router) LoadContact(fname string, verifier xnode.Verifier) error {
	var loaded rc.RouterContact
	if !loaded.Read(fname) {
		return fmt.Errorf("read router contact %s: failed", fname)
	}
	if !loaded.VerifySignature(verifier) {
		return fmt.Errorf("router contact %s: signature did not verify", fname)
	}
	r.Contact = &loaded
	return nil
}

// PersistContact atomically rewrites this router's contact to fname.
func (r *Router) PersistContact(fname string) error {
	return r.Contact.WriteAtomic(fname)
}

// Tick drives the PathSet's periodic lifecycle work: ticking live paths
// and expiring any that have passed their deadline. The host event loop
// is expected to call this on a fixed interval.
func (r *Router) Tick() {
	now := r.Now()
	r.Paths.TickPaths(now, r)
	r.Paths.ExpirePaths(now)
}

// HandleInboundMessage decodes and dispatches one routing message that
// arrived on the path identified by from.
func (r *Router) HandleInboundMessage(buf []byte, from xnode.PathID, h routing.MessageHandler) bool {
	return r.Parser.ParseMessageBuffer(buf, h, from, r)
}
