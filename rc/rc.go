// Package rc implements the Router Contact: a signed, bencoded
// descriptor that binds a router's identity key to its advertised
// addresses and exit policies.
package rc

import (
	"crypto/ed25519"
	"fmt"

	"github.com/tzf-key/loki-network/bencode"
	"github.com/tzf-key/loki-network/xnode"
)

// MaxSize is the largest a well-formed, encoded RouterContact may be.
const MaxSize = 1024

// NickLen is the fixed width of the nickname field.
const NickLen = 32

const sigLen = ed25519.SignatureSize // 64

// AddressInfo is one advertised link-layer address. Order among a
// RouterContact's Addrs is preserved across encode/decode.
type AddressInfo struct {
	IP      [16]byte
	Port    uint16
	Dialect string
}

func (a AddressInfo) encode(buf *bencode.Buffer) bool {
	return buf.PutDict([]bencode.DictField{
		{Key: "i", Value: bencode.StringEncoder(a.IP[:])},
		{Key: "p", Value: bencode.IntEncoder(int64(a.Port))},
		{Key: "d", Value: bencode.StringEncoder([]byte(a.Dialect))},
	})
}

func decodeAddressInfo(buf *bencode.Buffer) (AddressInfo, bool) {
	var a AddressInfo
	ok := buf.ReadDict(func(key []byte, b *bencode.Buffer) bool {
		if key == nil {
			return true
		}
		switch string(key) {
		case "i":
			ip, ok := b.ReadString()
			if !ok || len(ip) != 16 {
				return false
			}
			copy(a.IP[:], ip)
			return true
		case "p":
			n, ok := b.ReadInt()
			if !ok || n < 0 || n > 0xffff {
				return false
			}
			a.Port = uint16(n)
			return true
		case "d":
			s, ok := b.ReadString()
			if !ok {
				return false
			}
			a.Dialect = string(s)
			return true
		default:
			return bencode.Skip(b)
		}
	})
	return a, ok
}

// ExitInfo is one advertised exit policy: the exit router's identity
// and the address range it is willing to exit traffic to/from.
type ExitInfo struct {
	Address xnode.RouterID
	Range   string
}

func (e ExitInfo) encode(buf *bencode.Buffer) bool {
	return buf.PutDict([]bencode.DictField{
		{Key: "a", Value: bencode.StringEncoder(e.Address[:])},
		{Key: "r", Value: bencode.StringEncoder([]byte(e.Range))},
	})
}

func decodeExitInfo(buf *bencode.Buffer) (ExitInfo, bool) {
	var e ExitInfo
	ok := buf.ReadDict(func(key []byte, b *bencode.Buffer) bool {
		if key == nil {
			return true
		}
		switch string(key) {
		case "a":
			addr, ok := b.ReadString()
			if !ok || len(addr) != len(e.Address) {
				return false
			}
			copy(e.Address[:], addr)
			return true
		case "r":
			s, ok := b.ReadString()
			if !ok {
				return false
			}
			e.Range = string(s)
			return true
		default:
			return bencode.Skip(b)
		}
	})
	return e, ok
}

// RouterContact is the signed descriptor identifying a routing node.
type RouterContact struct {
	Addrs       []AddressInfo
	Exits       []ExitInfo
	EncKey      [32]byte
	PubKey      xnode.RouterID
	Nickname    [NickLen]byte
	LastUpdated uint64
	Signature   [sigLen]byte
	Version     int64
}

// IsPublicRouter reports whether this RC advertises any exit policy.
func (rc *RouterContact) IsPublicRouter() bool {
	return len(rc.Exits) > 0
}

// HasNick reports whether a nickname is present (its first byte non-zero).
func (rc *RouterContact) HasNick() bool {
	return rc.Nickname[0] != 0
}

// Nick returns the nickname bytes up to the first zero byte, or the
// full width if there is no terminator.
func (rc *RouterContact) Nick() string {
	for i, b := range rc.Nickname {
		if b == 0 {
			return string(rc.Nickname[:i])
		}
	}
	return string(rc.Nickname[:])
}

// SetNick zero-fills the nickname field then copies up to NickLen bytes
// of s into it.
func (rc *RouterContact) SetNick(s string) {
	rc.Nickname = [NickLen]byte{}
	copy(rc.Nickname[:], s)
}

// BEncode writes the full RC dictionary into buf. It fails iff buf
// cannot hold the encoding.
func (rc *RouterContact) BEncode(buf *bencode.Buffer) bool {
	fields := []bencode.DictField{
		{Key: "a", Value: rc.encodeAddrs},
		{Key: "e", Value: rc.encodeExits},
		{Key: "k", Value: bencode.StringEncoder(rc.EncKey[:])},
		{Key: "p", Value: bencode.StringEncoder(rc.PubKey[:])},
		{Key: "s", Value: bencode.StringEncoder(rc.Signature[:])},
		{Key: "u", Value: bencode.IntEncoder(int64(rc.LastUpdated))},
		{Key: "v", Value: bencode.IntEncoder(rc.Version)},
	}
	if rc.HasNick() {
		fields = append(fields, bencode.DictField{
			Key: "n", Value: bencode.StringEncoder(rc.Nickname[:]),
		})
	}
	return buf.PutDict(fields)
}

func (rc *RouterContact) encodeAddrs(buf *bencode.Buffer) bool {
	elems := make([]bencode.ListEncoder, len(rc.Addrs))
	for i, a := range rc.Addrs {
		a := a
		elems[i] = a.encode
	}
	return buf.PutList(elems)
}

func (rc *RouterContact) encodeExits(buf *bencode.Buffer) bool {
	elems := make([]bencode.ListEncoder, len(rc.Exits))
	for i, e := range rc.Exits {
		e := e
		elems[i] = e.encode
	}
	return buf.PutList(elems)
}

// DecodeKey is invoked by the dictionary reader once per key; it
// dispatches on k into the typed fields and skips unknown keys.
func (rc *RouterContact) DecodeKey(k []byte, buf *bencode.Buffer) bool {
	if len(k) != 1 {
		return bencode.Skip(buf)
	}
	switch k[0] {
	case 'a':
		rc.Addrs = nil
		return buf.ReadList(func(b *bencode.Buffer) bool {
			a, ok := decodeAddressInfo(b)
			if !ok {
				return false
			}
			rc.Addrs = append(rc.Addrs, a)
			return true
		})
	case 'e':
		rc.Exits = nil
		return buf.ReadList(func(b *bencode.Buffer) bool {
			e, ok := decodeExitInfo(b)
			if !ok {
				return false
			}
			rc.Exits = append(rc.Exits, e)
			return true
		})
	case 'k':
		v, ok := buf.ReadString()
		if !ok || len(v) != len(rc.EncKey) {
			return false
		}
		copy(rc.EncKey[:], v)
		return true
	case 'p':
		v, ok := buf.ReadString()
		if !ok || len(v) != len(rc.PubKey) {
			return false
		}
		copy(rc.PubKey[:], v)
		return true
	case 'n':
		v, ok := buf.ReadString()
		if !ok || len(v) > NickLen {
			return false
		}
		rc.Nickname = [NickLen]byte{}
		copy(rc.Nickname[:], v)
		return true
	case 's':
		v, ok := buf.ReadString()
		if !ok || len(v) != sigLen {
			return false
		}
		copy(rc.Signature[:], v)
		return true
	case 'u':
		v, ok := buf.ReadInt()
		if !ok || v < 0 {
			return false
		}
		rc.LastUpdated = uint64(v)
		return true
	case 'v':
		v, ok := buf.ReadInt()
		if !ok {
			return false
		}
		rc.Version = v
		return true
	default:
		return bencode.Skip(buf)
	}
}

// Decode parses a full RC dictionary from data, using DecodeKey for
// every field encountered.
func Decode(data []byte) (*RouterContact, bool) {
	rc := &RouterContact{}
	r := bencode.NewReader(data)
	first := true
	ok := r.ReadDict(func(key []byte, buf *bencode.Buffer) bool {
		if key == nil {
			return true
		}
		first = false
		return rc.DecodeKey(key, buf)
	})
	if first && !ok {
		return nil, false
	}
	return rc, ok
}

// Sign sets LastUpdated to the current time, encodes the RC with the
// signature field zeroed, signs that encoding, and stores the result.
func (rc *RouterContact) Sign(crypto interface {
	xnode.Signer
	xnode.Clock
}, secret ed25519.PrivateKey) bool {
	rc.LastUpdated = crypto.NowMillis()
	rc.Signature = [sigLen]byte{}

	var backing [MaxSize]byte
	buf := bencode.NewBuffer(backing[:])
	if !rc.BEncode(buf) {
		return false
	}

	sig, err := crypto.Sign(secret, buf.Base[:buf.Cur])
	if err != nil || len(sig) != sigLen {
		return false
	}
	copy(rc.Signature[:], sig)
	return true
}

// VerifySignature re-encodes the RC with the signature field zeroed and
// checks that Signature verifies against PubKey over that encoding.
func (rc *RouterContact) VerifySignature(crypto xnode.Verifier) bool {
	sig := rc.Signature
	defer func() { rc.Signature = sig }()

	rc.Signature = [sigLen]byte{}
	var backing [MaxSize]byte
	buf := bencode.NewBuffer(backing[:])
	if !rc.BEncode(buf) {
		return false
	}
	return crypto.Verify(ed25519.PublicKey(rc.PubKey[:]), buf.Base[:buf.Cur], sig[:])
}

// EncodeToBytes is a convenience wrapper returning the canonical
// encoding or an error describing why it didn't fit.
func (rc *RouterContact) EncodeToBytes() ([]byte, error) {
	var backing [MaxSize]byte
	buf := bencode.NewBuffer(backing[:])
	if !rc.BEncode(buf) {
		return nil, fmt.Errorf("rc: encoding exceeds %d bytes", MaxSize)
	}
	out := make([]byte, buf.Cur)
	copy(out, buf.Base[:buf.Cur])
	return out, nil
}
